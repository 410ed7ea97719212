package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/sys/unix"

	"mediaagent/internal/config"
	"mediaagent/internal/logging"
	"mediaagent/internal/services"
)

const (
	dialAttempts       = 3
	dialInitialBackoff = 500 * time.Millisecond
)

// Dialer opens SFTP sessions to fleet hosts.
type Dialer struct {
	users       func(host string) string
	port        int
	timeout     time.Duration
	keyPath     string
	knownHosts  string
	agentSocket string
	logger      *slog.Logger
}

// NewDialer builds a Dialer from the ssh section of cfg.
func NewDialer(cfg *config.Config, logger *slog.Logger) *Dialer {
	return &Dialer{
		users:       cfg.UserFor,
		port:        cfg.SSH.Port,
		timeout:     time.Duration(cfg.SSH.TimeoutSeconds) * time.Second,
		keyPath:     cfg.SSH.KeyPath,
		knownHosts:  cfg.SSH.KnownHostsPath,
		agentSocket: os.Getenv("SSH_AUTH_SOCK"),
		logger:      logging.NewComponentLogger(logger, "transfer"),
	}
}

// Dial connects to host and starts an SFTP session, retrying transient
// network failures with exponential backoff.
func (d *Dialer) Dial(ctx context.Context, host string) (*SFTP, error) {
	clientCfg, cleanup, err := d.clientConfig(host)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "transfer", "ssh config", "cannot build ssh client config", err)
	}
	defer cleanup()

	addr := net.JoinHostPort(host, strconv.Itoa(d.port))
	delay := dialInitialBackoff
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := d.dial(ctx, addr, clientCfg)
		if err == nil {
			client, err := sftp.NewClient(conn)
			if err != nil {
				_ = conn.Close()
				return nil, services.Wrap(services.ErrExternalTool, "transfer", "sftp session", "sftp subsystem unavailable on "+host, err)
			}
			return NewSFTP(host, client, conn), nil
		}
		lastErr = err
		if !retryableDial(err) || attempt == dialAttempts {
			break
		}
		d.logger.Debug("ssh dial failed, retrying",
			logging.String(logging.FieldHost, host),
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
	return nil, services.Wrap(services.ErrTransient, "transfer", "ssh dial", "cannot reach "+addr, lastErr)
}

func (d *Dialer) dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: d.timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if d.timeout > 0 {
		_ = netConn.SetDeadline(time.Now().Add(d.timeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, cfg)
	if err != nil {
		_ = netConn.Close()
		return nil, err
	}
	_ = netConn.SetDeadline(time.Time{})
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func (d *Dialer) clientConfig(host string) (*ssh.ClientConfig, func(), error) {
	cleanup := func() {}
	var methods []ssh.AuthMethod

	if d.agentSocket != "" {
		if conn, err := net.Dial("unix", d.agentSocket); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			cleanup = func() { _ = conn.Close() }
		}
	}
	if strings.TrimSpace(d.keyPath) != "" {
		pem, err := os.ReadFile(d.keyPath)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("parse ssh key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if len(methods) == 0 {
		cleanup()
		return nil, func() {}, errors.New("no ssh credentials: set ssh.key_path or run an ssh agent")
	}

	hostKeys := ssh.InsecureIgnoreHostKey() //nolint:gosec
	if strings.TrimSpace(d.knownHosts) != "" {
		callback, err := knownhosts.New(d.knownHosts)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("load known_hosts: %w", err)
		}
		hostKeys = callback
	}

	return &ssh.ClientConfig{
		User:            d.users(host),
		Auth:            methods,
		HostKeyCallback: hostKeys,
		Timeout:         d.timeout,
	}, cleanup, nil
}

// retryableDial reports network errors worth another attempt. Authentication
// and host key failures are final.
func retryableDial(err error) bool {
	if err == nil {
		return false
	}
	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		return false
	}
	if strings.Contains(err.Error(), "unable to authenticate") {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, unix.ECONNREFUSED) || strings.Contains(err.Error(), "connection reset")
}
