package transfer

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
)

// DialFunc opens a transport to a remote host.
type DialFunc func(ctx context.Context, host string) (Transport, error)

// Router hands out one Transport per host. Loopback names map to the local
// filesystem; everything else is dialled once and reused until Close.
type Router struct {
	dial  DialFunc
	local Transport
	self  map[string]struct{}

	mu    sync.Mutex
	conns map[string]Transport
}

// NewRouter builds a Router. Extra names in localNames are treated as this host.
func NewRouter(dial DialFunc, localNames ...string) *Router {
	self := map[string]struct{}{"localhost": {}, "127.0.0.1": {}, "::1": {}}
	if name, err := os.Hostname(); err == nil && name != "" {
		self[strings.ToLower(name)] = struct{}{}
	}
	for _, name := range localNames {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			self[name] = struct{}{}
		}
	}
	return &Router{
		dial:  dial,
		local: NewLocal(),
		self:  self,
		conns: make(map[string]Transport),
	}
}

// NewSFTPRouter routes remote hosts through d.
func NewSFTPRouter(d *Dialer, localNames ...string) *Router {
	return NewRouter(func(ctx context.Context, host string) (Transport, error) {
		return d.Dial(ctx, host)
	}, localNames...)
}

// IsLocal reports whether host names this machine.
func (r *Router) IsLocal(host string) bool {
	_, ok := r.self[strings.ToLower(strings.TrimSpace(host))]
	return ok
}

// For returns the transport for host, dialling on first use.
func (r *Router) For(ctx context.Context, host string) (Transport, error) {
	if r.IsLocal(host) {
		return r.local, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.conns[host]; ok {
		return t, nil
	}
	t, err := r.dial(ctx, host)
	if err != nil {
		return nil, err
	}
	r.conns[host] = t
	return t, nil
}

// Drop closes and forgets the cached transport for host so the next For redials.
func (r *Router) Drop(host string) {
	r.mu.Lock()
	t, ok := r.conns[host]
	delete(r.conns, host)
	r.mu.Unlock()
	if ok {
		_ = t.Close()
	}
}

// Close closes every cached transport.
func (r *Router) Close() error {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]Transport)
	r.mu.Unlock()
	var errs []error
	for _, t := range conns {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}
