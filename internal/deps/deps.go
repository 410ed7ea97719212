package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"mediaagent/internal/config"
)

// Requirement defines an external binary the agent invokes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// Requirements lists the binaries cfg will execute.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: cfg.Transcode.FFmpegBinary, Description: "Converts videos and extracts thumbnails"},
		{Name: "FFprobe", Command: cfg.Transcode.FFprobeBinary, Description: "Verifies outputs and measures durations", Optional: !cfg.Transcode.VerifyOutput && !cfg.Agent.Thumbnails},
	}
	if cfg.Transcode.LowPriority && !cfg.Agent.RemoteAgent {
		reqs = append(reqs,
			Requirement{Name: "nice", Command: "nice", Description: "Lowers CPU priority of conversions", Optional: true},
			Requirement{Name: "ionice", Command: "ionice", Description: "Lowers I/O priority of conversions", Optional: true},
		)
	}
	if cfg.Transmission.Enabled && !cfg.Agent.RemoteAgent {
		reqs = append(reqs, Requirement{
			Name:        "transmission-remote",
			Command:     cfg.Transmission.Binary,
			Description: "Skips TV folders that are still downloading",
			Optional:    true,
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = resolved
		results = append(results, status)
	}
	return results
}

// Missing returns the required statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
