package dispatch

import "sync"

// Route is where a job runs.
type Route string

const (
	RouteLocal  Route = "local"
	RouteRemote Route = "remote"
)

// Decision is the outcome of Policy.Decide.
type Decision struct {
	Route  Route
	Host   string
	Reason string
}

// Policy routes jobs between the local queue and the roster.
type Policy struct {
	remoteAgent bool
	roster      *Roster

	mu     sync.Mutex
	budget int
}

// NewPolicy builds a policy. remoteAgent pins every job to the local queue.
func NewPolicy(remoteAgent bool, roster *Roster) *Policy {
	p := &Policy{remoteAgent: remoteAgent, roster: roster}
	p.budget = roster.Len()
	return p
}

// Decide returns the route for the next job.
func (p *Policy) Decide() Decision {
	if p.remoteAgent {
		return Decision{Route: RouteLocal, Reason: "remote agent converts locally"}
	}
	if p.roster.Len() == 0 {
		return Decision{Route: RouteLocal, Reason: "no remote hosts configured"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.budget > 0 {
		p.budget--
		return Decision{Route: RouteRemote, Host: p.roster.Next(), Reason: "remote budget available"}
	}
	p.budget = p.roster.Len()
	return Decision{Route: RouteLocal, Reason: "remote budget exhausted"}
}

// ResetBudget refills the remote budget to the roster size.
func (p *Policy) ResetBudget() {
	p.mu.Lock()
	p.budget = p.roster.Len()
	p.mu.Unlock()
}

// Budget returns the remaining remote dispatches before the next local one.
func (p *Policy) Budget() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.budget
}
