package dispatch

import "sync"

// Roster is a fixed ordered list of remote hosts with a wrapping cursor.
type Roster struct {
	hosts []string

	mu     sync.Mutex
	cursor int
}

// NewRoster copies hosts into a new roster.
func NewRoster(hosts []string) *Roster {
	return &Roster{hosts: append([]string(nil), hosts...)}
}

// Len returns the number of hosts.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.hosts)
}

// Hosts returns a copy of the host list.
func (r *Roster) Hosts() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.hosts...)
}

// Next returns the host under the cursor and advances it.
func (r *Roster) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	host := r.hosts[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.hosts)
	return host
}
