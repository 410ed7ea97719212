// Package queue holds the conversion jobs of one scan cycle.
//
// A Queue is a FIFO of Jobs keyed by input path. Enqueue writes the pending
// ledger row before a job becomes visible, and a second Enqueue for a key the
// queue has already seen is a no-op. Drain converts one job at a time in
// enqueue order and acknowledges each exactly once, recording the outcome in
// the ledger and handing successes to the Publisher. Wait provides join
// semantics so a cycle can block until every job is acknowledged.
//
// The queue itself is memory-only. The ledger rows it writes are what survive
// a restart; the agent settles rows left pending at startup.
package queue
