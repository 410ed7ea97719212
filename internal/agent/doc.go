// Package agent is the composition root of mediaagent.
//
// Bootstrap builds exactly one store, one cache set, one transport router and
// one converter from the configuration and wires them into the catalog, the
// dispatcher and the scanner. RunCycle performs one scan cycle on a fresh
// conversion queue: the drain goroutine starts first, the scan feeds it, and
// the cycle returns once every admitted job has settled. Run holds the
// single-instance lock, reconciles ledger rows left pending by a previous
// process and repeats cycles every scan interval, or sooner when the optional
// media watcher sees new files settle.
package agent
