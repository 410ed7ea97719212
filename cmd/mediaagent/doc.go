// Package main hosts the mediaagent CLI entrypoint and command graph.
//
// The Cobra command tree runs the agent loop (run), a single scan cycle
// (scan), and the read-only views over the conversion ledger and the agent's
// environment (conversions, status), plus configuration scaffolding. Commands
// resolve configuration and logging once through commandContext and then hand
// off to internal/agent, which owns the wiring.
package main
