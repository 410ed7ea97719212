// Package logs reads the agent's JSON log file for the CLI.
//
// Last returns the final records with bounded memory, Follow polls for
// records appended after an offset until its context ends. Both accept a
// Filter so an operator can narrow output to one scan cycle, one component or
// a minimum level.
package logs
