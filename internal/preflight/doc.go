// Package preflight provides readiness checks for the filesystem paths and
// services the agent depends on.
//
// These checks run in two contexts:
//   - The agent calls RunAll before its first cycle and refuses to start when
//     the media root is unusable.
//   - The CLI "mediaagent status" command uses the individual checks
//     (CheckDirectoryAccess, CheckFreeSpace, CheckPing) to display health.
package preflight
