// Package transfer moves files between fleet hosts.
//
// A Transport offers the handful of filesystem operations dispatch needs on a
// destination host: free space, existence, directory creation and a verified
// copy that lands under a ".part" name before being renamed. SFTP implements it
// over SSH for remote hosts; Local implements it on the local filesystem for
// loopback destinations and tests. Router picks one per host and keeps SSH
// sessions open for the lifetime of the agent.
package transfer
