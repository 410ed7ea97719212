// Package dispatch decides where a conversion runs and moves files between
// the primary host and the remote converters.
//
// Policy owns the roster cursor and the remote budget: a primary host with
// remote agents sends up to one job per roster entry to the next host in
// round-robin order, then routes a job locally and refills the budget. A
// remote agent always converts locally. Dispatcher executes the decision,
// either enqueueing on the local queue or shipping the file over a transfer
// Transport after a free-space check. ReturnToControl is the reverse path a
// remote agent uses once its conversion succeeds.
package dispatch
