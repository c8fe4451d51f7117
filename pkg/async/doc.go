// Package async runs detached background work for request handlers.
//
// A Tasks value owns every goroutine it starts: each task gets panic
// recovery and its own timeout, and WaitContext lets shutdown drain the
// tasks that are still in flight.
package async
