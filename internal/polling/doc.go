// Package polling turns polling configurations into scan requests.
//
// PollEveryInterval emits instants on a grid anchored at a UTC time of
// day. SimpleScanRequester follows a stream of configurations and
// restarts that grid whenever a new configuration arrives.
//
// All time is read from a clock.Clock so tests can drive the scheduler
// with clock.NewMock().
package polling
