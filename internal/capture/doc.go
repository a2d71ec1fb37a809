// Package capture observes the running processes of one scenario.
//
// Every process output stream gets its own reader goroutine that pushes
// complete lines into a shared channel. A single control loop owns all state:
// it numbers events in arrival order, tracks which streams are still active,
// and drives the shutdown of the server once every client is done. No stream
// can hold up the others because none of them is read by the loop itself.
//
// A stream stays active until its reader reached end of file AND its process
// has exited, so the last line a process writes before exiting is never lost.
// Client streams are the exception once the grace period is over: a client
// that exited but left a background child holding its pipe no longer keeps
// the capture open.
//
// Shutdown follows a fixed sequence. When every client process has exited the
// loop records a SYSTEM event, keeps draining output for the grace period,
// then asks the server to terminate. If the server is still alive after the
// exit timeout it is killed, its remaining buffered output is read for a
// short while, and the run carries an anomaly.
package capture
