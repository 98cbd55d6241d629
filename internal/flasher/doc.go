// Package flasher runs the external programmer tool that writes firmware to,
// or erases, a signing device.
//
// An Executor owns one Job. Run starts a single worker goroutine which calls
// the Programmer and streams its output. The worker never touches the Job:
// every output line and the final result are posted to the event loop, where
// lines are classified against the operation's markers and faults are turned
// into typed errors delivered exactly once to the OnFault closure.
//
// Marker precedence for each line:
//
//  1. "Greeting fail" while the job is not done: the job fails and the tool
//     is killed. Completion never fires.
//  2. The success marker ("Rebooting..." for flash, "SPI Flash erased." for
//     wipe): the job is done and completion fires once.
//  3. Anything else is kept in the bounded output log.
package flasher
