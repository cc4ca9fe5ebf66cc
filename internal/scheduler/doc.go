// Package scheduler runs a job on a fixed interval.
//
// The job runs once immediately after Start and then on every tick. Runs
// never overlap: a tick that fires while a run is still in flight is
// dropped. A failed run is logged and retried at the next tick.
package scheduler
