// Package engine runs one compiled test against a World Gateway.
//
// Each run is a small state machine:
//
//	Idle -> Setup -> Running -> Teardown -> Done
//
// Setup clears the cleanup region. Running freezes time, then walks the
// schedule in tick order: step until the world reaches the tick, apply the
// tick's mutations, sync, evaluate the tick's expectations. Teardown
// releases the freeze and clears the region again. Done assembles the
// Verdict.
//
// ORDERING:
//
// Within a tick every mutation is acknowledged and a Sync barrier returns
// before any expectation of that tick is read. Tick n completes before the
// first step towards tick n+1 is issued. Empty ticks cost one step request
// each and nothing else.
//
// FAILURE HANDLING:
//
// Assertion mismatches are data: they accumulate and the run continues.
// A gateway error (timeout, disconnect, rejection, tick desync) aborts
// Running. Teardown still runs, on a context detached from the caller's
// cancellation, and the verdict is Errored with the failures seen so far.
//
// The engine holds no state between runs. A Gateway must be used by one
// Engine run at a time because freeze and step are global to the world.
package engine
