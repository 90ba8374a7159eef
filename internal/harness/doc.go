// Package harness replays scripted call sequences through a filter and
// checks what happened.
//
// # Scenario Format
//
//	name: throttle_burst
//	description: "Four calls inside one window"
//	filter:
//	  kind: throttle
//	  ms: 1000
//	  trailing: true
//	calls:
//	  - { at: 500, arg: a }
//	  - { at: 500, arg: b }
//	  - { at: 700, arg: c, fail: "boom" }
//	  - { at: 900, arg: d, ms: 2000 }
//	horizon: 4000
//	assertions:
//	  - type: exec_count
//	    count: 2
//	  - type: exec_at
//	    times: [500, 1500]
//	  - type: settled
//	    call: 2
//	    state: resolved
//	  - type: max_per_window
//	    window: 1000
//	    max: 2
//
// The target echoes each call's arg as its result, or fails with the
// call's fail message. A call's ms changes the live window before the
// call is made.
//
// An idle filter has no target. Each call touches the detector, or with
// end: true signals the end of activity directly. When activity ends the
// call that ended it is recorded as the execution, and each call resolves
// "true" if it ended the stream and "false" otherwise.
//
// # Determinism
//
// Runs use a clock.Manual starting at Epoch. Timers fire synchronously,
// one deadline at a time, and events are numbered with a clock.Sequence,
// so the same scenario always produces the same trace. Traces serialise
// to canonical JSON for golden comparison.
package harness
