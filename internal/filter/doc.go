// Package filter implements the invocation-filtering engine: a wrapper that
// turns a plain function into a rate-limited callable returning a future per
// call, and the two strategies that decide when the real function runs.
//
// STRATEGIES:
//
// Throttle runs at most one leading and one trailing execution per window.
// Calls arriving mid-window collapse onto a single pending trailing slot.
//
// Debounce runs once per quiescent gap of the delay. With a max-wait ceiling
// it is forced to run no later than max-wait after the first call of a burst.
//
// LAST-CALL-WINS:
//
// Both strategies keep at most one main pending execution. A new call always
// settles the previous pending future first (rejecting it when
// WithRejectOnCancel is set, resolving it with the zero value otherwise) and
// only then decides what to do with itself. A ceiling flush is not a
// cancellation: the latest call runs and its future resolves normally.
//
// CONCURRENCY:
//
// Decisions are made under a per-strategy mutex; the wrapped function is
// never called with the lock held, so it may re-enter the filtered function.
// Timer callbacks recognise stale firings by the identity of the pending
// record they were scheduled for.
//
// A window or delay at or below zero means "run synchronously, every time":
// the call's future is settled before Apply returns.
package filter
