// Package broadcast provides the asynchronous state-change notification
// pipeline: event model and pluggable sinks. The dispatcher that drains
// events into a sink lives in the root package next to the Machine.
//
// Broadcasts replace subscriber bookkeeping: every storage mutation that
// changes the observable auth state publishes one event, and any number of
// UI surfaces converge by re-deriving their view from it.
package broadcast
