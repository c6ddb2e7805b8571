// Package router is the background process surface: it receives request
// envelopes from UI surfaces, dispatches them to machine operations, streams
// broadcast events to concurrently connected observers, and owns the timer
// that refreshes the access token before it expires.
//
// Requests are processed one at a time in arrival order. Every response is
// either {success:true, data} or {success:false, error:{code, message}}; no
// raw error ever crosses this boundary.
package router
