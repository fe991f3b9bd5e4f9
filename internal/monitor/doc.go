// doc.go — Package documentation for the observation pipeline.

// Package monitor runs the full diagnosis of one or more targets:
// subscribe to a page's events, navigate, observe for a settle window,
// freeze the session, then classify console messages, page errors, the DOM
// and every discovered script body, and aggregate the result into a report.
//
// Observation ends on whichever comes first: the settle window elapsing, the
// driver's event stream closing, the observation timeout (partial,
// "observation_timeout") or cancellation of the parent context (partial,
// "cancelled"). Timed-out sessions still capture the DOM and fetch scripts
// under a fresh per-fetch deadline; cancelled sessions skip both.
package monitor
