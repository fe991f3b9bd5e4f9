// doc.go — Package documentation for the page-session recorder.

// Package session records one live page session: every console message,
// network request, network response and page error observed while a target is
// loaded.
//
// Features:
//   - Per-category append-only logs (console, network, errors), each event
//     stamped with a per-session sequence number, wall time and a monotonic
//     offset from session start
//   - Request↔response correlation: a response links to the most recently
//     recorded unmatched request for the same URL; unmatched responses are
//     kept as orphans
//   - Live MIME-mismatch findings for script and stylesheet responses
//   - Synchronous observer callbacks for errors and findings
//
// A Session is a handle owned by the caller. There is no process-wide page
// state: concurrent sessions share nothing mutable. After End or EndPartial
// the handle rejects further use with ErrInvalidSessionState.
package session
