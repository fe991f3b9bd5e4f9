// doc.go — Package documentation for report emission.

// Package report renders and persists diagnostic reports.
//
// Outputs:
//   - JSON: the full report, category-major, deterministic for a given report
//   - Human: critical issues first, then counts, then samples per category
//   - HAR 1.2: the session's correlation table for DevTools and proxies
//   - SQLite: a durable store keyed by session ID, readable by `pagediag show`
//
// Every output implements Sink so a run can fan a report out to several
// destinations; Multi collects all sink errors instead of stopping at the first.
package report
