// doc.go — Package documentation for session diagnosis.

// Package diagnose turns frozen session logs and classifier findings into a
// Report: ordered event logs, the correlation table, counts, critical issues
// and capped samples.
//
// Aggregate is a pure function. It performs no I/O and never mutates its
// inputs, so aggregating the same logs twice yields identical reports.
// Pass/fail policy is left to callers; Report.Status only separates an
// incomplete observation from a complete one.
package diagnose
