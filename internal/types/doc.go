// doc.go — Package documentation for the shared diagnostic data model.

// Package types provides the foundational, zero-dependency types for pagediag.
//
// This package contains every type that crosses a package boundary:
//   - Events: the uniform sum type delivered by driver adapters (console,
//     network request, network response, page error)
//   - Headers: case-insensitive HTTP header mapping
//   - Findings: classifier and recorder verdicts
//   - Correlation entries and frozen session logs
//
// Design Principle: Zero Dependencies
// This package imports only the Go standard library. It is safe to import from
// any other package without creating circular dependencies.
//
// Architecture Layer: Foundation
//
//	Layer 1: types (zero deps) ← YOU ARE HERE
//	Layer 2: Domain packages (session, classify, diagnose, driver)
//	Layer 3: Composite packages (monitor, report)
//	Layer 4: Wiring (cmd/pagediag)
package types
