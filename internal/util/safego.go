// safego.go — Panic-recovering goroutine launcher.
package util

import (
	"log/slog"
	"runtime/debug"
)

// SafeGo launches fn in a goroutine with deferred panic recovery.
// On panic: logs the value and stack at error level. Does NOT exit, so one
// misbehaving session never takes the others down.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in background goroutine", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
