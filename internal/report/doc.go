// Package report converts raw measurement notifications into caller-facing
// ranging reports.
//
// Build is a pure function: it never errs and never mutates its inputs. A
// malformed or empty notification produces an empty report. Fields outside
// the session's negotiated reporting scope are absent (nil), never
// zero-filled, so callers can distinguish "not measured" from "measured
// zero".
package report
