// Package installer is the caller-facing facade over the installation steps.
//
// Every operation returns a setup.Result and never an error. Each call runs
// inside a telemetry step (span, metrics, step logger), is journaled when it
// mutates state, and recovers panics into internal outcomes.
package installer
