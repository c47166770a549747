package setup

import (
	"context"
	"time"
)

// Account is the auth-identity capability. Host model types whose pointer
// implements it are candidates for privileged-account provisioning.
type Account interface {
	// AccountIdentifier returns the value that identifies the account for login.
	AccountIdentifier() string
}

// PasswordHasher is an opaque one-way transform applied to secrets.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// MarkerStore persists the completion marker.
type MarkerStore interface {
	// Exists reports whether the marker has been written.
	Exists() bool

	// Write records the marker with a human-readable payload.
	Write(payload string) error
}

// Journal records step attempts for audit. It is never a status source.
type Journal interface {
	Record(ctx context.Context, step string, outcome Outcome, message string) error
}

// StepRecorder receives timing and outcome of each step for metrics.
type StepRecorder interface {
	RecordStep(step string, outcome Outcome, duration time.Duration)
	RecordStatus(status InstallationStatus)
}
