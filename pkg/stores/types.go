package stores

import (
	"context"
	"time"

	"github.com/installkit/installkit/pkg/setup"
)

// Entry is one journaled step attempt.
type Entry struct {
	ID         string        `json:"id"`
	Step       string        `json:"step"`
	Outcome    setup.Outcome `json:"outcome"`
	Message    string        `json:"message"`
	DurationMS int64         `json:"duration_ms"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Filter narrows a journal listing. Nil fields match everything.
type Filter struct {
	Step    *string
	Outcome *setup.Outcome
}

// Store defines the journal persistence layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Journal operations
	Record(ctx context.Context, step string, outcome setup.Outcome, message string) error
	Append(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Entry, error)
	Latest(ctx context.Context) (map[string]*Entry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
