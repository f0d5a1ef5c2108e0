package validation

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignite/pan-validator/internal/pan"
	"github.com/ignite/pan-validator/internal/storage"
)

// RunRepository is the durable audit store for runs.
type RunRepository interface {
	// SaveRun writes the run header and every outcome atomically.
	SaveRun(ctx context.Context, res *pan.Result) error

	// GetSummary returns ErrRunNotFound for an unknown run.
	GetSummary(ctx context.Context, runID uuid.UUID) (*pan.RunSummary, error)

	// ListOutcomes returns a run's outcomes in input order.
	ListOutcomes(ctx context.Context, runID uuid.UUID, filter OutcomeFilter) ([]pan.Outcome, error)
}

// ResultCache holds recent results for fast lookups.
type ResultCache interface {
	Save(ctx context.Context, res *pan.Result) error
	Summary(ctx context.Context, runID string) (*pan.RunSummary, error)
	Verdict(ctx context.Context, runID, identifier string) (pan.Verdict, error)
}

// SummaryHistory reads the per-source summary history, newest first.
type SummaryHistory interface {
	ListSummaries(ctx context.Context, source string, limit int32) ([]storage.SummaryItem, error)
}

// OutcomeFilter narrows ListOutcomes. Zero fields match everything;
// Limit 0 means no limit. A non-nil Identifier matches exactly, so the
// empty NULL sentinel can be looked up like any other identifier.
type OutcomeFilter struct {
	Identifier *string
	Verdict    pan.Verdict
	Limit      int
	Offset     int
}
