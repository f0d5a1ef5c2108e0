// Package ingest loads raw PAN records from staging: local CSV files, S3
// objects, and Snowflake or Postgres tables.
package ingest

import (
	"context"
	"errors"

	"github.com/ignite/pan-validator/internal/pan"
)

var (
	// ErrColumnNotFound is returned when the header row lacks the configured column.
	ErrColumnNotFound = errors.New("column not found in header")

	// ErrInvalidIdentifier is returned for table or column names that are not plain SQL identifiers.
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")

	// ErrUnknownKind is returned by New for an unsupported source kind.
	ErrUnknownKind = errors.New("unknown source kind")
)

// Source yields the raw records of one staging batch.
type Source interface {
	Name() string
	Records(ctx context.Context) ([]pan.RawRecord, error)
}

// StaticSource serves records already in memory.
type StaticSource struct {
	Label string
	Items []pan.RawRecord
}

func (s StaticSource) Name() string { return s.Label }

func (s StaticSource) Records(ctx context.Context) ([]pan.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Items, nil
}
