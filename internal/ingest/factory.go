package ingest

import (
	"database/sql"
	"fmt"

	"github.com/ignite/pan-validator/internal/config"
)

// Deps carries the clients a configured source may need. Only the one
// matching the source kind must be set.
type Deps struct {
	S3        GetObjectAPI
	Snowflake *sql.DB
	Postgres  *sql.DB
}

// FromConfig builds the source named by cfg.Kind.
func FromConfig(cfg config.SourceConfig, deps Deps) (Source, error) {
	opts := CSVOptions{
		Column:     cfg.Column,
		Headerless: cfg.Headerless,
		NullTokens: cfg.NullTokens,
	}

	switch cfg.Kind {
	case "csv", "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("csv source: path is required")
		}
		return &FileSource{Path: cfg.Path, Opts: opts}, nil
	case "s3":
		if deps.S3 == nil || cfg.Bucket == "" || cfg.Key == "" {
			return nil, fmt.Errorf("s3 source: client, bucket and key are required")
		}
		return &S3Source{Client: deps.S3, Bucket: cfg.Bucket, Key: cfg.Key, Opts: opts}, nil
	case "snowflake":
		if deps.Snowflake == nil {
			return nil, fmt.Errorf("snowflake source: connection is required")
		}
		return NewSQLSource(deps.Snowflake, "snowflake", cfg.Table, cfg.Column)
	case "postgres":
		if deps.Postgres == nil {
			return nil, fmt.Errorf("postgres source: connection is required")
		}
		return NewSQLSource(deps.Postgres, "postgres", cfg.Table, cfg.Column)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}
