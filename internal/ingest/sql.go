package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/ignite/pan-validator/internal/pan"
)

// Qualified identifiers such as SCHEMA.TABLE are allowed; nothing that needs quoting.
var sqlIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*){0,2}$`)

// SQLSource reads one column of a staging table. It works against any
// database/sql driver; Snowflake and Postgres are opened by OpenSnowflake
// and OpenPostgres.
type SQLSource struct {
	DB     *sql.DB
	Label  string
	Table  string
	Column string
}

// NewSQLSource validates the table and column names.
func NewSQLSource(db *sql.DB, label, table, column string) (*SQLSource, error) {
	for _, ident := range []string{table, column} {
		if !sqlIdentifier.MatchString(ident) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, ident)
		}
	}
	return &SQLSource{DB: db, Label: label, Table: table, Column: column}, nil
}

func (s *SQLSource) Name() string { return fmt.Sprintf("%s:%s.%s", s.Label, s.Table, s.Column) }

func (s *SQLSource) query() string {
	return fmt.Sprintf("SELECT %s FROM %s", s.Column, s.Table)
}

func (s *SQLSource) Records(ctx context.Context) ([]pan.RawRecord, error) {
	rows, err := s.DB.QueryContext(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Name(), err)
	}
	defer rows.Close()

	var out []pan.RawRecord
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.Name(), err)
		}
		out = append(out, pan.RawRecord{Value: v.String, Valid: v.Valid})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.Name(), err)
	}
	return out, nil
}
