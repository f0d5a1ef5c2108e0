package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/pan-validator/internal/pan"
	"github.com/ignite/pan-validator/internal/service/validation"
)

// outcomeBatch rows per INSERT keeps each statement under the 65535
// bind parameter limit.
const outcomeBatch = 500

// RunRepo implements validation.RunRepository against PostgreSQL.
type RunRepo struct{ db *sql.DB }

// NewRunRepo creates a Postgres-backed run repository.
func NewRunRepo(db *sql.DB) *RunRepo { return &RunRepo{db: db} }

func (r *RunRepo) SaveRun(ctx context.Context, res *pan.Result) error {
	byVerdict, err := json.Marshal(res.Summary.ByVerdict)
	if err != nil {
		return fmt.Errorf("marshal verdict counts: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pan_runs (id, source, input_records, duplicates, total_records, total_valid, total_invalid, by_verdict, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, res.RunID, res.Source, res.Dedup.Input, res.Dedup.Duplicates,
		res.Summary.TotalRecords, res.Summary.TotalValid, res.Summary.TotalInvalid, byVerdict)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for start := 0; start < len(res.Outcomes); start += outcomeBatch {
		end := start + outcomeBatch
		if end > len(res.Outcomes) {
			end = len(res.Outcomes)
		}
		if err := insertOutcomes(ctx, tx, res.RunID, start, res.Outcomes[start:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func insertOutcomes(ctx context.Context, tx *sql.Tx, runID uuid.UUID, offset int, batch []pan.Outcome) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO pan_outcomes (run_id, position, identifier, verdict) VALUES ")
	args := make([]interface{}, 0, len(batch)*4)
	for i, o := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4)
		args = append(args, runID, offset+i, o.Identifier, string(o.Verdict))
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert outcomes at %d: %w", offset, err)
	}
	return nil
}

func (r *RunRepo) GetSummary(ctx context.Context, runID uuid.UUID) (*pan.RunSummary, error) {
	var (
		s         pan.RunSummary
		byVerdict []byte
		createdAt time.Time
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, source, input_records, duplicates, total_records, total_valid, total_invalid, by_verdict, created_at
		FROM pan_runs WHERE id = $1
	`, runID).Scan(&s.RunID, &s.Source, &s.Dedup.Input, &s.Dedup.Duplicates,
		&s.Summary.TotalRecords, &s.Summary.TotalValid, &s.Summary.TotalInvalid, &byVerdict, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, validation.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if err := json.Unmarshal(byVerdict, &s.Summary.ByVerdict); err != nil {
		return nil, fmt.Errorf("decode verdict counts: %w", err)
	}
	s.Dedup.Unique = s.Summary.TotalRecords
	s.CreatedAt = createdAt.UTC()
	return &s, nil
}

func (r *RunRepo) ListOutcomes(ctx context.Context, runID uuid.UUID, f validation.OutcomeFilter) ([]pan.Outcome, error) {
	query := `SELECT identifier, verdict FROM pan_outcomes WHERE run_id = $1`
	args := []interface{}{runID}
	if f.Identifier != nil {
		args = append(args, *f.Identifier)
		query += fmt.Sprintf(" AND identifier = $%d", len(args))
	}
	if f.Verdict != "" {
		args = append(args, string(f.Verdict))
		query += fmt.Sprintf(" AND verdict = $%d", len(args))
	}
	query += " ORDER BY position"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []pan.Outcome
	for rows.Next() {
		var (
			o     pan.Outcome
			label string
		)
		if err := rows.Scan(&o.Identifier, &label); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if o.Verdict, err = pan.ParseVerdict(label); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
