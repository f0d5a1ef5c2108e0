package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ignite/pan-validator/internal/pan"
)

// CSVOptions controls how a CSV stream maps to records.
type CSVOptions struct {
	Column     string   // header name, matched case-insensitively
	Index      int      // column index when Headerless
	Headerless bool
	NullTokens []string // cell values treated as NULL, e.g. "NULL", `\N`
}

// ReadCSV parses r into raw records. Empty cells, null tokens and rows too
// short to hold the column become NULL records.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]pan.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	idx := opts.Index
	if !opts.Headerless {
		header, err := cr.Read()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		idx = columnIndex(header, opts.Column)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, opts.Column)
		}
	}

	nulls := make(map[string]struct{}, len(opts.NullTokens))
	for _, t := range opts.NullTokens {
		nulls[t] = struct{}{}
	}

	var out []pan.RawRecord
	for line := 1; ; line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if idx >= len(row) {
			out = append(out, pan.Null())
			continue
		}
		cell := row[idx]
		if _, isNull := nulls[strings.TrimSpace(cell)]; isNull || cell == "" {
			out = append(out, pan.Null())
			continue
		}
		out = append(out, pan.Raw(cell))
	}
	return out, nil
}

func columnIndex(header []string, column string) int {
	want := strings.ToLower(strings.TrimSpace(column))
	for i, h := range header {
		// strip a UTF-8 BOM left by spreadsheet exports
		h = strings.TrimPrefix(h, "\ufeff")
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i
		}
	}
	return -1
}

// FileSource reads a local CSV file.
type FileSource struct {
	Path string
	Opts CSVOptions
}

func (s *FileSource) Name() string { return "file:" + s.Path }

func (s *FileSource) Records(ctx context.Context) ([]pan.RawRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()
	return ReadCSV(ctx, f, s.Opts)
}
