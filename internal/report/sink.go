package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ignite/pan-validator/internal/config"
	"github.com/ignite/pan-validator/internal/pan"
	"github.com/ignite/pan-validator/internal/storage"
)

// ErrUnknownSink is returned for an unrecognised sink name.
var ErrUnknownSink = errors.New("unknown report sink")

// Sink receives a finished run.
type Sink interface {
	Deliver(ctx context.Context, res *pan.Result) error
}

// Document is the JSON form of a report. Outcomes is omitted unless detail
// was requested.
type Document struct {
	RunID    string         `json:"run_id"`
	Source   string         `json:"source,omitempty"`
	Summary  pan.Summary    `json:"summary"`
	Dedup    pan.DedupStats `json:"dedup"`
	Outcomes []pan.Outcome  `json:"outcomes,omitempty"`
}

// NewDocument builds the JSON report for res.
func NewDocument(res *pan.Result, detail bool) Document {
	doc := Document{
		RunID:   res.RunID.String(),
		Source:  res.Source,
		Summary: res.Summary,
		Dedup:   res.Dedup,
	}
	if detail {
		doc.Outcomes = res.Outcomes
	}
	return doc
}

// ConsoleSink writes the rendered report to W.
type ConsoleSink struct {
	W        io.Writer
	Renderer *Renderer
}

func (s *ConsoleSink) Deliver(_ context.Context, res *pan.Result) error {
	text, err := s.Renderer.Render(res)
	if err != nil {
		return err
	}
	_, err = io.WriteString(s.W, text)
	return err
}

// FileSink writes <Dir>/<run id>.json.
type FileSink struct {
	Dir    string
	Detail bool
}

func (s *FileSink) Deliver(_ context.Context, res *pan.Result) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(NewDocument(res, s.Detail), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	path := filepath.Join(s.Dir, res.RunID.String()+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// S3Sink uploads the JSON document and the rendered text side by side.
type S3Sink struct {
	Store    *storage.AWSStorage
	Renderer *Renderer
	Detail   bool
}

func (s *S3Sink) Deliver(ctx context.Context, res *pan.Result) error {
	runID := res.RunID.String()
	if err := s.Store.SaveJSONToS3(ctx, s.Store.ReportKey(runID, "json"), NewDocument(res, s.Detail)); err != nil {
		return err
	}
	if s.Renderer == nil {
		return nil
	}
	text, err := s.Renderer.Render(res)
	if err != nil {
		return err
	}
	return s.Store.SaveToS3(ctx, s.Store.ReportKey(runID, "txt"), "text/plain; charset=utf-8", []byte(text))
}

// DynamoSink appends the summary to the per-source history table.
type DynamoSink struct {
	Store *storage.AWSStorage
}

func (s *DynamoSink) Deliver(ctx context.Context, res *pan.Result) error {
	byVerdict, err := json.Marshal(res.Summary.ByVerdict)
	if err != nil {
		return fmt.Errorf("marshal verdict counts: %w", err)
	}
	source := res.Source
	if source == "" {
		source = "adhoc"
	}
	return s.Store.SaveSummary(ctx, storage.SummaryItem{
		RunID:        res.RunID.String(),
		Source:       source,
		TotalRecords: res.Summary.TotalRecords,
		TotalValid:   res.Summary.TotalValid,
		TotalInvalid: res.Summary.TotalInvalid,
		Duplicates:   res.Dedup.Duplicates,
		ByVerdict:    string(byVerdict),
	})
}

// MultiSink delivers to every sink and joins the errors.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, res *pan.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build assembles the sinks named in cfg. aws may be nil when neither the
// s3 nor the dynamodb sink is selected.
func Build(cfg config.ReportConfig, out io.Writer, aws *storage.AWSStorage) (MultiSink, error) {
	renderer, err := NewRendererFromFile(cfg.Template, cfg.IncludeDetail)
	if err != nil {
		return nil, err
	}

	var sinks MultiSink
	for _, name := range cfg.Sinks {
		switch name {
		case "console":
			sinks = append(sinks, &ConsoleSink{W: out, Renderer: renderer})
		case "file":
			sinks = append(sinks, &FileSink{Dir: cfg.LocalDir, Detail: cfg.IncludeDetail})
		case "s3":
			if aws == nil {
				return nil, fmt.Errorf("s3 sink: %w", storage.ErrNotConfigured)
			}
			sinks = append(sinks, &S3Sink{Store: aws, Renderer: renderer, Detail: cfg.IncludeDetail})
		case "dynamodb":
			if aws == nil {
				return nil, fmt.Errorf("dynamodb sink: %w", storage.ErrNotConfigured)
			}
			sinks = append(sinks, &DynamoSink{Store: aws})
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownSink, name)
		}
	}
	return sinks, nil
}
