package pan

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minChunk keeps small batches on a single goroutine.
const minChunk = 1024

// PipelineOptions tunes the batch driver.
type PipelineOptions struct {
	Workers         int // classification goroutines; 0 means GOMAXPROCS
	DedupPartitions int // 0 or 1 dedupes in a single pass
}

// Pipeline composes Normalize, Dedupe and the rule engine over a batch.
type Pipeline struct {
	engine *Engine
	opts   PipelineOptions
}

// NewPipeline builds a pipeline around engine. A nil engine uses the defaults.
func NewPipeline(engine *Engine, opts PipelineOptions) *Pipeline {
	if engine == nil {
		engine = defaultEngine
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Pipeline{engine: engine, opts: opts}
}

// Run normalizes, dedupes and classifies records. The only error is
// cancellation of ctx.
func (p *Pipeline) Run(ctx context.Context, records []RawRecord) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized := NormalizeAll(records)
	unique, stats := DedupeParallel(normalized, p.opts.DedupPartitions)

	outcomes, err := p.classify(ctx, unique)
	if err != nil {
		return nil, err
	}
	return newResult(outcomes, stats), nil
}

func (p *Pipeline) classify(ctx context.Context, ids []string) ([]Outcome, error) {
	if len(ids) <= minChunk || p.opts.Workers == 1 {
		return p.engine.ClassifyAll(ids), ctx.Err()
	}
	outcomes := make([]Outcome, len(ids))

	chunk := (len(ids) + p.opts.Workers - 1) / p.opts.Workers
	if chunk < minChunk {
		chunk = minChunk
	}

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(ids); start += chunk {
		end := start + chunk
		if end > len(ids) {
			end = len(ids)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%minChunk == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				outcomes[i] = Outcome{Identifier: ids[i], Verdict: p.engine.Classify(ids[i])}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
