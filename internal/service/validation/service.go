package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/pan-validator/internal/ingest"
	"github.com/ignite/pan-validator/internal/metrics"
	"github.com/ignite/pan-validator/internal/pan"
	"github.com/ignite/pan-validator/internal/pkg/distlock"
	"github.com/ignite/pan-validator/internal/pkg/logger"
	"github.com/ignite/pan-validator/internal/report"
	"github.com/ignite/pan-validator/internal/resultstore"
)

// AdhocSource labels batches submitted without a configured source.
const AdhocSource = "adhoc"

// LockProvider hands out the per-source run lock.
type LockProvider interface {
	ForSource(source string) distlock.Lock
}

// Deps wires the service. Everything except Pipeline options is optional.
type Deps struct {
	Engine       *pan.Engine
	Pipeline     pan.PipelineOptions
	Locks        LockProvider
	Cache        ResultCache
	Runs         RunRepository
	History      SummaryHistory
	Sink         report.Sink
	Metrics      *metrics.Metrics
	MaxBatchSize int
}

// Service runs validation and answers queries about past runs. It is safe
// for concurrent use.
type Service struct {
	engine   *pan.Engine
	pipeline *pan.Pipeline
	locks    LockProvider
	cache    ResultCache
	runs     RunRepository
	history  SummaryHistory
	sink     report.Sink
	metrics  *metrics.Metrics
	maxBatch int
}

// NewService creates a validation service from deps.
func NewService(deps Deps) *Service {
	engine := deps.Engine
	if engine == nil {
		engine = pan.NewEngine()
	}
	return &Service{
		engine:   engine,
		pipeline: pan.NewPipeline(engine, deps.Pipeline),
		locks:    deps.Locks,
		cache:    deps.Cache,
		runs:     deps.Runs,
		history:  deps.History,
		sink:     deps.Sink,
		metrics:  deps.Metrics,
		maxBatch: deps.MaxBatchSize,
	}
}

// Run validates everything src yields. Only one run per source name may be
// in flight; a second gets ErrRunInProgress. An expiring lock is extended
// while the run lasts and the run aborts with ErrLockLost if it is taken
// over. When delivery to the report sinks fails the result is still
// returned alongside the error.
func (s *Service) Run(ctx context.Context, src ingest.Source) (*pan.Result, error) {
	start := time.Now()
	name := src.Name()

	if s.locks != nil {
		lock := s.locks.ForSource(name)
		ok, err := lock.Acquire(ctx)
		if err != nil {
			s.metrics.ObserveRun(metrics.StatusFailed, time.Since(start))
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			s.metrics.ObserveRun(metrics.StatusRejected, time.Since(start))
			logger.Warn("run rejected, lock held", "source", name)
			return nil, ErrRunInProgress
		}

		var cancel context.CancelCauseFunc
		ctx, cancel = context.WithCancelCause(ctx)
		stop := distlock.KeepAlive(ctx, lock, func() {
			logger.Error("run lock lost, aborting", "source", name)
			cancel(distlock.ErrLockLost)
		})
		defer func() {
			stop()
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release run lock", "source", name, "error", err)
			}
			cancel(nil)
		}()
	}

	logger.Info("run started", "source", name)
	records, err := src.Records(ctx)
	if err != nil {
		s.metrics.ObserveRun(metrics.StatusFailed, time.Since(start))
		return nil, withLockCause(ctx, fmt.Errorf("load %s: %w", name, err))
	}

	res, err := s.process(ctx, name, records, true)
	err = withLockCause(ctx, err)
	status := metrics.StatusSucceeded
	if err != nil {
		status = metrics.StatusFailed
	}
	s.metrics.ObserveRun(status, time.Since(start))
	if res != nil {
		logger.Info("run finished",
			"run_id", res.RunID,
			"source", name,
			"status", status,
			"records", res.Dedup.Input,
			"unique", res.Summary.TotalRecords,
			"valid", res.Summary.TotalValid,
			"invalid", res.Summary.TotalInvalid,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return res, err
}

// withLockCause tags err with ErrLockLost when the run was aborted for it.
func withLockCause(ctx context.Context, err error) error {
	if err != nil && errors.Is(context.Cause(ctx), distlock.ErrLockLost) && !errors.Is(err, distlock.ErrLockLost) {
		return fmt.Errorf("%w: %w", distlock.ErrLockLost, err)
	}
	return err
}

// Validate classifies an ad hoc batch. The result is cached so it can be
// queried by run ID but is neither audited nor sent to the report sinks.
func (s *Service) Validate(ctx context.Context, records []pan.RawRecord) (*pan.Result, error) {
	if s.maxBatch > 0 && len(records) > s.maxBatch {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(records), s.maxBatch)
	}
	start := time.Now()
	res, err := s.process(ctx, AdhocSource, records, false)
	if err != nil {
		s.metrics.ObserveRun(metrics.StatusFailed, time.Since(start))
		return nil, err
	}
	s.metrics.ObserveRun(metrics.StatusSucceeded, time.Since(start))
	return res, nil
}

// Check normalizes and classifies one identifier.
func (s *Service) Check(raw string) pan.Outcome {
	id := pan.Normalize(pan.Raw(raw))
	return pan.Outcome{Identifier: id, Verdict: s.engine.Classify(id)}
}

// Rules returns the cascade in evaluation order.
func (s *Service) Rules() []pan.Rule { return s.engine.Rules() }

func (s *Service) process(ctx context.Context, source string, records []pan.RawRecord, deliver bool) (*pan.Result, error) {
	res, err := s.pipeline.Run(ctx, records)
	if err != nil {
		return nil, err
	}
	res.Source = source
	s.metrics.ObserveResult(res)

	if s.cache != nil {
		if err := s.cache.Save(ctx, res); err != nil {
			logger.Warn("cache run result", "run_id", res.RunID, "error", err)
		}
	}
	if !deliver {
		return res, nil
	}

	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, res); err != nil {
			return nil, fmt.Errorf("save run %s: %w", res.RunID, err)
		}
	}
	if s.sink != nil {
		if err := s.sink.Deliver(ctx, res); err != nil {
			logger.Error("deliver report", "run_id", res.RunID, "error", err)
			return res, fmt.Errorf("deliver report: %w", err)
		}
	}
	return res, nil
}

// Summary returns a run's header from the cache, falling back to the audit
// store.
func (s *Service) Summary(ctx context.Context, runID string) (*pan.RunSummary, error) {
	if s.cache != nil {
		sum, err := s.cache.Summary(ctx, runID)
		if err == nil {
			return sum, nil
		}
		if !errors.Is(err, resultstore.ErrRunNotFound) {
			logger.Warn("read cached run", "run_id", runID, "error", err)
		}
	}
	if s.runs == nil {
		return nil, ErrRunNotFound
	}
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, ErrRunNotFound
	}
	return s.runs.GetSummary(ctx, id)
}

// Verdict returns the verdict a run recorded for identifier.
func (s *Service) Verdict(ctx context.Context, runID, identifier string) (pan.Verdict, error) {
	if s.cache != nil {
		v, err := s.cache.Verdict(ctx, runID, identifier)
		switch {
		case err == nil:
			return v, nil
		case errors.Is(err, resultstore.ErrIdentifierNotFound):
			return "", ErrIdentifierNotFound
		case !errors.Is(err, resultstore.ErrRunNotFound):
			logger.Warn("read cached verdict", "run_id", runID, "error", err)
		}
	}
	if s.runs == nil {
		return "", ErrRunNotFound
	}
	id, err := uuid.Parse(runID)
	if err != nil {
		return "", ErrRunNotFound
	}
	if _, err := s.runs.GetSummary(ctx, id); err != nil {
		return "", err
	}
	key := pan.Normalize(pan.Raw(identifier))
	outcomes, err := s.runs.ListOutcomes(ctx, id, OutcomeFilter{Identifier: &key, Limit: 1})
	if err != nil {
		return "", err
	}
	if len(outcomes) == 0 {
		return "", ErrIdentifierNotFound
	}
	return outcomes[0].Verdict, nil
}

// Outcomes lists a stored run's outcomes from the audit store.
func (s *Service) Outcomes(ctx context.Context, runID string, filter OutcomeFilter) ([]pan.Outcome, error) {
	if s.runs == nil {
		return nil, ErrNoRunStore
	}
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, ErrRunNotFound
	}
	return s.runs.ListOutcomes(ctx, id, filter)
}

// History returns up to limit past run summaries for source, newest first.
func (s *Service) History(ctx context.Context, source string, limit int) ([]pan.RunSummary, error) {
	if s.history == nil {
		return nil, ErrNoHistory
	}
	items, err := s.history.ListSummaries(ctx, source, int32(limit))
	if err != nil {
		return nil, err
	}
	out := make([]pan.RunSummary, 0, len(items))
	for _, item := range items {
		sum, err := item.RunSummary()
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}
