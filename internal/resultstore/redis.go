// Package resultstore keeps recent run results in redis so callers can read
// a summary or a single identifier's verdict without re-running validation.
package resultstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/pan-validator/internal/pan"
)

var (
	// ErrRunNotFound is returned when no result is stored for a run ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrIdentifierNotFound is returned when a run has no verdict for an identifier.
	ErrIdentifierNotFound = errors.New("identifier not found in run")
)

const hsetChunk = 1000

// RedisStore stores run summaries as JSON strings and verdicts as a hash.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store whose keys expire after ttl (0 keeps them).
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func summaryKey(runID string) string  { return fmt.Sprintf("panrun:%s:summary", runID) }
func verdictsKey(runID string) string { return fmt.Sprintf("panrun:%s:verdicts", runID) }

// Save writes the summary and every outcome of res.
func (s *RedisStore) Save(ctx context.Context, res *pan.Result) error {
	runID := res.RunID.String()
	data, err := json.Marshal(res.Header(time.Now()))
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, summaryKey(runID), data, s.ttl)
		for start := 0; start < len(res.Outcomes); start += hsetChunk {
			end := start + hsetChunk
			if end > len(res.Outcomes) {
				end = len(res.Outcomes)
			}
			fields := make(map[string]interface{}, end-start)
			for _, o := range res.Outcomes[start:end] {
				fields[o.Identifier] = string(o.Verdict)
			}
			pipe.HSet(ctx, verdictsKey(runID), fields)
		}
		if s.ttl > 0 && len(res.Outcomes) > 0 {
			pipe.Expire(ctx, verdictsKey(runID), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store run %s: %w", runID, err)
	}
	return nil
}

// Summary loads the stored summary of a run.
func (s *RedisStore) Summary(ctx context.Context, runID string) (*pan.RunSummary, error) {
	data, err := s.client.Get(ctx, summaryKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	var stored pan.RunSummary
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &stored, nil
}

// Verdict returns the verdict a run recorded for identifier. The identifier
// is normalized first.
func (s *RedisStore) Verdict(ctx context.Context, runID, identifier string) (pan.Verdict, error) {
	id := pan.Normalize(pan.Raw(identifier))
	label, err := s.client.HGet(ctx, verdictsKey(runID), id).Result()
	if errors.Is(err, redis.Nil) {
		exists, existsErr := s.client.Exists(ctx, summaryKey(runID)).Result()
		if existsErr == nil && exists == 0 {
			return "", ErrRunNotFound
		}
		return "", ErrIdentifierNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load verdict: %w", err)
	}
	return pan.ParseVerdict(label)
}
