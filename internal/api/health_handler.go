package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/pan-validator/internal/pkg/httputil"
)

const healthVersion = "1.0.0"

// HealthStatus represents the overall health of the service.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status   string `json:"status"` // "up", "down", "degraded", "not_configured"
	Latency  string `json:"latency,omitempty"`
	Message  string `json:"message,omitempty"`
	critical bool
}

// BucketHeader is the S3 call used to probe the report bucket.
type BucketHeader interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// HealthChecker probes the optional dependencies: postgres, redis and the
// S3 report bucket. Any of them may be nil.
type HealthChecker struct {
	db          *sql.DB
	redisClient *redis.Client
	s3Client    BucketHeader
	s3Bucket    string
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, s3Client BucketHeader, s3Bucket string) *HealthChecker {
	return &HealthChecker{
		db:          db,
		redisClient: redisClient,
		s3Client:    s3Client,
		s3Bucket:    s3Bucket,
		startTime:   time.Now(),
	}
}

// HandleHealth always answers 200; the body carries the status.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status:  overallStatus(checks),
		Version: healthVersion,
		Uptime:  time.Since(hc.startTime).Truncate(time.Second).String(),
		Checks:  checks,
	})
}

// HandleLiveness returns 200 while the process is running.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "alive"})
}

// HandleReadiness returns 503 when a configured critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := overallStatus(checks)
	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]any{
		"ready":  overall != "unhealthy",
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	probes := map[string]func(context.Context) ComponentCheck{
		"database": hc.checkDatabase,
		"redis":    hc.checkRedis,
		"s3":       hc.checkS3,
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]ComponentCheck, len(probes))
	)
	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe func(context.Context) ComponentCheck) {
			defer wg.Done()
			c := probe(ctx)
			mu.Lock()
			checks[name] = c
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()
	return checks
}

func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "not_configured"}
	}
	return timed(ctx, 3*time.Second, time.Second, true, hc.db.PingContext)
}

func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "not_configured"}
	}
	return timed(ctx, 2*time.Second, 500*time.Millisecond, true, func(ctx context.Context) error {
		return hc.redisClient.Ping(ctx).Err()
	})
}

func (hc *HealthChecker) checkS3(ctx context.Context) ComponentCheck {
	if hc.s3Client == nil || hc.s3Bucket == "" {
		return ComponentCheck{Status: "not_configured"}
	}
	return timed(ctx, 3*time.Second, 0, false, func(ctx context.Context) error {
		_, err := hc.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &hc.s3Bucket})
		return err
	})
}

// timed runs probe under timeout. A success slower than slow (when non-zero)
// is reported as degraded.
func timed(ctx context.Context, timeout, slow time.Duration, critical bool, probe func(context.Context) error) ComponentCheck {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := probe(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:   "down",
			Latency:  latency.String(),
			Message:  fmt.Sprintf("probe failed: %v", err),
			critical: critical,
		}
	}
	if slow > 0 && latency > slow {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: "slow response"}
	}
	return ComponentCheck{Status: "up", Latency: latency.String()}
}

// overallStatus is "unhealthy" when a configured critical dependency is
// down, "degraded" when anything else is down or slow, else "healthy".
func overallStatus(checks map[string]ComponentCheck) string {
	status := "healthy"
	for _, c := range checks {
		switch {
		case c.Status == "down" && c.critical:
			return "unhealthy"
		case c.Status == "down" || c.Status == "degraded":
			status = "degraded"
		}
	}
	return status
}
