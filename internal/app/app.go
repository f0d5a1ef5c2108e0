// Package app wires configuration into a ready validation service. Both the
// CLI and the HTTP server start from here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/pan-validator/internal/config"
	"github.com/ignite/pan-validator/internal/ingest"
	"github.com/ignite/pan-validator/internal/metrics"
	"github.com/ignite/pan-validator/internal/pan"
	"github.com/ignite/pan-validator/internal/pkg/distlock"
	"github.com/ignite/pan-validator/internal/pkg/logger"
	"github.com/ignite/pan-validator/internal/report"
	"github.com/ignite/pan-validator/internal/repository/postgres"
	"github.com/ignite/pan-validator/internal/resultstore"
	"github.com/ignite/pan-validator/internal/service/validation"
	"github.com/ignite/pan-validator/internal/storage"
)

// App holds the wired service and the clients it owns.
type App struct {
	Config   *config.Config
	Service  *validation.Service
	Registry *prometheus.Registry

	// Source is the configured staging source, nil when none is usable.
	Source    ingest.Source
	SourceErr error

	Postgres  *sql.DB
	Snowflake *sql.DB
	Redis     *redis.Client
	S3        *s3.Client

	closers []func() error
}

// New connects the configured backends. Optional backends that fail to
// connect are logged and left out; the run then proceeds without them.
func New(ctx context.Context, cfg *config.Config, out io.Writer) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.connectPostgres(ctx)
	a.connectRedis(ctx)
	if err := a.connectSnowflake(); err != nil {
		a.Close()
		return nil, err
	}

	var awsStore *storage.AWSStorage
	if a.needsAWS() {
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.S3 = storage.NewS3Client(awsCfg, cfg.AWS.S3Endpoint)
		awsStore = storage.NewAWSStorage(a.S3, a.dynamoClient(awsCfg), cfg.Report.S3Bucket, cfg.Report.S3Prefix, cfg.Report.DynamoDBTable)
	}

	sinks, err := report.Build(cfg.Report, out, awsStore)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := validation.Deps{
		Pipeline: pan.PipelineOptions{
			Workers:         cfg.Pipeline.Workers,
			DedupPartitions: cfg.Pipeline.DedupPartitions,
		},
		Sink:         sinks,
		Metrics:      metrics.New(a.Registry),
		MaxBatchSize: cfg.Server.MaxBatchSize,
	}
	if locks, err := distlock.NewLocker(a.Redis, a.Postgres, cfg.Pipeline.LockTTL()); err == nil {
		deps.Locks = locks
	} else {
		logger.Warn("run locking disabled", "reason", err)
	}
	if a.Redis != nil {
		deps.Cache = resultstore.NewRedisStore(a.Redis, cfg.Pipeline.ResultTTL())
	}
	if a.Postgres != nil {
		deps.Runs = postgres.NewRunRepo(a.Postgres)
	}
	if awsStore != nil && slices.Contains(cfg.Report.Sinks, "dynamodb") {
		deps.History = awsStore
	}
	a.Service = validation.NewService(deps)

	var s3Getter ingest.GetObjectAPI
	if a.S3 != nil {
		s3Getter = a.S3
	}
	a.Source, a.SourceErr = ingest.FromConfig(cfg.Source, ingest.Deps{
		S3:        s3Getter,
		Snowflake: a.Snowflake,
		Postgres:  a.Postgres,
	})
	if a.SourceErr != nil {
		logger.Warn("staging source unavailable", "kind", cfg.Source.Kind, "error", a.SourceErr)
	}
	return a, nil
}

func (a *App) connectPostgres(ctx context.Context) {
	pg := a.Config.Postgres
	if !pg.Enabled && pg.DatabaseURL == "" {
		return
	}
	db, err := ingest.OpenPostgres(pg.DatabaseURL)
	if err == nil {
		err = db.PingContext(ctx)
	}
	if err != nil {
		logger.Warn("postgres unavailable, audit store disabled", "error", err)
		if db != nil {
			db.Close()
		}
		return
	}
	a.Postgres = db
	a.closers = append(a.closers, db.Close)
	logger.Info("postgres connected")
}

func (a *App) connectRedis(ctx context.Context) {
	rc := a.Config.Redis
	if !rc.Enabled {
		return
	}
	client := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, result cache disabled", "addr", rc.Addr, "error", err)
		client.Close()
		return
	}
	a.Redis = client
	a.closers = append(a.closers, client.Close)
	logger.Info("redis connected", "addr", rc.Addr)
}

// connectSnowflake opens the pool lazily; gosnowflake dials on first query.
func (a *App) connectSnowflake() error {
	sf := a.Config.Snowflake
	if !sf.Enabled && a.Config.Source.Kind != "snowflake" {
		return nil
	}
	db, err := ingest.OpenSnowflake(sf)
	if err != nil {
		return fmt.Errorf("open snowflake: %w", err)
	}
	a.Snowflake = db
	a.closers = append(a.closers, db.Close)
	return nil
}

func (a *App) needsAWS() bool {
	return a.Config.Source.Kind == "s3" ||
		slices.Contains(a.Config.Report.Sinks, "s3") ||
		slices.Contains(a.Config.Report.Sinks, "dynamodb")
}

func (a *App) dynamoClient(awsCfg aws.Config) storage.DynamoAPI {
	if !slices.Contains(a.Config.Report.Sinks, "dynamodb") {
		return nil
	}
	return dynamodb.NewFromConfig(awsCfg)
}

// Close releases every client New opened.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
