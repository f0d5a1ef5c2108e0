// Command panvalidate runs one validation pass over a staging source and
// prints the report.
//
//	panvalidate -config config/config.yaml
//	panvalidate -source csv -path staging/batch.csv -detail
//	panvalidate -source snowflake -table STAGING.PAN_RECORDS -column PAN_NUMBER -sinks console,s3
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ignite/pan-validator/internal/app"
	"github.com/ignite/pan-validator/internal/config"
	"github.com/ignite/pan-validator/internal/pkg/logger"
	"github.com/ignite/pan-validator/internal/service/validation"
)

type overrides struct {
	configPath string
	kind       string
	path       string
	bucket     string
	key        string
	table      string
	column     string
	headerless bool
	sinks      string
	template   string
	reportDir  string
	detail     bool
	workers    int
}

func parseFlags(args []string) (overrides, error) {
	var o overrides
	fs := flag.NewFlagSet("panvalidate", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "YAML config file (defaults plus env when empty)")
	fs.StringVar(&o.kind, "source", "", "source kind: csv, s3, snowflake, postgres")
	fs.StringVar(&o.path, "path", "", "CSV file path")
	fs.StringVar(&o.bucket, "bucket", "", "S3 bucket of the staging object")
	fs.StringVar(&o.key, "key", "", "S3 key of the staging object")
	fs.StringVar(&o.table, "table", "", "staging table (schema.table allowed)")
	fs.StringVar(&o.column, "column", "", "column holding the identifier")
	fs.BoolVar(&o.headerless, "headerless", false, "CSV has no header row; use the first column")
	fs.StringVar(&o.sinks, "sinks", "", "comma separated report sinks: console, file, s3, dynamodb")
	fs.StringVar(&o.template, "template", "", "liquid template for the text report")
	fs.StringVar(&o.reportDir, "report-dir", "", "directory for the file sink")
	fs.BoolVar(&o.detail, "detail", false, "include per-identifier outcomes in reports")
	fs.IntVar(&o.workers, "workers", 0, "classification goroutines (0 = GOMAXPROCS)")
	err := fs.Parse(args)
	return o, err
}

func (o overrides) apply(cfg *config.Config) {
	if o.kind != "" {
		cfg.Source.Kind = o.kind
	}
	if o.path != "" {
		cfg.Source.Path = o.path
		if o.kind == "" {
			cfg.Source.Kind = "csv"
		}
	}
	if o.bucket != "" {
		cfg.Source.Bucket = o.bucket
	}
	if o.key != "" {
		cfg.Source.Key = o.key
	}
	if o.table != "" {
		cfg.Source.Table = o.table
	}
	if o.column != "" {
		cfg.Source.Column = o.column
	}
	if o.headerless {
		cfg.Source.Headerless = true
	}
	if o.sinks != "" {
		cfg.Report.Sinks = splitList(o.sinks)
	}
	if o.template != "" {
		cfg.Report.Template = o.template
	}
	if o.reportDir != "" {
		cfg.Report.LocalDir = o.reportDir
	}
	if o.detail {
		cfg.Report.IncludeDetail = true
	}
	if o.workers > 0 {
		cfg.Pipeline.Workers = o.workers
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultFromEnv(), nil
	}
	return config.LoadFromEnv(path)
}

func run(ctx context.Context, args []string) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	o.apply(cfg)

	a, err := app.New(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.SourceErr != nil {
		return a.SourceErr
	}

	res, err := a.Service.Run(ctx, a.Source)
	if err != nil {
		return err
	}
	logger.Debug("run stored", "run_id", res.RunID)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		if errors.Is(err, validation.ErrRunInProgress) {
			fmt.Fprintln(os.Stderr, "panvalidate: another run over this source is in progress")
		} else {
			fmt.Fprintf(os.Stderr, "panvalidate: %v\n", err)
		}
		os.Exit(1)
	}
}

// splitList splits a comma-separated flag, dropping blanks around entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
