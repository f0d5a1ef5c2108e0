package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ignite/pan-validator/internal/ingest"
	"github.com/ignite/pan-validator/internal/pkg/logger"
)

// migrationFiles returns the .sql files of dir in lexical order.
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func main() {
	_ = godotenv.Load()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	dir := "migrations"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	db, err := ingest.OpenPostgres(dsn)
	if err != nil {
		logger.Error("connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		logger.Error("ping", "error", err)
		os.Exit(1)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		logger.Error("list migrations", "error", err)
		os.Exit(1)
	}

	var failed int
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("read migration", "file", path, "error", err)
			os.Exit(1)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			logger.Error("begin", "file", path, "error", err)
			failed++
			continue
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			tx.Rollback()
			logger.Error("migration failed", "file", path, "error", err)
			failed++
			continue
		}
		if err := tx.Commit(); err != nil {
			logger.Error("commit", "file", path, "error", err)
			failed++
			continue
		}
		logger.Info("migration applied", "file", filepath.Base(path))
	}

	logger.Info("migrations complete", "files", len(files), "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}
