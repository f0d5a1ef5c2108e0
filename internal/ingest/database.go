package ingest

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"                // PostgreSQL driver
	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/ignite/pan-validator/internal/config"
)

// SnowflakeDSN builds a gosnowflake DSN. A connection string, when set,
// fills the fields it carries.
// Format: user:password@account/database/schema?warehouse=xxx
func SnowflakeDSN(cfg config.SnowflakeConfig) string {
	if cfg.ConnectionString != "" {
		parsed := ParseConnectionString(cfg.ConnectionString)
		if parsed.Account != "" {
			cfg.Account = parsed.Account
		}
		if parsed.User != "" {
			cfg.User = parsed.User
		}
		if parsed.Password != "" {
			cfg.Password = parsed.Password
		}
		if parsed.Database != "" {
			cfg.Database = parsed.Database
		}
		if parsed.Schema != "" {
			cfg.Schema = parsed.Schema
		}
	}

	dsn := fmt.Sprintf("%s:%s@%s/%s/%s",
		cfg.User,
		cfg.Password,
		cfg.Account,
		cfg.Database,
		cfg.Schema,
	)
	if cfg.Warehouse != "" {
		dsn += "?warehouse=" + cfg.Warehouse
	}
	return dsn
}

// ParseConnectionString extracts components from a semicolon-separated
// connection string.
// Format: scheme=https;ACCOUNT=xxx;HOST=yyy;port=443;USER=zzz;PASSWORD=www;DB=aaa.bbb;
func ParseConnectionString(connStr string) config.SnowflakeConfig {
	parts := make(map[string]string)
	for _, kv := range strings.Split(connStr, ";") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		parts[strings.ToUpper(strings.TrimSpace(key))] = value
	}

	database, schema, _ := strings.Cut(parts["DB"], ".")
	return config.SnowflakeConfig{
		Account:   parts["ACCOUNT"],
		User:      parts["USER"],
		Password:  parts["PASSWORD"],
		Database:  database,
		Schema:    schema,
		Warehouse: parts["WAREHOUSE"],
	}
}

// OpenSnowflake opens a pooled Snowflake connection.
func OpenSnowflake(cfg config.SnowflakeConfig) (*sql.DB, error) {
	db, err := sql.Open("snowflake", SnowflakeDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open snowflake connection: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// OpenPostgres opens a pooled Postgres connection.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
