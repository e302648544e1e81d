// Package postgres provides Postgres-backed persistence for scraped
// opportunity records. Persistence is a caller concern; the scraping core
// never imports this package.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proletto/opportunity-engine/internal/scraper"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// OpportunityStoreConfig controls the Postgres connection pool.
type OpportunityStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// OpportunityStore upserts opportunity rows into Postgres, keyed by URL so
// re-scraping a site refreshes rather than duplicates records.
type OpportunityStore struct {
	pool  execCloser
	table string
}

// NewOpportunityStore creates a store using the provided config.
func NewOpportunityStore(ctx context.Context, cfg OpportunityStoreConfig) (*OpportunityStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "opportunities"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	return &OpportunityStore{pool: pool, table: table}, nil
}

// SaveOpportunities upserts the batch one row at a time and reports how
// many rows were written. A single bad row aborts the batch; callers
// retry on the next cycle.
func (s *OpportunityStore) SaveOpportunities(ctx context.Context, records []scraper.Opportunity) (int, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (title, url, description, location, deadline, source, scraped_date, fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			location = EXCLUDED.location,
			deadline = EXCLUDED.deadline,
			scraped_date = EXCLUDED.scraped_date,
			fingerprint = EXCLUDED.fingerprint`, s.table)

	saved := 0
	for _, record := range records {
		if _, err := s.pool.Exec(ctx, query,
			record.Title,
			record.URL,
			record.Description,
			record.Location,
			record.Deadline,
			record.Source,
			record.ScrapedAt,
			record.Fingerprint,
		); err != nil {
			return saved, fmt.Errorf("upsert opportunity %s: %w", record.URL, err)
		}
		saved++
	}
	return saved, nil
}

// Close releases the connection pool.
func (s *OpportunityStore) Close() {
	s.pool.Close()
}
