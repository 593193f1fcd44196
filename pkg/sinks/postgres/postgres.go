// Package postgres provides a sink that upserts records into a PostgreSQL
// table keyed by the record key. Each namespace is kept as a member of a
// JSONB document.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/logger"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/registry"
	"github.com/ajitpratap0/onix/pkg/sinks"
)

// Type is the sink type name.
const Type = "postgres"

// DefaultTable is used when the table option is empty.
const DefaultTable = "onix_products"

func init() {
	if err := registry.RegisterSink(Type, Open); err != nil {
		panic(err)
	}
}

// execer is the subset of a pgx pool used by the sink.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Sink writes records to PostgreSQL.
type Sink struct {
	name   string
	feed   string
	table  string
	db     execer
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open connects to the database described by cfg. Options:
//
//	dsn           connection string (required)
//	table         target table, default onix_products
//	create_table  create the table when missing, default true
//	max_conns     pool size, default 4
//	feed          feed name stored with each row
func Open(ctx context.Context, cfg config.SinkConfig) (record.Sink, error) {
	dsn, err := cfg.RequireOption("dsn")
	if err != nil {
		return nil, err
	}
	create, err := cfg.OptionBool("create_table", true)
	if err != nil {
		return nil, err
	}
	maxConns, err := cfg.OptionInt("max_conns", 4)
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse connection string").
			WithDetail("sink", cfg.Name)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns) //nolint:gosec // bounded by configuration
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection pool").
			WithDetail("sink", cfg.Name)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classify(err, "failed to reach database")
	}

	s := New(cfg.Name, cfg.Option("feed", ""), cfg.Option("table", DefaultTable), pool, logger.Get())
	s.pool = pool
	if create {
		if err := s.CreateTable(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	s.logger.Info("postgres sink ready", zap.String("table", s.table), zap.Int32("max_conns", poolConfig.MaxConns))
	return s, nil
}

// New creates a sink over an existing connection.
func New(name, feed, table string, db execer, l *zap.Logger) *Sink {
	if name == "" {
		name = Type
	}
	if table == "" {
		table = DefaultTable
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Sink{
		name:   name,
		feed:   feed,
		table:  pgx.Identifier{table}.Sanitize(),
		db:     db,
		logger: l.With(zap.String("sink", name)),
	}
}

// Name implements record.Sink.
func (s *Sink) Name() string { return s.name }

// CreateTable creates the target table if it does not exist.
func (s *Sink) CreateTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	record_key  TEXT PRIMARY KEY,
	feed        TEXT NOT NULL,
	sequence    INTEGER NOT NULL,
	fields      JSONB NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return classify(err, "failed to create table")
	}
	return nil
}

// Import implements record.Sink.
func (s *Sink) Import(ctx context.Context, r *record.Record) error {
	doc, err := sinks.Encode(s.feed, r)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(doc.Fields)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "failed to encode record fields").
			WithDetail("sequence", r.Sequence)
	}

	if _, err := s.db.Exec(ctx, s.upsertSQL(), doc.Key, doc.Feed, doc.Sequence, payload); err != nil {
		return classify(err, "failed to upsert record").WithDetail("sequence", r.Sequence)
	}
	return nil
}

func (s *Sink) upsertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (record_key, feed, sequence, fields)
VALUES ($1, $2, $3, $4)
ON CONFLICT (record_key) DO UPDATE
SET feed = EXCLUDED.feed, sequence = EXCLUDED.sequence, fields = EXCLUDED.fields, imported_at = now()`, s.table)
}

// Close implements record.Closer.
func (s *Sink) Close(context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// classify maps driver errors to retryable and permanent categories.
func classify(err error, msg string) *errors.Error {
	switch {
	case pgconn.Timeout(err):
		return errors.Wrap(err, errors.ErrorTypeTimeout, msg)
	case pgconn.SafeToRetry(err):
		return errors.Wrap(err, errors.ErrorTypeConnection, msg)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08 is connection exception, 40 is transaction rollback
		if len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "40") {
			return errors.Wrap(err, errors.ErrorTypeConnection, msg).WithDetail("sqlstate", pgErr.Code)
		}
		return errors.Wrap(err, errors.ErrorTypeQuery, msg).WithDetail("sqlstate", pgErr.Code)
	}
	return errors.Wrap(err, errors.ErrorTypeQuery, msg)
}
