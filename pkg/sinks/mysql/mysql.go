// Package mysql provides a sink that upserts records into a MySQL table
// keyed by the record key.
package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/logger"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/registry"
	"github.com/ajitpratap0/onix/pkg/sinks"
)

// Type is the sink type name.
const Type = "mysql"

// DefaultTable is used when the table option is empty.
const DefaultTable = "onix_products"

// Server error numbers worth retrying.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

func init() {
	if err := registry.RegisterSink(Type, Open); err != nil {
		panic(err)
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Sink writes records to MySQL.
type Sink struct {
	name   string
	feed   string
	table  string
	db     execer
	closer *sql.DB
	logger *zap.Logger
}

// Open connects to the database described by cfg. It accepts the same
// options as the postgres sink with a go-sql-driver DSN.
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

	mcfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse DSN").
			WithDetail("sink", cfg.Name)
	}
	mcfg.ParseTime = true
	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to build connector").
			WithDetail("sink", cfg.Name)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify(err, "failed to reach database")
	}

	s := New(cfg.Name, cfg.Option("feed", ""), cfg.Option("table", DefaultTable), db, logger.Get())
	s.closer = db
	if create {
		if err := s.CreateTable(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	s.logger.Info("mysql sink ready", zap.String("table", s.table), zap.String("addr", mcfg.Addr))
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
		table:  quoteIdentifier(table),
		db:     db,
		logger: l.With(zap.String("sink", name)),
	}
}

func quoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// Name implements record.Sink.
func (s *Sink) Name() string { return s.name }

// CreateTable creates the target table if it does not exist.
func (s *Sink) CreateTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	record_key  VARCHAR(255) NOT NULL PRIMARY KEY,
	feed        VARCHAR(255) NOT NULL,
	sequence    INT NOT NULL,
	fields      JSON NOT NULL,
	imported_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
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

	query := fmt.Sprintf(`INSERT INTO %s (record_key, feed, sequence, fields)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE feed = VALUES(feed), sequence = VALUES(sequence), fields = VALUES(fields)`, s.table)
	if _, err := s.db.ExecContext(ctx, query, doc.Key, doc.Feed, doc.Sequence, string(payload)); err != nil {
		return classify(err, "failed to upsert record").WithDetail("sequence", r.Sequence)
	}
	return nil
}

// Close implements record.Closer.
func (s *Sink) Close(context.Context) error {
	if s.closer == nil {
		return nil
	}
	if err := s.closer.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close database")
	}
	return nil
}

func classify(err error, msg string) *errors.Error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return errors.Wrap(err, errors.ErrorTypeConnection, msg)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrorTypeTimeout, msg)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDeadlock, errLockWaitTimeout:
			return errors.Wrap(err, errors.ErrorTypeTimeout, msg).WithDetail("code", myErr.Number)
		}
		return errors.Wrap(err, errors.ErrorTypeQuery, msg).WithDetail("code", myErr.Number)
	}
	return errors.Wrap(err, errors.ErrorTypeQuery, msg)
}
