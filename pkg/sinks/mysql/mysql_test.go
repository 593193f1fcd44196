package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/registry"
)

type fakeDB struct {
	queries []string
	args    [][]any
	err     error
}

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	if f.err != nil {
		return nil, f.err
	}
	return driver.RowsAffected(1), nil
}

func TestImport(t *testing.T) {
	db := &fakeDB{}
	s := New("", "weekly", "", db, zaptest.NewLogger(t))
	rec := &record.Record{Sequence: 5, Namespaces: []string{"prices"}, Values: map[string]any{"prices": []int{1}}}

	require.NoError(t, s.Import(context.Background(), rec))
	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0], "INSERT INTO `onix_products`")
	assert.Contains(t, db.queries[0], "ON DUPLICATE KEY UPDATE")
	assert.Equal(t, []any{"weekly#5", "weekly", 5, `{"prices":[1]}`}, db.args[0])
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "`a``b`", quoteIdentifier("a`b"))
}

func TestImportErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"bad conn", driver.ErrBadConn, true},
		{"invalid conn", mysql.ErrInvalidConn, true},
		{"deadlock", &mysql.MySQLError{Number: errDeadlock}, true},
		{"lock wait", &mysql.MySQLError{Number: errLockWaitTimeout}, true},
		{"syntax", &mysql.MySQLError{Number: 1064}, false},
		{"other", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("my", "", "", &fakeDB{err: tt.err}, nil)
			err := s.Import(context.Background(), &record.Record{})
			require.Error(t, err)
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
		})
	}
}

func TestOpenRejectsBadDSN(t *testing.T) {
	_, err := Open(context.Background(), config.SinkConfig{
		Type:    Type,
		Name:    "my",
		Options: map[string]string{"dsn": "not a dsn"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRegistered(t *testing.T) {
	assert.True(t, registry.GetRegistry().HasSink(Type))
}
