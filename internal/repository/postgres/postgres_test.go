package postgres

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/office-portal/pkg/metrics"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, BaseRepository, *metrics.Metrics) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := metrics.NewNop()
	base := NewBaseRepository(sqlx.NewDb(db, "sqlmock"),
		WithMetrics(m),
		WithReadRetry(ReadRetry{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}),
	)
	return mock, base, m
}
