package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsechat-backend/internal/db"
)

const selectKey = `SELECT api_key FROM api_keys WHERE service_name = \$1`

func newMockSource(t *testing.T) (*DatabaseSource, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewDatabaseSource(&db.DB{DB: sqlDB}, "xai"), mock
}

func TestDatabaseSourceToken(t *testing.T) {
	src, mock := newMockSource(t)
	mock.ExpectQuery(selectKey).WithArgs("xai").
		WillReturnRows(sqlmock.NewRows([]string{"api_key"}).AddRow("xai-db-key"))

	key, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "xai-db-key", key)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseSourceMissingRow(t *testing.T) {
	src, mock := newMockSource(t)
	mock.ExpectQuery(selectKey).WithArgs("xai").
		WillReturnRows(sqlmock.NewRows([]string{"api_key"}))

	_, err := src.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestDatabaseSourceBlankKey(t *testing.T) {
	src, mock := newMockSource(t)
	mock.ExpectQuery(selectKey).WithArgs("xai").
		WillReturnRows(sqlmock.NewRows([]string{"api_key"}).AddRow("   "))

	_, err := src.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestDatabaseSourceQueryError(t *testing.T) {
	src, mock := newMockSource(t)
	mock.ExpectQuery(selectKey).WithArgs("xai").WillReturnError(errors.New("timeout"))

	_, err := src.Token(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCredential)
}

func TestDatabaseSourceStoreUpserts(t *testing.T) {
	src, mock := newMockSource(t)
	mock.ExpectExec(`INSERT INTO api_keys .* ON CONFLICT \(service_name\) DO UPDATE SET api_key = EXCLUDED.api_key`).
		WithArgs("xai", "xai-new").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, src.Store(context.Background(), "xai-new"))
	assert.Error(t, src.Store(context.Background(), " "))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseSourceClear(t *testing.T) {
	src, mock := newMockSource(t)
	mock.ExpectExec(`DELETE FROM api_keys WHERE service_name = \$1`).
		WithArgs("xai").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, src.Clear(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
