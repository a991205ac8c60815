package transcript

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsechat-backend/internal/db"
)

func newMockStore(t *testing.T) (*DatabaseStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewDatabaseStore(&db.DB{DB: sqlDB}), mock
}

func TestDatabaseStoreSaveStoresUTC(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600))

	mock.ExpectExec("INSERT INTO chat_exchanges").
		WithArgs("s1", "hi", "hello", at.UTC()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Save(context.Background(), "s1", Exchange{User: "hi", AI: "hello", Timestamp: at}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreSaveWrapsError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO chat_exchanges").WillReturnError(errors.New("conn reset"))

	err := store.Save(context.Background(), "s1", Exchange{User: "a", AI: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conn reset")
}

func TestDatabaseStoreRequiresSessionID(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, "", Exchange{User: "a", AI: "b"}))
	_, err := store.Load(ctx, "")
	assert.Error(t, err)
	assert.Error(t, store.Delete(ctx, ""))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreLoadInInsertionOrder(t *testing.T) {
	store, mock := newMockStore(t)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"user_text", "ai_text", "created_at"}).
		AddRow("first", "1", t0).
		AddRow("second", "2", t0.Add(time.Second))
	mock.ExpectQuery(`FROM chat_exchanges WHERE session_id = \$1 ORDER BY id ASC`).
		WithArgs("s1").
		WillReturnRows(rows)

	got, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].User)
	assert.Equal(t, "2", got[1].AI)
	assert.Equal(t, t0.Add(time.Second), got[1].Timestamp)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreLoadRowError(t *testing.T) {
	store, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"user_text", "ai_text", "created_at"}).
		AddRow("first", "1", time.Now()).
		RowError(0, errors.New("bad row"))
	mock.ExpectQuery("FROM chat_exchanges").WithArgs("s1").WillReturnRows(rows)

	_, err := store.Load(context.Background(), "s1")
	assert.Error(t, err)
}

func TestDatabaseStoreDelete(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM chat_exchanges WHERE session_id = \$1`).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, store.Delete(context.Background(), "s1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
