package session

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepulse/chatbot/genie"
)

func TestPostgresStore_Set(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStoreWithPool(mock, "session_tokens", "conv-1")

	token := genie.Token{ConversationID: "genie-1"}
	data, _ := json.Marshal(token)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO session_tokens")).
		WithArgs("conv-1", "SALES", data).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.Set(context.Background(), "SALES", token)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStoreWithPool(mock, "session_tokens", "conv-1")

	data, _ := json.Marshal(genie.Token{ConversationID: "genie-1"})
	rows := pgxmock.NewRows([]string{"token"}).AddRow(data)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT token FROM session_tokens WHERE conversation_id = $1 AND backend = $2")).
		WithArgs("conv-1", "SALES").
		WillReturnRows(rows)

	token, ok, err := store.Get(context.Background(), "SALES")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "genie-1", token.ConversationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStoreWithPool(mock, "session_tokens", "conv-1")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT token FROM session_tokens")).
		WithArgs("conv-1", "SALES").
		WillReturnRows(pgxmock.NewRows([]string{"token"}))

	_, ok, err := store.Get(context.Background(), "SALES")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClearAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStoreWithPool(mock, "session_tokens", "conv-1")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM session_tokens WHERE conversation_id = $1")).
		WithArgs("conv-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	err = store.ClearAll(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
