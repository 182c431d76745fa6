package genie

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(WithSpaceID("space-1"))
	assert.ErrorIs(t, err, ErrNotSetAuth)

	_, err = NewClient(WithToken("tok"))
	assert.ErrorIs(t, err, ErrNotSetSpace)

	c, err := NewClient(WithToken("tok"), WithSpaceID("space-1"), WithWorkspace("example.cloud.databricks.com"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.cloud.databricks.com", c.baseURL)
}

func TestClientStartConversation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/2.0/genie/spaces/space-1/start-conversation", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "매출 랭킹 보여줘", payload["content"])

		fmt.Fprint(w, `{"conversation_id":"conv-1","message_id":"msg-1"}`)
	}))
	defer server.Close()

	client, err := NewClient(WithToken("tok"), WithSpaceID("space-1"), WithBaseURL(server.URL))
	require.NoError(t, err)

	ref, err := client.StartConversation(context.Background(), "매출 랭킹 보여줘")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", ref.ConversationID)
	assert.Equal(t, "msg-1", ref.MessageID)
}

func TestClientCreateMessage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/2.0/genie/spaces/space-1/conversations/conv-1/messages", r.URL.Path)
		fmt.Fprint(w, `{"conversation_id":"conv-1","message_id":"msg-2"}`)
	}))
	defer server.Close()

	client, err := NewClient(WithToken("tok"), WithSpaceID("space-1"), WithBaseURL(server.URL))
	require.NoError(t, err)

	ref, err := client.CreateMessage(context.Background(), "conv-1", "그 중 상위 3개만")
	require.NoError(t, err)
	assert.Equal(t, "msg-2", ref.MessageID)
}

func TestClientGetMessage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/2.0/genie/spaces/space-1/conversations/conv-1/messages/msg-1", r.URL.Path)
		fmt.Fprint(w, `{
			"status": "COMPLETED",
			"attachments": [
				{"attachment_id": "att-1", "query": {"description": "월별 매출", "query": "SELECT 1"}}
			]
		}`)
	}))
	defer server.Close()

	client, err := NewClient(WithToken("tok"), WithSpaceID("space-1"), WithBaseURL(server.URL))
	require.NoError(t, err)

	msg, err := client.GetMessage(context.Background(), "conv-1", "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", msg.Status)
	require.Len(t, msg.Attachments, 1)
	require.NotNil(t, msg.Attachments[0].Query)
	assert.Equal(t, "월별 매출", msg.Attachments[0].Query.Description)
	assert.Nil(t, msg.Attachments[0].Text)
}

func TestClientGetQueryResult(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/2.0/genie/spaces/space-1/conversations/conv-1/messages/msg-1/query-result/att-1", r.URL.Path)
		fmt.Fprint(w, `{
			"statement_response": {
				"manifest": {"schema": {"columns": [{"name": "store"}, {"name": "revenue"}]}},
				"result": {"data_array": [["한빛마트", 1200], ["동네카페", 800]]}
			}
		}`)
	}))
	defer server.Close()

	client, err := NewClient(WithToken("tok"), WithSpaceID("space-1"), WithBaseURL(server.URL))
	require.NoError(t, err)

	result, err := client.GetQueryResult(context.Background(), "conv-1", "msg-1", "att-1")
	require.NoError(t, err)
	assert.Len(t, result.StatementResponse.Manifest.Schema.Columns, 2)
	assert.Len(t, result.StatementResponse.Result.DataArray, 2)
}

func TestClientNon200(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "space not found", http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(WithToken("tok"), WithSpaceID("space-1"), WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.StartConversation(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "space not found")
}
