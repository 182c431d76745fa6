package genie

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storepulse/chatbot/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastPolicy polls without sleeping so tests run instantly.
func fastPolicy(maxAttempts int) PollPolicy {
	return PollPolicy{
		Interval:    0,
		MaxAttempts: maxAttempts,
		Terminal:    TerminalOnSuccess,
		Sleep:       func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	}
}

// genieScript is a minimal fake Genie space: it serves a scripted sequence
// of message statuses and a fixed query result.
type genieScript struct {
	polls     atomic.Int32
	statuses  []string // status returned per poll, last one repeats
	message   string   // message body returned once terminal, optional override
	result    string   // query-result body
	started   atomic.Int32
	continued atomic.Int32
}

func (s *genieScript) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/2.0/genie/spaces/space-1/start-conversation", func(w http.ResponseWriter, r *http.Request) {
		s.started.Add(1)
		fmt.Fprint(w, `{"conversation_id":"conv-1","message_id":"msg-1"}`)
	})
	mux.HandleFunc("POST /api/2.0/genie/spaces/space-1/conversations/{conv}/messages", func(w http.ResponseWriter, r *http.Request) {
		s.continued.Add(1)
		fmt.Fprintf(w, `{"conversation_id":%q,"message_id":"msg-2"}`, r.PathValue("conv"))
	})
	mux.HandleFunc("GET /api/2.0/genie/spaces/space-1/conversations/{conv}/messages/{msg}", func(w http.ResponseWriter, r *http.Request) {
		n := int(s.polls.Add(1))
		idx := n - 1
		if idx >= len(s.statuses) {
			idx = len(s.statuses) - 1
		}
		status := s.statuses[idx]
		if (status == "COMPLETED" || status == "SUCCEEDED") && s.message != "" {
			fmt.Fprint(w, s.message)
			return
		}
		fmt.Fprintf(w, `{"status":%q,"attachments":[]}`, status)
	})
	mux.HandleFunc("GET /api/2.0/genie/spaces/space-1/conversations/{conv}/messages/{msg}/query-result/{att}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, s.result)
	})
	return mux
}

func newTestAdapter(t *testing.T, script *genieScript, policy PollPolicy) *Adapter {
	t.Helper()
	server := httptest.NewServer(script.handler(t))
	t.Cleanup(server.Close)

	client, err := NewClient(WithToken("tok"), WithSpaceID("space-1"), WithBaseURL(server.URL))
	require.NoError(t, err)

	return NewAdapter(client, "sales", WithPollPolicy(policy), WithLogger(&log.NoOpLogger{}))
}

func TestAdapterTableSuccessOnThirdPoll(t *testing.T) {
	t.Parallel()

	script := &genieScript{
		statuses: []string{"IN_PROGRESS", "EXECUTING_QUERY", "COMPLETED"},
		message: `{"status":"COMPLETED","attachments":[
			{"attachment_id":"att-1","query":{"description":"매출 랭킹 상위 5개","query":"SELECT 1"}}
		]}`,
		result: `{"statement_response":{
			"manifest":{"schema":{"columns":[{"name":"store"},{"name":"revenue"}]}},
			"result":{"data_array":[["A",1],["B",2],["C",3],["D",4],["E",5]]}
		}}`,
	}
	adapter := newTestAdapter(t, script, fastPolicy(15))

	outcome, token := adapter.Ask(context.Background(), "매출 랭킹 보여줘", nil)

	assert.Equal(t, OutcomeTable, outcome.Kind)
	assert.Equal(t, []string{"store", "revenue"}, outcome.Columns)
	assert.Len(t, outcome.Rows, 5)
	assert.Equal(t, []string{"E", "5"}, outcome.Rows[4])
	assert.Equal(t, "매출 랭킹 상위 5개", outcome.Description)
	assert.Empty(t, outcome.Text)
	require.NotNil(t, token)
	assert.Equal(t, "conv-1", token.ConversationID)
	assert.Equal(t, int32(3), script.polls.Load())
}

func TestAdapterPollCeilingYieldsTimeoutNarrative(t *testing.T) {
	t.Parallel()

	script := &genieScript{statuses: []string{"IN_PROGRESS"}}
	adapter := newTestAdapter(t, script, fastPolicy(5))

	outcome, token := adapter.Ask(context.Background(), "매출 랭킹 보여줘", nil)

	assert.Equal(t, OutcomeFailure, outcome.Kind)
	assert.Equal(t, MsgPollTimeout, outcome.Text)
	assert.Empty(t, outcome.Columns)
	// The conversation was acknowledged before polling, so continuity
	// survives the timeout.
	require.NotNil(t, token)
	assert.Equal(t, "conv-1", token.ConversationID)
	assert.Equal(t, int32(5), script.polls.Load())
}

func TestAdapterContinueUsesExistingConversation(t *testing.T) {
	t.Parallel()

	script := &genieScript{
		statuses: []string{"COMPLETED"},
		message: `{"status":"COMPLETED","attachments":[
			{"attachment_id":"att-1","text":{"content":"지난 분기 매출은 전년 대비 3% 감소했습니다."}}
		]}`,
	}
	adapter := newTestAdapter(t, script, fastPolicy(15))

	outcome, token := adapter.Ask(context.Background(), "그 중 상위 3개만", &Token{ConversationID: "conv-1"})

	assert.Equal(t, OutcomeNarrative, outcome.Kind)
	assert.Equal(t, "지난 분기 매출은 전년 대비 3% 감소했습니다.", outcome.Text)
	require.NotNil(t, token)
	assert.Equal(t, "conv-1", token.ConversationID)
	assert.Equal(t, int32(0), script.started.Load())
	assert.Equal(t, int32(1), script.continued.Load())
}

func TestAdapterEmptyResultDegradesToNarrative(t *testing.T) {
	t.Parallel()

	script := &genieScript{
		statuses: []string{"SUCCEEDED"},
		message: `{"status":"SUCCEEDED","attachments":[
			{"attachment_id":"att-1","query":{"description":"조회 결과","query":"SELECT 1"}}
		]}`,
		result: `{"statement_response":{
			"manifest":{"schema":{"columns":[{"name":"store"}]}},
			"result":{"data_array":[]}
		}}`,
	}
	adapter := newTestAdapter(t, script, fastPolicy(15))

	outcome, _ := adapter.Ask(context.Background(), "question", nil)

	assert.Equal(t, OutcomeNarrative, outcome.Kind)
	assert.Equal(t, MsgEmptyData, outcome.Text)
	assert.Equal(t, "조회 결과", outcome.Description)
	assert.Empty(t, outcome.Rows)
}

func TestAdapterAttachmentWithoutQueryOrText(t *testing.T) {
	t.Parallel()

	script := &genieScript{
		statuses: []string{"COMPLETED"},
		message:  `{"status":"COMPLETED","attachments":[{"attachment_id":"att-1"}]}`,
	}
	adapter := newTestAdapter(t, script, fastPolicy(15))

	outcome, _ := adapter.Ask(context.Background(), "question", nil)

	assert.Equal(t, OutcomeNarrative, outcome.Kind)
	assert.Equal(t, MsgEmptyData, outcome.Text)
}

func TestAdapterTransportErrorBecomesFailureNarrative(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(WithToken("tok"), WithSpaceID("space-1"), WithBaseURL(server.URL))
	require.NoError(t, err)
	adapter := NewAdapter(client, "sales", WithPollPolicy(fastPolicy(3)), WithLogger(&log.NoOpLogger{}))

	token := &Token{ConversationID: "conv-9"}
	outcome, tokenOut := adapter.Ask(context.Background(), "question", token)

	assert.Equal(t, OutcomeFailure, outcome.Kind)
	assert.Contains(t, outcome.Text, "❗데이터 처리 중 오류가 발생했습니다.")
	assert.Contains(t, outcome.Text, "500")
	// Token passed in is handed back untouched.
	assert.Equal(t, token, tokenOut)
}

func TestDefaultPollPolicy(t *testing.T) {
	t.Parallel()

	policy := DefaultPollPolicy()
	assert.Equal(t, 2*time.Second, policy.Interval)
	assert.Equal(t, 15, policy.MaxAttempts)
	assert.True(t, policy.Terminal("SUCCEEDED", 1))
	assert.True(t, policy.Terminal("COMPLETED", 2))
	assert.False(t, policy.Terminal("COMPLETED", 0))
	assert.False(t, policy.Terminal("EXECUTING_QUERY", 1))
}
