package genie

import (
	"context"
	"fmt"
	"time"

	"github.com/storepulse/chatbot/log"
)

// User-facing narratives. The literals are part of the caller contract and
// must stay distinguishable: a poll timeout is not a transport error.
const (
	// MsgPollTimeout is returned when the poll ceiling is reached without a
	// terminal success status.
	MsgPollTimeout = "❗쿼리 결과를 가져오는 데 실패했습니다."

	// MsgEmptyData is returned when the query completed but produced no
	// rows or columns.
	MsgEmptyData = "데이터가 비어있습니다."

	// msgErrorFormat wraps a transport or runtime error for the end user.
	msgErrorFormat = "❗데이터 처리 중 오류가 발생했습니다.\n(%s)"
)

// OutcomeKind discriminates the adapter result variants.
type OutcomeKind int

const (
	// OutcomeNarrative is a plain text answer.
	OutcomeNarrative OutcomeKind = iota
	// OutcomeTable is a tabular answer with an optional description.
	OutcomeTable
	// OutcomeFailure is a user-facing failure narrative.
	OutcomeFailure
)

// Outcome is the normalized result of one structured query. Exactly one of
// Text or Columns/Rows is populated depending on Kind.
type Outcome struct {
	Kind        OutcomeKind
	Text        string
	Columns     []string
	Rows        [][]string
	Description string
}

// Token is the opaque continuation handle for one conversation within one
// Genie space. The orchestration layer owns its lifecycle; the adapter only
// reads it.
type Token struct {
	ConversationID string `json:"conversation_id"`
}

// PollPolicy controls the bounded poll loop that waits for a query to reach
// a terminal state.
type PollPolicy struct {
	// Interval between attempts.
	Interval time.Duration

	// MaxAttempts is the poll ceiling. Reaching it yields a failure
	// narrative, not an error.
	MaxAttempts int

	// Terminal reports whether the message has finished successfully.
	Terminal func(status string, attachments int) bool

	// Sleep waits between attempts. Tests inject a no-op.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPollPolicy returns the production policy: 15 attempts, 2 seconds
// apart, terminal on SUCCEEDED or COMPLETED with at least one attachment.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval:    2 * time.Second,
		MaxAttempts: 15,
		Terminal:    TerminalOnSuccess,
		Sleep:       sleepContext,
	}
}

// TerminalOnSuccess is the default terminal-state predicate.
func TerminalOnSuccess(status string, attachments int) bool {
	return (status == "SUCCEEDED" || status == "COMPLETED") && attachments > 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Adapter wraps a Client with the polling and degradation semantics of one
// analytical domain. The adapter is stateless; the session token is supplied
// per call and never cached.
type Adapter struct {
	client *Client
	domain string
	policy PollPolicy
	logger log.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithPollPolicy overrides the default poll policy.
func WithPollPolicy(policy PollPolicy) AdapterOption {
	return func(a *Adapter) {
		a.policy = policy
	}
}

// WithLogger sets the adapter logger.
func WithLogger(logger log.Logger) AdapterOption {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// NewAdapter creates an adapter for one domain (used only for logging).
func NewAdapter(client *Client, domain string, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		client: client,
		domain: domain,
		policy: DefaultPollPolicy(),
		logger: log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.policy.Terminal == nil {
		a.policy.Terminal = TerminalOnSuccess
	}
	if a.policy.Sleep == nil {
		a.policy.Sleep = sleepContext
	}
	return a
}

// Ask runs one structured query. A nil or empty token starts a fresh
// conversation; otherwise the question continues the existing one. The
// returned token is the conversation handle the caller should store — it is
// set as soon as the service acknowledges the message, so a later poll
// timeout leaves continuity intact.
//
// Ask never returns a Go error: every failure mode resolves to an
// OutcomeFailure narrative.
func (a *Adapter) Ask(ctx context.Context, question string, token *Token) (Outcome, *Token) {
	var ref MessageRef
	var err error

	if token == nil || token.ConversationID == "" {
		a.logger.Debug("genie[%s]: starting new conversation", a.domain)
		ref, err = a.client.StartConversation(ctx, question)
	} else {
		a.logger.Debug("genie[%s]: continuing conversation %s", a.domain, token.ConversationID)
		ref, err = a.client.CreateMessage(ctx, token.ConversationID, question)
	}
	if err != nil {
		a.logger.Warn("genie[%s]: request failed: %v", a.domain, err)
		return failure(err), token
	}

	newToken := &Token{ConversationID: ref.ConversationID}

	msg, ok, failOut := a.poll(ctx, ref)
	if failOut != nil {
		return *failOut, newToken
	}
	if !ok {
		a.logger.Warn("genie[%s]: poll ceiling reached for message %s", a.domain, ref.MessageID)
		return Outcome{Kind: OutcomeFailure, Text: MsgPollTimeout}, newToken
	}

	if len(msg.Attachments) == 0 {
		return Outcome{Kind: OutcomeNarrative, Text: MsgEmptyData}, newToken
	}

	attachment := msg.Attachments[0]
	if attachment.Query == nil {
		if attachment.Text != nil && attachment.Text.Content != "" {
			return Outcome{Kind: OutcomeNarrative, Text: attachment.Text.Content}, newToken
		}
		return Outcome{Kind: OutcomeNarrative, Text: MsgEmptyData}, newToken
	}

	description := attachment.Query.Description
	result, err := a.client.GetQueryResult(ctx, ref.ConversationID, ref.MessageID, attachment.AttachmentID)
	if err != nil {
		a.logger.Warn("genie[%s]: query result fetch failed: %v", a.domain, err)
		return failure(err), newToken
	}

	columns, rows := tabulate(result)
	if len(columns) == 0 || len(rows) == 0 {
		return Outcome{Kind: OutcomeNarrative, Text: MsgEmptyData, Description: description}, newToken
	}
	return Outcome{Kind: OutcomeTable, Columns: columns, Rows: rows, Description: description}, newToken
}

// poll waits for the message to reach a terminal success state. It returns
// the message and true on success, false when the ceiling is reached, or a
// failure outcome when a poll request itself fails.
func (a *Adapter) poll(ctx context.Context, ref MessageRef) (*Message, bool, *Outcome) {
	for attempt := 1; attempt <= a.policy.MaxAttempts; attempt++ {
		if err := a.policy.Sleep(ctx, a.policy.Interval); err != nil {
			out := failure(err)
			return nil, false, &out
		}

		msg, err := a.client.GetMessage(ctx, ref.ConversationID, ref.MessageID)
		if err != nil {
			out := failure(err)
			return nil, false, &out
		}

		a.logger.Debug("genie[%s]: poll %d/%d status=%s attachments=%d",
			a.domain, attempt, a.policy.MaxAttempts, msg.Status, len(msg.Attachments))

		if a.policy.Terminal(msg.Status, len(msg.Attachments)) {
			return msg, true, nil
		}
	}
	return nil, false, nil
}

func failure(err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Text: fmt.Sprintf(msgErrorFormat, err)}
}

// tabulate flattens the statement response into ordered column names and
// string rows. Unnamed columns get positional fallback names.
func tabulate(result *QueryResult) ([]string, [][]string) {
	schema := result.StatementResponse.Manifest.Schema.Columns
	columns := make([]string, 0, len(schema))
	for i, col := range schema {
		name := col.Name
		if name == "" {
			name = fmt.Sprintf("col%d", i)
		}
		columns = append(columns, name)
	}

	data := result.StatementResponse.Result.DataArray
	rows := make([][]string, 0, len(data))
	for _, raw := range data {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return columns, rows
}
