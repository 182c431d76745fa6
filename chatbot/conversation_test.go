package chatbot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepulse/chatbot/genie"
)

func TestConversationAsk(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "FALLBACK")
	conv := NewConversation(h.runnable, h.sessions)
	assert.NotEmpty(t, conv.ID())

	state, err := conv.Ask(context.Background(), "지난 달 매출 알려줘")
	require.NoError(t, err)
	assert.Equal(t, "sales answer", state.Response)

	state, err = conv.Ask(context.Background(), "그럼 판매 추이는?")
	require.NoError(t, err)
	assert.Equal(t, []string{"지난 달 매출 알려줘", "그럼 판매 추이는?"}, state.History)
	assert.Equal(t, state.History, conv.History())
}

func TestConversationEmptyQuestion(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "FALLBACK")
	conv := NewConversation(h.runnable, h.sessions)

	_, err := conv.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Empty(t, conv.History())
}

func TestConversationReset(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "FALLBACK")
	conv := NewConversation(h.runnable, h.sessions)
	ctx := context.Background()

	_, err := conv.Ask(ctx, "지난 달 매출 알려줘")
	require.NoError(t, err)
	require.NotEmpty(t, conv.History())

	_, ok, err := h.sessions.Get(ctx, string(LabelSales))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, conv.Reset(ctx))

	assert.Empty(t, conv.History())
	_, ok, err = h.sessions.Get(ctx, string(LabelSales))
	require.NoError(t, err)
	assert.False(t, ok)

	// A turn after reset starts a fresh structured conversation.
	_, err = conv.Ask(ctx, "다시 매출 알려줘")
	require.NoError(t, err)
	assert.Nil(t, h.sales.gotTokens[len(h.sales.gotTokens)-1])
}

func TestConversationHistoryIsACopy(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "FALLBACK")
	conv := NewConversation(h.runnable, h.sessions)

	_, err := conv.Ask(context.Background(), "매출 알려줘")
	require.NoError(t, err)

	history := conv.History()
	history[0] = "mutated"
	assert.Equal(t, []string{"매출 알려줘"}, conv.History())
}

func TestConversationFailedTurnKeepsContinuity(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "FALLBACK")
	h.sales.outcomes = []genie.Outcome{
		{Kind: genie.OutcomeFailure, Text: genie.MsgPollTimeout},
		{Kind: genie.OutcomeNarrative, Text: "sales answer"},
	}
	conv := NewConversation(h.runnable, h.sessions)
	ctx := context.Background()

	state, err := conv.Ask(ctx, "매출 알려줘")
	require.NoError(t, err)
	assert.Equal(t, genie.MsgPollTimeout, state.Response)

	// The acknowledged token survived the timeout, so the retry continues
	// the same backend conversation.
	_, err = conv.Ask(ctx, "다시 매출 알려줘")
	require.NoError(t, err)
	require.Len(t, h.sales.gotTokens, 2)
	require.NotNil(t, h.sales.gotTokens[1])
	assert.Equal(t, "genie-sales", h.sales.gotTokens[1].ConversationID)
}
