package chatbot

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/storepulse/chatbot/graph"
	"github.com/storepulse/chatbot/session"
)

// ErrEmptyQuestion is returned when Ask is called with a blank question.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Conversation is the caller-facing runner: it owns the unbounded history
// and the session store of one user conversation and serializes turns, since
// a turn reads and writes both.
type Conversation struct {
	id       string
	runnable *graph.Runnable[*ChatState]
	sessions session.Store

	mu      sync.Mutex
	history []string
}

// NewConversation creates a conversation with a fresh id.
func NewConversation(runnable *graph.Runnable[*ChatState], sessions session.Store) *Conversation {
	return NewConversationWithID(uuid.NewString(), runnable, sessions)
}

// NewConversationWithID creates a conversation with a caller-provided id,
// for callers that scope external stores by the same id.
func NewConversationWithID(id string, runnable *graph.Runnable[*ChatState], sessions session.Store) *Conversation {
	return &Conversation{
		id:       id,
		runnable: runnable,
		sessions: sessions,
	}
}

// ID returns the conversation id.
func (c *Conversation) ID() string {
	return c.id
}

// Ask runs one turn. The returned state always carries exactly one of
// Response or Table; backend failures arrive as failure narratives, and the
// error return is reserved for graph wiring faults and context cancellation.
func (c *Conversation) Ask(ctx context.Context, question string) (*ChatState, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	state := &ChatState{
		Question: question,
		History:  slices.Clone(c.history),
	}
	out, err := c.runnable.Invoke(ctx, state)
	if err != nil {
		return nil, err
	}

	c.history = slices.Clone(out.History)
	return out, nil
}

// History returns a copy of the questions asked so far.
func (c *Conversation) History() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.history)
}

// Reset drops the history and every stored backend session, returning the
// conversation to its initial state.
func (c *Conversation) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
	return c.sessions.ClearAll(ctx)
}
