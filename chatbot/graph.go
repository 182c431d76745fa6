package chatbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/storepulse/chatbot/genie"
	"github.com/storepulse/chatbot/graph"
	"github.com/storepulse/chatbot/log"
	"github.com/storepulse/chatbot/session"
)

// StructuredBackend answers one question against a conversational
// structured-query space. *genie.Adapter is the production implementation.
type StructuredBackend interface {
	Ask(ctx context.Context, question string, token *genie.Token) (genie.Outcome, *genie.Token)
}

// RetrievalBackend answers one question from a document corpus. It is
// stateless; unlike structured backends its errors surface as Go errors and
// are converted to failure narratives at the graph node.
type RetrievalBackend interface {
	Ask(ctx context.Context, question string) (answer string, sources []string, err error)
}

// msgRetrievalErrorFormat wraps a retrieval backend error for the end user.
const msgRetrievalErrorFormat = "❗문서 검색 중 오류가 발생했습니다.\n(%s)"

// msgNoAnswer closes a turn that produced neither narrative nor table.
const msgNoAnswer = "❗답변이 없습니다."

// Graph node names.
const (
	nodeQuestion = "question"
	nodeClassify = "classify"
	nodeFallback = "fallback"
	nodeRespond  = "respond"
)

// GraphConfig wires one orchestration graph. Every structured label in the
// registry needs an entry in Structured, and a retrieval label needs
// Retrieval set; NewGraph validates this at build time so dispatch is
// exhaustive before the first question arrives.
type GraphConfig struct {
	Registry   *Registry
	Classifier *Classifier
	Structured map[Label]StructuredBackend
	Retrieval  RetrievalBackend
	Sessions   session.Store
	Logger     log.Logger
}

// NewGraph compiles the per-turn orchestration graph:
//
//	question -> classify -> one backend node -> respond -> END
func NewGraph(cfg GraphConfig) (*graph.Runnable[*ChatState], error) {
	g, err := buildGraph(cfg)
	if err != nil {
		return nil, err
	}
	return g.Compile()
}

// Mermaid renders the orchestration graph as a Mermaid diagram.
func Mermaid(cfg GraphConfig) (string, error) {
	g, err := buildGraph(cfg)
	if err != nil {
		return "", err
	}
	return g.DrawMermaid(), nil
}

func buildGraph(cfg GraphConfig) (*graph.StateGraph[*ChatState], error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}

	dispatch := make(map[Label]string)
	structuredLabels := make([]Label, 0)

	g := graph.NewStateGraph[*ChatState]()

	g.AddNode(nodeQuestion, "normalizes the incoming question", func(_ context.Context, state *ChatState) (*ChatState, error) {
		state.Question = strings.TrimSpace(state.Question)
		state.Route = ""
		state.Response = ""
		state.Table = nil
		state.Description = ""
		return state, nil
	})

	for _, spec := range cfg.Registry.Specs() {
		spec := spec
		switch spec.Kind {
		case BackendStructured:
			backend, ok := cfg.Structured[spec.Label]
			if !ok || backend == nil {
				return nil, fmt.Errorf("no structured backend wired for label %s", spec.Label)
			}
			name := "genie_" + strings.ToLower(string(spec.Label))
			g.AddNode(name, spec.Description, structuredNode(spec.Label, backend, cfg.Sessions, logger))
			g.AddEdge(name, nodeRespond)
			dispatch[spec.Label] = name
			structuredLabels = append(structuredLabels, spec.Label)

		case BackendRetrieval:
			if cfg.Retrieval == nil {
				return nil, fmt.Errorf("no retrieval backend wired for label %s", spec.Label)
			}
			name := "policy_rag"
			g.AddNode(name, spec.Description, retrievalNode(cfg.Retrieval, logger))
			g.AddEdge(name, nodeRespond)
			dispatch[spec.Label] = name

		case BackendFallback:
			fallback := NewFallback(cfg.Registry)
			g.AddNode(nodeFallback, spec.Description, func(_ context.Context, state *ChatState) (*ChatState, error) {
				state.Response = fallback.Respond()
				return state, nil
			})
			g.AddEdge(nodeFallback, nodeRespond)
			dispatch[spec.Label] = nodeFallback

		default:
			return nil, fmt.Errorf("unknown backend kind for label %s", spec.Label)
		}
	}

	fallbackNode := dispatch[cfg.Registry.Fallback()]

	g.AddNode(nodeClassify, "routes the question to one backend", func(ctx context.Context, state *ChatState) (*ChatState, error) {
		state.Route = cfg.Classifier.Classify(ctx, state.Question, state.RecentContext())
		logger.Info("turn routed to %s", state.Route)

		// Leaving the analytical track invalidates structured follow-up
		// context, so the tokens are dropped.
		if spec, ok := cfg.Registry.Lookup(state.Route); ok && spec.Kind == BackendRetrieval {
			for _, label := range structuredLabels {
				if err := cfg.Sessions.Clear(ctx, string(label)); err != nil {
					logger.Warn("failed to clear %s session: %v", label, err)
				}
			}
		}
		return state, nil
	})

	g.AddNode(nodeRespond, "normalizes the final answer", func(_ context.Context, state *ChatState) (*ChatState, error) {
		normalizeAnswer(state)
		state.History = append(state.History, state.Question)
		return state, nil
	})

	g.SetEntryPoint(nodeQuestion)
	g.AddEdge(nodeQuestion, nodeClassify)
	g.AddConditionalEdge(nodeClassify, func(_ context.Context, state *ChatState) string {
		if name, ok := dispatch[state.Route]; ok {
			return name
		}
		return fallbackNode
	})
	g.AddEdge(nodeRespond, graph.END)

	return g, nil
}

// structuredNode runs one structured query with session continuity: the
// stored token is looked up before the call and the acknowledged token is
// stored back right after, so continuity survives later poll failures.
func structuredNode(label Label, backend StructuredBackend, sessions session.Store, logger log.Logger) func(context.Context, *ChatState) (*ChatState, error) {
	return func(ctx context.Context, state *ChatState) (*ChatState, error) {
		var token *genie.Token
		stored, ok, err := sessions.Get(ctx, string(label))
		if err != nil {
			logger.Warn("failed to load %s session, starting fresh: %v", label, err)
		} else if ok {
			token = &stored
		}

		outcome, newToken := backend.Ask(ctx, state.Question, token)

		if newToken != nil && newToken.ConversationID != "" {
			if token == nil || token.ConversationID != newToken.ConversationID {
				if err := sessions.Set(ctx, string(label), *newToken); err != nil {
					logger.Warn("failed to store %s session: %v", label, err)
				}
			}
		}

		applyOutcome(state, outcome)
		return state, nil
	}
}

// retrievalNode answers from the document corpus. Backend errors become a
// failure narrative here so nothing upstream of the graph sees them.
func retrievalNode(backend RetrievalBackend, logger log.Logger) func(context.Context, *ChatState) (*ChatState, error) {
	return func(ctx context.Context, state *ChatState) (*ChatState, error) {
		answer, sources, err := backend.Ask(ctx, state.Question)
		if err != nil {
			logger.Warn("retrieval backend failed: %v", err)
			state.Response = fmt.Sprintf(msgRetrievalErrorFormat, err)
			return state, nil
		}
		logger.Debug("retrieval answered with %d sources", len(sources))
		state.Response = answer
		return state, nil
	}
}

// applyOutcome maps a structured-query outcome onto the state. It is
// idempotent: applying the same outcome twice yields the same state.
func applyOutcome(state *ChatState, outcome genie.Outcome) {
	state.Response = ""
	state.Table = nil
	state.Description = outcome.Description

	switch outcome.Kind {
	case genie.OutcomeTable:
		state.Table = &Table{Columns: outcome.Columns, Rows: outcome.Rows}
	default:
		state.Response = outcome.Text
	}
}

// normalizeAnswer enforces the exactly-one-answer invariant on a completed
// turn. A table wins over a narrative; an empty turn gets the stock notice.
func normalizeAnswer(state *ChatState) {
	if state.Table != nil {
		state.Response = ""
		return
	}
	if state.Response == "" {
		state.Response = msgNoAnswer
	}
}
