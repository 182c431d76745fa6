package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lipglosstable "github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/kataras/golog"
	"github.com/redis/go-redis/v9"
	openaiembed "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/storepulse/chatbot/chatbot"
	"github.com/storepulse/chatbot/config"
	"github.com/storepulse/chatbot/genie"
	"github.com/storepulse/chatbot/history"
	"github.com/storepulse/chatbot/log"
	"github.com/storepulse/chatbot/policy"
	"github.com/storepulse/chatbot/session"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true)
	routeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session. Type a question and press enter.

Commands:
  /reset   drop the conversation history and backend sessions
  /exit    quit`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := log.NewGologLogger(golog.New())
	logger.SetLevel(log.ParseLevel(cfg.LogLevel))

	conversationID := uuid.NewString()
	sessions, cleanup, err := newSessionStore(cfg, conversationID)
	if err != nil {
		return err
	}
	defer cleanup()

	graphCfg, err := buildGraphConfig(cfg, logger, sessions)
	if err != nil {
		return err
	}
	runnable, err := chatbot.NewGraph(graphCfg)
	if err != nil {
		return err
	}
	conv := chatbot.NewConversationWithID(conversationID, runnable, sessions)

	var archive *history.SqliteStore
	if cfg.HistoryDBPath != "" {
		archive, err = history.NewSqliteStore(history.SqliteOptions{Path: cfg.HistoryDBPath})
		if err != nil {
			return err
		}
		defer archive.Close()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "StorePulse 챗봇입니다. 질문을 입력하세요. (/reset, /exit)")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, promptStyle.Render("질문> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/exit":
			return nil
		case "/reset":
			if err := conv.Reset(cmd.Context()); err != nil {
				fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("초기화 실패: %v", err)))
				continue
			}
			fmt.Fprintln(out, "대화를 초기화했습니다.")
			continue
		}

		state, err := conv.Ask(cmd.Context(), line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("오류: %v", err)))
			continue
		}

		renderTurn(out, state)

		if archive != nil {
			archiveTurn(cmd.Context(), logger, archive, conv.ID(), state)
		}
	}
}

func renderTurn(out io.Writer, state *chatbot.ChatState) {
	fmt.Fprintln(out, routeStyle.Render("["+string(state.Route)+"]"))
	if state.Table != nil {
		if state.Description != "" {
			fmt.Fprintln(out, state.Description)
		}
		t := lipglosstable.New().
			Border(lipgloss.NormalBorder()).
			Headers(state.Table.Columns...).
			Rows(state.Table.Rows...)
		fmt.Fprintln(out, t.Render())
		return
	}
	fmt.Fprintln(out, state.Response)
}

func archiveTurn(ctx context.Context, logger log.Logger, archive *history.SqliteStore, conversationID string, state *chatbot.ChatState) {
	turn := history.Turn{
		ConversationID: conversationID,
		Question:       state.Question,
		Route:          string(state.Route),
		Response:       state.Response,
	}
	if state.Table != nil {
		if data, err := json.Marshal(state.Table); err == nil {
			turn.Table = data
		}
	}
	if err := archive.Append(ctx, turn); err != nil {
		logger.Warn("failed to archive turn: %v", err)
	}
}

func newSessionStore(cfg config.Config, conversationID string) (session.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return session.NewMemoryStore(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store, err := session.NewRedisStore(client, conversationID)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return store, func() { client.Close() }, nil
}

func buildGraphConfig(cfg config.Config, logger log.Logger, sessions session.Store) (chatbot.GraphConfig, error) {
	model, err := newModel(cfg)
	if err != nil {
		return chatbot.GraphConfig{}, err
	}

	pollPolicy := genie.DefaultPollPolicy()
	pollPolicy.Interval = cfg.GeniePollInterval
	pollPolicy.MaxAttempts = cfg.GeniePollAttempts

	structured := make(map[chatbot.Label]chatbot.StructuredBackend)
	for label, spaceID := range map[chatbot.Label]string{
		chatbot.LabelSales:      cfg.SalesSpaceID,
		chatbot.LabelOperations: cfg.OperationsSpaceID,
	} {
		client, err := genie.NewClient(
			genie.WithWorkspace(cfg.DatabricksWorkspace),
			genie.WithToken(cfg.DatabricksToken),
			genie.WithSpaceID(spaceID),
		)
		if err != nil {
			return chatbot.GraphConfig{}, fmt.Errorf("failed to create %s client: %w", label, err)
		}
		structured[label] = genie.NewAdapter(client, strings.ToLower(string(label)),
			genie.WithPollPolicy(pollPolicy), genie.WithLogger(logger))
	}

	retrieval, err := newRetrieval(cfg, model, logger)
	if err != nil {
		return chatbot.GraphConfig{}, err
	}

	registry := chatbot.DefaultRegistry()
	return chatbot.GraphConfig{
		Registry:   registry,
		Classifier: chatbot.NewClassifier(model, registry, chatbot.WithClassifierLogger(logger)),
		Structured: structured,
		Retrieval:  retrieval,
		Sessions:   sessions,
		Logger:     logger,
	}, nil
}

func newModel(cfg config.Config) (llms.Model, error) {
	opts := []lcopenai.Option{
		lcopenai.WithToken(cfg.OpenAIAPIKey),
		lcopenai.WithModel(cfg.OpenAIModel),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	return lcopenai.New(opts...)
}

// newRetrieval builds the policy backend from the corpus file. Without a
// corpus the backend answers with a fixed unavailability error, which the
// graph converts to a user-facing narrative.
func newRetrieval(cfg config.Config, model llms.Model, logger log.Logger) (chatbot.RetrievalBackend, error) {
	if cfg.PolicyCorpusPath == "" {
		logger.Warn("no policy corpus configured, retrieval answers will be unavailable")
		return disabledRetrieval{}, nil
	}

	file, err := os.Open(cfg.PolicyCorpusPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy corpus: %w", err)
	}
	defer file.Close()

	entries, err := policy.LoadCorpus(file)
	if err != nil {
		return nil, err
	}

	embedderOpts := []policy.EmbedderOption{
		policy.WithEmbeddingModel(openaiembed.EmbeddingModel(cfg.EmbeddingModel)),
	}
	if cfg.OpenAIBaseURL != "" {
		embedderOpts = append(embedderOpts, policy.WithEmbedderBaseURL(cfg.OpenAIBaseURL))
	}
	embedder := policy.NewOpenAIEmbedder(cfg.OpenAIAPIKey, embedderOpts...)

	index, err := policy.BuildIndex(context.Background(), entries, embedder)
	if err != nil {
		return nil, err
	}
	logger.Info("policy corpus indexed: %d chunks", index.Len())

	return policy.NewHandler(model, index,
		policy.WithTopK(cfg.PolicyTopK), policy.WithHandlerLogger(logger)), nil
}

type disabledRetrieval struct{}

func (disabledRetrieval) Ask(context.Context, string) (string, []string, error) {
	return "", nil, errors.New("정책 문서가 설정되지 않았습니다")
}
