package policy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/storepulse/chatbot/log"
)

// keywordEmbedder is a deterministic Embedder: texts about closure land on
// one axis, everything else on the other.
type keywordEmbedder struct {
	err error
}

func (e *keywordEmbedder) embed(text string) []float32 {
	if strings.Contains(text, "폐업") {
		return []float32{1, 0}
	}
	return []float32{0, 1}
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.embed(text), nil
}

func (e *keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

type fakeModel struct {
	reply   string
	err     error
	prompts []string
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				m.prompts = append(m.prompts, text.Text)
			}
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(_ context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

func buildTestIndex(t *testing.T, embedder Embedder) *Index {
	t.Helper()

	entries, err := LoadCorpus(strings.NewReader(testCorpus))
	require.NoError(t, err)

	index, err := BuildIndex(context.Background(), entries, embedder)
	require.NoError(t, err)
	require.Greater(t, index.Len(), 0)
	return index
}

func TestIndexSearchRanksBySimilarity(t *testing.T) {
	t.Parallel()

	index := buildTestIndex(t, &keywordEmbedder{})

	results, err := index.Search(context.Background(), "폐업하면 뭘 받을 수 있나요", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Document.PageContent, "폐업")
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	_, err = index.Search(context.Background(), "질문", 0)
	assert.Error(t, err)
}

func TestHandlerAsk(t *testing.T) {
	t.Parallel()

	index := buildTestIndex(t, &keywordEmbedder{})
	model := &fakeModel{reply: "**희망리턴패키지** 사업이 폐업 소상공인의 재기를 지원합니다."}
	handler := NewHandler(model, index, WithTopK(2), WithHandlerLogger(&log.NoOpLogger{}))

	answer, sources, err := handler.Ask(context.Background(), "폐업 지원금이 있나요?")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(answer, "**희망리턴패키지**"))
	assert.Contains(t, answer, "semas.or.kr")
	assert.Contains(t, sources, "https://example.com/hope")

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "사업명: 희망리턴패키지")
	assert.Contains(t, model.prompts[0], "폐업 지원금이 있나요?")
}

func TestHandlerAskEmbedderError(t *testing.T) {
	t.Parallel()

	index := NewIndex(&keywordEmbedder{err: errors.New("embedding service down")})
	require.NoError(t, index.Add(context.Background(), nil))

	handler := NewHandler(&fakeModel{reply: "답변"}, index, WithHandlerLogger(&log.NoOpLogger{}))
	_, _, err := handler.Ask(context.Background(), "질문")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service down")
}

func TestHandlerAskModelError(t *testing.T) {
	t.Parallel()

	index := buildTestIndex(t, &keywordEmbedder{})
	handler := NewHandler(&fakeModel{err: errors.New("rate limited")}, index, WithHandlerLogger(&log.NoOpLogger{}))

	_, _, err := handler.Ask(context.Background(), "폐업 지원금이 있나요?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate answer")
}

func TestSourcesDeduplicated(t *testing.T) {
	t.Parallel()

	results := []SearchResult{
		{Document: schema.Document{Metadata: map[string]any{"source": "https://a"}}},
		{Document: schema.Document{Metadata: map[string]any{"source": "https://a"}}},
		{Document: schema.Document{Metadata: map[string]any{"source": "https://b"}}},
		{Document: schema.Document{Metadata: map[string]any{}}},
	}
	assert.Equal(t, []string{"https://a", "https://b"}, sourcesOf(results))
}
