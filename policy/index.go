package policy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/schema"
)

// Embedder turns text into embedding vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder implements Embedder over the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// EmbedderOption configures an OpenAIEmbedder.
type EmbedderOption func(*embedderOptions)

type embedderOptions struct {
	model   openai.EmbeddingModel
	baseURL string
}

// WithEmbeddingModel overrides the embedding model. Default ada-002.
func WithEmbeddingModel(model openai.EmbeddingModel) EmbedderOption {
	return func(opts *embedderOptions) {
		opts.model = model
	}
}

// WithEmbedderBaseURL points the embedder at a compatible endpoint.
func WithEmbedderBaseURL(baseURL string) EmbedderOption {
	return func(opts *embedderOptions) {
		opts.baseURL = baseURL
	}
}

// NewOpenAIEmbedder creates an embedder with the given API key.
func NewOpenAIEmbedder(apiKey string, opts ...EmbedderOption) *OpenAIEmbedder {
	options := &embedderOptions{model: openai.AdaEmbeddingV2}
	for _, opt := range opts {
		opt(options)
	}

	config := openai.DefaultConfig(apiKey)
	if options.baseURL != "" {
		config.BaseURL = options.baseURL
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(config),
		model:  options.model,
	}
}

// EmbedQuery implements Embedder.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments implements Embedder.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

// SearchResult is one retrieved chunk with its similarity score.
type SearchResult struct {
	Document schema.Document
	Score    float64
}

// Index is an in-memory vector index over document chunks.
type Index struct {
	mu         sync.RWMutex
	documents  []schema.Document
	embeddings [][]float32
	embedder   Embedder
}

// NewIndex creates an empty index.
func NewIndex(embedder Embedder) *Index {
	return &Index{embedder: embedder}
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.documents)
}

// Add embeds and stores the documents.
func (idx *Index) Add(ctx context.Context, docs []schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}
	vectors, err := idx.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.documents = append(idx.documents, docs...)
	idx.embeddings = append(idx.embeddings, vectors...)
	return nil
}

// Search returns the k chunks most similar to the query, best first.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, errors.New("k must be positive")
	}
	queryVector, err := idx.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]SearchResult, len(idx.documents))
	for i, vector := range idx.embeddings {
		results[i] = SearchResult{
			Document: idx.documents[i],
			Score:    cosineSimilarity(queryVector, vector),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
