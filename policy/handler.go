package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/storepulse/chatbot/log"
)

// Chunking parameters for the corpus. The sections are short, so modest
// chunks keep one dt/dd pair together in most cases.
const (
	chunkSize    = 500
	chunkOverlap = 50
)

// answerSuffix closes every retrieval answer with the official portal link.
const answerSuffix = "\n\n---\n\n" +
	"ℹ️ 더 자세한 내용은 각 지원사업의 공식 홈페이지 링크를 참고해주세요.  \n" +
	"🔗 [소상공인 지원사업 안내](https://www.semas.or.kr/web/main/index.kmdc)"

// BuildIndex chunks the corpus entries and embeds them into a fresh index.
func BuildIndex(ctx context.Context, entries []Entry, embedder Embedder) (*Index, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)
	chunks, err := textsplitter.SplitDocuments(splitter, Documents(entries))
	if err != nil {
		return nil, fmt.Errorf("failed to split corpus: %w", err)
	}

	index := NewIndex(embedder)
	if err := index.Add(ctx, chunks); err != nil {
		return nil, err
	}
	return index, nil
}

// Handler answers support-program questions over the index. Unlike the
// structured backends it returns Go errors; the orchestration layer converts
// them to user-facing narratives.
type Handler struct {
	model  llms.Model
	index  *Index
	topK   int
	logger log.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithTopK sets how many chunks are retrieved per question. Default 4.
func WithTopK(k int) HandlerOption {
	return func(h *Handler) {
		h.topK = k
	}
}

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(logger log.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a handler over a built index.
func NewHandler(model llms.Model, index *Index, opts ...HandlerOption) *Handler {
	h := &Handler{
		model:  model,
		index:  index,
		topK:   4,
		logger: log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Ask retrieves the most relevant chunks and synthesizes an answer. The
// returned sources are the unique program URLs of the retrieved chunks.
func (h *Handler) Ask(ctx context.Context, question string) (string, []string, error) {
	results, err := h.index.Search(ctx, question, h.topK)
	if err != nil {
		return "", nil, err
	}
	h.logger.Debug("policy: retrieved %d chunks for question", len(results))

	answer, err := llms.GenerateFromSinglePrompt(ctx, h.model, h.prompt(question, results),
		llms.WithTemperature(0))
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return strings.TrimSpace(answer) + answerSuffix, sourcesOf(results), nil
}

func (h *Handler) prompt(question string, results []SearchResult) string {
	var sb strings.Builder
	sb.WriteString("당신은 소상공인 지원정책에 대한 전문 답변자입니다.\n\n")
	sb.WriteString("다음 문서는 여러 지원사업들에 대한 정보입니다.\n")
	sb.WriteString("각 문서는 다음과 같은 구조로 이루어져 있습니다:\n")
	sb.WriteString("- 사업명: 반드시 이 필드에 나타나는 값만 실제 사업명으로 간주하세요.\n")
	sb.WriteString("- 구분: 항목 유형 (예: 지원내용, 신청자격 등)\n")
	sb.WriteString("- 내용: 해당 항목의 실제 설명입니다.\n\n")
	sb.WriteString("- '내용' 중 일부 표현(예: \"폐업 지원\")을 사업명으로 오인하지 마세요.\n")
	sb.WriteString("- 반드시 '사업명' 필드의 값만 제목으로 사용하세요.\n")
	sb.WriteString("- 해당하는 사업의 '사업명'을 강조한 후, 상세내용을 가능한한 상세하게 설명하세요.\n")
	sb.WriteString("- 만족도 설문, 문의처 등은 제외하고 정책 내용 위주로 설명하세요.\n")
	sb.WriteString("- \"장사가 안된다\", \"힘들다\", \"매출이 없다\" 등의 표현은 '경영 부진'으로 해석하세요.\n\n")
	sb.WriteString("문서:\n")
	for i, result := range results {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		sb.WriteString(result.Document.PageContent)
		sb.WriteString("\n")
	}
	sb.WriteString("\n질문:\n")
	sb.WriteString(question)
	sb.WriteString("\n\n답변:\n")
	return sb.String()
}

func sourcesOf(results []SearchResult) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, result := range results {
		source, _ := result.Document.Metadata["source"].(string)
		if source == "" || seen[source] {
			continue
		}
		seen[source] = true
		sources = append(sources, source)
	}
	return sources
}
