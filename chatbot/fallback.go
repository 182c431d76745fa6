package chatbot

import (
	"fmt"
	"strings"
)

// fallbackHeader opens the deterministic guidance for unroutable questions.
const fallbackHeader = "❓ 질문을 이해하지 못했어요. 아래와 같은 질문을 도와드릴 수 있습니다."

// Fallback produces deterministic guidance for questions no backend can
// answer. The guidance is assembled from the registry examples, so it stays
// in sync with the deployed backends without a model call.
type Fallback struct {
	registry *Registry
}

// NewFallback builds the fallback responder for a registry.
func NewFallback(registry *Registry) *Fallback {
	return &Fallback{registry: registry}
}

// Respond returns the guidance narrative. The output depends only on the
// registry, never on the question.
func (f *Fallback) Respond() string {
	var sb strings.Builder
	sb.WriteString(fallbackHeader)
	for _, spec := range f.registry.Specs() {
		if len(spec.Examples) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n\n**%s**", spec.Description)
		for _, example := range spec.Examples {
			fmt.Fprintf(&sb, "\n- %s", example)
		}
	}
	return sb.String()
}
