package chatbot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/storepulse/chatbot/log"
)

// Classifier assigns exactly one registry label to a question. Deterministic
// rules run first: venue-name patterns, then keyword hits in declaration
// order. Only when neither decides is the language model consulted, and its
// output is normalized against the closed label set. Classification never
// fails; any model error resolves to the fallback label.
type Classifier struct {
	model    llms.Model
	registry *Registry
	venues   map[Label][]*regexp.Regexp
	logger   log.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithClassifierLogger sets the classifier logger.
func WithClassifierLogger(logger log.Logger) ClassifierOption {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// NewClassifier builds a classifier over a registry. The venue patterns were
// validated when the registry was built, so compilation here cannot fail.
func NewClassifier(model llms.Model, registry *Registry, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		model:    model,
		registry: registry,
		venues:   make(map[Label][]*regexp.Regexp),
		logger:   log.GetDefaultLogger(),
	}
	for _, spec := range registry.Specs() {
		for _, pattern := range spec.VenuePatterns {
			c.venues[spec.Label] = append(c.venues[spec.Label], regexp.MustCompile(pattern))
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify routes one question. contextText is the bounded recent-history
// context; it biases the model but not the deterministic rules.
func (c *Classifier) Classify(ctx context.Context, question, contextText string) Label {
	for _, spec := range c.registry.Specs() {
		for _, re := range c.venues[spec.Label] {
			if re.MatchString(question) {
				c.logger.Debug("classifier: venue pattern %q -> %s", re.String(), spec.Label)
				return spec.Label
			}
		}
	}

	for _, spec := range c.registry.Specs() {
		for _, keyword := range spec.Keywords {
			if strings.Contains(question, keyword) {
				c.logger.Debug("classifier: keyword %q -> %s", keyword, spec.Label)
				return spec.Label
			}
		}
	}

	if c.model == nil {
		return c.registry.Fallback()
	}

	raw, err := llms.GenerateFromSinglePrompt(ctx, c.model, c.prompt(question, contextText),
		llms.WithTemperature(0))
	if err != nil {
		c.logger.Warn("classifier: model call failed, falling back: %v", err)
		return c.registry.Fallback()
	}

	label := c.registry.Normalize(raw)
	c.logger.Debug("classifier: model output %q -> %s", strings.TrimSpace(raw), label)
	return label
}

func (c *Classifier) prompt(question, contextText string) string {
	var sb strings.Builder
	sb.WriteString("당신은 소상공인 데이터 분석 챗봇의 질문 분류기입니다.\n")
	sb.WriteString("아래 범주 중 정확히 하나의 라벨만 출력하세요. 설명은 출력하지 마세요.\n\n")
	for _, spec := range c.registry.Specs() {
		fmt.Fprintf(&sb, "- %s: %s\n", spec.Label, spec.Description)
	}
	sb.WriteString("\n일상 대화나 위 범주와 무관한 질문은 ")
	sb.WriteString(string(c.registry.Fallback()))
	sb.WriteString(" 으로 분류하세요.\n")
	if contextText != "" {
		sb.WriteString("\n[최근 대화]\n")
		sb.WriteString(contextText)
		sb.WriteString("\n")
	}
	sb.WriteString("\n[질문]\n")
	sb.WriteString(question)
	sb.WriteString("\n\n라벨:")
	return sb.String()
}
