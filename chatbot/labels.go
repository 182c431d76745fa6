package chatbot

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Label identifies one backend route. The set of valid labels is closed per
// Registry; raw classifier output is normalized against it and anything
// outside the set collapses to the fallback label.
type Label string

// Default routing labels.
const (
	LabelSales      Label = "SALES"
	LabelOperations Label = "OPERATIONS"
	LabelPolicy     Label = "POLICY"
	LabelFallback   Label = "FALLBACK"
)

// BackendKind discriminates how a routed question is answered.
type BackendKind int

const (
	// BackendStructured routes to a conversational structured-query space.
	BackendStructured BackendKind = iota
	// BackendRetrieval routes to the document retrieval backend.
	BackendRetrieval
	// BackendFallback produces deterministic guidance without any backend.
	BackendFallback
)

// BackendSpec declares one routing target: its label, how it answers, and
// the material the classifier and the fallback guidance are built from.
type BackendSpec struct {
	Label       Label
	Kind        BackendKind
	Description string

	// Keywords route deterministically before the model is consulted.
	Keywords []string

	// VenuePatterns are regular expressions matched against the question;
	// a hit forces this label regardless of keywords or model output.
	VenuePatterns []string

	// Examples seed the fallback guidance shown for unroutable questions.
	Examples []string
}

var (
	// ErrNoFallback is returned when a registry declares no fallback label.
	ErrNoFallback = errors.New("registry requires exactly one fallback backend")

	// ErrDuplicateLabel is returned when two specs share a label.
	ErrDuplicateLabel = errors.New("duplicate backend label")
)

// Registry is the closed set of routing targets for one deployment.
type Registry struct {
	specs    []BackendSpec
	byLabel  map[Label]BackendSpec
	fallback Label
}

// NewRegistry validates the specs and builds a registry. Exactly one spec
// must have BackendFallback kind and labels must be unique.
func NewRegistry(specs ...BackendSpec) (*Registry, error) {
	r := &Registry{
		specs:   specs,
		byLabel: make(map[Label]BackendSpec, len(specs)),
	}
	fallbacks := 0
	for _, spec := range specs {
		if spec.Label == "" {
			return nil, errors.New("backend label must not be empty")
		}
		if _, exists := r.byLabel[spec.Label]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLabel, spec.Label)
		}
		for _, pattern := range spec.VenuePatterns {
			if _, err := regexp.Compile(pattern); err != nil {
				return nil, fmt.Errorf("invalid venue pattern %q for %s: %w", pattern, spec.Label, err)
			}
		}
		r.byLabel[spec.Label] = spec
		if spec.Kind == BackendFallback {
			fallbacks++
			r.fallback = spec.Label
		}
	}
	if fallbacks != 1 {
		return nil, ErrNoFallback
	}
	return r, nil
}

// DefaultRegistry returns the stock StorePulse routing configuration:
// sales analytics, store operations analytics, policy document retrieval
// and the fallback.
func DefaultRegistry() *Registry {
	registry, err := NewRegistry(
		BackendSpec{
			Label:       LabelSales,
			Kind:        BackendStructured,
			Description: "매출, 수익, 판매 실적, 매출 랭킹, 기간별 매출 추이 등 매출 데이터 분석",
			Keywords:    []string{"매출", "수익", "판매", "랭킹", "실적"},
			Examples: []string{
				"지난 달 매출 랭킹 상위 5개 업종을 알려줘",
				"최근 3개월 매출 추이를 보여줘",
			},
		},
		BackendSpec{
			Label:       LabelOperations,
			Kind:        BackendStructured,
			Description: "점포 운영 현황, 개업/폐업 통계, 상권 분석, 특정 점포 관련 질문",
			Keywords:    []string{"폐업", "개업", "점포", "상권", "운영"},
			VenuePatterns: []string{
				`\S+(점|지점)(\s|$)`,
				`\S+(카페|식당|마트|상회|슈퍼)(\s|$)`,
			},
			Examples: []string{
				"우리 동네 폐업률이 어떻게 되나요?",
				"강남역 상권의 개업 점포 수를 알려줘",
			},
		},
		BackendSpec{
			Label:       LabelPolicy,
			Kind:        BackendRetrieval,
			Description: "소상공인 지원 정책, 지원금, 정부 지원사업 안내",
			Keywords:    []string{"지원금", "지원사업", "정책", "보조금"},
			Examples: []string{
				"폐업 소상공인이 받을 수 있는 지원금이 있나요?",
				"재창업 지원사업 신청 방법을 알려줘",
			},
		},
		BackendSpec{
			Label:       LabelFallback,
			Kind:        BackendFallback,
			Description: "위의 어느 범주에도 속하지 않는 질문",
		},
	)
	if err != nil {
		panic(err)
	}
	return registry
}

// Specs returns the registered backends in declaration order.
func (r *Registry) Specs() []BackendSpec {
	return r.specs
}

// Lookup returns the spec for a label.
func (r *Registry) Lookup(label Label) (BackendSpec, bool) {
	spec, ok := r.byLabel[label]
	return spec, ok
}

// Fallback returns the fallback label.
func (r *Registry) Fallback() Label {
	return r.fallback
}

// Normalize maps raw classifier output onto the closed label set. Anything
// that is not exactly one registered label, after trimming and upper-casing,
// becomes the fallback label.
func (r *Registry) Normalize(raw string) Label {
	candidate := Label(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := r.byLabel[candidate]; ok {
		return candidate
	}
	// Models occasionally wrap the label in prose; accept a sole exact
	// label token on the first line.
	firstLine := raw
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	for _, field := range strings.Fields(firstLine) {
		candidate = Label(strings.ToUpper(strings.Trim(field, `"'.,:`)))
		if _, ok := r.byLabel[candidate]; ok {
			return candidate
		}
	}
	return r.fallback
}
