package chatbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(
		BackendSpec{Label: "A", Kind: BackendStructured},
	)
	assert.ErrorIs(t, err, ErrNoFallback)

	_, err = NewRegistry(
		BackendSpec{Label: "A", Kind: BackendStructured},
		BackendSpec{Label: "A", Kind: BackendFallback},
	)
	assert.ErrorIs(t, err, ErrDuplicateLabel)

	_, err = NewRegistry(
		BackendSpec{Label: "A", Kind: BackendStructured, VenuePatterns: []string{"("}},
		BackendSpec{Label: "B", Kind: BackendFallback},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "venue pattern")
}

func TestRegistryNormalize(t *testing.T) {
	t.Parallel()

	registry := DefaultRegistry()

	tests := []struct {
		name string
		raw  string
		want Label
	}{
		{"exact", "SALES", LabelSales},
		{"lowercase", "policy", LabelPolicy},
		{"padded", "  OPERATIONS \n", LabelOperations},
		{"quoted", `"SALES"`, LabelSales},
		{"label with prose", "SALES: 매출 관련 질문입니다", LabelSales},
		{"garbage", "I cannot classify this", LabelFallback},
		{"empty", "", LabelFallback},
		{"unknown label", "MARKETING", LabelFallback},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, registry.Normalize(tt.raw))
		})
	}
}

func TestDefaultRegistryShape(t *testing.T) {
	t.Parallel()

	registry := DefaultRegistry()
	assert.Equal(t, LabelFallback, registry.Fallback())

	spec, ok := registry.Lookup(LabelOperations)
	require.True(t, ok)
	assert.Equal(t, BackendStructured, spec.Kind)
	assert.NotEmpty(t, spec.VenuePatterns)

	spec, ok = registry.Lookup(LabelPolicy)
	require.True(t, ok)
	assert.Equal(t, BackendRetrieval, spec.Kind)
}

func TestFallbackRespondIsDeterministic(t *testing.T) {
	t.Parallel()

	fallback := NewFallback(DefaultRegistry())
	first := fallback.Respond()
	assert.Equal(t, first, fallback.Respond())
	assert.Contains(t, first, fallbackHeader)
	assert.Contains(t, first, "지난 달 매출 랭킹 상위 5개 업종을 알려줘")
}
