package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapper_Classify(t *testing.T) {
	m := MustDefault()

	tests := []struct {
		name      string
		tags      []string
		hint      string
		wantKey   string
		wantEmoji string
	}{
		{"bar beats restaurant", []string{"restaurant", "bar"}, "", Bars, "🍸"},
		{"bar with point of interest", []string{"bar", "point_of_interest", "establishment"}, "", Bars, "🍸"},
		{"cafe beats food and store", []string{"food", "store", "cafe"}, "", Cafes, "☕"},
		{"shop beats restaurant", []string{"restaurant", "clothing_store"}, "", Shops, "🛍️"},
		{"attraction beats museum", []string{"museum", "tourist_attraction"}, "", GoOut, "✨"},
		{"gallery only", []string{"art_gallery"}, "", Culture, "🎨"},
		{"park is nature", []string{"park", "point_of_interest"}, "", Nature, "🌳"},
		{"spa is leisure", []string{"spa"}, "", Leisure, "🎭"},
		{"restaurant only", []string{"restaurant", "food"}, "", Eat, "🍜"},
		{"case insensitive", []string{"BAR"}, "", Bars, "🍸"},
		{"unknown tags default to eat", []string{"point_of_interest", "establishment"}, "", Eat, "🍜"},
		{"no tags default to eat", nil, "", Eat, "🍜"},
		{"hint used when tags are generic", []string{"establishment"}, "cocktail bar", Bars, "🍸"},
		{"bucket key as hint", nil, "go_out", GoOut, "✨"},
		{"tags win over hint", []string{"cafe"}, "bar", Cafes, "☕"},
		{"unknown hint defaults", nil, "something", Eat, "🍜"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, emoji := m.Classify(tt.tags, tt.hint)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantEmoji, emoji)
		})
	}
}

func TestMapper_IsImmutable(t *testing.T) {
	tax := DefaultTaxonomy()
	m, err := NewMapper(tax)
	require.NoError(t, err)

	tax.Buckets[0].Keywords[0] = "restaurant"
	tax.Buckets[0].Emoji = "X"

	key, emoji := m.Classify([]string{"bar"}, "")
	assert.Equal(t, Bars, key)
	assert.Equal(t, "🍸", emoji)
}

func TestNewMapper_Validation(t *testing.T) {
	_, err := NewMapper(Taxonomy{})
	assert.Error(t, err)

	_, err = NewMapper(Taxonomy{Default: "missing", Buckets: []Bucket{{Key: Eat}}})
	assert.Error(t, err)

	_, err = NewMapper(Taxonomy{Default: Eat, Buckets: []Bucket{{Key: Eat}, {Key: Eat}}})
	assert.Error(t, err)
}

func TestMapper_Categories(t *testing.T) {
	m := MustDefault()
	cats := m.Categories()
	require.Len(t, cats, 8)
	assert.Equal(t, Bars, cats[0].Key)
	assert.Equal(t, Eat, cats[len(cats)-1].Key)

	assert.Equal(t, DefaultEmoji, m.Emoji("fitness"))
}
