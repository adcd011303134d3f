// Package category maps provider taxonomy tags onto the closed set of category buckets.
package category

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-radar/internal/app/models"
)

// Category bucket keys.
const (
	Eat     = "eat"
	Cafes   = "cafes"
	Bars    = "bars"
	Shops   = "shops"
	Leisure = "leisure"
	GoOut   = "go_out"
	Nature  = "nature"
	Culture = "culture"
)

// DefaultEmoji is shown for a key outside the taxonomy.
const DefaultEmoji = "📍"

// Bucket is one category and the tags that select it.
type Bucket struct {
	Key      string
	Label    string
	Emoji    string
	Keywords []string
}

// Taxonomy lists buckets in precedence order. The first bucket with a matching
// keyword wins; Default is used when nothing matches.
type Taxonomy struct {
	Buckets []Bucket
	Default string
}

// DefaultTaxonomy returns the built-in bucket table. Restaurant/food is checked
// last because most venues carry it as a secondary tag.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Default: Eat,
		Buckets: []Bucket{
			{Key: Bars, Label: "Bars", Emoji: "🍸", Keywords: []string{
				"bar", "night_club", "liquor_store", "pub", "wine_bar", "cocktail_bar",
				"cocktail", "cocktails", "wine", "beer", "brewery", "nightlife", "speakeasy",
			}},
			{Key: Cafes, Label: "Cafes", Emoji: "☕", Keywords: []string{
				"cafe", "coffee_shop", "coffee", "espresso", "latte", "bakery", "tea_house", "dessert_shop",
			}},
			{Key: Shops, Label: "Shops", Emoji: "🛍️", Keywords: []string{
				"store", "shopping_mall", "clothing_store", "book_store", "shoe_store", "jewelry_store",
				"department_store", "home_goods_store", "furniture_store", "florist", "gift_shop",
				"shop", "shopping", "boutique", "retail", "market",
			}},
			{Key: Leisure, Label: "Leisure", Emoji: "🎭", Keywords: []string{
				"spa", "gym", "bowling_alley", "movie_theater", "amusement_park", "aquarium", "zoo",
				"casino", "beauty_salon", "cinema", "theater", "theatre", "entertainment", "activity",
			}},
			{Key: GoOut, Label: "Go out", Emoji: "✨", Keywords: []string{
				"tourist_attraction", "stadium", "event_venue", "concert_hall", "performing_arts_theater",
				"event", "party", "club", "experience", "rooftop",
			}},
			{Key: Nature, Label: "Nature", Emoji: "🌳", Keywords: []string{
				"park", "natural_feature", "campground", "hiking_area", "beach", "national_park",
				"hiking", "nature", "outdoor", "garden",
			}},
			{Key: Culture, Label: "Culture", Emoji: "🎨", Keywords: []string{
				"museum", "art_gallery", "library", "church", "hindu_temple", "buddhist_temple",
				"gallery", "art", "exhibition", "culture", "heritage",
			}},
			{Key: Eat, Label: "Eat", Emoji: "🍜", Keywords: []string{
				"restaurant", "food", "meal_takeaway", "meal_delivery", "dining", "cuisine",
				"noodles", "dim_sum", "brunch",
			}},
		},
	}
}

// Mapper is an immutable lookup built from a Taxonomy.
type Mapper struct {
	buckets    []Bucket
	index      map[string]int
	keywordSet []map[string]struct{}
	fallback   int
}

// NewMapper copies the taxonomy into a read-only mapper.
func NewMapper(t Taxonomy) (*Mapper, error) {
	if len(t.Buckets) == 0 {
		return nil, fmt.Errorf("taxonomy has no buckets")
	}
	m := &Mapper{
		buckets:    make([]Bucket, len(t.Buckets)),
		index:      make(map[string]int, len(t.Buckets)),
		keywordSet: make([]map[string]struct{}, len(t.Buckets)),
		fallback:   -1,
	}
	for i, b := range t.Buckets {
		if _, dup := m.index[b.Key]; dup {
			return nil, fmt.Errorf("duplicate category %q", b.Key)
		}
		b.Keywords = append([]string(nil), b.Keywords...)
		m.buckets[i] = b
		m.index[b.Key] = i
		set := make(map[string]struct{}, len(b.Keywords)+1)
		set[normalize(b.Key)] = struct{}{}
		for _, kw := range b.Keywords {
			set[normalize(kw)] = struct{}{}
		}
		m.keywordSet[i] = set
		if b.Key == t.Default {
			m.fallback = i
		}
	}
	if m.fallback < 0 {
		return nil, fmt.Errorf("default category %q is not a bucket", t.Default)
	}
	return m, nil
}

// MustDefault returns a mapper over DefaultTaxonomy.
func MustDefault() *Mapper {
	m, err := NewMapper(DefaultTaxonomy())
	if err != nil {
		panic(err)
	}
	return m
}

// FromTags returns the first bucket, in precedence order, selected by any tag.
func (m *Mapper) FromTags(tags []string) (string, bool) {
	if len(tags) == 0 {
		return "", false
	}
	normalized := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := normalize(t); n != "" {
			normalized = append(normalized, n)
		}
	}
	for i, set := range m.keywordSet {
		for _, t := range normalized {
			if _, ok := set[t]; ok {
				return m.buckets[i].Key, true
			}
		}
	}
	return "", false
}

// Classify picks a category from provider tags, then the free-text hint, then the default.
func (m *Mapper) Classify(tags []string, hint string) (key, emoji string) {
	if k, ok := m.FromTags(tags); ok {
		return k, m.Emoji(k)
	}
	if hint != "" {
		words := strings.FieldsFunc(strings.ToLower(hint), func(r rune) bool {
			return r == ',' || r == '/' || r == ' ' || r == '&'
		})
		if k, ok := m.FromTags(append([]string{hint}, words...)); ok {
			return k, m.Emoji(k)
		}
	}
	k := m.buckets[m.fallback].Key
	return k, m.Emoji(k)
}

// Emoji returns the glyph for a bucket key.
func (m *Mapper) Emoji(key string) string {
	if i, ok := m.index[key]; ok {
		return m.buckets[i].Emoji
	}
	return DefaultEmoji
}

// Categories lists the buckets for display.
func (m *Mapper) Categories() []models.CategoryInfo {
	out := make([]models.CategoryInfo, 0, len(m.buckets))
	for _, b := range m.buckets {
		out = append(out, models.CategoryInfo{Key: b.Key, Label: b.Label, Emoji: b.Emoji})
	}
	return out
}

func normalize(tag string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), " ", "_")
}
