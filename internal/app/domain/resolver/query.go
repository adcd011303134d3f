package resolver

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/FACorreiaa/go-radar/internal/app/models"
)

const leadingMarkers = "📍@#\"'“”‘’*-•·"

// CleanName normalises a noisy venue mention into something worth searching for.
func CleanName(raw string) string {
	s := norm.NFKC.String(raw)
	s = strings.TrimSpace(s)
	for {
		trimmed := strings.TrimLeft(s, leadingMarkers)
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == s {
			break
		}
		s = trimmed
	}
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return (unicode.IsPunct(r) && r != ')' && r != '&' && r != '\'') || unicode.IsSpace(r)
	})
	s = strings.Trim(s, `"“”`)
	return strings.Join(strings.Fields(s), " ")
}

// BuildQuery joins the cleaned name, district hint and city into one search string.
// Parts already contained in the name are not repeated.
func BuildQuery(c models.PlaceCandidate, defaultCity string) string {
	name := CleanName(c.RawName)
	if name == "" {
		return ""
	}
	parts := []string{name}
	lower := strings.ToLower(name)

	if d := strings.Join(strings.Fields(c.DistrictHint), " "); d != "" && !strings.Contains(lower, strings.ToLower(d)) {
		parts = append(parts, d)
	}

	city := strings.TrimSpace(c.City)
	if city == "" {
		city = defaultCity
	}
	if city != "" && !strings.Contains(lower, strings.ToLower(city)) {
		parts = append(parts, city)
	}
	return strings.Join(parts, " ")
}
