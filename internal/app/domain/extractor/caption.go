package extractor

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/FACorreiaa/go-radar/internal/app/models"
)

const (
	maxTags       = 10
	maxCandidates = 10
)

var (
	pinPattern     = regexp.MustCompile(`📍[ \t\x{00A0}]*([^\n📍#@]+)`)
	hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	authorPattern  = regexp.MustCompile(`^@?([\w.]+) on (?:Instagram|TikTok)`)

	// connectives that end a venue name inside a pin segment
	nameBreaks = []string{", ", " at ", " in ", " - ", " – ", " — ", " | ", " / ", " · "}

	tagVocabulary = []string{
		"local", "independent", "family", "small", "neighborhood", "neighbourhood",
		"rooftop", "brunch", "cocktail", "cocktails", "coffee", "dessert", "dimsum",
		"hidden", "vegan", "vegetarian", "seafood", "omakase", "aesthetic", "view",
		"date", "michelin", "hiking", "beach", "gallery", "vintage",
	}
)

// PinnedMention is one "📍 name" mention with whatever followed the name.
type PinnedMention struct {
	Name string
	Rest string
}

// ExtractPinned returns every pin-marked mention in caption order.
func ExtractPinned(text string) []PinnedMention {
	var out []PinnedMention
	seen := map[string]bool{}
	for _, m := range pinPattern.FindAllStringSubmatch(text, -1) {
		name, rest := splitSegment(m[1])
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, PinnedMention{Name: name, Rest: rest})
		if len(out) == maxCandidates {
			break
		}
	}
	return out
}

func splitSegment(seg string) (name, rest string) {
	cut := len(seg)
	sepLen := 0
	lower := strings.ToLower(seg)
	for _, b := range nameBreaks {
		if i := strings.Index(lower, b); i >= 0 && i < cut {
			cut, sepLen = i, len(b)
		}
	}
	name = seg[:cut]
	if cut < len(seg) {
		rest = strings.TrimSpace(seg[cut+sepLen:])
	}

	// A Latin name followed by its CJK spelling keeps only the Latin part.
	if idx := firstCJK(name); idx > 0 {
		name = name[:idx]
	}
	return trimName(name), rest
}

func firstCJK(s string) int {
	for i, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return i
		}
	}
	return -1
}

func trimName(s string) string {
	s = strings.TrimRightFunc(s, func(r rune) bool {
		if r == ')' || r == '\'' || r == '&' {
			return false
		}
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsMark(r)
	})
	return strings.Join(strings.Fields(s), " ")
}

// ExtractTags collects hashtags then vocabulary words, lowercased and deduplicated.
func ExtractTags(text string) []string {
	tags := make([]string, 0, maxTags)
	seen := map[string]bool{}
	add := func(t string) bool {
		t = strings.ToLower(t)
		if t == "" || seen[t] {
			return len(tags) < maxTags
		}
		seen[t] = true
		tags = append(tags, t)
		return len(tags) < maxTags
	}

	for _, m := range hashtagPattern.FindAllStringSubmatch(text, -1) {
		if !add(m[1]) {
			return tags
		}
	}

	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		words[w] = true
	}
	for _, v := range tagVocabulary {
		if words[v] {
			if !add(v) {
				break
			}
		}
	}
	return tags
}

// DetectPlatform maps a source URL host onto a source platform.
func DetectPlatform(sourceURL string) string {
	if strings.TrimSpace(sourceURL) == "" {
		return models.PlatformManual
	}
	u, err := url.Parse(sourceURL)
	if err != nil || u.Host == "" {
		return models.PlatformWeb
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "instagram.com" || strings.HasSuffix(host, ".instagram.com") || host == "instagr.am":
		return models.PlatformInstagram
	case host == "xiaohongshu.com" || strings.HasSuffix(host, ".xiaohongshu.com") || host == "xhslink.com":
		return models.PlatformRed
	case host == "tiktok.com" || strings.HasSuffix(host, ".tiktok.com"):
		return models.PlatformTikTok
	default:
		return models.PlatformWeb
	}
}

// AuthorFromTitle pulls the account name out of titles like "hkfoodie on Instagram: ...".
func AuthorFromTitle(title string) string {
	m := authorPattern.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return ""
	}
	return m[1]
}
