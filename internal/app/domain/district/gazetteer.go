// Package district matches free text against a fixed list of neighbourhood names.
package district

import (
	"strings"
	"sync"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Entry is a district and the alternative spellings that refer to it.
type Entry struct {
	Name    string
	Aliases []string
}

// Gazetteer finds districts by whole-word, case-insensitive literal match.
// When several districts occur in the same text, the one listed first wins.
type Gazetteer struct {
	entries  []Entry
	patterns []string
	owner    []int // pattern index -> entry index

	mu      sync.Mutex // FindAll is not documented as safe for concurrent use
	matcher ahocorasick.AhoCorasick
	title   cases.Caser
}

// New builds a gazetteer. Entry order is the match precedence.
func New(entries []Entry) *Gazetteer {
	g := &Gazetteer{
		entries: make([]Entry, len(entries)),
		title:   cases.Title(language.English),
	}
	for i, e := range entries {
		g.entries[i] = Entry{Name: e.Name, Aliases: append([]string(nil), e.Aliases...)}
		g.patterns = append(g.patterns, e.Name)
		g.owner = append(g.owner, i)
		for _, a := range e.Aliases {
			g.patterns = append(g.patterns, a)
			g.owner = append(g.owner, i)
		}
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
		DFA:                  true,
	})
	g.matcher = builder.Build(g.patterns)
	return g
}

// Match returns the highest-precedence district mentioned in text.
func (g *Gazetteer) Match(text string) (string, bool) {
	if strings.TrimSpace(text) == "" || len(g.patterns) == 0 {
		return "", false
	}

	g.mu.Lock()
	matches := g.matcher.FindAll(text)
	g.mu.Unlock()

	best := -1
	for i := range matches {
		entry := g.owner[matches[i].Pattern()]
		if best == -1 || entry < best {
			best = entry
		}
	}
	if best == -1 {
		return "", false
	}
	return g.entries[best].Name, true
}

// Canonical turns a free-text district hint into a gazetteer name when it names
// one, and otherwise returns the trimmed hint in title case.
func (g *Gazetteer) Canonical(hint string) string {
	hint = strings.Join(strings.Fields(hint), " ")
	if hint == "" {
		return ""
	}
	if name, ok := g.Match(hint); ok {
		return name
	}
	return g.title.String(strings.ToLower(hint))
}

// Names lists the canonical district names in precedence order.
func (g *Gazetteer) Names() []string {
	out := make([]string, len(g.entries))
	for i, e := range g.entries {
		out[i] = e.Name
	}
	return out
}

// HongKong returns the built-in Hong Kong district list.
func HongKong() []Entry {
	return []Entry{
		{Name: "Central"},
		{Name: "Sheung Wan"},
		{Name: "Wan Chai", Aliases: []string{"Wanchai"}},
		{Name: "Causeway Bay", Aliases: []string{"CWB"}},
		{Name: "Tsim Sha Tsui", Aliases: []string{"TST"}},
		{Name: "Mong Kok", Aliases: []string{"Mongkok"}},
		{Name: "Yau Ma Tei"},
		{Name: "Jordan"},
		{Name: "Sai Ying Pun", Aliases: []string{"SYP"}},
		{Name: "Kennedy Town"},
		{Name: "Admiralty"},
		{Name: "Quarry Bay"},
		{Name: "Tai Koo", Aliases: []string{"Taikoo"}},
		{Name: "Tai Hang"},
		{Name: "Happy Valley"},
		{Name: "Tin Hau"},
		{Name: "Fortress Hill"},
		{Name: "North Point"},
		{Name: "Sai Wan Ho"},
		{Name: "Shau Kei Wan"},
		{Name: "Chai Wan"},
		{Name: "Mid-Levels", Aliases: []string{"Mid Levels"}},
		{Name: "Stanley"},
		{Name: "Repulse Bay"},
		{Name: "Aberdeen"},
		{Name: "Wong Chuk Hang"},
		{Name: "Ap Lei Chau"},
		{Name: "Hung Hom"},
		{Name: "To Kwa Wan"},
		{Name: "Kowloon City"},
		{Name: "Kowloon Tong"},
		{Name: "Diamond Hill"},
		{Name: "Wong Tai Sin"},
		{Name: "Kwun Tong"},
		{Name: "Ngau Tau Kok"},
		{Name: "Lam Tin"},
		{Name: "Yau Tong"},
		{Name: "Prince Edward"},
		{Name: "Sham Shui Po", Aliases: []string{"SSP"}},
		{Name: "Cheung Sha Wan"},
		{Name: "Lai Chi Kok"},
		{Name: "Mei Foo"},
		{Name: "Tsuen Wan"},
		{Name: "Kwai Chung"},
		{Name: "Tsing Yi"},
		{Name: "Tuen Mun"},
		{Name: "Yuen Long"},
		{Name: "Tin Shui Wai"},
		{Name: "Sheung Shui"},
		{Name: "Fanling"},
		{Name: "Tai Po"},
		{Name: "Sha Tin", Aliases: []string{"Shatin"}},
		{Name: "Ma On Shan"},
		{Name: "Sai Kung"},
		{Name: "Tseung Kwan O", Aliases: []string{"TKO"}},
		{Name: "Tung Chung"},
		{Name: "Discovery Bay"},
	}
}
