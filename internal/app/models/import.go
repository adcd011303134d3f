package models

// ImportResult is the outcome of an idempotent import. Created is false when the
// user had already pinned the venue and the existing row was returned.
type ImportResult struct {
	Place   *Place `json:"place"`
	Created bool   `json:"created"`
}

// ImportOutcome reports one candidate of a URL or bulk import.
type ImportOutcome struct {
	Candidate PlaceCandidate `json:"candidate"`
	Place     *Place         `json:"place,omitempty"`
	Created   bool           `json:"created"`
	Error     string         `json:"error,omitempty"`
}

// BulkImportResult summarises a bulk pin.
type BulkImportResult struct {
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Outcomes  []ImportOutcome `json:"outcomes"`
}

// URLImportResult is returned by an import from a social link.
type URLImportResult struct {
	Metadata *LinkMetadata   `json:"metadata,omitempty"`
	Outcomes []ImportOutcome `json:"outcomes"`
}

// RankedPlace is a place in an aggregation view.
type RankedPlace struct {
	Place     Place   `json:"place"`
	Score     float64 `json:"score,omitempty"`
	SaveCount int     `json:"save_count,omitempty"`
}

// CategoryInfo describes one category bucket.
type CategoryInfo struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Emoji string `json:"emoji"`
}
