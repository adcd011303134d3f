package models

// Source platforms a candidate can come from.
const (
	PlatformInstagram = "instagram"
	PlatformRed       = "red"
	PlatformTikTok    = "tiktok"
	PlatformManual    = "manual"
	PlatformWeb       = "web"
)

// PlaceCandidate is an unresolved place mention. It is never stored.
type PlaceCandidate struct {
	RawName        string   `json:"raw_name" validate:"required,max=200"`
	DistrictHint   string   `json:"district_hint,omitempty" validate:"max=100"`
	CategoryHint   string   `json:"category_hint,omitempty" validate:"max=50"`
	City           string   `json:"city,omitempty" validate:"max=100"`
	ApproxLat      *float64 `json:"approx_lat,omitempty" validate:"omitempty,latitude"`
	ApproxLng      *float64 `json:"approx_lng,omitempty" validate:"omitempty,longitude"`
	Confidence     float64  `json:"confidence" validate:"gte=0,lte=1"`
	SourceCaption  string   `json:"source_caption,omitempty"`
	SourceAuthor   string   `json:"source_author,omitempty"`
	SourceURL      string   `json:"source_url,omitempty" validate:"omitempty,url"`
	SourcePlatform string   `json:"source_platform,omitempty" validate:"omitempty,oneof=instagram red tiktok manual web"`
	Tags           []string `json:"tags,omitempty" validate:"max=20,dive,max=50"`
}

// HasLocation reports whether a location bias can be applied.
func (c PlaceCandidate) HasLocation() bool {
	return c.ApproxLat != nil && c.ApproxLng != nil
}

// Provenance returns the candidate fields copied onto a new place.
func (c PlaceCandidate) Provenance() Provenance {
	platform := c.SourcePlatform
	if platform == "" {
		platform = PlatformManual
	}
	return Provenance{
		Platform: platform,
		URL:      c.SourceURL,
		Caption:  c.SourceCaption,
		Author:   c.SourceAuthor,
	}
}

// Provenance records where a pin came from.
type Provenance struct {
	Platform string `json:"source_platform"`
	URL      string `json:"source_url,omitempty"`
	Caption  string `json:"source_caption,omitempty"`
	Author   string `json:"author,omitempty"`
}

// LinkMetadata is what the metadata fetcher knows about a social link.
type LinkMetadata struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Caption is the text the extractor works on.
func (m *LinkMetadata) Caption() string {
	switch {
	case m.Description != "" && m.Title != "":
		return m.Title + "\n" + m.Description
	case m.Description != "":
		return m.Description
	default:
		return m.Title
	}
}
