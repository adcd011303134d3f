package models

// LatLng is a coordinate pair used for search bias.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SearchQuery is a free-text place search with an optional location bias.
type SearchQuery struct {
	Text         string
	Bias         *LatLng
	RadiusMeters int
}

// SearchResult is one ranked hit from the place-search capability.
type SearchResult struct {
	ExternalID       string   `json:"external_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	Rating           *float64 `json:"rating,omitempty"`
	CategoryTags     []string `json:"category_tags"`
	PhotoReference   string   `json:"photo_reference,omitempty"`
}

// PlaceDetails is the full attribute set returned by the place-details capability.
type PlaceDetails struct {
	ExternalID       string
	Name             string
	FormattedAddress string
	District         string
	Lat              float64
	Lng              float64
	Rating           *float64
	RatingCount      *int
	PriceLevel       *int
	OpeningHours     *OpeningHours
	Phone            string
	Website          string
	CategoryTags     []string
	PhotoReferences  []string
}

// CanonicalVenue is the normalised result of a resolution.
type CanonicalVenue struct {
	ExternalID            string        `json:"external_id"`
	Name                  string        `json:"name"`
	Lat                   float64       `json:"lat"`
	Lng                   float64       `json:"lng"`
	FormattedAddress      string        `json:"formatted_address"`
	District              string        `json:"district"`
	CategorySignals       []string      `json:"category_signals"`
	Category              string        `json:"category"`
	Emoji                 string        `json:"emoji"`
	Rating                *float64      `json:"rating,omitempty"`
	RatingCount           *int          `json:"rating_count,omitempty"`
	PrimaryPhotoReference string        `json:"primary_photo_reference,omitempty"`
	PhotoURL              string        `json:"photo_url,omitempty"`
	OpeningHours          *OpeningHours `json:"opening_hours,omitempty"`
	PriceLevel            *int          `json:"price_level,omitempty"`
	Phone                 string        `json:"phone,omitempty"`
	Website               string        `json:"website,omitempty"`
}
