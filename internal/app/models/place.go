package models

import (
	"time"

	"github.com/google/uuid"
)

// OpeningHours is stored as JSONB on the place row.
type OpeningHours struct {
	OpenNow     bool     `json:"open_now"`
	WeekdayText []string `json:"weekday_text"`
}

// IsEmpty reports whether there is nothing worth persisting.
func (h *OpeningHours) IsEmpty() bool {
	return h == nil || len(h.WeekdayText) == 0
}

// Place is a user's pinned copy of a venue.
type Place struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	ExternalID *string   `json:"external_id,omitempty"`

	Name         string        `json:"name"`
	Address      string        `json:"address"`
	District     string        `json:"district"`
	Latitude     float64       `json:"lat"`
	Longitude    float64       `json:"lng"`
	Category     string        `json:"category"`
	Emoji        string        `json:"emoji"`
	Rating       *float64      `json:"rating,omitempty"`
	RatingCount  *int          `json:"rating_count,omitempty"`
	PriceLevel   *int          `json:"price_level,omitempty"`
	OpeningHours *OpeningHours `json:"opening_hours,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Website      string        `json:"website,omitempty"`
	PhotoURL     string        `json:"photo_url,omitempty"`

	SourcePlatform string `json:"source_platform"`
	SourceURL      string `json:"source_url,omitempty"`
	SourceCaption  string `json:"source_caption,omitempty"`
	Author         string `json:"author,omitempty"`

	IsVisited  bool     `json:"is_visited"`
	IsFavorite bool     `json:"is_favorite"`
	UserNotes  *string  `json:"user_notes,omitempty"`
	Tags       []string `json:"tags"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExternalIDValue returns the external id or "" for unmatched places.
func (p *Place) ExternalIDValue() string {
	if p == nil || p.ExternalID == nil {
		return ""
	}
	return *p.ExternalID
}

// NeedsBackfill reports whether the place is missing provider data that a refresh can fill.
func (p *Place) NeedsBackfill() bool {
	return p.ExternalIDValue() != "" && (p.PhotoURL == "" || p.OpeningHours.IsEmpty())
}

// PlaceFilter narrows ListPlaces. Zero values mean "no filter".
type PlaceFilter struct {
	UserID        uuid.UUID `form:"-"`
	Category      string    `form:"category"`
	District      string    `form:"district"`
	FavoritesOnly bool      `form:"favorites_only"`
	Visited       *bool     `form:"visited"`
	Limit         uint64    `form:"limit"`
}

// UpdatePlaceParams carries the user-state fields a user may change. Nil means unchanged.
type UpdatePlaceParams struct {
	IsVisited  *bool     `json:"is_visited"`
	IsFavorite *bool     `json:"is_favorite"`
	UserNotes  *string   `json:"user_notes"`
	Tags       *[]string `json:"tags"`
}

// IsEmpty reports whether the update changes nothing.
func (u UpdatePlaceParams) IsEmpty() bool {
	return u.IsVisited == nil && u.IsFavorite == nil && u.UserNotes == nil && u.Tags == nil
}
