package places

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-radar/internal/app/models"
)

const maxTags = 20

// NewPlace builds the row for a venue the user has not pinned yet. User state starts
// at its defaults; candidate tags are the only user-owned field seeded on creation.
func NewPlace(userID uuid.UUID, venue models.CanonicalVenue, candidate models.PlaceCandidate, now time.Time) models.Place {
	base := models.Place{
		ID:         uuid.New(),
		UserID:     userID,
		IsVisited:  false,
		IsFavorite: false,
		Tags:       NormalizeTags(candidate.Tags),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return MergePlace(base, venue, candidate)
}

// MergePlace applies a resolution to an existing place and returns the new value.
//
// Precedence, field by field:
//   - canonical fields take the venue value when the venue has one, otherwise keep the existing value
//   - external_id is set only when the place has none
//   - provenance is filled from the candidate only where the place has nothing
//   - user state (visited, favorite, notes, tags) and timestamps are never touched
func MergePlace(existing models.Place, venue models.CanonicalVenue, candidate models.PlaceCandidate) models.Place {
	out := existing
	out.Tags = cloneStrings(existing.Tags)
	out.OpeningHours = cloneHours(existing.OpeningHours)

	if existing.ExternalID == nil && venue.ExternalID != "" {
		id := venue.ExternalID
		out.ExternalID = &id
	}

	out.Name = firstNonEmpty(venue.Name, existing.Name)
	out.Address = firstNonEmpty(venue.FormattedAddress, existing.Address)
	out.District = firstNonEmpty(venue.District, existing.District)
	if venue.Lat != 0 || venue.Lng != 0 {
		out.Latitude = venue.Lat
		out.Longitude = venue.Lng
	}
	out.Category = firstNonEmpty(venue.Category, existing.Category)
	out.Emoji = firstNonEmpty(venue.Emoji, existing.Emoji)
	if venue.Rating != nil {
		v := *venue.Rating
		out.Rating = &v
	}
	if venue.RatingCount != nil {
		v := *venue.RatingCount
		out.RatingCount = &v
	}
	if venue.PriceLevel != nil {
		v := *venue.PriceLevel
		out.PriceLevel = &v
	}
	if !venue.OpeningHours.IsEmpty() {
		out.OpeningHours = cloneHours(venue.OpeningHours)
	}
	out.Phone = firstNonEmpty(venue.Phone, existing.Phone)
	out.Website = firstNonEmpty(venue.Website, existing.Website)
	out.PhotoURL = firstNonEmpty(venue.PhotoURL, existing.PhotoURL)

	prov := candidate.Provenance()
	if existing.SourcePlatform == "" {
		out.SourcePlatform = prov.Platform
	}
	if existing.SourceURL == "" {
		out.SourceURL = prov.URL
	}
	if existing.SourceCaption == "" {
		out.SourceCaption = prov.Caption
	}
	if existing.Author == "" {
		out.Author = prov.Author
	}

	return out
}

// FillMissing copies photo and opening hours from the venue only where the place has
// none. It reports whether anything changed.
func FillMissing(existing models.Place, venue models.CanonicalVenue) (models.Place, bool) {
	out := existing
	changed := false
	if existing.PhotoURL == "" && venue.PhotoURL != "" {
		out.PhotoURL = venue.PhotoURL
		changed = true
	}
	if existing.OpeningHours.IsEmpty() && !venue.OpeningHours.IsEmpty() {
		out.OpeningHours = cloneHours(venue.OpeningHours)
		changed = true
	}
	return out, changed
}

// NormalizeTags lowercases, trims and deduplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#")))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneHours(h *models.OpeningHours) *models.OpeningHours {
	if h == nil {
		return nil
	}
	return &models.OpeningHours{OpenNow: h.OpenNow, WeekdayText: cloneStrings(h.WeekdayText)}
}
