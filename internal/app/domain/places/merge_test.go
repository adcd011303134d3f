package places

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-radar/internal/app/models"
)

func ptr[T any](v T) *T { return &v }

func barLeoneVenue() models.CanonicalVenue {
	return models.CanonicalVenue{
		ExternalID:       "ext_1",
		Name:             "Bar Leone",
		Lat:              22.2819,
		Lng:              114.1552,
		FormattedAddress: "11-15 Wing Wah Lane, Central, Hong Kong",
		District:         "Central",
		CategorySignals:  []string{"bar", "point_of_interest"},
		Category:         "bars",
		Emoji:            "🍸",
		Rating:           ptr(4.7),
		RatingCount:      ptr(812),
		PhotoURL:         "https://photos.example/leone.jpg",
		OpeningHours:     &models.OpeningHours{OpenNow: true, WeekdayText: []string{"Monday: 5PM-1AM"}},
	}
}

func TestNewPlace(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := models.PlaceCandidate{
		RawName:       "Bar Leone",
		DistrictHint:  "Central",
		SourceCaption: "📍Bar Leone #local",
		SourceURL:     "https://www.instagram.com/p/abc/",
		SourceAuthor:  "hkfoodie",
		Tags:          []string{"#Local", "local", " Cocktail "},
	}

	p := NewPlace(userID, barLeoneVenue(), c, now)

	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, userID, p.UserID)
	require.NotNil(t, p.ExternalID)
	assert.Equal(t, "ext_1", *p.ExternalID)
	assert.Equal(t, "bars", p.Category)
	assert.Equal(t, "Central", p.District)
	assert.Equal(t, models.PlatformManual, p.SourcePlatform)
	assert.Equal(t, "hkfoodie", p.Author)
	assert.False(t, p.IsVisited)
	assert.False(t, p.IsFavorite)
	assert.Nil(t, p.UserNotes)
	assert.Equal(t, []string{"local", "cocktail"}, p.Tags)
	assert.Equal(t, now, p.CreatedAt)
	assert.Equal(t, now, p.UpdatedAt)
}

func TestMergePlace_PreservesUserStateAndExternalID(t *testing.T) {
	existing := models.Place{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		ExternalID:     ptr("ext_original"),
		Name:           "Old name",
		Category:       "eat",
		SourcePlatform: models.PlatformInstagram,
		SourceURL:      "https://www.instagram.com/p/first/",
		IsVisited:      true,
		IsFavorite:     true,
		UserNotes:      ptr("try the negroni"),
		Tags:           []string{"date"},
		CreatedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	venue := barLeoneVenue()
	venue.ExternalID = "ext_other"
	candidate := models.PlaceCandidate{SourcePlatform: models.PlatformTikTok, SourceURL: "https://tiktok.com/x", SourceCaption: "new caption"}

	merged := MergePlace(existing, venue, candidate)

	assert.Equal(t, "ext_original", *merged.ExternalID)
	assert.Equal(t, "Bar Leone", merged.Name)
	assert.Equal(t, "bars", merged.Category)
	assert.True(t, merged.IsVisited)
	assert.True(t, merged.IsFavorite)
	assert.Equal(t, "try the negroni", *merged.UserNotes)
	assert.Equal(t, []string{"date"}, merged.Tags)
	assert.Equal(t, existing.CreatedAt, merged.CreatedAt)
	assert.Equal(t, models.PlatformInstagram, merged.SourcePlatform)
	assert.Equal(t, "https://www.instagram.com/p/first/", merged.SourceURL)
	assert.Equal(t, "new caption", merged.SourceCaption)

	// the input is not mutated
	assert.Equal(t, "Old name", existing.Name)
}

func TestMergePlace_KeepsFieldsTheVenueLacks(t *testing.T) {
	existing := models.Place{
		Name:         "Bar Leone",
		Phone:        "+852 1234 5678",
		Rating:       ptr(4.2),
		OpeningHours: &models.OpeningHours{WeekdayText: []string{"Mon: closed"}},
		Latitude:     22.1,
		Longitude:    114.1,
	}
	venue := models.CanonicalVenue{ExternalID: "ext_1", Name: "Bar Leone HK"}

	merged := MergePlace(existing, venue, models.PlaceCandidate{})

	assert.Equal(t, "Bar Leone HK", merged.Name)
	assert.Equal(t, "+852 1234 5678", merged.Phone)
	assert.Equal(t, 4.2, *merged.Rating)
	assert.Equal(t, []string{"Mon: closed"}, merged.OpeningHours.WeekdayText)
	assert.Equal(t, 22.1, merged.Latitude)
	require.NotNil(t, merged.ExternalID)
	assert.Equal(t, "ext_1", *merged.ExternalID)
}

func TestFillMissing(t *testing.T) {
	venue := barLeoneVenue()
	venue.PhotoURL = "https://photos.example/new.jpg"

	t.Run("photo already set is left alone", func(t *testing.T) {
		existing := models.Place{PhotoURL: "https://photos.example/old.jpg"}
		out, changed := FillMissing(existing, venue)
		assert.True(t, changed)
		assert.Equal(t, "https://photos.example/old.jpg", out.PhotoURL)
		require.NotNil(t, out.OpeningHours)
	})

	t.Run("nothing missing", func(t *testing.T) {
		existing := models.Place{
			PhotoURL:     "https://photos.example/old.jpg",
			OpeningHours: &models.OpeningHours{WeekdayText: []string{"Mon"}},
		}
		out, changed := FillMissing(existing, venue)
		assert.False(t, changed)
		assert.Equal(t, existing, out)
	})

	t.Run("provider has nothing either", func(t *testing.T) {
		out, changed := FillMissing(models.Place{}, models.CanonicalVenue{})
		assert.False(t, changed)
		assert.Empty(t, out.PhotoURL)
	})
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{}, NormalizeTags(nil))
	assert.Equal(t, []string{"local", "family"}, NormalizeTags([]string{"Local", "#local", "", "  FAMILY "}))

	many := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		many = append(many, uuid.NewString())
	}
	assert.Len(t, NormalizeTags(many), maxTags)
}
