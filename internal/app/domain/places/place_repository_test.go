package places

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/models"
)

func newMockRepo(t *testing.T) (*RepositoryImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewRepositoryImpl(pool, zap.NewNop()), pool
}

func placeRows(places ...models.Place) *pgxmock.Rows {
	rows := pgxmock.NewRows(PlaceColumns)
	for _, p := range places {
		hours := []byte(`{"open_now":true,"weekday_text":["Monday: 5PM-1AM"]}`)
		rows.AddRow(
			p.ID, p.UserID, p.ExternalID, p.Name, p.Address, p.District, p.Latitude, p.Longitude,
			p.Category, p.Emoji, p.Rating, p.RatingCount, p.PriceLevel, hours,
			p.Phone, p.Website, p.PhotoURL, p.SourcePlatform, p.SourceURL, p.SourceCaption,
			p.Author, p.IsVisited, p.IsFavorite, p.UserNotes, p.Tags, p.CreatedAt, p.UpdatedAt,
		)
	}
	return rows
}

func samplePlace(userID uuid.UUID) models.Place {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.Place{
		ID:             uuid.New(),
		UserID:         userID,
		ExternalID:     ptr("ext_1"),
		Name:           "Bar Leone",
		Address:        "11-15 Bridges St, Central",
		District:       "Central",
		Latitude:       22.2839,
		Longitude:      114.1507,
		Category:       "bars",
		Emoji:          "🍸",
		Rating:         ptr(4.7),
		RatingCount:    ptr(812),
		PriceLevel:     ptr(3),
		SourcePlatform: models.PlatformInstagram,
		UserNotes:      ptr(""),
		Tags:           []string{"cocktail"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestRepositoryInsert(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	place := samplePlace(userID)

	t.Run("created", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectQuery("INSERT INTO places").WillReturnRows(placeRows(place))

		res, err := repo.Insert(ctx, place)
		require.NoError(t, err)
		assert.Equal(t, InsertCreated, res.Outcome)
		assert.Equal(t, place.ID, res.Place.ID)
		require.NotNil(t, res.Place.OpeningHours)
		assert.True(t, res.Place.OpeningHours.OpenNow)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("unique violation is a conflict outcome", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectQuery("INSERT INTO places").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "places_user_external_id_uidx"})

		res, err := repo.Insert(ctx, place)
		require.NoError(t, err)
		assert.Equal(t, InsertConflict, res.Outcome)
		assert.Nil(t, res.Place)
	})

	t.Run("other errors surface", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectQuery("INSERT INTO places").WillReturnError(errors.New("connection refused"))

		_, err := repo.Insert(ctx, place)
		assert.Error(t, err)
	})
}

func TestRepositoryFindByExternalID(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	place := samplePlace(userID)

	t.Run("found", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectQuery(`FROM places WHERE user_id = \$1 AND external_id = \$2`).
			WithArgs(userID, "ext_1").
			WillReturnRows(placeRows(place))

		got, err := repo.FindByExternalID(ctx, userID, "ext_1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Bar Leone", got.Name)
		assert.Equal(t, 812, *got.RatingCount)
	})

	t.Run("missing is nil without error", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectQuery(`FROM places WHERE user_id = \$1 AND external_id = \$2`).
			WithArgs(userID, "ext_404").
			WillReturnRows(pgxmock.NewRows(PlaceColumns))

		got, err := repo.FindByExternalID(ctx, userID, "ext_404")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRepositoryGetByIDNotFound(t *testing.T) {
	repo, pool := newMockRepo(t)
	userID, placeID := uuid.New(), uuid.New()
	pool.ExpectQuery(`FROM places WHERE id = \$1 AND user_id = \$2`).
		WithArgs(placeID, userID).
		WillReturnRows(pgxmock.NewRows(PlaceColumns))

	_, err := repo.GetByID(context.Background(), userID, placeID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRepositoryListAppliesFilters(t *testing.T) {
	repo, pool := newMockRepo(t)
	userID := uuid.New()
	visited := false

	pool.ExpectQuery(`SELECT .+ FROM places WHERE user_id = \$1 AND category = \$2 AND district ILIKE \$3 AND is_favorite = \$4 AND is_visited = \$5 ORDER BY created_at DESC, id LIMIT 20`).
		WithArgs(userID, "bars", "Central", true, false).
		WillReturnRows(placeRows(samplePlace(userID), samplePlace(userID)))

	places, err := repo.List(context.Background(), models.PlaceFilter{
		UserID:        userID,
		Category:      "bars",
		District:      "Central",
		FavoritesOnly: true,
		Visited:       &visited,
		Limit:         20,
	})
	require.NoError(t, err)
	assert.Len(t, places, 2)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepositoryUpdateUserState(t *testing.T) {
	repo, pool := newMockRepo(t)
	userID := uuid.New()
	place := samplePlace(userID)
	place.IsVisited = true

	pool.ExpectQuery(`UPDATE places SET updated_at = NOW\(\), is_visited = \$1 WHERE id = \$2 AND user_id = \$3 RETURNING`).
		WithArgs(true, place.ID, userID).
		WillReturnRows(placeRows(place))

	got, err := repo.UpdateUserState(context.Background(), userID, place.ID, models.UpdatePlaceParams{IsVisited: ptr(true)})
	require.NoError(t, err)
	assert.True(t, got.IsVisited)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepositoryFillMissingDetails(t *testing.T) {
	repo, pool := newMockRepo(t)
	placeID := uuid.New()

	pool.ExpectExec(`UPDATE places SET\s+opening_hours = COALESCE\(opening_hours, \$2\)`).
		WithArgs(placeID, pgxmock.AnyArg(), "https://photos.test/ref").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	updated, err := repo.FillMissingDetails(context.Background(), placeID,
		&models.OpeningHours{WeekdayText: []string{"Mon"}}, "https://photos.test/ref")
	require.NoError(t, err)
	assert.True(t, updated)
}

func TestRepositoryDelete(t *testing.T) {
	userID, placeID := uuid.New(), uuid.New()

	t.Run("deleted", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectExec(`DELETE FROM places WHERE id = \$1 AND user_id = \$2`).
			WithArgs(placeID, userID).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		assert.NoError(t, repo.Delete(context.Background(), userID, placeID))
	})

	t.Run("not found", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectExec(`DELETE FROM places`).
			WithArgs(placeID, userID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		assert.ErrorIs(t, repo.Delete(context.Background(), userID, placeID), models.ErrNotFound)
	})
}
