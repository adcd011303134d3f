package discover

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/middleware"
	"github.com/FACorreiaa/go-radar/internal/app/models"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

// sliceRepository answers the aggregation queries from a fixed slice of places.
type sliceRepository struct {
	places []models.Place
	err    error
}

func (r *sliceRepository) CountSavesSince(_ context.Context, since time.Time) ([]SaveCount, error) {
	if r.err != nil {
		return nil, r.err
	}
	byID := map[string]*SaveCount{}
	for _, p := range r.places {
		id := p.ExternalIDValue()
		if id == "" || p.CreatedAt.Before(since) {
			continue
		}
		c, ok := byID[id]
		if !ok {
			c = &SaveCount{ExternalID: id}
			byID[id] = c
		}
		c.Count++
		if p.CreatedAt.After(c.LastSavedAt) {
			c.LastSavedAt = p.CreatedAt
		}
	}
	out := make([]SaveCount, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	return out, nil
}

func (r *sliceRepository) LatestByExternalIDs(_ context.Context, ids []string) ([]models.Place, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	latest := map[string]models.Place{}
	for _, p := range r.places {
		id := p.ExternalIDValue()
		if !want[id] {
			continue
		}
		if cur, ok := latest[id]; !ok || p.CreatedAt.After(cur.CreatedAt) {
			latest[id] = p
		}
	}
	out := make([]models.Place, 0, len(latest))
	for _, p := range latest {
		out = append(out, p)
	}
	return out, nil
}

func (r *sliceRepository) ListRecent(_ context.Context, f RecentFilter) ([]models.Place, error) {
	out := make([]models.Place, 0)
	for _, p := range r.places {
		if f.ExcludeUser != nil && p.UserID == *f.ExcludeUser {
			continue
		}
		if f.OnlyUser != nil && p.UserID != *f.OnlyUser {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if uint64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *sliceRepository) ListExternalIDsByUser(_ context.Context, userID uuid.UUID) ([]string, error) {
	ids := []string{}
	for _, p := range r.places {
		if p.UserID == userID && p.ExternalIDValue() != "" {
			ids = append(ids, p.ExternalIDValue())
		}
	}
	return ids, nil
}

func (r *sliceRepository) HasPlacesFromOtherUsers(_ context.Context, userID uuid.UUID) (bool, error) {
	for _, p := range r.places {
		if p.UserID != userID {
			return true, nil
		}
	}
	return false, nil
}

func pin(userID uuid.UUID, externalID string, age time.Duration, tags ...string) models.Place {
	p := models.Place{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      "venue " + externalID,
		Tags:      tags,
		CreatedAt: testNow.Add(-age),
	}
	if externalID != "" {
		id := externalID
		p.ExternalID = &id
	}
	return p
}

func newTestService(places ...models.Place) *ServiceImpl {
	svc := NewService(&sliceRepository{places: places}, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func externalIDs(ranked []models.RankedPlace) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Place.ExternalIDValue()
	}
	return out
}

const day = 24 * time.Hour

func TestTrending_ExcludesOwnPinsWhenOthersExist(t *testing.T) {
	userA, userB := uuid.New(), uuid.New()
	svc := newTestService(
		pin(userA, "V", 5*day),
		pin(userB, "V", 20*day),
		pin(userB, "W", 2*day),
	)

	ranked, err := svc.Trending(context.Background(), userA)
	require.NoError(t, err)
	assert.Equal(t, []string{"W"}, externalIDs(ranked))

	// B pinned both venues and A has data, so nothing is left for B.
	ranked, err = svc.Trending(context.Background(), userB)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestTrending_ScoresAndOrder(t *testing.T) {
	me, a, b, c := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	// X=5, V=3, Z=2.5 and T=2.5 (Z saved more recently), Y=0.5, old is outside both windows.
	svc := newTestService(
		pin(me, "mine", 40*day),
		pin(a, "V", 5*day),
		pin(b, "V", 20*day),
		pin(a, "X", 1*day),
		pin(b, "X", 2*day),
		pin(c, "Y", 25*day),
		pin(c, "Z", 3*day),
		pin(a, "T", 6*day),
		pin(b, "old", 45*day),
	)

	ranked, err := svc.Trending(context.Background(), me)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "V", "Z", "T", "Y"}, externalIDs(ranked))
	assert.InDelta(t, 5.0, ranked[0].Score, 1e-9)
	assert.InDelta(t, 3.0, ranked[1].Score, 1e-9)
	assert.Equal(t, 2, ranked[1].SaveCount)
}

func TestTrending_SingleUserSeesOwnSaves(t *testing.T) {
	me := uuid.New()
	svc := newTestService(pin(me, "V", 1*day), pin(me, "W", 10*day))

	ranked, err := svc.Trending(context.Background(), me)
	require.NoError(t, err)
	assert.Equal(t, []string{"V", "W"}, externalIDs(ranked))
}

func TestTrending_CapsAtTen(t *testing.T) {
	other := uuid.New()
	places := make([]models.Place, 0, 15)
	for i := 0; i < 15; i++ {
		places = append(places, pin(other, uuid.NewString(), time.Duration(i+1)*time.Hour))
	}
	ranked, err := newTestService(places...).Trending(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Len(t, ranked, resultLimit)
}

// vanishingRepository loses some venues between the count and the load.
type vanishingRepository struct {
	*sliceRepository
	gone map[string]bool
}

func (r *vanishingRepository) LatestByExternalIDs(ctx context.Context, ids []string) ([]models.Place, error) {
	rows, err := r.sliceRepository.LatestByExternalIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	kept := rows[:0]
	for _, p := range rows {
		if !r.gone[p.ExternalIDValue()] {
			kept = append(kept, p)
		}
	}
	return kept, nil
}

func TestTrending_BackfillsVenuesDeletedBeforeLoad(t *testing.T) {
	other := uuid.New()
	places := make([]models.Place, 0, 12)
	for i := 0; i < 12; i++ {
		places = append(places, pin(other, fmt.Sprintf("v%02d", i), time.Duration(i+1)*time.Hour))
	}
	repo := &vanishingRepository{sliceRepository: &sliceRepository{places: places}, gone: map[string]bool{"v00": true, "v03": true}}
	svc := NewService(repo, zap.NewNop())
	svc.now = func() time.Time { return testNow }

	ranked, err := svc.Trending(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, ranked, resultLimit)
	ids := externalIDs(ranked)
	assert.NotContains(t, ids, "v00")
	assert.NotContains(t, ids, "v03")
	assert.Equal(t, "v01", ids[0])
	assert.Equal(t, "v11", ids[len(ids)-1])
}

func TestPickedForYou(t *testing.T) {
	me, a, b := uuid.New(), uuid.New(), uuid.New()

	t.Run("cold start falls back to own recent places", func(t *testing.T) {
		svc := newTestService(pin(me, "V", 2*day), pin(me, "W", 1*day), pin(me, "", 3*day))
		ranked, err := svc.PickedForYou(context.Background(), me)
		require.NoError(t, err)
		require.Len(t, ranked, 3)
		assert.Equal(t, "W", ranked[0].Place.ExternalIDValue())
	})

	t.Run("others' pins minus mine, deduplicated, newest first", func(t *testing.T) {
		svc := newTestService(
			pin(me, "V", 1*day),
			pin(a, "V", 1*time.Hour),
			pin(a, "W", 2*time.Hour),
			pin(b, "W", 3*time.Hour),
			pin(b, "X", 4*time.Hour),
			pin(b, "", 30*time.Minute),
		)
		ranked, err := svc.PickedForYou(context.Background(), me)
		require.NoError(t, err)
		assert.Equal(t, []string{"W", "X"}, externalIDs(ranked))
	})
}

func TestSupportLocal(t *testing.T) {
	me, a := uuid.New(), uuid.New()

	t.Run("keyword tags, excluding mine when others exist", func(t *testing.T) {
		svc := newTestService(
			pin(me, "M", 1*time.Hour, "local"),
			pin(a, "M", 2*time.Hour, "local"),
			pin(a, "L", 3*time.Hour, "Family", "brunch"),
			pin(a, "L", 4*time.Hour, "local"),
			pin(a, "C", 5*time.Hour, "chain"),
			pin(a, "", 6*time.Hour, "neighborhood"),
		)
		ranked, err := svc.SupportLocal(context.Background(), me)
		require.NoError(t, err)
		require.Len(t, ranked, 2)
		assert.Equal(t, "L", ranked[0].Place.ExternalIDValue())
		assert.Nil(t, ranked[1].Place.ExternalID)
	})

	t.Run("single user sees own local places", func(t *testing.T) {
		svc := newTestService(pin(me, "M", 1*time.Hour, "independent"))
		ranked, err := svc.SupportLocal(context.Background(), me)
		require.NoError(t, err)
		assert.Len(t, ranked, 1)
	})

	t.Run("only the 50 most recent are considered", func(t *testing.T) {
		places := make([]models.Place, 0, 51)
		for i := 0; i < 50; i++ {
			places = append(places, pin(a, uuid.NewString(), time.Duration(i+1)*time.Minute))
		}
		places = append(places, pin(a, "old-local", 2*day, "local"))
		ranked, err := newTestService(places...).SupportLocal(context.Background(), me)
		require.NoError(t, err)
		assert.Empty(t, ranked)
	})
}

func TestViews_EmptyCorpus(t *testing.T) {
	svc := newTestService()
	me := uuid.New()

	trending, err := svc.Trending(context.Background(), me)
	require.NoError(t, err)
	assert.NotNil(t, trending)
	assert.Empty(t, trending)

	picked, err := svc.PickedForYou(context.Background(), me)
	require.NoError(t, err)
	assert.NotNil(t, picked)
	assert.Empty(t, picked)

	local, err := svc.SupportLocal(context.Background(), me)
	require.NoError(t, err)
	assert.NotNil(t, local)
	assert.Empty(t, local)
}

func TestViews_RepositoryErrorSurfaces(t *testing.T) {
	svc := NewService(&sliceRepository{err: errors.New("db down")}, zap.NewNop())
	_, err := svc.Trending(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestDiscoverHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	me, other := uuid.New(), uuid.New()
	svc := newTestService(pin(other, "V", 1*day, "local"))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, me)
		c.Next()
	})
	NewDiscoverHandlers(svc, zap.NewNop()).RegisterRoutes(r.Group("/api/v1"))

	for _, path := range []string{"/api/v1/discover/trending", "/api/v1/discover/picked-for-you", "/api/v1/discover/support-local"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `"count":1`, path)
	}
}
