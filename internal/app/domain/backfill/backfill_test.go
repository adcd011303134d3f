package backfill

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/domain/places"
	"github.com/FACorreiaa/go-radar/internal/app/domain/resolver"
	"github.com/FACorreiaa/go-radar/internal/app/models"
)

type fakeRepo struct {
	places.Repository
	rows    map[uuid.UUID]*models.Place
	listErr error
}

func newFakeRepo(ps ...models.Place) *fakeRepo {
	r := &fakeRepo{rows: map[uuid.UUID]*models.Place{}}
	for i := range ps {
		p := ps[i]
		r.rows[p.ID] = &p
	}
	return r
}

func (r *fakeRepo) ListMissingDetails(_ context.Context, afterID uuid.UUID, limit int) ([]models.Place, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := []models.Place{}
	for _, p := range r.rows {
		if p.ExternalID == nil || (p.PhotoURL != "" && p.OpeningHours != nil) {
			continue
		}
		if afterID != uuid.Nil && p.ID.String() <= afterID.String() {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) FillMissingDetails(_ context.Context, placeID uuid.UUID, hours *models.OpeningHours, photoURL string) (bool, error) {
	p, ok := r.rows[placeID]
	if !ok {
		return false, nil
	}
	changed := false
	if p.OpeningHours == nil && hours != nil {
		p.OpeningHours = hours
		changed = true
	}
	if p.PhotoURL == "" && photoURL != "" {
		p.PhotoURL = photoURL
		changed = true
	}
	return changed, nil
}

type fakeResolver struct {
	resolver.Resolver
	venues   map[string]models.CanonicalVenue
	failures map[string][]error
	calls    map[string]int
}

func (f *fakeResolver) ResolveExternalID(_ context.Context, externalID string) (*models.CanonicalVenue, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[externalID]++
	if errs := f.failures[externalID]; len(errs) > 0 {
		f.failures[externalID] = errs[1:]
		return nil, errs[0]
	}
	v, ok := f.venues[externalID]
	if !ok {
		return nil, models.ErrResolutionNotFound
	}
	return &v, nil
}

func missing(externalID string) models.Place {
	id := externalID
	return models.Place{ID: uuid.New(), UserID: uuid.New(), ExternalID: &id, Name: externalID}
}

func newTestRunner(repo places.Repository, res resolver.Resolver, batch int) *Runner {
	return NewRunner(repo, res, Config{BatchSize: batch, Delay: time.Millisecond}, zap.NewNop())
}

var weekdayHours = &models.OpeningHours{WeekdayText: []string{"Monday: 5PM-1AM"}}

func TestRunOnceFillsMissingFields(t *testing.T) {
	noPhoto := missing("ext_photo")
	noHours := missing("ext_hours")
	noHours.PhotoURL = "https://cdn/stored.jpg"

	repo := newFakeRepo(noPhoto, noHours)
	res := &fakeResolver{venues: map[string]models.CanonicalVenue{
		"ext_photo": {ExternalID: "ext_photo", PhotoURL: "https://cdn/new.jpg", OpeningHours: weekdayHours},
		"ext_hours": {ExternalID: "ext_hours", PhotoURL: "https://cdn/other.jpg", OpeningHours: weekdayHours},
	}}

	report, err := newTestRunner(repo, res, 1).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 2, Updated: 2}, report)

	assert.Equal(t, "https://cdn/new.jpg", repo.rows[noPhoto.ID].PhotoURL)
	assert.Equal(t, "https://cdn/stored.jpg", repo.rows[noHours.ID].PhotoURL, "stored photo must survive")
	assert.Equal(t, weekdayHours, repo.rows[noHours.ID].OpeningHours)
}

func TestRunOnceSkipsWhenProviderHasNothing(t *testing.T) {
	p := missing("ext_bare")
	repo := newFakeRepo(p)
	res := &fakeResolver{venues: map[string]models.CanonicalVenue{"ext_bare": {ExternalID: "ext_bare"}}}

	report, err := newTestRunner(repo, res, 10).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 1, Skipped: 1}, report)
	assert.Empty(t, repo.rows[p.ID].PhotoURL)
}

func TestFillSkipsCompletePlaceWithoutLookup(t *testing.T) {
	complete := missing("ext_done")
	complete.PhotoURL = "https://cdn/kept.jpg"
	complete.OpeningHours = weekdayHours
	unmatched := models.Place{ID: uuid.New(), UserID: uuid.New(), Name: "no match"}

	res := &fakeResolver{venues: map[string]models.CanonicalVenue{
		"ext_done": {ExternalID: "ext_done", PhotoURL: "https://cdn/new.jpg"},
	}}
	runner := newTestRunner(newFakeRepo(complete, unmatched), res, 10)

	assert.Equal(t, resultSkipped, runner.fill(context.Background(), complete))
	assert.Equal(t, resultSkipped, runner.fill(context.Background(), unmatched))
	assert.Empty(t, res.calls)
}

func TestFillWritesOnlyTheMissingField(t *testing.T) {
	p := missing("ext_half")
	p.OpeningHours = weekdayHours
	repo := newFakeRepo(p)
	res := &fakeResolver{venues: map[string]models.CanonicalVenue{
		"ext_half": {ExternalID: "ext_half", PhotoURL: "https://cdn/half.jpg", OpeningHours: &models.OpeningHours{WeekdayText: []string{"Sunday: closed"}}},
	}}

	assert.Equal(t, resultUpdated, newTestRunner(repo, res, 10).fill(context.Background(), p))
	assert.Equal(t, "https://cdn/half.jpg", repo.rows[p.ID].PhotoURL)
	assert.Equal(t, weekdayHours, repo.rows[p.ID].OpeningHours)
}

func TestRunOnceRetriesProviderUnavailableOnce(t *testing.T) {
	flaky := missing("ext_flaky")
	down := missing("ext_down")
	repo := newFakeRepo(flaky, down)
	res := &fakeResolver{
		venues: map[string]models.CanonicalVenue{
			"ext_flaky": {ExternalID: "ext_flaky", PhotoURL: "https://cdn/f.jpg"},
			"ext_down":  {ExternalID: "ext_down", PhotoURL: "https://cdn/d.jpg"},
		},
		failures: map[string][]error{
			"ext_flaky": {models.ErrProviderUnavailable},
			"ext_down":  {models.ErrProviderUnavailable, models.ErrProviderUnavailable},
		},
	}

	report, err := newTestRunner(repo, res, 10).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 2, Updated: 1, Failed: 1}, report)
	assert.Equal(t, 2, res.calls["ext_flaky"])
	assert.Equal(t, 2, res.calls["ext_down"])
}

func TestRunOnceDoesNotRetryNotFound(t *testing.T) {
	repo := newFakeRepo(missing("ext_gone"))
	res := &fakeResolver{}

	report, err := newTestRunner(repo, res, 10).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, res.calls["ext_gone"])
}

func TestRunOnceListError(t *testing.T) {
	repo := newFakeRepo()
	repo.listErr = errors.New("db down")

	_, err := newTestRunner(repo, &fakeResolver{}, 10).RunOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newTestRunner(newFakeRepo(), &fakeResolver{}, 10).Start(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("backfill loop did not stop")
	}
}
