package discover

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-radar/internal/app/models"
)

const (
	resultLimit      = 10
	pickedScanWindow = 200
	localScanWindow  = 50

	// trendingOverfetch covers venues deleted between the count and the load.
	trendingOverfetch = 2 * resultLimit

	trendingShortWindow = 7 * 24 * time.Hour
	trendingLongWindow  = 30 * 24 * time.Hour
	trendingShortWeight = 2.0
	trendingLongWeight  = 0.5
)

// LocalKeywords are the tags that qualify a place for the support-local view.
var LocalKeywords = []string{"local", "independent", "family", "small", "neighborhood"}

var _ Service = (*ServiceImpl)(nil)

// Service computes the read-only aggregation views. Each view returns an empty,
// non-nil slice for an empty corpus.
type Service interface {
	Trending(ctx context.Context, userID uuid.UUID) ([]models.RankedPlace, error)
	PickedForYou(ctx context.Context, userID uuid.UUID) ([]models.RankedPlace, error)
	SupportLocal(ctx context.Context, userID uuid.UUID) ([]models.RankedPlace, error)
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   Repository
	now    func() time.Time
	local  map[string]struct{}
}

func NewService(repo Repository, logger *zap.Logger) *ServiceImpl {
	local := make(map[string]struct{}, len(LocalKeywords))
	for _, k := range LocalKeywords {
		local[k] = struct{}{}
	}
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		now:    time.Now,
		local:  local,
	}
}

// userCorpus is what every view needs to know about the requester.
type userCorpus struct {
	multiUser bool
	pinned    map[string]struct{}
}

func (c userCorpus) excludes(externalID string) bool {
	if !c.multiUser || externalID == "" {
		return false
	}
	_, ok := c.pinned[externalID]
	return ok
}

func (s *ServiceImpl) loadCorpus(ctx context.Context, g *errgroup.Group, userID uuid.UUID, into *userCorpus) {
	g.Go(func() error {
		multi, err := s.repo.HasPlacesFromOtherUsers(ctx, userID)
		if err != nil {
			return err
		}
		into.multiUser = multi
		return nil
	})
	g.Go(func() error {
		ids, err := s.repo.ListExternalIDsByUser(ctx, userID)
		if err != nil {
			return err
		}
		into.pinned = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			into.pinned[id] = struct{}{}
		}
		return nil
	})
}

type venueScore struct {
	externalID string
	score      float64
	saves      int
	lastSaved  time.Time
}

// Trending scores venues across all users by 2×(saves in 7 days) + 0.5×(saves in 30 days).
// The requester's own pins are excluded only when other users have data.
func (s *ServiceImpl) Trending(ctx context.Context, userID uuid.UUID) ([]models.RankedPlace, error) {
	ctx, span := otel.Tracer("DiscoverService").Start(ctx, "Trending", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "Trending"), zap.String("userID", userID.String()))

	now := s.now()
	var (
		corpus      userCorpus
		short, long []SaveCount
	)
	g, gctx := errgroup.WithContext(ctx)
	s.loadCorpus(gctx, g, userID, &corpus)
	g.Go(func() error {
		var err error
		short, err = s.repo.CountSavesSince(gctx, now.Add(-trendingShortWindow))
		return err
	})
	g.Go(func() error {
		var err error
		long, err = s.repo.CountSavesSince(gctx, now.Add(-trendingLongWindow))
		return err
	})
	if err := g.Wait(); err != nil {
		l.Error("Failed to load trending windows", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "window queries failed")
		return nil, fmt.Errorf("error computing trending: %w", err)
	}

	scores := scoreTrending(short, long)
	ranked := make([]venueScore, 0, trendingOverfetch)
	for _, v := range scores {
		if corpus.excludes(v.externalID) {
			continue
		}
		ranked = append(ranked, v)
		if len(ranked) == trendingOverfetch {
			break
		}
	}

	out, err := s.hydrate(ctx, ranked)
	if err != nil {
		l.Error("Failed to load trending venues", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "hydrate failed")
		return nil, fmt.Errorf("error loading trending venues: %w", err)
	}
	if len(out) > resultLimit {
		out = out[:resultLimit]
	}

	span.SetAttributes(attribute.Int("results.count", len(out)), attribute.Bool("corpus.multi_user", corpus.multiUser))
	span.SetStatus(codes.Ok, "Trending computed")
	return out, nil
}

// scoreTrending merges the two windows, drops zero scores and sorts by score, then most
// recent save, then external id.
func scoreTrending(short, long []SaveCount) []venueScore {
	byID := make(map[string]*venueScore, len(long))
	get := func(id string) *venueScore {
		v, ok := byID[id]
		if !ok {
			v = &venueScore{externalID: id}
			byID[id] = v
		}
		return v
	}
	for _, c := range short {
		v := get(c.ExternalID)
		v.score += trendingShortWeight * float64(c.Count)
		if c.LastSavedAt.After(v.lastSaved) {
			v.lastSaved = c.LastSavedAt
		}
	}
	for _, c := range long {
		v := get(c.ExternalID)
		v.score += trendingLongWeight * float64(c.Count)
		v.saves = c.Count
		if c.LastSavedAt.After(v.lastSaved) {
			v.lastSaved = c.LastSavedAt
		}
	}

	out := make([]venueScore, 0, len(byID))
	for _, v := range byID {
		if v.score <= 0 {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if !out[i].lastSaved.Equal(out[j].lastSaved) {
			return out[i].lastSaved.After(out[j].lastSaved)
		}
		return out[i].externalID < out[j].externalID
	})
	return out
}

func (s *ServiceImpl) hydrate(ctx context.Context, ranked []venueScore) ([]models.RankedPlace, error) {
	out := make([]models.RankedPlace, 0, len(ranked))
	if len(ranked) == 0 {
		return out, nil
	}
	ids := make([]string, len(ranked))
	for i, v := range ranked {
		ids[i] = v.externalID
	}
	rows, err := s.repo.LatestByExternalIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Place, len(rows))
	for _, p := range rows {
		byID[p.ExternalIDValue()] = p
	}
	for _, v := range ranked {
		p, ok := byID[v.externalID]
		if !ok {
			// deleted between the count and the load
			continue
		}
		out = append(out, models.RankedPlace{Place: p, Score: v.score, SaveCount: v.saves})
	}
	return out, nil
}

// PickedForYou lists other users' recent pins the requester does not have. With no
// other users it falls back to the requester's own most recent places.
func (s *ServiceImpl) PickedForYou(ctx context.Context, userID uuid.UUID) ([]models.RankedPlace, error) {
	ctx, span := otel.Tracer("DiscoverService").Start(ctx, "PickedForYou", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "PickedForYou"), zap.String("userID", userID.String()))

	var (
		corpus userCorpus
		others []models.Place
	)
	g, gctx := errgroup.WithContext(ctx)
	s.loadCorpus(gctx, g, userID, &corpus)
	g.Go(func() error {
		var err error
		others, err = s.repo.ListRecent(gctx, RecentFilter{ExcludeUser: &userID, Limit: pickedScanWindow})
		return err
	})
	if err := g.Wait(); err != nil {
		l.Error("Failed to load recommendations", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "queries failed")
		return nil, fmt.Errorf("error computing picks: %w", err)
	}

	if !corpus.multiUser {
		own, err := s.repo.ListRecent(ctx, RecentFilter{OnlyUser: &userID, Limit: resultLimit})
		if err != nil {
			l.Error("Failed to load own recent places", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "fallback failed")
			return nil, fmt.Errorf("error loading recent places: %w", err)
		}
		span.SetAttributes(attribute.Bool("picked.fallback", true))
		span.SetStatus(codes.Ok, "Own recent places")
		return wrap(own), nil
	}

	seen := make(map[string]struct{}, resultLimit)
	picked := make([]models.Place, 0, resultLimit)
	for _, p := range others {
		id := p.ExternalIDValue()
		if id == "" || corpus.excludes(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		picked = append(picked, p)
		if len(picked) == resultLimit {
			break
		}
	}

	span.SetAttributes(attribute.Int("results.count", len(picked)))
	span.SetStatus(codes.Ok, "Picks computed")
	return wrap(picked), nil
}

// SupportLocal filters the most recent pins from any user by the local keyword tags.
func (s *ServiceImpl) SupportLocal(ctx context.Context, userID uuid.UUID) ([]models.RankedPlace, error) {
	ctx, span := otel.Tracer("DiscoverService").Start(ctx, "SupportLocal", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "SupportLocal"), zap.String("userID", userID.String()))

	var (
		corpus userCorpus
		recent []models.Place
	)
	g, gctx := errgroup.WithContext(ctx)
	s.loadCorpus(gctx, g, userID, &corpus)
	g.Go(func() error {
		var err error
		recent, err = s.repo.ListRecent(gctx, RecentFilter{Limit: localScanWindow})
		return err
	})
	if err := g.Wait(); err != nil {
		l.Error("Failed to load local places", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "queries failed")
		return nil, fmt.Errorf("error computing support local: %w", err)
	}

	seen := make(map[string]struct{}, resultLimit)
	out := make([]models.Place, 0, resultLimit)
	for _, p := range recent {
		if !s.isLocal(p.Tags) {
			continue
		}
		if corpus.multiUser && (p.UserID == userID || corpus.excludes(p.ExternalIDValue())) {
			continue
		}
		key := p.ExternalIDValue()
		if key == "" {
			key = p.ID.String()
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
		if len(out) == resultLimit {
			break
		}
	}

	span.SetAttributes(attribute.Int("results.count", len(out)))
	span.SetStatus(codes.Ok, "Local places computed")
	return wrap(out), nil
}

func (s *ServiceImpl) isLocal(tags []string) bool {
	for _, t := range tags {
		if _, ok := s.local[strings.ToLower(strings.TrimSpace(t))]; ok {
			return true
		}
	}
	return false
}

func wrap(in []models.Place) []models.RankedPlace {
	out := make([]models.RankedPlace, len(in))
	for i, p := range in {
		out[i] = models.RankedPlace{Place: p}
	}
	return out
}
