// Package resolver turns place candidates into canonical venues via the places provider.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/FACorreiaa/go-radar/internal/app/domain/category"
	"github.com/FACorreiaa/go-radar/internal/app/domain/district"
	"github.com/FACorreiaa/go-radar/internal/app/domain/providers/googleplaces"
	"github.com/FACorreiaa/go-radar/internal/app/models"
	"github.com/FACorreiaa/go-radar/internal/app/observability/metrics"
)

// Provider is the canonical place-search and place-details capability.
type Provider interface {
	TextSearch(ctx context.Context, q models.SearchQuery) ([]models.SearchResult, error)
	Details(ctx context.Context, externalID string) (*models.PlaceDetails, error)
	PhotoURL(reference string) string
}

// Resolver defines the business logic contract for canonical resolution.
type Resolver interface {
	Resolve(ctx context.Context, candidate models.PlaceCandidate) (*models.CanonicalVenue, error)
	ResolveExternalID(ctx context.Context, externalID string) (*models.CanonicalVenue, error)
	Search(ctx context.Context, text string, bias *models.LatLng) ([]models.SearchResult, error)
	Categories() []models.CategoryInfo
}

type Config struct {
	DefaultCity  string
	RadiusMeters int
	CacheTTL     time.Duration
}

var _ Resolver = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger     *zap.Logger
	provider   Provider
	categories *category.Mapper
	districts  *district.Gazetteer
	cfg        Config
	cache      *cache.Cache
	inflight   singleflight.Group
}

// NewResolver wires the provider with the immutable category and district tables.
func NewResolver(provider Provider, categories *category.Mapper, districts *district.Gazetteer, cfg Config, logger *zap.Logger) *ServiceImpl {
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = "Hong Kong"
	}
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = 500
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &ServiceImpl{
		logger:     logger,
		provider:   provider,
		categories: categories,
		districts:  districts,
		cfg:        cfg,
		cache:      cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

// Resolve runs one search and one details lookup for the top-ranked hit.
func (r *ServiceImpl) Resolve(ctx context.Context, candidate models.PlaceCandidate) (*models.CanonicalVenue, error) {
	ctx, span := otel.Tracer("Resolver").Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("candidate.raw_name", candidate.RawName),
		attribute.String("candidate.district_hint", candidate.DistrictHint),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "Resolve"), zap.String("raw_name", candidate.RawName))

	text := BuildQuery(candidate, r.cfg.DefaultCity)
	if text == "" {
		span.SetStatus(codes.Error, "empty candidate name")
		return nil, fmt.Errorf("%w: candidate has no usable name", models.ErrValidation)
	}

	q := models.SearchQuery{Text: text}
	if candidate.HasLocation() {
		q.Bias = &models.LatLng{Lat: *candidate.ApproxLat, Lng: *candidate.ApproxLng}
		q.RadiusMeters = r.cfg.RadiusMeters
	}
	span.SetAttributes(attribute.String("resolver.query", text))

	results, err := r.provider.TextSearch(ctx, q)
	if err != nil {
		err = r.providerError(ctx, "textsearch", err)
		l.Warn("Place search failed", zap.String("query", text), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	if len(results) == 0 {
		l.Info("No provider match for candidate", zap.String("query", text))
		metrics.RecordResolution(ctx, "not_found")
		span.SetStatus(codes.Ok, "no match")
		return nil, fmt.Errorf("%w: %q", models.ErrResolutionNotFound, text)
	}

	top := results[0]
	details, err := r.details(ctx, top.ExternalID)
	if err != nil {
		l.Info("Details lookup failed for top result", zap.String("external_id", top.ExternalID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "details failed")
		return nil, err
	}

	venue, err := r.toVenue(details, &top, candidate)
	if err != nil {
		metrics.RecordResolution(ctx, "not_found")
		span.SetStatus(codes.Error, "incomplete venue")
		return nil, err
	}

	metrics.RecordResolution(ctx, "resolved")
	l.Debug("Candidate resolved",
		zap.String("external_id", venue.ExternalID),
		zap.String("category", venue.Category),
		zap.String("district", venue.District))
	span.SetAttributes(attribute.String("venue.external_id", venue.ExternalID))
	span.SetStatus(codes.Ok, "resolved")
	return venue, nil
}

// ResolveExternalID skips the search step for an id the caller already trusts.
func (r *ServiceImpl) ResolveExternalID(ctx context.Context, externalID string) (*models.CanonicalVenue, error) {
	ctx, span := otel.Tracer("Resolver").Start(ctx, "ResolveExternalID", trace.WithAttributes(
		attribute.String("venue.external_id", externalID),
	))
	defer span.End()

	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("%w: external id is required", models.ErrValidation)
	}

	details, err := r.details(ctx, externalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "details failed")
		return nil, err
	}

	venue, err := r.toVenue(details, nil, models.PlaceCandidate{})
	if err != nil {
		span.SetStatus(codes.Error, "incomplete venue")
		return nil, err
	}
	metrics.RecordResolution(ctx, "resolved_by_id")
	span.SetStatus(codes.Ok, "resolved")
	return venue, nil
}

// Search returns the ranked list for callers that let the user pick.
func (r *ServiceImpl) Search(ctx context.Context, text string, bias *models.LatLng) ([]models.SearchResult, error) {
	ctx, span := otel.Tracer("Resolver").Start(ctx, "Search", trace.WithAttributes(
		attribute.String("resolver.text", text),
	))
	defer span.End()

	query := BuildQuery(models.PlaceCandidate{RawName: text}, r.cfg.DefaultCity)
	if query == "" {
		return []models.SearchResult{}, nil
	}

	q := models.SearchQuery{Text: query}
	if bias != nil {
		q.Bias = bias
		q.RadiusMeters = r.cfg.RadiusMeters
	}
	results, err := r.provider.TextSearch(ctx, q)
	if err != nil {
		err = r.providerError(ctx, "textsearch", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	span.SetStatus(codes.Ok, "search completed")
	return results, nil
}

// Categories lists the category buckets the resolver classifies into.
func (r *ServiceImpl) Categories() []models.CategoryInfo {
	return r.categories.Categories()
}

// details is cached per external id; concurrent lookups for the same id share one call.
func (r *ServiceImpl) details(ctx context.Context, externalID string) (*models.PlaceDetails, error) {
	if cached, ok := r.cache.Get(externalID); ok {
		return cached.(*models.PlaceDetails), nil
	}

	v, err, _ := r.inflight.Do(externalID, func() (interface{}, error) {
		if cached, ok := r.cache.Get(externalID); ok {
			return cached, nil
		}
		d, err := r.provider.Details(ctx, externalID)
		if err != nil {
			return nil, err
		}
		r.cache.Set(externalID, d, cache.DefaultExpiration)
		return d, nil
	})
	if err != nil {
		if errors.Is(err, googleplaces.ErrNotFound) {
			metrics.RecordResolution(ctx, "not_found")
			return nil, fmt.Errorf("%w: details for %s", models.ErrResolutionNotFound, externalID)
		}
		return nil, r.providerError(ctx, "details", err)
	}
	return v.(*models.PlaceDetails), nil
}

func (r *ServiceImpl) providerError(ctx context.Context, op string, err error) error {
	metrics.RecordProviderError(ctx, "google_places", op)
	if errors.Is(err, googleplaces.ErrNotFound) {
		return fmt.Errorf("%w: %v", models.ErrResolutionNotFound, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

func (r *ServiceImpl) toVenue(d *models.PlaceDetails, top *models.SearchResult, c models.PlaceCandidate) (*models.CanonicalVenue, error) {
	v := &models.CanonicalVenue{
		ExternalID:       d.ExternalID,
		Name:             d.Name,
		Lat:              d.Lat,
		Lng:              d.Lng,
		FormattedAddress: d.FormattedAddress,
		Rating:           d.Rating,
		RatingCount:      d.RatingCount,
		PriceLevel:       d.PriceLevel,
		Phone:            d.Phone,
		Website:          d.Website,
		CategorySignals:  append([]string(nil), d.CategoryTags...),
	}
	if d.OpeningHours != nil {
		v.OpeningHours = &models.OpeningHours{
			OpenNow:     d.OpeningHours.OpenNow,
			WeekdayText: append([]string(nil), d.OpeningHours.WeekdayText...),
		}
	}

	if top != nil {
		if v.ExternalID == "" {
			v.ExternalID = top.ExternalID
		}
		if v.Name == "" {
			v.Name = top.Name
		}
		if v.FormattedAddress == "" {
			v.FormattedAddress = top.FormattedAddress
		}
		if v.Lat == 0 && v.Lng == 0 {
			v.Lat, v.Lng = top.Lat, top.Lng
		}
		if len(v.CategorySignals) == 0 {
			v.CategorySignals = append([]string(nil), top.CategoryTags...)
		}
		if v.Rating == nil {
			v.Rating = top.Rating
		}
	}

	if v.ExternalID == "" || (v.Lat == 0 && v.Lng == 0) {
		return nil, fmt.Errorf("%w: provider returned no identity or coordinates", models.ErrResolutionNotFound)
	}
	if v.Name == "" {
		v.Name = CleanName(c.RawName)
	}

	v.District = r.deriveDistrict(d.District, v.FormattedAddress, c.DistrictHint)
	v.Category, v.Emoji = r.categories.Classify(v.CategorySignals, c.CategoryHint)

	switch {
	case len(d.PhotoReferences) > 0:
		v.PrimaryPhotoReference = d.PhotoReferences[0]
	case top != nil:
		v.PrimaryPhotoReference = top.PhotoReference
	}
	v.PhotoURL = r.provider.PhotoURL(v.PrimaryPhotoReference)

	return v, nil
}

// deriveDistrict prefers the provider's own district, then the gazetteer over the
// address, then the caller's hint.
func (r *ServiceImpl) deriveDistrict(provider, address, hint string) string {
	if provider != "" {
		return r.districts.Canonical(provider)
	}
	if d, ok := r.districts.Match(address); ok {
		return d
	}
	return r.districts.Canonical(hint)
}
