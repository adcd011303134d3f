package places

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-radar/internal/app/domain/extractor"
	"github.com/FACorreiaa/go-radar/internal/app/domain/providers/linkmeta"
	"github.com/FACorreiaa/go-radar/internal/app/domain/resolver"
	"github.com/FACorreiaa/go-radar/internal/app/models"
	"github.com/FACorreiaa/go-radar/internal/app/observability/metrics"
)

const urlImportConcurrency = 3

// LinkFetcher returns the metadata of a social link.
type LinkFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*models.LinkMetadata, error)
}

var _ Service = (*ServiceImpl)(nil)

// Service defines the business logic contract for pinned places.
type Service interface {
	// ImportPlace resolves the candidate and stores it for the user. Idempotent per (user, external id).
	ImportPlace(ctx context.Context, userID uuid.UUID, candidate models.PlaceCandidate) (*models.ImportResult, error)
	// PinByExternalID stores a venue the caller already identified. Idempotent per (user, external id).
	PinByExternalID(ctx context.Context, userID uuid.UUID, externalID string, candidate models.PlaceCandidate) (*models.ImportResult, error)
	ImportFromURL(ctx context.Context, userID uuid.UUID, rawURL string) (*models.URLImportResult, error)
	BulkPin(ctx context.Context, userID uuid.UUID, candidates []models.PlaceCandidate) (*models.BulkImportResult, error)
	SearchPlaces(ctx context.Context, text string, bias *models.LatLng) ([]models.SearchResult, error)
	ListPlaces(ctx context.Context, filter models.PlaceFilter) ([]models.Place, error)
	GetPlace(ctx context.Context, userID, placeID uuid.UUID) (*models.Place, error)
	UpdatePlace(ctx context.Context, userID, placeID uuid.UUID, params models.UpdatePlaceParams) (*models.Place, error)
	DeletePlace(ctx context.Context, userID, placeID uuid.UUID) error
	RefreshPlace(ctx context.Context, userID, placeID uuid.UUID) (*models.Place, error)
	Categories() []models.CategoryInfo
}

type ServiceImpl struct {
	logger    *zap.Logger
	repo      Repository
	resolver  resolver.Resolver
	extractor extractor.Extractor
	fetcher   LinkFetcher
	validate  *validator.Validate
	now       func() time.Time
}

func NewService(repo Repository, res resolver.Resolver, ext extractor.Extractor, fetcher LinkFetcher, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		repo:      repo,
		resolver:  res,
		extractor: ext,
		fetcher:   fetcher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
	}
}

func (s *ServiceImpl) validateCandidate(c models.PlaceCandidate) error {
	if err := s.validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}
	return nil
}

// validateProvenance checks a candidate that only carries provenance; the name comes from the provider.
func (s *ServiceImpl) validateProvenance(c models.PlaceCandidate) error {
	if err := s.validate.StructExcept(c, "RawName"); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}
	return nil
}

func (s *ServiceImpl) ImportPlace(ctx context.Context, userID uuid.UUID, candidate models.PlaceCandidate) (*models.ImportResult, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "ImportPlace", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("candidate.raw_name", candidate.RawName),
		attribute.String("candidate.source_platform", candidate.SourcePlatform),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "ImportPlace"), zap.String("userID", userID.String()), zap.String("raw_name", candidate.RawName))

	if err := s.validateCandidate(candidate); err != nil {
		span.SetStatus(codes.Error, "invalid candidate")
		return nil, err
	}

	venue, err := s.resolver.Resolve(ctx, candidate)
	if err != nil {
		metrics.RecordImport(ctx, outcomeFor(err))
		if errors.Is(err, models.ErrResolutionNotFound) {
			l.Info("Candidate could not be resolved")
		} else {
			l.Warn("Resolution failed", zap.Error(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")
		return nil, err
	}

	result, err := s.store(ctx, userID, *venue, candidate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return nil, err
	}

	span.SetAttributes(attribute.String("place.id", result.Place.ID.String()), attribute.Bool("place.created", result.Created))
	span.SetStatus(codes.Ok, "Place imported")
	return result, nil
}

func (s *ServiceImpl) PinByExternalID(ctx context.Context, userID uuid.UUID, externalID string, candidate models.PlaceCandidate) (*models.ImportResult, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "PinByExternalID", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("place.external_id", externalID),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "PinByExternalID"), zap.String("userID", userID.String()), zap.String("externalID", externalID))

	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		span.SetStatus(codes.Error, "missing external id")
		return nil, fmt.Errorf("%w: external_id is required", models.ErrValidation)
	}
	if err := s.validateProvenance(candidate); err != nil {
		span.SetStatus(codes.Error, "invalid provenance")
		return nil, err
	}

	existing, err := s.repo.FindByExternalID(ctx, userID, externalID)
	if err != nil {
		l.Error("Failed to look up existing pin", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, fmt.Errorf("%w: %v", models.ErrStorageFailure, err)
	}
	if existing != nil {
		metrics.RecordImport(ctx, InsertAlreadyExists.String())
		span.SetStatus(codes.Ok, "Already pinned")
		return &models.ImportResult{Place: existing, Created: false}, nil
	}

	venue, err := s.resolver.ResolveExternalID(ctx, externalID)
	if err != nil {
		metrics.RecordImport(ctx, outcomeFor(err))
		l.Warn("Failed to fetch venue details", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "details failed")
		return nil, err
	}
	if candidate.RawName == "" {
		candidate.RawName = venue.Name
	}

	result, err := s.store(ctx, userID, *venue, candidate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Place pinned")
	return result, nil
}

// store is the check-then-insert step. A unique violation from a concurrent writer is
// answered by one re-read; only if that finds nothing does the caller see a failure.
func (s *ServiceImpl) store(ctx context.Context, userID uuid.UUID, venue models.CanonicalVenue, candidate models.PlaceCandidate) (*models.ImportResult, error) {
	l := s.logger.With(zap.String("method", "store"), zap.String("userID", userID.String()), zap.String("externalID", venue.ExternalID))

	res, err := s.insertOrFetch(ctx, userID, venue, candidate)
	if err != nil {
		metrics.RecordImport(ctx, "storage_failure")
		l.Error("Failed to persist place", zap.Error(err))
		return nil, err
	}

	if res.Outcome == InsertConflict {
		existing, err := s.repo.FindByExternalID(ctx, userID, venue.ExternalID)
		if err != nil || existing == nil {
			metrics.RecordImport(ctx, "storage_failure")
			l.Error("Conflict re-read found no row", zap.Error(err))
			if err == nil {
				err = models.ErrStorageConflict
			}
			return nil, fmt.Errorf("%w: %v", models.ErrStorageFailure, err)
		}
		l.Info("Concurrent import resolved to existing place", zap.String("placeID", existing.ID.String()))
		res = InsertResult{Outcome: InsertAlreadyExists, Place: existing}
	}

	metrics.RecordImport(ctx, res.Outcome.String())
	if res.Outcome == InsertCreated {
		l.Info("Place created", zap.String("placeID", res.Place.ID.String()))
	}
	return &models.ImportResult{Place: res.Place, Created: res.Outcome == InsertCreated}, nil
}

func (s *ServiceImpl) insertOrFetch(ctx context.Context, userID uuid.UUID, venue models.CanonicalVenue, candidate models.PlaceCandidate) (InsertResult, error) {
	existing, err := s.repo.FindByExternalID(ctx, userID, venue.ExternalID)
	if err != nil {
		return InsertResult{}, fmt.Errorf("%w: %v", models.ErrStorageFailure, err)
	}
	if existing != nil {
		return InsertResult{Outcome: InsertAlreadyExists, Place: existing}, nil
	}

	res, err := s.repo.Insert(ctx, NewPlace(userID, venue, candidate, s.now().UTC()))
	if err != nil {
		return InsertResult{}, fmt.Errorf("%w: %v", models.ErrStorageFailure, err)
	}
	return res, nil
}

func (s *ServiceImpl) ImportFromURL(ctx context.Context, userID uuid.UUID, rawURL string) (*models.URLImportResult, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "ImportFromURL", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("source.url", rawURL),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "ImportFromURL"), zap.String("userID", userID.String()), zap.String("url", rawURL))

	if err := s.validate.Var(rawURL, "required,url"); err != nil {
		span.SetStatus(codes.Error, "invalid url")
		return nil, fmt.Errorf("%w: a valid url is required", models.ErrValidation)
	}

	meta, err := s.fetcher.Fetch(ctx, rawURL)
	switch {
	case errors.Is(err, linkmeta.ErrNoContent):
		l.Info("Link has no readable content")
		span.SetStatus(codes.Ok, "no content")
		return &models.URLImportResult{Outcomes: []models.ImportOutcome{}}, nil
	case err != nil:
		l.Warn("Failed to fetch link metadata", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}

	candidates, err := s.extractor.ExtractCandidates(ctx, meta.Caption(), rawURL)
	if err != nil {
		l.Warn("Extraction failed", zap.Error(err))
		candidates = nil
	}
	author := extractor.AuthorFromTitle(meta.Title)

	outcomes := make([]models.ImportOutcome, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(urlImportConcurrency)
	for i := range candidates {
		c := candidates[i]
		if c.SourceAuthor == "" {
			c.SourceAuthor = author
		}
		if c.SourceURL == "" {
			c.SourceURL = rawURL
		}
		g.Go(func() error {
			outcomes[i] = s.importOutcome(gctx, userID, c)
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(attribute.Int("candidates.count", len(candidates)))
	span.SetStatus(codes.Ok, "URL imported")
	l.Info("URL import finished", zap.Int("candidates", len(candidates)))
	return &models.URLImportResult{Metadata: meta, Outcomes: outcomes}, nil
}

func (s *ServiceImpl) importOutcome(ctx context.Context, userID uuid.UUID, c models.PlaceCandidate) models.ImportOutcome {
	res, err := s.ImportPlace(ctx, userID, c)
	if err != nil {
		return models.ImportOutcome{Candidate: c, Error: outcomeFor(err)}
	}
	return models.ImportOutcome{Candidate: c, Place: res.Place, Created: res.Created}
}

// BulkPin imports sequentially so provider rate limits are respected.
func (s *ServiceImpl) BulkPin(ctx context.Context, userID uuid.UUID, candidates []models.PlaceCandidate) (*models.BulkImportResult, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "BulkPin", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("candidates.count", len(candidates)),
	))
	defer span.End()

	result := &models.BulkImportResult{Outcomes: make([]models.ImportOutcome, 0, len(candidates))}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return nil, err
		}
		outcome := s.importOutcome(ctx, userID, c)
		if outcome.Error != "" {
			result.Failed++
		} else {
			result.Succeeded++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	s.logger.Info("Bulk pin finished",
		zap.String("userID", userID.String()),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	span.SetAttributes(attribute.Int("bulk.succeeded", result.Succeeded), attribute.Int("bulk.failed", result.Failed))
	span.SetStatus(codes.Ok, "Bulk pin finished")
	return result, nil
}

func (s *ServiceImpl) SearchPlaces(ctx context.Context, text string, bias *models.LatLng) ([]models.SearchResult, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "SearchPlaces", trace.WithAttributes(
		attribute.String("query", text),
	))
	defer span.End()

	if strings.TrimSpace(text) == "" {
		span.SetStatus(codes.Error, "empty query")
		return nil, fmt.Errorf("%w: query is required", models.ErrValidation)
	}
	results, err := s.resolver.Search(ctx, text, bias)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Search done")
	return results, nil
}

func (s *ServiceImpl) ListPlaces(ctx context.Context, filter models.PlaceFilter) ([]models.Place, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "ListPlaces", trace.WithAttributes(
		attribute.String("user.id", filter.UserID.String()),
	))
	defer span.End()

	places, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list places", zap.String("userID", filter.UserID.String()), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, fmt.Errorf("error listing places: %w", err)
	}
	span.SetStatus(codes.Ok, "Places listed")
	return places, nil
}

func (s *ServiceImpl) GetPlace(ctx context.Context, userID, placeID uuid.UUID) (*models.Place, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "GetPlace", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("place.id", placeID.String()),
	))
	defer span.End()

	p, err := s.repo.GetByID(ctx, userID, placeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		return nil, fmt.Errorf("error getting place: %w", err)
	}
	span.SetStatus(codes.Ok, "Place found")
	return p, nil
}

func (s *ServiceImpl) UpdatePlace(ctx context.Context, userID, placeID uuid.UUID, params models.UpdatePlaceParams) (*models.Place, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "UpdatePlace", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("place.id", placeID.String()),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "UpdatePlace"), zap.String("placeID", placeID.String()))

	if params.IsEmpty() {
		span.SetStatus(codes.Error, "empty update")
		return nil, fmt.Errorf("%w: nothing to update", models.ErrBadRequest)
	}
	if params.UserNotes != nil && len(*params.UserNotes) > 2000 {
		span.SetStatus(codes.Error, "notes too long")
		return nil, fmt.Errorf("%w: user_notes exceeds 2000 characters", models.ErrValidation)
	}

	p, err := s.repo.UpdateUserState(ctx, userID, placeID, params)
	if err != nil {
		l.Warn("Failed to update place", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, fmt.Errorf("error updating place: %w", err)
	}
	l.Info("Place updated")
	span.SetStatus(codes.Ok, "Place updated")
	return p, nil
}

func (s *ServiceImpl) DeletePlace(ctx context.Context, userID, placeID uuid.UUID) error {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "DeletePlace", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("place.id", placeID.String()),
	))
	defer span.End()

	if err := s.repo.Delete(ctx, userID, placeID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return fmt.Errorf("error deleting place: %w", err)
	}
	span.SetStatus(codes.Ok, "Place deleted")
	return nil
}

// RefreshPlace re-fetches the venue and applies MergePlace; user state is left alone.
func (s *ServiceImpl) RefreshPlace(ctx context.Context, userID, placeID uuid.UUID) (*models.Place, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "RefreshPlace", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("place.id", placeID.String()),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "RefreshPlace"), zap.String("placeID", placeID.String()))

	existing, err := s.repo.GetByID(ctx, userID, placeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		return nil, fmt.Errorf("error loading place: %w", err)
	}
	externalID := existing.ExternalIDValue()
	if externalID == "" {
		span.SetStatus(codes.Error, "no external id")
		return nil, fmt.Errorf("%w: place was never matched to a venue", models.ErrBadRequest)
	}

	venue, err := s.resolver.ResolveExternalID(ctx, externalID)
	if err != nil {
		l.Warn("Failed to refresh venue", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "details failed")
		return nil, err
	}

	merged := MergePlace(*existing, *venue, models.PlaceCandidate{})
	updated, err := s.repo.UpdateCanonical(ctx, merged)
	if err != nil {
		l.Error("Failed to store refreshed place", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, fmt.Errorf("%w: %v", models.ErrStorageFailure, err)
	}
	l.Info("Place refreshed")
	span.SetStatus(codes.Ok, "Place refreshed")
	return updated, nil
}

func (s *ServiceImpl) Categories() []models.CategoryInfo {
	return s.resolver.Categories()
}

// outcomeFor names an error for per-candidate outcomes and metrics.
func outcomeFor(err error) string {
	switch {
	case errors.Is(err, models.ErrResolutionNotFound):
		return "not_found"
	case errors.Is(err, models.ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrBadRequest):
		return "invalid"
	case errors.Is(err, models.ErrStorageFailure):
		return "storage_failure"
	default:
		return "error"
	}
}
