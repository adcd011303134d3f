package discover

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/domain/places"
	"github.com/FACorreiaa/go-radar/internal/app/models"
	"github.com/FACorreiaa/go-radar/internal/app/observability/metrics"
)

// SaveCount is the number of pins a venue received inside a time window.
type SaveCount struct {
	ExternalID  string
	Count       int
	LastSavedAt time.Time
}

// RecentFilter narrows ListRecent. At most one of ExcludeUser and OnlyUser is set.
type RecentFilter struct {
	ExcludeUser *uuid.UUID
	OnlyUser    *uuid.UUID
	Limit       uint64
}

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the read-only query set behind the aggregation views.
type Repository interface {
	CountSavesSince(ctx context.Context, since time.Time) ([]SaveCount, error)
	LatestByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Place, error)
	ListRecent(ctx context.Context, filter RecentFilter) ([]models.Place, error)
	ListExternalIDsByUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	HasPlacesFromOtherUsers(ctx context.Context, userID uuid.UUID) (bool, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool places.DB
}

func NewRepositoryImpl(pgpool places.DB, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "places"),
	}, attrs...)
	return otel.Tracer("DiscoverRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

func observe(ctx context.Context, op string, start time.Time, err error) {
	metrics.RecordDBQuery(ctx, op, time.Since(start).Seconds(), err)
}

func fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

func (r *RepositoryImpl) CountSavesSince(ctx context.Context, since time.Time) (counts []SaveCount, err error) {
	ctx, span := startSpan(ctx, "CountSavesSince", attribute.String("window.since", since.Format(time.RFC3339)))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "discover.count_saves", start, err) }(time.Now())

	query := `
		SELECT external_id, COUNT(*), MAX(created_at)
		FROM places
		WHERE external_id IS NOT NULL AND created_at >= $1
		GROUP BY external_id`

	rows, err := r.pgpool.Query(ctx, query, since)
	if err != nil {
		r.logger.Error("Failed to count saves", zap.Error(err))
		fail(span, err, "DB SELECT failed")
		return nil, fmt.Errorf("database error counting saves: %w", err)
	}
	defer rows.Close()

	counts = make([]SaveCount, 0)
	for rows.Next() {
		var c SaveCount
		var n int64
		if err = rows.Scan(&c.ExternalID, &n, &c.LastSavedAt); err != nil {
			fail(span, err, "Scan failed")
			return nil, fmt.Errorf("scanning save count: %w", err)
		}
		c.Count = int(n)
		counts = append(counts, c)
	}
	if err = rows.Err(); err != nil {
		fail(span, err, "Rows failed")
		return nil, fmt.Errorf("iterating save counts: %w", err)
	}

	span.SetAttributes(attribute.Int("venues.count", len(counts)))
	span.SetStatus(codes.Ok, "Saves counted")
	return counts, nil
}

// LatestByExternalIDs returns the most recent pin of each venue, used as its display row.
func (r *RepositoryImpl) LatestByExternalIDs(ctx context.Context, externalIDs []string) (out []models.Place, err error) {
	ctx, span := startSpan(ctx, "LatestByExternalIDs", attribute.Int("venues.requested", len(externalIDs)))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "discover.latest_by_external_ids", start, err) }(time.Now())

	if len(externalIDs) == 0 {
		span.SetStatus(codes.Ok, "Nothing requested")
		return []models.Place{}, nil
	}

	query := `
		SELECT DISTINCT ON (external_id) ` + strings.Join(places.PlaceColumns, ", ") + `
		FROM places
		WHERE external_id = ANY($1)
		ORDER BY external_id, created_at DESC`

	rows, err := r.pgpool.Query(ctx, query, externalIDs)
	if err != nil {
		r.logger.Error("Failed to load venues", zap.Error(err))
		fail(span, err, "DB SELECT failed")
		return nil, fmt.Errorf("database error loading venues: %w", err)
	}
	out, err = places.CollectPlaces(rows)
	if err != nil {
		fail(span, err, "Scan failed")
		return nil, fmt.Errorf("scanning venues: %w", err)
	}
	span.SetStatus(codes.Ok, "Venues loaded")
	return out, nil
}

func (r *RepositoryImpl) ListRecent(ctx context.Context, filter RecentFilter) (out []models.Place, err error) {
	ctx, span := startSpan(ctx, "ListRecent", attribute.Int64("limit", int64(filter.Limit)))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "discover.list_recent", start, err) }(time.Now())

	q := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(places.PlaceColumns...).
		From("places")
	if filter.ExcludeUser != nil {
		q = q.Where(sq.NotEq{"user_id": *filter.ExcludeUser})
	}
	if filter.OnlyUser != nil {
		q = q.Where(sq.Eq{"user_id": *filter.OnlyUser})
	}
	q = q.OrderBy("created_at DESC", "id").Limit(filter.Limit)

	query, args, err := q.ToSql()
	if err != nil {
		fail(span, err, "Build query failed")
		return nil, fmt.Errorf("building recent query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list recent places", zap.Error(err))
		fail(span, err, "DB SELECT failed")
		return nil, fmt.Errorf("database error listing recent places: %w", err)
	}
	out, err = places.CollectPlaces(rows)
	if err != nil {
		fail(span, err, "Scan failed")
		return nil, fmt.Errorf("scanning recent places: %w", err)
	}
	span.SetAttributes(attribute.Int("places.count", len(out)))
	span.SetStatus(codes.Ok, "Recent places listed")
	return out, nil
}

func (r *RepositoryImpl) ListExternalIDsByUser(ctx context.Context, userID uuid.UUID) (ids []string, err error) {
	ctx, span := startSpan(ctx, "ListExternalIDsByUser", attribute.String("user.id", userID.String()))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "discover.user_external_ids", start, err) }(time.Now())

	rows, err := r.pgpool.Query(ctx,
		`SELECT external_id FROM places WHERE user_id = $1 AND external_id IS NOT NULL`, userID)
	if err != nil {
		r.logger.Error("Failed to list pinned external ids", zap.Error(err))
		fail(span, err, "DB SELECT failed")
		return nil, fmt.Errorf("database error listing pinned venues: %w", err)
	}
	defer rows.Close()

	ids = make([]string, 0)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			fail(span, err, "Scan failed")
			return nil, fmt.Errorf("scanning external id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		fail(span, err, "Rows failed")
		return nil, fmt.Errorf("iterating external ids: %w", err)
	}
	span.SetStatus(codes.Ok, "Pinned venues listed")
	return ids, nil
}

func (r *RepositoryImpl) HasPlacesFromOtherUsers(ctx context.Context, userID uuid.UUID) (exists bool, err error) {
	ctx, span := startSpan(ctx, "HasPlacesFromOtherUsers", attribute.String("user.id", userID.String()))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "discover.has_other_users", start, err) }(time.Now())

	err = r.pgpool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM places WHERE user_id <> $1)`, userID).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check for other users", zap.Error(err))
		fail(span, err, "DB SELECT failed")
		return false, fmt.Errorf("database error checking corpus: %w", err)
	}
	span.SetAttributes(attribute.Bool("corpus.multi_user", exists))
	span.SetStatus(codes.Ok, "Corpus checked")
	return exists, nil
}
