package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/models"
	"github.com/FACorreiaa/go-radar/internal/app/observability/metrics"
)

const (
	uniqueViolation  = "23505"
	defaultListLimit = 100
	maxListLimit     = 500
)

// InsertOutcome tags the result of an insert so callers never have to inspect driver errors.
type InsertOutcome int

const (
	// InsertCreated means a new row was written.
	InsertCreated InsertOutcome = iota
	// InsertAlreadyExists means the (user, external_id) pair was already stored; Place holds the existing row.
	InsertAlreadyExists
	// InsertConflict means a concurrent writer won the unique index; the caller re-reads.
	InsertConflict
)

func (o InsertOutcome) String() string {
	switch o {
	case InsertCreated:
		return "created"
	case InsertAlreadyExists:
		return "existing"
	case InsertConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

type InsertResult struct {
	Outcome InsertOutcome
	Place   *models.Place
}

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Repository = (*RepositoryImpl)(nil)

// Repository defines the persistence contract for pinned places.
type Repository interface {
	Insert(ctx context.Context, place models.Place) (InsertResult, error)
	// FindByExternalID returns nil, nil when the user has not pinned the venue.
	FindByExternalID(ctx context.Context, userID uuid.UUID, externalID string) (*models.Place, error)
	GetByID(ctx context.Context, userID, placeID uuid.UUID) (*models.Place, error)
	List(ctx context.Context, filter models.PlaceFilter) ([]models.Place, error)
	UpdateUserState(ctx context.Context, userID, placeID uuid.UUID, params models.UpdatePlaceParams) (*models.Place, error)
	UpdateCanonical(ctx context.Context, place models.Place) (*models.Place, error)
	FillMissingDetails(ctx context.Context, placeID uuid.UUID, hours *models.OpeningHours, photoURL string) (bool, error)
	Delete(ctx context.Context, userID, placeID uuid.UUID) error
	// ListMissingDetails pages by id over places that hold an external id but lack photo or hours.
	ListMissingDetails(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Place, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool DB
}

func NewRepositoryImpl(pgpool DB, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

// PlaceColumns is the select list every place query scans with ScanPlace.
var PlaceColumns = []string{
	"id", "user_id", "external_id", "name", "address", "district", "lat", "lng",
	"category", "emoji", "rating", "rating_count", "price_level", "opening_hours",
	"phone", "website", "photo_url", "source_platform", "source_url", "source_caption",
	"author", "is_visited", "is_favorite", "user_notes", "tags", "created_at", "updated_at",
}

var placeColumnList = strings.Join(PlaceColumns, ", ")

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// ScanPlace reads one row selected with PlaceColumns.
func ScanPlace(row pgx.Row) (*models.Place, error) {
	var (
		p     models.Place
		hours []byte
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.ExternalID, &p.Name, &p.Address, &p.District, &p.Latitude, &p.Longitude,
		&p.Category, &p.Emoji, &p.Rating, &p.RatingCount, &p.PriceLevel, &hours,
		&p.Phone, &p.Website, &p.PhotoURL, &p.SourcePlatform, &p.SourceURL, &p.SourceCaption,
		&p.Author, &p.IsVisited, &p.IsFavorite, &p.UserNotes, &p.Tags, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(hours) > 0 && string(hours) != "null" {
		var h models.OpeningHours
		if err := json.Unmarshal(hours, &h); err != nil {
			return nil, fmt.Errorf("decoding opening_hours: %w", err)
		}
		if !h.IsEmpty() {
			p.OpeningHours = &h
		}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

// CollectPlaces drains rows selected with PlaceColumns.
func CollectPlaces(rows pgx.Rows) ([]models.Place, error) {
	defer rows.Close()
	out := make([]models.Place, 0)
	for rows.Next() {
		p, err := ScanPlace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeHours(h *models.OpeningHours) ([]byte, error) {
	if h.IsEmpty() {
		return nil, nil
	}
	return json.Marshal(h)
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func observe(ctx context.Context, op string, start time.Time, err error) {
	metrics.RecordDBQuery(ctx, op, time.Since(start).Seconds(), err)
}

func (r *RepositoryImpl) Insert(ctx context.Context, place models.Place) (res InsertResult, err error) {
	ctx, span := otel.Tracer("PlacesRepo").Start(ctx, "Insert", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "places"),
		attribute.String("user.id", place.UserID.String()),
		attribute.String("place.external_id", place.ExternalIDValue()),
	))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "places.insert", start, err) }(time.Now())

	l := r.logger.With(zap.String("method", "Insert"), zap.String("userID", place.UserID.String()))

	hours, err := encodeHours(place.OpeningHours)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode opening hours")
		return InsertResult{}, fmt.Errorf("encoding opening hours: %w", err)
	}

	query := `
		INSERT INTO places (
			id, user_id, external_id, name, address, district, lat, lng,
			category, emoji, rating, rating_count, price_level, opening_hours,
			phone, website, photo_url, source_platform, source_url, source_caption,
			author, is_visited, is_favorite, user_notes, tags, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)
		RETURNING ` + placeColumnList

	row := r.pgpool.QueryRow(ctx, query,
		place.ID, place.UserID, place.ExternalID, place.Name, place.Address, place.District, place.Latitude, place.Longitude,
		place.Category, place.Emoji, place.Rating, place.RatingCount, place.PriceLevel, hours,
		place.Phone, place.Website, place.PhotoURL, place.SourcePlatform, place.SourceURL, place.SourceCaption,
		place.Author, place.IsVisited, place.IsFavorite, place.UserNotes, nonNilTags(place.Tags), place.CreatedAt, place.UpdatedAt,
	)
	stored, err := ScanPlace(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			l.Info("Concurrent insert won the unique index", zap.String("constraint", pgErr.ConstraintName))
			span.SetAttributes(attribute.String("insert.outcome", InsertConflict.String()))
			span.SetStatus(codes.Ok, "Conflict")
			return InsertResult{Outcome: InsertConflict}, nil
		}
		l.Error("Failed to insert place", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return InsertResult{}, fmt.Errorf("database error inserting place: %w", err)
	}

	span.SetAttributes(attribute.String("place.id", stored.ID.String()))
	span.SetStatus(codes.Ok, "Place created")
	return InsertResult{Outcome: InsertCreated, Place: stored}, nil
}

func (r *RepositoryImpl) FindByExternalID(ctx context.Context, userID uuid.UUID, externalID string) (p *models.Place, err error) {
	ctx, span := otel.Tracer("PlacesRepo").Start(ctx, "FindByExternalID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "places"),
		attribute.String("user.id", userID.String()),
		attribute.String("place.external_id", externalID),
	))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "places.find_by_external_id", start, err) }(time.Now())

	query := `SELECT ` + placeColumnList + ` FROM places WHERE user_id = $1 AND external_id = $2`
	p, err = ScanPlace(r.pgpool.QueryRow(ctx, query, userID, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "Not pinned")
			return nil, nil
		}
		r.logger.Error("Failed to look up place by external id", zap.String("externalID", externalID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error finding place: %w", err)
	}
	span.SetStatus(codes.Ok, "Place found")
	return p, nil
}

func (r *RepositoryImpl) GetByID(ctx context.Context, userID, placeID uuid.UUID) (p *models.Place, err error) {
	ctx, span := otel.Tracer("PlacesRepo").Start(ctx, "GetByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "places"),
		attribute.String("place.id", placeID.String()),
	))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "places.get", start, err) }(time.Now())

	query := `SELECT ` + placeColumnList + ` FROM places WHERE id = $1 AND user_id = $2`
	p, err = ScanPlace(r.pgpool.QueryRow(ctx, query, placeID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Place not found")
			return nil, fmt.Errorf("place %s: %w", placeID, models.ErrNotFound)
		}
		r.logger.Error("Failed to get place", zap.String("placeID", placeID.String()), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error getting place: %w", err)
	}
	span.SetStatus(codes.Ok, "Place found")
	return p, nil
}

func (r *RepositoryImpl) List(ctx context.Context, filter models.PlaceFilter) (places []models.Place, err error) {
	ctx, span := otel.Tracer("PlacesRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "places"),
		attribute.String("user.id", filter.UserID.String()),
		attribute.String("filter.category", filter.Category),
		attribute.String("filter.district", filter.District),
	))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "places.list", start, err) }(time.Now())

	q := psql().Select(PlaceColumns...).From("places").Where(sq.Eq{"user_id": filter.UserID})
	if filter.Category != "" {
		q = q.Where(sq.Eq{"category": filter.Category})
	}
	if filter.District != "" {
		q = q.Where(sq.ILike{"district": filter.District})
	}
	if filter.FavoritesOnly {
		q = q.Where(sq.Eq{"is_favorite": true})
	}
	if filter.Visited != nil {
		q = q.Where(sq.Eq{"is_visited": *filter.Visited})
	}
	limit := filter.Limit
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	q = q.OrderBy("created_at DESC", "id").Limit(limit)

	query, args, err := q.ToSql()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Build query failed")
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list places", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error listing places: %w", err)
	}
	places, err = CollectPlaces(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Scan failed")
		return nil, fmt.Errorf("scanning places: %w", err)
	}

	span.SetAttributes(attribute.Int("places.count", len(places)))
	span.SetStatus(codes.Ok, "Places listed")
	return places, nil
}

func (r *RepositoryImpl) UpdateUserState(ctx context.Context, userID, placeID uuid.UUID, params models.UpdatePlaceParams) (p *models.Place, err error) {
	ctx, span := otel.Tracer("PlacesRepo").Start(ctx, "UpdateUserState", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "places"),
		attribute.String("place.id", placeID.String()),
	))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "places.update_user_state", start, err) }(time.Now())

	q := psql().Update("places").Set("updated_at", sq.Expr("NOW()"))
	if params.IsVisited != nil {
		q = q.Set("is_visited", *params.IsVisited)
	}
	if params.IsFavorite != nil {
		q = q.Set("is_favorite", *params.IsFavorite)
	}
	if params.UserNotes != nil {
		q = q.Set("user_notes", *params.UserNotes)
	}
	if params.Tags != nil {
		q = q.Set("tags", NormalizeTags(*params.Tags))
	}
	q = q.Where(sq.Eq{"id": placeID, "user_id": userID}).Suffix("RETURNING " + placeColumnList)

	query, args, err := q.ToSql()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Build query failed")
		return nil, fmt.Errorf("building update query: %w", err)
	}

	p, err = ScanPlace(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Place not found")
			return nil, fmt.Errorf("place %s: %w", placeID, models.ErrNotFound)
		}
		r.logger.Error("Failed to update place", zap.String("placeID", placeID.String()), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, fmt.Errorf("database error updating place: %w", err)
	}
	span.SetStatus(codes.Ok, "Place updated")
	return p, nil
}

// UpdateCanonical writes canonical and provenance columns. User state is not part of the
// statement and external_id can only move from NULL to a value.
func (r *RepositoryImpl) UpdateCanonical(ctx context.Context, place models.Place) (p *models.Place, err error) {
	ctx, span := otel.Tracer("PlacesRepo").Start(ctx, "UpdateCanonical", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "places"),
		attribute.String("place.id", place.ID.String()),
	))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "places.update_canonical", start, err) }(time.Now())

	hours, err := encodeHours(place.OpeningHours)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode opening hours")
		return nil, fmt.Errorf("encoding opening hours: %w", err)
	}

	query := `
		UPDATE places SET
			external_id = COALESCE(external_id, $3),
			name = $4, address = $5, district = $6, lat = $7, lng = $8,
			category = $9, emoji = $10, rating = $11, rating_count = $12, price_level = $13,
			opening_hours = $14, phone = $15, website = $16, photo_url = $17,
			source_platform = $18, source_url = $19, source_caption = $20, author = $21,
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + placeColumnList

	p, err = ScanPlace(r.pgpool.QueryRow(ctx, query,
		place.ID, place.UserID, place.ExternalID,
		place.Name, place.Address, place.District, place.Latitude, place.Longitude,
		place.Category, place.Emoji, place.Rating, place.RatingCount, place.PriceLevel,
		hours, place.Phone, place.Website, place.PhotoURL,
		place.SourcePlatform, place.SourceURL, place.SourceCaption, place.Author,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Place not found")
			return nil, fmt.Errorf("place %s: %w", place.ID, models.ErrNotFound)
		}
		r.logger.Error("Failed to refresh place", zap.String("placeID", place.ID.String()), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, fmt.Errorf("database error refreshing place: %w", err)
	}
	span.SetStatus(codes.Ok, "Place refreshed")
	return p, nil
}

// FillMissingDetails never overwrites a stored photo or stored hours.
func (r *RepositoryImpl) FillMissingDetails(ctx context.Context, placeID uuid.UUID, hours *models.OpeningHours, photoURL string) (updated bool, err error) {
	ctx, span := otel.Tracer("PlacesRepo").Start(ctx, "FillMissingDetails", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "places"),
		attribute.String("place.id", placeID.String()),
	))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "places.fill_missing", start, err) }(time.Now())

	encoded, err := encodeHours(hours)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode opening hours")
		return false, fmt.Errorf("encoding opening hours: %w", err)
	}

	query := `
		UPDATE places SET
			opening_hours = COALESCE(opening_hours, $2),
			photo_url = CASE WHEN photo_url = '' THEN $3 ELSE photo_url END,
			updated_at = NOW()
		WHERE id = $1
		  AND (($2::jsonb IS NOT NULL AND opening_hours IS NULL) OR ($3 <> '' AND photo_url = ''))`

	tag, err := r.pgpool.Exec(ctx, query, placeID, encoded, photoURL)
	if err != nil {
		r.logger.Error("Failed to fill missing details", zap.String("placeID", placeID.String()), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return false, fmt.Errorf("database error filling place details: %w", err)
	}
	updated = tag.RowsAffected() > 0
	span.SetAttributes(attribute.Bool("place.updated", updated))
	span.SetStatus(codes.Ok, "Details filled")
	return updated, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userID, placeID uuid.UUID) (err error) {
	ctx, span := otel.Tracer("PlacesRepo").Start(ctx, "Delete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "places"),
		attribute.String("place.id", placeID.String()),
	))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "places.delete", start, err) }(time.Now())

	l := r.logger.With(zap.String("method", "Delete"), zap.String("placeID", placeID.String()))

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM places WHERE id = $1 AND user_id = $2`, placeID, userID)
	if err != nil {
		l.Error("Failed to delete place", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting place: %w", err)
	}
	if tag.RowsAffected() == 0 {
		l.Warn("Attempted to delete non-existent place")
		span.SetStatus(codes.Error, "Place not found")
		return fmt.Errorf("place %s: %w", placeID, models.ErrNotFound)
	}

	l.Info("Place deleted")
	span.SetStatus(codes.Ok, "Place deleted")
	return nil
}

func (r *RepositoryImpl) ListMissingDetails(ctx context.Context, afterID uuid.UUID, limit int) (places []models.Place, err error) {
	ctx, span := otel.Tracer("PlacesRepo").Start(ctx, "ListMissingDetails", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "places"),
		attribute.Int("limit", limit),
	))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "places.list_missing_details", start, err) }(time.Now())

	query := `
		SELECT ` + placeColumnList + `
		FROM places
		WHERE external_id IS NOT NULL
		  AND (opening_hours IS NULL OR photo_url = '')
		  AND id > $1
		ORDER BY id
		LIMIT $2`

	rows, err := r.pgpool.Query(ctx, query, afterID, limit)
	if err != nil {
		r.logger.Error("Failed to list places missing details", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error listing places missing details: %w", err)
	}
	places, err = CollectPlaces(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Scan failed")
		return nil, fmt.Errorf("scanning places: %w", err)
	}
	span.SetAttributes(attribute.Int("places.count", len(places)))
	span.SetStatus(codes.Ok, "Places listed")
	return places, nil
}
