// Package googleplaces is a client for the Google Places text search and details endpoints.
package googleplaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/models"
)

const (
	defaultBaseURL       = "https://maps.googleapis.com/maps/api/place"
	defaultTimeout       = 10 * time.Second
	defaultPhotoMaxWidth = 800
	maxBodyBytes         = 2 << 20
)

var detailFields = strings.Join([]string{
	"place_id", "name", "formatted_address", "geometry", "opening_hours", "rating",
	"user_ratings_total", "price_level", "formatted_phone_number", "website", "photos",
	"types", "address_components",
}, ",")

// Config configures the client.
type Config struct {
	APIKey        string
	BaseURL       string
	Region        string
	Timeout       time.Duration
	PhotoMaxWidth int
}

// Client calls the Places API once per operation. Retries are the caller's concern.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*envelope]
	logger     *zap.Logger
}

// NewClient creates a client with a bounded timeout and a circuit breaker.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PhotoMaxWidth <= 0 {
		cfg.PhotoMaxWidth = defaultPhotoMaxWidth
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*envelope](gobreaker.Settings{
		Name:        "google-places",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Caller cancellation says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrMissingKey) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// TextSearch returns ranked candidates. No results is an empty slice and a nil error.
func (c *Client) TextSearch(ctx context.Context, q models.SearchQuery) ([]models.SearchResult, error) {
	ctx, span := otel.Tracer("GooglePlaces").Start(ctx, "TextSearch", trace.WithAttributes(
		attribute.String("places.query", q.Text),
		attribute.Bool("places.biased", q.Bias != nil),
	))
	defer span.End()

	params := url.Values{}
	params.Set("query", q.Text)
	if q.Bias != nil {
		radius := q.RadiusMeters
		if radius <= 0 {
			radius = 500
		}
		params.Set("location", fmt.Sprintf("%s,%s",
			strconv.FormatFloat(q.Bias.Lat, 'f', -1, 64),
			strconv.FormatFloat(q.Bias.Lng, 'f', -1, 64)))
		params.Set("radius", strconv.Itoa(radius))
	}
	if c.cfg.Region != "" {
		params.Set("region", c.cfg.Region)
	}

	env, err := c.call(ctx, "textsearch", params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "text search failed")
		return nil, err
	}
	if env.Status == statusZeroResults || len(env.Results) == 0 {
		span.SetStatus(codes.Ok, "no results")
		return []models.SearchResult{}, nil
	}

	var results []placeResult
	if err := json.Unmarshal(env.Results, &results); err != nil {
		span.RecordError(err)
		return nil, wrapError("textsearch", env.Status, fmt.Errorf("%w: decode results: %v", ErrUnavailable, err))
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if r.PlaceID == "" {
			continue
		}
		sr := models.SearchResult{
			ExternalID:       r.PlaceID,
			Name:             r.Name,
			FormattedAddress: r.FormattedAddress,
			Lat:              r.Geometry.Location.Lat,
			Lng:              r.Geometry.Location.Lng,
			Rating:           r.Rating,
			CategoryTags:     r.Types,
		}
		if len(r.Photos) > 0 {
			sr.PhotoReference = r.Photos[0].PhotoReference
		}
		out = append(out, sr)
	}
	span.SetAttributes(attribute.Int("places.results", len(out)))
	span.SetStatus(codes.Ok, "text search completed")
	return out, nil
}

// Details fetches the full attribute set for one place id.
func (c *Client) Details(ctx context.Context, externalID string) (*models.PlaceDetails, error) {
	ctx, span := otel.Tracer("GooglePlaces").Start(ctx, "Details", trace.WithAttributes(
		attribute.String("places.external_id", externalID),
	))
	defer span.End()

	if strings.TrimSpace(externalID) == "" {
		return nil, wrapError("details", "", ErrNotFound)
	}

	params := url.Values{}
	params.Set("place_id", externalID)
	params.Set("fields", detailFields)

	env, err := c.call(ctx, "details", params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "details failed")
		return nil, err
	}
	if len(env.Result) == 0 {
		return nil, wrapError("details", env.Status, ErrNotFound)
	}

	var r placeResult
	if err := json.Unmarshal(env.Result, &r); err != nil {
		span.RecordError(err)
		return nil, wrapError("details", env.Status, fmt.Errorf("%w: decode result: %v", ErrUnavailable, err))
	}
	if r.PlaceID == "" {
		r.PlaceID = externalID
	}

	details := &models.PlaceDetails{
		ExternalID:       r.PlaceID,
		Name:             r.Name,
		FormattedAddress: r.FormattedAddress,
		District:         r.district(),
		Lat:              r.Geometry.Location.Lat,
		Lng:              r.Geometry.Location.Lng,
		Rating:           r.Rating,
		RatingCount:      r.UserRatingsTotal,
		PriceLevel:       r.PriceLevel,
		Phone:            r.FormattedPhoneNumber,
		Website:          r.Website,
		CategoryTags:     r.Types,
	}
	if r.OpeningHours != nil {
		details.OpeningHours = &models.OpeningHours{
			OpenNow:     r.OpeningHours.OpenNow,
			WeekdayText: r.OpeningHours.WeekdayText,
		}
	}
	for _, p := range r.Photos {
		if p.PhotoReference != "" {
			details.PhotoReferences = append(details.PhotoReferences, p.PhotoReference)
		}
	}

	span.SetStatus(codes.Ok, "details fetched")
	return details, nil
}

// PhotoURL builds the public photo URL for a photo reference.
func (c *Client) PhotoURL(reference string) string {
	if reference == "" {
		return ""
	}
	params := url.Values{}
	params.Set("maxwidth", strconv.Itoa(c.cfg.PhotoMaxWidth))
	params.Set("photo_reference", reference)
	params.Set("key", c.cfg.APIKey)
	return c.cfg.BaseURL + "/photo?" + params.Encode()
}

func (c *Client) call(ctx context.Context, op string, params url.Values) (*envelope, error) {
	if c.cfg.APIKey == "" {
		return nil, wrapError(op, "", ErrMissingKey)
	}

	env, err := c.breaker.Execute(func() (*envelope, error) {
		return c.do(ctx, op, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, wrapError(op, "", fmt.Errorf("%w: %w", ErrUnavailable, err))
	}
	return env, err
}

func (c *Client) do(ctx context.Context, op string, params url.Values) (*envelope, error) {
	params.Set("key", c.cfg.APIKey)
	reqURL := fmt.Sprintf("%s/%s/json?%s", c.cfg.BaseURL, op, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, wrapError(op, "", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.logger.Warn("Places request timed out", zap.String("op", op))
		}
		return nil, wrapError(op, "", fmt.Errorf("%w: %w", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, wrapError(op, "", fmt.Errorf("%w: read body: %w", ErrUnavailable, err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, wrapError(op, "", ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, wrapError(op, "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, wrapError(op, "", fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, wrapError(op, "", fmt.Errorf("%w: decode envelope: %v", ErrUnavailable, err))
	}

	switch env.Status {
	case statusOK, statusZeroResults:
		return &env, nil
	case statusNotFound:
		return nil, wrapError(op, env.Status, ErrNotFound)
	case statusInvalidRequest:
		if op == "details" {
			return nil, wrapError(op, env.Status, ErrNotFound)
		}
		return nil, wrapError(op, env.Status, fmt.Errorf("%w: %s", ErrUnavailable, env.ErrorMessage))
	default:
		c.logger.Warn("Places provider returned error status",
			zap.String("op", op),
			zap.String("status", env.Status),
			zap.String("message", env.ErrorMessage))
		return nil, wrapError(op, env.Status, fmt.Errorf("%w: %s", ErrUnavailable, env.ErrorMessage))
	}
}
