// Package backfill fills photos and opening hours that were missing when a place was pinned.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/go-radar/internal/app/domain/places"
	"github.com/FACorreiaa/go-radar/internal/app/domain/resolver"
	"github.com/FACorreiaa/go-radar/internal/app/models"
	"github.com/FACorreiaa/go-radar/internal/app/observability/metrics"
)

const (
	defaultBatchSize = 100
	defaultDelay     = 200 * time.Millisecond
)

// Report summarises one pass.
type Report struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Config struct {
	BatchSize int
	// Delay is the minimum spacing between provider calls.
	Delay time.Duration
}

type Runner struct {
	logger   *zap.Logger
	repo     places.Repository
	resolver resolver.Resolver
	limiter  *rate.Limiter
	cfg      Config
}

func NewRunner(repo places.Repository, res resolver.Resolver, cfg Config, logger *zap.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Delay <= 0 {
		cfg.Delay = defaultDelay
	}
	return &Runner{
		logger:   logger,
		repo:     repo,
		resolver: res,
		limiter:  rate.NewLimiter(rate.Every(cfg.Delay), 1),
		cfg:      cfg,
	}
}

// RunOnce walks every place that has an external id but lacks a photo or hours.
// Stored values are never overwritten.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	ctx, span := otel.Tracer("Backfill").Start(ctx, "RunOnce")
	defer span.End()

	l := r.logger.With(zap.String("method", "RunOnce"))

	var (
		report Report
		after  uuid.UUID
	)
	for {
		batch, err := r.repo.ListMissingDetails(ctx, after, r.cfg.BatchSize)
		if err != nil {
			l.Error("Failed to list places missing details", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "list failed")
			return report, fmt.Errorf("listing places missing details: %w", err)
		}
		for _, p := range batch {
			report.Checked++
			switch r.fill(ctx, p) {
			case resultUpdated:
				report.Updated++
			case resultSkipped:
				report.Skipped++
			case resultFailed:
				report.Failed++
			}
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
		}
		if len(batch) < r.cfg.BatchSize {
			break
		}
		after = batch[len(batch)-1].ID
	}

	if report.Updated > 0 {
		metrics.Get().BackfillUpdatedTotal.Add(ctx, int64(report.Updated))
	}
	span.SetAttributes(
		attribute.Int("backfill.checked", report.Checked),
		attribute.Int("backfill.updated", report.Updated),
		attribute.Int("backfill.failed", report.Failed),
	)
	span.SetStatus(codes.Ok, "backfill pass complete")
	l.Info("Backfill pass complete",
		zap.Int("checked", report.Checked),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

type fillResult int

const (
	resultUpdated fillResult = iota
	resultSkipped
	resultFailed
)

func (r *Runner) fill(ctx context.Context, p models.Place) fillResult {
	if !p.NeedsBackfill() {
		return resultSkipped
	}
	l := r.logger.With(zap.String("placeID", p.ID.String()), zap.String("externalID", p.ExternalIDValue()))

	venue, err := r.lookup(ctx, p.ExternalIDValue())
	if errors.Is(err, models.ErrProviderUnavailable) {
		l.Debug("Provider unavailable, retrying once")
		venue, err = r.lookup(ctx, p.ExternalIDValue())
	}
	if err != nil {
		l.Warn("Backfill lookup failed", zap.Error(err))
		return resultFailed
	}

	filled, changed := places.FillMissing(p, *venue)
	if !changed {
		return resultSkipped
	}
	photo := ""
	if filled.PhotoURL != p.PhotoURL {
		photo = filled.PhotoURL
	}
	var hours *models.OpeningHours
	if p.OpeningHours.IsEmpty() && !filled.OpeningHours.IsEmpty() {
		hours = filled.OpeningHours
	}

	updated, err := r.repo.FillMissingDetails(ctx, p.ID, hours, photo)
	if err != nil {
		l.Warn("Backfill update failed", zap.Error(err))
		return resultFailed
	}
	if !updated {
		return resultSkipped
	}
	return resultUpdated
}

func (r *Runner) lookup(ctx context.Context, externalID string) (*models.CanonicalVenue, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.resolver.ResolveExternalID(ctx, externalID)
}

// Start runs a pass every interval until ctx is cancelled.
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Backfill loop started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Backfill loop stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("Backfill pass failed", zap.Error(err))
			}
		}
	}
}
