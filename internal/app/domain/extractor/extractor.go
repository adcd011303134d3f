// Package extractor turns social captions into place candidates.
package extractor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/domain/district"
	"github.com/FACorreiaa/go-radar/internal/app/models"
)

const (
	pinConfidence = 0.95
	aiConfidence  = 0.85
	maxPromptText = 4000
)

// Extractor defines the caption extraction contract. Zero candidates is a valid result.
type Extractor interface {
	ExtractCandidates(ctx context.Context, rawText, sourceURL string) ([]models.PlaceCandidate, error)
}

var _ Extractor = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger    *zap.Logger
	ai        TextGenerator
	districts *district.Gazetteer
}

// NewExtractor creates an extractor. ai may be nil, in which case only pin markers are read.
func NewExtractor(ai TextGenerator, districts *district.Gazetteer, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger, ai: ai, districts: districts}
}

type aiPlace struct {
	Name     string `json:"name"`
	District string `json:"district"`
	Category string `json:"category"`
}

func (s *ServiceImpl) ExtractCandidates(ctx context.Context, rawText, sourceURL string) ([]models.PlaceCandidate, error) {
	ctx, span := otel.Tracer("Extractor").Start(ctx, "ExtractCandidates", trace.WithAttributes(
		attribute.String("source.url", sourceURL),
		attribute.Int("caption.length", len(rawText)),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "ExtractCandidates"))

	text := strings.TrimSpace(rawText)
	if text == "" {
		span.SetStatus(codes.Ok, "empty caption")
		return []models.PlaceCandidate{}, nil
	}

	platform := DetectPlatform(sourceURL)
	tags := ExtractTags(text)
	captionDistrict, _ := s.districts.Match(text)

	base := models.PlaceCandidate{
		SourceCaption:  text,
		SourceURL:      sourceURL,
		SourcePlatform: platform,
		Tags:           tags,
	}

	var candidates []models.PlaceCandidate
	for _, pin := range ExtractPinned(text) {
		c := base
		c.RawName = pin.Name
		c.Confidence = pinConfidence
		if d, ok := s.districts.Match(pin.Rest); ok {
			c.DistrictHint = d
		} else {
			c.DistrictHint = captionDistrict
		}
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 && s.ai != nil {
		places, err := s.extractWithAI(ctx, text)
		if err != nil {
			// AI extraction is best effort; the caller sees zero candidates.
			l.Warn("AI extraction failed", zap.Error(err))
			span.RecordError(err)
		}
		for _, p := range places {
			c := base
			c.RawName = trimName(p.Name)
			if c.RawName == "" {
				continue
			}
			c.Confidence = aiConfidence
			c.CategoryHint = strings.ToLower(strings.TrimSpace(p.Category))
			if p.District != "" {
				c.DistrictHint = s.districts.Canonical(p.District)
			} else {
				c.DistrictHint = captionDistrict
			}
			candidates = append(candidates, c)
			if len(candidates) == maxCandidates {
				break
			}
		}
	}

	if candidates == nil {
		candidates = []models.PlaceCandidate{}
	}
	l.Debug("Candidates extracted", zap.Int("count", len(candidates)), zap.String("platform", platform))
	span.SetAttributes(attribute.Int("candidates.count", len(candidates)))
	span.SetStatus(codes.Ok, "extraction completed")
	return candidates, nil
}

func (s *ServiceImpl) extractWithAI(ctx context.Context, text string) ([]aiPlace, error) {
	prompt := fmt.Sprintf(`Extract the physical venues (restaurants, bars, cafes, shops, attractions) mentioned in this social media caption.
Return ONLY a JSON array of objects with the keys "name", "district" and "category".
category must be one of: eat, cafes, bars, shops, leisure, go_out, nature, culture.
Prefer one of these district names when it applies: %s.
Use an empty string for unknown district. Return [] when no venue is mentioned.

Caption:
%s`, strings.Join(s.districts.Names(), ", "), truncateText(text, maxPromptText))

	response, err := s.ai.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseAIResponse(response), nil
}

// truncateText cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// parseAIResponse accepts a JSON array (optionally fenced) or "Place:/District:/Category:" lines.
func parseAIResponse(response string) []aiPlace {
	if start, end := strings.Index(response, "["), strings.LastIndex(response, "]"); start >= 0 && end > start {
		var places []aiPlace
		if err := json.Unmarshal([]byte(response[start:end+1]), &places); err == nil {
			return places
		}
	}

	var places []aiPlace
	var current *aiPlace
	scanner := bufio.NewScanner(strings.NewReader(response))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "place", "name":
			if strings.EqualFold(value, "none") || value == "" {
				current = nil
				continue
			}
			places = append(places, aiPlace{Name: value})
			current = &places[len(places)-1]
		case "district":
			if current != nil && !strings.EqualFold(value, "unknown") {
				current.District = value
			}
		case "category":
			if current != nil {
				current.Category = value
			}
		}
	}
	return places
}
