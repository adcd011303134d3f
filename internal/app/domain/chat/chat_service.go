// Package chat answers free-form questions about venues in the city.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/domain/district"
	"github.com/FACorreiaa/go-radar/internal/app/models"
)

// historyWindow is how many earlier turns are forwarded to the model.
const historyWindow = 10

const systemPrompt = `You are Radar's assistant, an expert on Hong Kong restaurants, cafes, bars and venues.
You help users discover places to eat, drink and hang out. Be friendly, concise and enthusiastic.

Location context:
- HKUST is in Clear Water Bay (Sai Kung). HKU is in Pok Fu Lam (Western). CUHK is in Sha Tin.
- Recommend places near the area the user mentions, not across the city.
- Name the district of every place you recommend, using one of: %s.

Keep responses under 150 words.`

// Responder is the external conversational model.
type Responder interface {
	Respond(ctx context.Context, system string, history []models.ChatMessage, message string) (string, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Reply(ctx context.Context, userID uuid.UUID, req models.ChatRequest) (*models.ChatResponse, error)
}

type ServiceImpl struct {
	logger    *zap.Logger
	responder Responder
	system    string
	validate  *validator.Validate
}

// NewService creates the concierge. responder may be nil, in which case every reply
// reports the provider as unavailable.
func NewService(responder Responder, districts *district.Gazetteer, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		responder: responder,
		system:    fmt.Sprintf(systemPrompt, strings.Join(districts.Names(), ", ")),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *ServiceImpl) Reply(ctx context.Context, userID uuid.UUID, req models.ChatRequest) (*models.ChatResponse, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "Reply", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("history.length", len(req.ConversationHistory)),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "Reply"), zap.String("userID", userID.String()))

	req.Message = strings.TrimSpace(req.Message)
	if err := s.validate.Struct(req); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}
	if s.responder == nil {
		span.SetStatus(codes.Error, "no responder configured")
		return nil, fmt.Errorf("%w: chat is not configured", models.ErrProviderUnavailable)
	}

	history := req.ConversationHistory
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	answer, err := s.responder.Respond(ctx, s.system, history, req.Message)
	if err != nil {
		l.Warn("Chat model call failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "responder failed")
		return nil, fmt.Errorf("%w: %w", models.ErrProviderUnavailable, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		span.SetStatus(codes.Error, "empty answer")
		return nil, fmt.Errorf("%w: empty chat answer", models.ErrProviderUnavailable)
	}

	l.Debug("Chat answered", zap.Int("answer.length", len(answer)))
	span.SetStatus(codes.Ok, "chat answered")
	return &models.ChatResponse{Response: answer}, nil
}
