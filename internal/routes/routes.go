package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/domain/backfill"
	"github.com/FACorreiaa/go-radar/internal/app/domain/category"
	"github.com/FACorreiaa/go-radar/internal/app/domain/chat"
	"github.com/FACorreiaa/go-radar/internal/app/domain/discover"
	"github.com/FACorreiaa/go-radar/internal/app/domain/district"
	"github.com/FACorreiaa/go-radar/internal/app/domain/extractor"
	"github.com/FACorreiaa/go-radar/internal/app/domain/places"
	"github.com/FACorreiaa/go-radar/internal/app/domain/providers/googleplaces"
	"github.com/FACorreiaa/go-radar/internal/app/domain/providers/linkmeta"
	"github.com/FACorreiaa/go-radar/internal/app/domain/resolver"
	"github.com/FACorreiaa/go-radar/internal/app/middleware"
	"github.com/FACorreiaa/go-radar/internal/pkg/config"
)

type AppHandlers struct {
	Places   *places.Handler
	Discover *discover.DiscoverHandlers
	Chat     *chat.Handler
}

// App is the wired object graph. Backfill is started by the caller.
type App struct {
	Handlers *AppHandlers
	Backfill *backfill.Runner
}

// SetupDependencies builds repositories, providers and services from configuration.
func SetupDependencies(ctx context.Context, cfg *config.Config, dbPool *pgxpool.Pool, log *zap.Logger) (*App, error) {
	categories, err := category.NewMapper(category.DefaultTaxonomy())
	if err != nil {
		return nil, err
	}
	districts := district.New(district.HongKong())

	placesClient := googleplaces.NewClient(googleplaces.Config{
		APIKey:        cfg.Places.APIKey,
		BaseURL:       cfg.Places.BaseURL,
		Region:        cfg.Places.Region,
		Timeout:       cfg.Places.Timeout,
		PhotoMaxWidth: cfg.Places.PhotoMaxWidth,
	}, log)
	res := resolver.NewResolver(placesClient, categories, districts, resolver.Config{
		DefaultCity:  cfg.Places.DefaultCity,
		RadiusMeters: cfg.Places.RadiusMeters,
		CacheTTL:     cfg.Places.CacheTTL,
	}, log)

	// The extractor falls back to rules when no generator is configured.
	var ai extractor.TextGenerator
	gemini, err := extractor.NewGeminiGenerator(ctx, cfg.AI.GeminiAPIKey, cfg.AI.Model, cfg.AI.Timeout)
	if err != nil {
		log.Error("Failed to create Gemini generator, using rule-based extraction", zap.Error(err))
	} else if gemini != nil {
		ai = gemini
	}
	ext := extractor.NewExtractor(ai, districts, log)

	var concierge chat.Responder
	responder, err := chat.NewGeminiResponder(ctx, cfg.AI.GeminiAPIKey, cfg.AI.Model, cfg.AI.Timeout)
	if err != nil {
		log.Error("Failed to create chat responder, chat is disabled", zap.Error(err))
	} else if responder != nil {
		concierge = responder
	}

	links := linkmeta.NewClient(linkmeta.Config{
		MicrolinkURL: cfg.Metadata.MicrolinkURL,
		Timeout:      cfg.Metadata.Timeout,
	}, log)

	placesRepo := places.NewRepositoryImpl(dbPool, log)
	discoverRepo := discover.NewRepositoryImpl(dbPool, log)

	placesService := places.NewService(placesRepo, res, ext, links, log)
	discoverService := discover.NewService(discoverRepo, log)

	return &App{
		Handlers: &AppHandlers{
			Places:   places.NewHandler(placesService, log),
			Discover: discover.NewDiscoverHandlers(discoverService, log),
			Chat:     chat.NewHandler(chat.NewService(concierge, districts, log), log),
		},
		Backfill: backfill.NewRunner(placesRepo, res, backfill.Config{
			BatchSize: cfg.Backfill.BatchSize,
			Delay:     cfg.Backfill.Delay,
		}, log),
	}, nil
}

// Setup mounts /health and the authenticated /api/v1 surface.
func Setup(r *gin.Engine, h *AppHandlers, jwtCfg middleware.JWTConfig) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(jwtCfg))
	{
		h.Places.RegisterRoutes(api)
		h.Discover.RegisterRoutes(api)
		h.Chat.RegisterRoutes(api)
	}
}
