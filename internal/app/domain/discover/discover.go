package discover

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/domain"
	"github.com/FACorreiaa/go-radar/internal/app/models"
)

type DiscoverHandlers struct {
	*domain.BaseHandler
	service Service
}

func NewDiscoverHandlers(service Service, logger *zap.Logger) *DiscoverHandlers {
	return &DiscoverHandlers{
		BaseHandler: domain.NewBaseHandler(logger),
		service:     service,
	}
}

func (h *DiscoverHandlers) RegisterRoutes(rg *gin.RouterGroup) {
	d := rg.Group("/discover")
	d.GET("/trending", h.Trending)
	d.GET("/picked-for-you", h.PickedForYou)
	d.GET("/support-local", h.SupportLocal)
}

func (h *DiscoverHandlers) Trending(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	places, err := h.service.Trending(c.Request.Context(), userID)
	h.respond(c, places, err, "trending")
}

func (h *DiscoverHandlers) PickedForYou(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	places, err := h.service.PickedForYou(c.Request.Context(), userID)
	h.respond(c, places, err, "picked for you")
}

func (h *DiscoverHandlers) SupportLocal(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	places, err := h.service.SupportLocal(c.Request.Context(), userID)
	h.respond(c, places, err, "support local")
}

func (h *DiscoverHandlers) respond(c *gin.Context, places []models.RankedPlace, err error, view string) {
	if err != nil {
		h.RespondError(c, err, view)
		return
	}
	c.JSON(http.StatusOK, gin.H{"places": places, "count": len(places)})
}
