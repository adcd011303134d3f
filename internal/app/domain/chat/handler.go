package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/domain"
	"github.com/FACorreiaa/go-radar/internal/app/models"
)

type Handler struct {
	*domain.BaseHandler
	service Service
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		BaseHandler: domain.NewBaseHandler(logger),
		service:     service,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat", h.Chat)
}

func (h *Handler) Chat(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	resp, err := h.service.Reply(c.Request.Context(), userID, req)
	if err != nil {
		h.RespondError(c, err, "chat")
		return
	}
	c.JSON(http.StatusOK, resp)
}
