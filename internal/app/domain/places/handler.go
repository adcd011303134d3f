package places

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/domain"
	"github.com/FACorreiaa/go-radar/internal/app/models"
)

const maxBulkCandidates = 50

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

// RegisterRoutes mounts the place endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import-url", h.ImportURL)
	rg.POST("/pin-place", h.PinPlace)
	rg.POST("/pin-place/bulk", h.BulkPin)
	rg.GET("/search-places", h.SearchPlaces)
	rg.GET("/categories", h.Categories)

	p := rg.Group("/places")
	p.GET("", h.ListPlaces)
	p.POST("/by-external-id", h.PinByExternalID)
	p.GET("/:id", h.GetPlace)
	p.PATCH("/:id", h.UpdatePlace)
	p.DELETE("/:id", h.DeletePlace)
	p.POST("/:id/refresh", h.RefreshPlace)
}

type importURLRequest struct {
	URL string `json:"url" binding:"required"`
}

type bulkPinRequest struct {
	Candidates []models.PlaceCandidate `json:"candidates" binding:"required"`
}

type pinByExternalIDRequest struct {
	ExternalID     string   `json:"external_id" binding:"required"`
	SourcePlatform string   `json:"source_platform"`
	SourceURL      string   `json:"source_url"`
	SourceCaption  string   `json:"source_caption"`
	SourceAuthor   string   `json:"source_author"`
	Tags           []string `json:"tags"`
}

func importStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

func (h *Handler) ImportURL(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	var req importURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. url is required"})
		return
	}

	result, err := h.service.ImportFromURL(c.Request.Context(), userID, req.URL)
	if err != nil {
		h.RespondError(c, err, "import url")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) PinPlace(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	var candidate models.PlaceCandidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid place payload", "details": err.Error()})
		return
	}
	if candidate.SourcePlatform == "" {
		candidate.SourcePlatform = models.PlatformManual
	}
	if candidate.Confidence == 0 {
		candidate.Confidence = 1
	}

	result, err := h.service.ImportPlace(c.Request.Context(), userID, candidate)
	if err != nil {
		h.RespondError(c, err, "pin place")
		return
	}
	c.JSON(importStatus(result.Created), result)
}

func (h *Handler) BulkPin(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	var req bulkPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. candidates are required"})
		return
	}
	if len(req.Candidates) > maxBulkCandidates {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many candidates", "details": "At most " + strconv.Itoa(maxBulkCandidates) + " per request"})
		return
	}

	result, err := h.service.BulkPin(c.Request.Context(), userID, req.Candidates)
	if err != nil {
		h.RespondError(c, err, "bulk pin")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) PinByExternalID(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	var req pinByExternalIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. external_id is required"})
		return
	}

	candidate := models.PlaceCandidate{
		Confidence:     1,
		SourcePlatform: req.SourcePlatform,
		SourceURL:      req.SourceURL,
		SourceCaption:  req.SourceCaption,
		SourceAuthor:   req.SourceAuthor,
		Tags:           req.Tags,
	}
	result, err := h.service.PinByExternalID(c.Request.Context(), userID, req.ExternalID, candidate)
	if err != nil {
		h.RespondError(c, err, "pin by external id")
		return
	}
	c.JSON(importStatus(result.Created), result)
}

func (h *Handler) SearchPlaces(c *gin.Context) {
	if _, ok := h.UserID(c); !ok {
		return
	}

	var bias *models.LatLng
	if latStr, lngStr := c.Query("lat"), c.Query("lng"); latStr != "" && lngStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lng, errLng := strconv.ParseFloat(lngStr, 64)
		if errLat != nil || errLng != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates"})
			return
		}
		bias = &models.LatLng{Lat: lat, Lng: lng}
	}

	results, err := h.service.SearchPlaces(c.Request.Context(), c.Query("q"), bias)
	if err != nil {
		h.RespondError(c, err, "search places")
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) ListPlaces(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	var filter models.PlaceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter", "details": err.Error()})
		return
	}
	filter.UserID = userID

	places, err := h.service.ListPlaces(c.Request.Context(), filter)
	if err != nil {
		h.RespondError(c, err, "list places")
		return
	}
	c.JSON(http.StatusOK, gin.H{"places": places, "count": len(places)})
}

func (h *Handler) GetPlace(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	placeID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}

	place, err := h.service.GetPlace(c.Request.Context(), userID, placeID)
	if err != nil {
		h.RespondError(c, err, "get place")
		return
	}
	c.JSON(http.StatusOK, place)
}

func (h *Handler) UpdatePlace(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	placeID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var params models.UpdatePlaceParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update payload", "details": err.Error()})
		return
	}

	place, err := h.service.UpdatePlace(c.Request.Context(), userID, placeID, params)
	if err != nil {
		h.RespondError(c, err, "update place")
		return
	}
	c.JSON(http.StatusOK, place)
}

func (h *Handler) DeletePlace(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	placeID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeletePlace(c.Request.Context(), userID, placeID); err != nil {
		h.RespondError(c, err, "delete place")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RefreshPlace(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	placeID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}

	place, err := h.service.RefreshPlace(c.Request.Context(), userID, placeID)
	if err != nil {
		h.RespondError(c, err, "refresh place")
		return
	}
	c.JSON(http.StatusOK, place)
}

func (h *Handler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.service.Categories()})
}
