package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"homehub/internal/models"

	"github.com/gin-gonic/gin"
)

// PriceCheck scrapes current supplier prices for the requested components.
func (h *Handler) PriceCheck(c *gin.Context) {
	if h.priceMonitor == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("Enhanced features not available"))
		return
	}

	var req struct {
		Components []string `json:"components"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request"))
		return
	}
	if len(req.Components) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("No components specified"))
		return
	}
	if len(req.Components) > 20 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Too many components (max 20)"))
		return
	}

	priceData, err := h.priceMonitor.CheckComponents(c.Request.Context(), req.Components)
	if err != nil {
		log.Printf("[API] Price check failed: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Price check failed"))
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"price_data": priceData,
		"timestamp":  time.Now().Format(time.RFC3339),
	}))
}

// GetNews serves relevance-ranked tech news.
func (h *Handler) GetNews(c *gin.Context) {
	if h.newsMonitor == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("Enhanced features not available"))
		return
	}

	limit := 10
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 100 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid limit parameter"))
			return
		}
		limit = parsed
	}

	news, err := h.newsMonitor.RelevantNews(limit)
	if err != nil {
		log.Printf("[API] Failed to load news: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to load news"))
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"news":      news,
		"total":     len(news),
		"timestamp": time.Now().Format(time.RFC3339),
	}))
}

// GetWeather serves the current conditions plus a short forecast for the
// configured city.
func (h *Handler) GetWeather(c *gin.Context) {
	if h.weather == nil || !h.weather.Enabled() {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("Weather service not available"))
		return
	}

	days := 3
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 5 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid days parameter"))
			return
		}
		days = parsed
	}

	current, err := h.weather.CurrentWeather(c.Request.Context())
	if err != nil {
		log.Printf("[API] Weather lookup failed: %v", err)
		c.JSON(http.StatusBadGateway, models.ErrorResponse("Weather lookup failed"))
		return
	}

	forecast, err := h.weather.Forecast(c.Request.Context(), days)
	if err != nil {
		log.Printf("[API] Weather forecast failed: %v", err)
		c.JSON(http.StatusBadGateway, models.ErrorResponse("Weather forecast failed"))
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"current":   current,
		"forecast":  forecast,
		"timestamp": time.Now().Format(time.RFC3339),
	}))
}

// TriggerDataCollection starts the price/news/weather collection run in the
// background and returns immediately.
func (h *Handler) TriggerDataCollection(c *gin.Context) {
	if h.collect == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("Enhanced features not available"))
		return
	}

	go h.collect()

	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"message":   "Data collection started",
		"timestamp": time.Now().Format(time.RFC3339),
	}))
}

// AnalyzeImage runs the room photo analyzer and stores the scan result.
func (h *Handler) AnalyzeImage(c *gin.Context) {
	if h.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("Enhanced features not available"))
		return
	}

	var req struct {
		Image string `json:"image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request"))
		return
	}
	if req.Image == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("No image data provided"))
		return
	}

	analysis := h.analyzer.Analyze(req.Image)

	if h.db != nil && analysis.RoomType != "unknown" {
		scan := &models.RoomScan{
			Timestamp:    time.Now(),
			RoomType:     analysis.RoomType,
			Confidence:   analysis.Confidence,
			WidthMeters:  analysis.Dimensions[0],
			HeightMeters: analysis.Dimensions[1],
			Lighting:     analysis.Lighting,
			DeviceCount:  len(analysis.Devices),
			Suggestions:  strings.Join(analysis.Suggestions, "\n"),
		}
		if err := h.db.SaveRoomScan(scan); err != nil {
			log.Printf("[API] Failed to store room scan: %v", err)
		}
	}

	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"analysis":  analysis,
		"timestamp": time.Now().Format(time.RFC3339),
	}))
}

// Admin data endpoints

func (h *Handler) GetAlerts(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	var acknowledged *bool
	if v := c.Query("acknowledged"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err == nil {
			acknowledged = &parsed
		}
	}

	alerts, err := h.db.GetAlerts(limit, acknowledged)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to load alerts"))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(alerts))
}

func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid alert ID"))
		return
	}

	if err := h.db.AcknowledgeAlert(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to acknowledge alert"))
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse("Alert acknowledged"))
}

func (h *Handler) GetAvailability(c *gin.Context) {
	if h.availability == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("Availability tracking not enabled"))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(h.availability.GetStats()))
}

func (h *Handler) ResetAvailability(c *gin.Context) {
	if h.availability == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("Availability tracking not enabled"))
		return
	}
	if err := h.availability.Reset(); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to reset availability baseline"))
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse("Availability baseline reset"))
}

func (h *Handler) GetRoomScans(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	scans, err := h.db.GetRoomScans(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to load room scans"))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(scans))
}

func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.db.GetAllSettings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to load settings"))
		return
	}

	// Never return secret values
	for i := range settings {
		if settings[i].IsSecret {
			settings[i].Value = ""
		}
	}
	c.JSON(http.StatusOK, models.SuccessResponse(settings))
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req []models.SystemSetting
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request"))
		return
	}

	for i := range req {
		if req[i].Key == "" {
			continue
		}
		if err := h.db.UpsertSetting(&req[i]); err != nil {
			log.Printf("[API] Failed to save setting %s: %v", req[i].Key, err)
			c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to save settings"))
			return
		}
	}

	c.JSON(http.StatusOK, models.MessageResponse("Settings saved"))
}
