package handlers

import (
	"log"
	"net/http"
	"time"

	"homehub/internal/api/middleware"
	"homehub/internal/auth"
	"homehub/internal/availability"
	"homehub/internal/config"
	"homehub/internal/database"
	"homehub/internal/energy"
	"homehub/internal/iot"
	"homehub/internal/models"
	"homehub/internal/pricing"
	"homehub/internal/vision"
	"homehub/internal/weather"

	"github.com/gin-gonic/gin"
)

// hubVersion is reported by the status endpoints.
const hubVersion = "2.0.0"

type Handler struct {
	config       *config.Config
	authManager  *auth.AuthManager
	db           *database.Database
	controller   *iot.Controller
	engine       *iot.Engine
	energy       *energy.Recorder
	priceMonitor *pricing.Monitor
	newsMonitor  *pricing.NewsMonitor
	analyzer     *vision.Analyzer
	weather      *weather.Client
	availability *availability.Tracker
	collect      func()
}

// Deps carries the wired subsystems. Nil entries disable the corresponding
// enhanced endpoints, which then answer 503.
type Deps struct {
	Controller   *iot.Controller
	Engine       *iot.Engine
	Energy       *energy.Recorder
	PriceMonitor *pricing.Monitor
	NewsMonitor  *pricing.NewsMonitor
	Analyzer     *vision.Analyzer
	Weather      *weather.Client
	Availability *availability.Tracker
	Collect      func()
}

func NewHandler(cfg *config.Config, authManager *auth.AuthManager, db *database.Database, deps Deps) *Handler {
	return &Handler{
		config:       cfg,
		authManager:  authManager,
		db:           db,
		controller:   deps.Controller,
		engine:       deps.Engine,
		energy:       deps.Energy,
		priceMonitor: deps.PriceMonitor,
		newsMonitor:  deps.NewsMonitor,
		analyzer:     deps.Analyzer,
		weather:      deps.Weather,
		availability: deps.Availability,
		collect:      deps.Collect,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"status":  "ok",
		"version": hubVersion,
		"components": gin.H{
			"database":       h.db != nil,
			"iot_controller": h.controller != nil,
			"price_monitor":  h.priceMonitor != nil,
			"image_analyzer": h.analyzer != nil,
			"weather":        h.weather != nil && h.weather.Enabled(),
		},
	}))
}

// SystemStatus reports component wiring, device totals, weather and hub
// availability in one payload.
func (h *Handler) SystemStatus(c *gin.Context) {
	status := gin.H{
		"timestamp":         time.Now().Format(time.RFC3339),
		"version":           hubVersion,
		"enhanced_features": h.controller != nil,
		"components": gin.H{
			"iot_controller":  h.controller != nil,
			"price_monitor":   h.priceMonitor != nil,
			"image_analyzer":  h.analyzer != nil,
			"weather_service": h.weather != nil && h.weather.Enabled(),
		},
	}

	if h.db != nil {
		total, online, err := h.db.CountDevices()
		if err == nil {
			status["iot_devices"] = total
			status["iot_online"] = online
		}
	}

	if h.weather != nil && h.weather.Enabled() {
		current, err := h.weather.CurrentWeather(c.Request.Context())
		if err != nil {
			log.Printf("[API] Weather check failed: %v", err)
		} else {
			status["current_weather"] = current
		}
	}

	if h.availability != nil {
		status["availability"] = h.availability.GetStats()
	}

	c.JSON(http.StatusOK, models.SuccessResponse(status))
}

func (h *Handler) Login(c *gin.Context) {
	if h.authManager == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Authentication not configured"))
		return
	}

	var creds struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request"))
		return
	}

	// Reject oversized passwords to prevent bcrypt CPU exhaustion DoS
	if len(creds.Password) > 1024 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid credentials"))
		return
	}

	if len(creds.Username) > 255 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid credentials"))
		return
	}

	ip := c.ClientIP()
	userAgent := c.Request.UserAgent()
	if len(userAgent) > 512 {
		userAgent = userAgent[:512]
	}

	if err := h.authManager.ValidateCredentials(creds.Username, creds.Password); err != nil {
		if h.db != nil {
			if dbErr := h.db.SaveLoginAttempt(&models.LoginAttempt{
				Timestamp: time.Now(),
				Username:  creds.Username,
				IPAddress: ip,
				Success:   false,
				UserAgent: userAgent,
			}); dbErr != nil {
				log.Printf("Failed to save login attempt: %v", dbErr)
			}
		}
		if err == auth.ErrAccountLocked {
			c.JSON(http.StatusTooManyRequests, models.ErrorResponse("Account temporarily locked due to too many failed attempts"))
			return
		}
		c.JSON(http.StatusUnauthorized, models.ErrorResponse("Invalid credentials"))
		return
	}

	if h.db != nil {
		if dbErr := h.db.SaveLoginAttempt(&models.LoginAttempt{
			Timestamp: time.Now(),
			Username:  creds.Username,
			IPAddress: ip,
			Success:   true,
			UserAgent: userAgent,
		}); dbErr != nil {
			log.Printf("Failed to save login attempt: %v", dbErr)
		}
	}

	var adminID uint = 1
	if h.db != nil {
		adminRecord, adminErr := h.db.GetAdminByUsername(creds.Username)
		if adminErr == nil && adminRecord != nil {
			adminID = adminRecord.ID
		}
	}

	token, err := h.authManager.GenerateToken(creds.Username, adminID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to generate token"))
		return
	}

	// HMAC-signed CSRF token tied to the auth token
	csrfToken := middleware.GenerateCSRFToken(token, h.config.Server.JWTSecretKey)

	cookieSecure := h.config != nil && h.config.Server.CookieSecure
	cookieMaxAge := 86400
	if h.config != nil && h.config.Auth.TokenExpiry > 0 {
		cookieMaxAge = int(h.config.Auth.TokenExpiry.Seconds())
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		MaxAge:   cookieMaxAge,
		Path:     "/",
		Secure:   cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "csrf_token",
		Value:    csrfToken,
		MaxAge:   cookieMaxAge,
		Path:     "/",
		Secure:   cookieSecure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})

	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"message":    "Login successful",
		"csrf_token": csrfToken,
	}))
}

func (h *Handler) Logout(c *gin.Context) {
	// Only clear cookies if an auth token is present (prevents cross-origin logout)
	if _, err := c.Cookie("auth_token"); err != nil {
		c.JSON(http.StatusOK, models.MessageResponse("Already logged out"))
		return
	}

	cookieSecure := h.config != nil && h.config.Server.CookieSecure

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "auth_token",
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "csrf_token",
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	c.JSON(http.StatusOK, models.MessageResponse("Logged out successfully"))
}

// GetCSRFToken re-derives the CSRF token for an authenticated session.
func (h *Handler) GetCSRFToken(c *gin.Context) {
	token, err := c.Cookie("auth_token")
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse("Authentication required"))
		return
	}

	csrfToken := middleware.GenerateCSRFToken(token, h.config.Server.JWTSecretKey)
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"csrf_token": csrfToken}))
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request"))
		return
	}

	if len(req.NewPassword) < 12 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Password must be at least 12 characters"))
		return
	}
	if len(req.NewPassword) > 1024 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Password too long"))
		return
	}

	username := c.GetString("username")
	if err := h.authManager.ValidateCredentials(username, req.CurrentPassword); err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse("Current password is incorrect"))
		return
	}

	if err := h.authManager.UpdatePassword(username, req.NewPassword); err != nil {
		log.Printf("Failed to update password: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to update password"))
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse("Password updated successfully"))
}
