package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homehub/internal/api/handlers"
	"homehub/internal/api/middleware"
	"homehub/internal/auth"
	"homehub/internal/availability"
	"homehub/internal/config"
	"homehub/internal/database"
	"homehub/internal/energy"
	"homehub/internal/iot"
	"homehub/internal/mqtt"
	"homehub/internal/pricing"
	"homehub/internal/vision"
	"homehub/internal/weather"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	if cfg.Server.JWTSecretKey == "" {
		secret, err := auth.GenerateSecureToken(32)
		if err != nil {
			log.Fatalf("Failed to generate JWT secret: %v", err)
		}
		cfg.Server.JWTSecretKey = secret
		log.Println("WARNING: JWT_SECRET_KEY not set, generated a random secret. Sessions will not survive restarts.")
	}

	gin.SetMode(gin.ReleaseMode)

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	authManager := auth.NewAuthManager(cfg, db)

	hashedPassword, err := authManager.HashPassword(cfg.Auth.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}
	if err := db.InitAdmin(cfg.Auth.AdminUsername, hashedPassword); err != nil {
		log.Fatalf("Failed to initialize admin account: %v", err)
	}

	if cfg.IsGeneratedPassword() {
		fmt.Fprintf(os.Stderr, "\n"+
			"==================================================\n"+
			"  Generated admin password: %s\n"+
			"  Set ADMIN_PASSWORD to use a fixed password.\n"+
			"==================================================\n\n",
			cfg.Auth.AdminPassword)
	}
	cfg.Auth.AdminPassword = ""

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			authManager.PruneExpiredAttempts()
		}
	}()

	if err := iot.SeedDevices(db, cfg.Hub.DeviceSeedFile); err != nil {
		log.Printf("[Main] Device seeding failed: %v", err)
	}
	if err := iot.SeedRules(db); err != nil {
		log.Printf("[Main] Rule seeding failed: %v", err)
	}

	ctx := context.Background()

	var publisher iot.Publisher
	statePublisher, err := mqtt.NewStatePublisher(ctx, cfg)
	if err != nil {
		log.Printf("[Main] MQTT disabled: %v", err)
	} else if statePublisher != nil {
		publisher = statePublisher
		defer statePublisher.Close(ctx)
	}

	controller := iot.NewController(db, publisher)
	engine := iot.NewEngine(db, controller)
	recorder := energy.NewRecorder(db, cfg)
	priceMonitor := pricing.NewMonitor(db, cfg)
	newsMonitor := pricing.NewNewsMonitor(db, priceMonitor)
	analyzer := vision.NewAnalyzer()
	weatherClient := weather.NewClient(cfg)

	var tracker *availability.Tracker
	if cfg.Availability.TrackingEnabled {
		tracker = availability.NewTracker(cfg, db)
	}

	collect := func() {
		collectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		for _, component := range cfg.Pricing.WatchList {
			if _, err := priceMonitor.CheckComponent(collectCtx, component); err != nil {
				log.Printf("[Collect] Price check for %q failed: %v", component, err)
			}
		}
		if count, err := newsMonitor.Collect(collectCtx); err != nil {
			log.Printf("[Collect] News collection failed: %v", err)
		} else {
			log.Printf("[Collect] Collected %d news items", count)
		}
		if weatherClient.Enabled() {
			if current, err := weatherClient.CurrentWeather(collectCtx); err != nil {
				log.Printf("[Collect] Weather check failed: %v", err)
			} else {
				log.Printf("[Collect] Weather: %.1f°C, %s", current.Temperature, current.Description)
			}
		}
	}

	handler := handlers.NewHandler(cfg, authManager, db, handlers.Deps{
		Controller:   controller,
		Engine:       engine,
		Energy:       recorder,
		PriceMonitor: priceMonitor,
		NewsMonitor:  newsMonitor,
		Analyzer:     analyzer,
		Weather:      weatherClient,
		Availability: tracker,
		Collect:      collect,
	})

	router := setupRouter(cfg, authManager, handler)

	srv := &http.Server{
		Addr:           cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 16,
	}

	go func() {
		scheme := "http"
		if cfg.Server.EnableTLS {
			scheme = "https"
		}
		log.Printf("[Main] Home Hub API listening on %s://%s", scheme, srv.Addr)

		var err error
		if cfg.Server.EnableTLS {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Main] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Main] Forced shutdown: %v", err)
	}
	log.Println("[Main] Server stopped")
}

func setupRouter(cfg *config.Config, authManager *auth.AuthManager, handler *handlers.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		log.Fatalf("Failed to configure trusted proxies: %v", err)
	}

	router.Use(middleware.SecureHeaders())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimiter(cfg))

	api := router.Group("/api")
	api.Use(middleware.BodySizeLimit(5 << 20))
	{
		api.GET("/health", handler.Health)
		api.GET("/system/status", handler.SystemStatus)
		api.POST("/auth/login", middleware.LoginRateLimiter(), handler.Login)

		enhanced := api.Group("/enhanced")
		{
			enhanced.POST("/price-check", handler.PriceCheck)
			enhanced.GET("/iot/devices", handler.GetIoTDevices)
			enhanced.POST("/iot/control", handler.ControlIoTDevice)
			enhanced.GET("/iot/automation", handler.GetAutomationRules)
			enhanced.GET("/iot/energy-report", handler.GetEnergyReport)
			enhanced.GET("/news", handler.GetNews)
			enhanced.GET("/weather", handler.GetWeather)
			enhanced.POST("/data-collection", handler.TriggerDataCollection)
		}
	}

	// Room photos are large; the analysis route gets its own body limit.
	analyze := router.Group("/api/enhanced")
	analyze.Use(middleware.BodySizeLimit(20 << 20))
	{
		analyze.POST("/image-analysis", handler.AnalyzeImage)
	}

	admin := router.Group("/admin")
	admin.Use(middleware.BodySizeLimit(5 << 20))
	admin.Use(middleware.AdminAuth(authManager))
	admin.Use(middleware.CSRFProtection(cfg))
	{
		admin.GET("/api/csrf-token", handler.GetCSRFToken)
		admin.POST("/api/logout", handler.Logout)
		admin.POST("/api/settings/password", handler.ChangePassword)

		admin.GET("/api/devices", handler.GetAdminDevices)
		admin.POST("/api/devices", handler.CreateDevice)
		admin.PUT("/api/devices/:id", handler.UpdateDevice)
		admin.DELETE("/api/devices/:id", handler.DeleteDevice)

		admin.POST("/api/automation", handler.CreateRule)
		admin.PUT("/api/automation/:id", handler.UpdateRule)
		admin.DELETE("/api/automation/:id", handler.DeleteRule)
		admin.POST("/api/automation/:id/execute", handler.ExecuteRule)

		admin.GET("/api/alerts", handler.GetAlerts)
		admin.POST("/api/alerts/:id/ack", handler.AcknowledgeAlert)

		admin.GET("/api/availability", handler.GetAvailability)
		admin.POST("/api/availability/reset", handler.ResetAvailability)

		admin.GET("/api/scans", handler.GetRoomScans)

		admin.GET("/api/settings", handler.GetSettings)
		admin.POST("/api/settings", handler.UpdateSettings)
	}

	return router
}
