package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"runQuestAPI/handlers"
	"runQuestAPI/internal/config"
	"runQuestAPI/internal/notification"
	"runQuestAPI/internal/store"
	"runQuestAPI/internal/strava"
	"runQuestAPI/internal/workers"
	"runQuestAPI/middleware"
	"runQuestAPI/services"
)

func main() {
	cfg := config.Load()

	if cfg.ClerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(cfg.ClerkSecretKey)
	log.Println("Clerk initialized successfully")

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	defaults, err := config.LoadScoringDefaults(cfg.ScoringDefaultsFile)
	if err != nil {
		log.Fatal("Failed to load scoring defaults:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbPool, err := store.Connect(connectCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()
	log.Println("Successfully connected to database")

	db := store.New(dbPool)
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		cancel()
		log.Fatal("Failed to migrate database:", err)
	}
	cancel()

	// Services
	settingsService := services.NewSettingsService(db, defaults)
	if err := settingsService.SeedDefaults(ctx); err != nil {
		log.Printf("Warning: could not seed scoring settings: %v", err)
	}

	reconciler := services.NewReconciler(db, defaults.Levels)
	runService := services.NewRunService(db, settingsService, reconciler)
	runService.SetLocation(cfg.StreakLocation)

	notificationService := services.NewNotificationService(db, db)
	fcmService, err := notification.NewFCMService(cfg.FCMCredentialsFile)
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}
	runService.SetNotifier(notificationService)

	leaderboardService := services.NewLeaderboardService(db, db)
	leaderboardService.SetLocation(cfg.StreakLocation)
	userService := services.NewUserService(dbPool)
	userService.SetLocation(cfg.StreakLocation)

	var stravaService *services.StravaService
	if cfg.StravaEnabled() {
		client := strava.NewClient(strava.Config{
			ClientID:          cfg.StravaClientID,
			ClientSecret:      cfg.StravaClientSecret,
			RedirectURL:       cfg.StravaRedirectURL,
			RequestsPerSecond: cfg.StravaRequestRate,
		})
		stravaService = services.NewStravaService(client, db, db, runService)
		stravaService.SetNotifier(notificationService)
		workers.StartStravaSyncWorker(ctx, stravaService, cfg.StravaSyncInterval)
	} else {
		log.Println("Strava credentials not set, import disabled")
	}

	if cfg.ReconcileInterval > 0 {
		workers.StartReconcileWorker(ctx, reconciler, cfg.ReconcileInterval)
	}

	middleware.InitPrometheus()

	// Handlers
	userHandler := handlers.NewUserHandler(userService, runService)
	runHandler := handlers.NewRunHandler(runService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	adminHandler := handlers.NewAdminHandler(settingsService, reconciler, runService)
	webhookHandler := handlers.NewWebhookHandler(userService, cfg.ClerkWebhookSecret)

	r := mux.NewRouter()

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	go limiter.Cleanup(ctx, 3*time.Minute)

	r.Use(limiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "runquest-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/delete-account", userHandler.DeleteAccount).Methods("DELETE")
	protected.HandleFunc("/user/stats", userHandler.GetUserStats).Methods("GET")

	protected.HandleFunc("/runs", runHandler.ListRuns).Methods("GET")
	protected.HandleFunc("/runs", runHandler.CreateRun).Methods("POST")
	protected.HandleFunc("/runs/preview", runHandler.PreviewRun).Methods("POST")
	protected.HandleFunc("/runs/{runID}", runHandler.DeleteRun).Methods("DELETE")

	protected.HandleFunc("/leaderboards", leaderboardHandler.GetLeaderboards).Methods("GET")

	protected.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	protected.HandleFunc("/notifications/read-all", notificationHandler.MarkAllAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/{id}/read", notificationHandler.MarkAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	if stravaService != nil {
		stravaHandler := handlers.NewStravaHandler(stravaService)
		protected.HandleFunc("/strava/connect", stravaHandler.Connect).Methods("GET")
		protected.HandleFunc("/strava/callback", stravaHandler.Callback).Methods("POST")
		protected.HandleFunc("/strava/sync", stravaHandler.Sync).Methods("POST")
	}

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminOnly(cfg.AdminClerkIDs))

	admin.HandleFunc("/settings/scoring", adminHandler.GetScoringConfig).Methods("GET")
	admin.HandleFunc("/settings/scoring", adminHandler.UpdateScoringConfig).Methods("PUT")
	admin.HandleFunc("/settings/multipliers", adminHandler.GetStreakMultipliers).Methods("GET")
	admin.HandleFunc("/settings/multipliers", adminHandler.UpdateStreakMultipliers).Methods("PUT")
	admin.HandleFunc("/reconcile", adminHandler.ReconcileAll).Methods("POST")
	admin.HandleFunc("/reconcile/{userID}", adminHandler.ReconcileUser).Methods("POST")
	admin.HandleFunc("/audit", adminHandler.Audit).Methods("GET")
	admin.HandleFunc("/users/{userID}/runs", adminHandler.DeleteRuns).Methods("DELETE")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := ":" + cfg.Port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 6 * time.Minute, // admin reconcile can run for minutes
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
