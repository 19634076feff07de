package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/adedejiosvaldo/safecall/backend/internal/auth"
	"github.com/adedejiosvaldo/safecall/backend/internal/config"
	"github.com/adedejiosvaldo/safecall/backend/internal/database"
	"github.com/adedejiosvaldo/safecall/backend/internal/fakecall"
	"github.com/adedejiosvaldo/safecall/backend/internal/handlers"
	"github.com/adedejiosvaldo/safecall/backend/internal/logging"
	"github.com/adedejiosvaldo/safecall/backend/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: cfg.Mode != config.ModeRelease,
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Postgres
	postgres, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to Postgres", zap.Error(err))
	}
	defer postgres.Close()
	if err := postgres.EnsureSchema(context.Background()); err != nil {
		logger.Fatal("failed to prepare schema", zap.Error(err))
	}
	logger.Info("connected to Postgres")

	// Initialize Redis
	redis, err := database.NewRedisDB(cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("connected to Redis")

	// Auth session state is process scoped: subscribe now, tear down on exit.
	hub := auth.NewSessionHub(redis, logger.Named("sessions"))
	if err := hub.Start(context.Background()); err != nil {
		logger.Fatal("failed to subscribe to session events", zap.Error(err))
	}
	defer hub.Close()

	// Initialize Firebase (optional)
	var notifier services.Notifier
	if fcmClient := initFCM(cfg, logger); fcmClient != nil {
		notifier = services.NewFCMNotifier(fcmClient)
	}

	// Initialize capabilities
	twilioAPI := services.NewTwilioAPI(cfg.TwilioAccountSID, cfg.TwilioAuthToken)
	if !cfg.TwilioConfigured() {
		logger.Warn("Twilio credentials missing, SMS and calls are unavailable")
	}
	var geocoder services.Geocoder = services.NoGeocoder{}
	if cfg.MapboxToken != "" {
		geocoder = services.NewMapboxGeocoder(cfg.MapboxToken, nil)
	}

	deps := services.Deps{
		Contacts:          postgres,
		Profiles:          postgres,
		Incidents:         postgres,
		Messenger:         services.NewTwilioMessenger(twilioAPI, cfg.TwilioPhoneNumber),
		Dialer:            services.NewTwilioDialer(twilioAPI, cfg.TwilioPhoneNumber, ""),
		Notifier:          notifier,
		Logger:            logger,
		TimeZone:          cfg.TimeZone,
		CapabilityTimeout: cfg.CapabilityTimeout,
	}
	shareService := services.NewLocationShareService(deps)
	emergencyService := services.NewEmergencyService(cfg.Mode, cfg.EmergencyNumber, deps)
	authService := auth.NewService(postgres, redis, redis,
		auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL), cfg.JWTSecret, logger.Named("auth"))
	logger.Info("services initialized", zap.String("mode", string(cfg.Mode)))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, redis,
		handlers.Limit{Requests: cfg.SignInRateLimit, Window: cfg.SignInRateWindow}, redis, logger)
	contactsHandler := handlers.NewContactsHandler(postgres, logger)
	profileHandler := handlers.NewProfileHandler(postgres, postgres, logger)
	safetyHandler := handlers.NewSafetyHandler(shareService, emergencyService, geocoder, redis,
		handlers.Limit{Requests: cfg.ShareRateLimit, Window: cfg.ShareRateWindow}, logger)
	fakeCallHandler := handlers.NewFakeCallHandler(hub, fakecall.RealClock(),
		fakecall.Config{AnswerDelay: cfg.FakeCallAnswerDelay}, logger)

	if cfg.Mode == config.ModeRelease {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin router
	router := setupRouter(authService, authHandler, contactsHandler, profileHandler, safetyHandler, fakeCallHandler)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		logger.Info("SafeCall API server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped gracefully")
}

func initFCM(cfg *config.Config, logger *zap.Logger) *messaging.Client {
	if cfg.FCMCredentialsPath == "" {
		return nil
	}
	ctx := context.Background()
	opt := option.WithCredentialsFile(cfg.FCMCredentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		logger.Warn("failed to initialize Firebase", zap.Error(err))
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		logger.Warn("failed to initialize FCM client", zap.Error(err))
		return nil
	}
	logger.Info("Firebase FCM initialized")
	return client
}

func setupRouter(
	authenticator auth.Authenticator,
	authHandler *handlers.AuthHandler,
	contactsHandler *handlers.ContactsHandler,
	profileHandler *handlers.ProfileHandler,
	safetyHandler *handlers.SafetyHandler,
	fakeCallHandler *handlers.FakeCallHandler,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "safecall-api",
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/v1")
	{
		v1.POST("/auth/signup", authHandler.SignUp)
		v1.POST("/auth/signin", authHandler.SignIn)
		v1.GET("/devices/:device_id/login-preferences", authHandler.GetLoginPreferences)
		v1.PUT("/devices/:device_id/login-preferences", authHandler.SetLoginPreferences)
	}

	secured := v1.Group("", auth.Middleware(authenticator))
	{
		secured.GET("/auth/me", authHandler.Me)
		secured.POST("/auth/signout", authHandler.SignOut)

		// Emergency contacts
		secured.GET("/contacts", contactsHandler.ListContacts)
		secured.POST("/contacts", contactsHandler.AddContact)
		secured.PUT("/contacts/:id", contactsHandler.UpdateContact)
		secured.DELETE("/contacts/:id", contactsHandler.DeleteContact)

		// Profile and history
		secured.GET("/profile", profileHandler.GetProfile)
		secured.PUT("/profile", profileHandler.UpdateProfile)
		secured.GET("/incidents", profileHandler.ListIncidents)

		// Safety actions
		secured.POST("/location/share", safetyHandler.ShareLocation)
		secured.POST("/emergency", safetyHandler.TriggerEmergency)
		secured.POST("/emergency/simulate", safetyHandler.SimulateEmergency)

		secured.GET("/fake-call/ws", fakeCallHandler.Connect)
	}

	return router
}
