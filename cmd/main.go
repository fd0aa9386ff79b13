package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"round-lottery/internal/auth"
	"round-lottery/internal/cache"
	"round-lottery/internal/config"
	"round-lottery/internal/database"
	"round-lottery/internal/handlers"
	"round-lottery/internal/jobs"
	"round-lottery/internal/notify"
	"round-lottery/internal/ocr"
	"round-lottery/internal/repository"
	"round-lottery/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.Database.Driver, cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	repo := repository.NewRepository(database.GetDB())

	// Redis is optional: it adds a cross-process round lock, a rate limiter
	// and a pub/sub notification sink
	var redisService *cache.RedisService
	if cfg.Redis.Addr != "" {
		redisService, err = cache.NewRedisService(cfg.Redis)
		if err != nil {
			log.Printf("Redis unavailable, continuing without it: %v", err)
			redisService = nil
		}
	}

	// Notification sinks
	hub := notify.NewHub()
	go hub.Run()
	sinks := []notify.Sink{hub}

	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notify.WebhookURL))
	}
	var natsSink *notify.NATSSink
	if cfg.Notify.NATSURL != "" {
		natsSink, err = notify.ConnectNATS(cfg.Notify.NATSURL, "lottery")
		if err != nil {
			log.Printf("NATS unavailable, continuing without it: %v", err)
		} else {
			sinks = append(sinks, natsSink)
		}
	}
	if redisService != nil {
		sinks = append(sinks, notify.NewRedisSink(redisService.Client(), "lottery:notifications"))
	}

	notifications, err := services.NewNotificationService(repo, cfg.Notify.PoolSize, sinks...)
	if err != nil {
		log.Fatalf("Failed to create notification service: %v", err)
	}

	// Initialize services
	clock := services.SystemClock{}
	roundClock := services.NewRoundClock(cfg.Rounds.Schedule)
	settings := services.NewSettingsService(repo, cfg.Payments.AutoApproveDeposits)
	membership := services.NewMembershipService(repo, cfg.Membership, notifications, clock)
	referrals := services.NewReferralService(repo, cfg.Referral, notifications)
	accounts := services.NewAccountService(repo, roundClock, membership, settings, clock, cfg.App, cfg.Rounds.BetCutoff)
	settlement := services.NewSettlementEngine(repo, services.NewPayoutTable(cfg.Payout), membership, notifications, clock)
	generator := services.NewResultGenerator(repo, clock, roundClock, settlement, notifications)
	reporting := services.NewReportingService(repo)
	approvals := services.NewApprovalService(repo, membership, referrals, settings, notifications, clock, cfg.Payments)
	adminService := services.NewAdminService(repo, accounts, reporting, settings, notifications)

	if cfg.Payments.OCRURL != "" {
		approvals.WithVerifier(ocr.NewClient(cfg.Payments.OCRURL, cfg.Payments.OCRAPIKey))
		log.Println("Receipt verification enabled")
	}

	var limiter handlers.RateLimiter
	if redisService != nil {
		generator.WithLocker(redisService)
		limiter = redisService
	}

	// Start round jobs
	checker := jobs.NewRoundChecker(generator, cfg.Rounds.CheckInterval, roundClock.Slots())
	checker.Start()
	log.Println("Round checker started")

	scheduler := jobs.NewRoundScheduler(generator, notifications, cfg.Rounds)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start round scheduler: %v", err)
	}
	log.Println("Round scheduler started")

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if cfg.Server.FrontendURL != "" {
		allowedOrigins = append(allowedOrigins, cfg.Server.FrontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	handlers.RegisterRoutes(router, &handlers.Handlers{
		Auth:          handlers.NewAuthHandler(accounts),
		Rounds:        handlers.NewRoundHandler(roundClock, generator, accounts, clock),
		Bets:          handlers.NewBetHandler(accounts, reporting, limiter),
		Payments:      handlers.NewPaymentHandler(approvals, accounts),
		Referrals:     handlers.NewReferralHandler(referrals),
		Notifications: handlers.NewNotificationHandler(accounts, adminService, hub),
		Admin:         handlers.NewAdminHandler(adminService, approvals, reporting, settings, clock),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	scheduler.Stop()
	checker.Stop()
	approvals.Wait()
	notifications.Close()
	hub.Stop()
	if natsSink != nil {
		natsSink.Close()
	}
	if redisService != nil {
		if err := redisService.Close(); err != nil {
			log.Printf("Failed to close redis: %v", err)
		}
	}

	log.Println("Server exited")
}
