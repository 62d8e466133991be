package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"arena-engine/internal/auth"
	"arena-engine/internal/config"
	"arena-engine/internal/database"
	"arena-engine/internal/handlers"
	"arena-engine/internal/jobs"
	"arena-engine/internal/ledger"
	"arena-engine/internal/repository"
	"arena-engine/internal/services"
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
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db := database.GetDB()

	// Collaborators
	valueLedger := ledger.NewTokenLedger(db)
	directory := ledger.NewDirectory(db)
	reputation := ledger.NewScoreStore(db)

	// Repository and services
	repo := repository.NewRepository(db)
	contestService := services.NewContestService(
		repo,
		valueLedger,
		directory,
		reputation,
		cfg.App.EscrowAccount,
	)
	escrowService := services.NewEscrowService(repo, valueLedger, cfg.App.EscrowAccount)
	adminService := services.NewAdminService(repo)

	// Seed the root operator and treasury settings
	if err := adminService.Bootstrap(context.Background(), cfg.App.RootOperator); err != nil {
		log.Fatalf("Failed to bootstrap operator: %v", err)
	}
	if cfg.App.TreasuryAccount != "" {
		settings, err := repo.GetSettings(context.Background())
		if err != nil {
			log.Fatalf("Failed to load settings: %v", err)
		}
		if settings.TreasuryAccount != cfg.App.TreasuryAccount {
			settings.TreasuryAccount = cfg.App.TreasuryAccount
			if err := repo.UpdateSettings(context.Background(), settings); err != nil {
				log.Fatalf("Failed to update treasury: %v", err)
			}
		}
	}

	// Handlers
	contestHandler := handlers.NewContestHandler(contestService)
	adminHandler := handlers.NewAdminHandler(adminService, contestService)
	escrowHandler := handlers.NewEscrowHandler(escrowService)
	identityHandler := handlers.NewIdentityHandler(directory)

	// Deadline sweeper: the caller that realizes deadline-driven transitions
	sweepSecs, err := strconv.Atoi(cfg.App.SweepSeconds)
	if err != nil || sweepSecs <= 0 {
		sweepSecs = 30
	}
	if cfg.App.RootOperator == "" {
		log.Println("ROOT_OPERATOR not set, deadline sweeper disabled")
	} else {
		sweeper := jobs.NewDeadlineSweeper(repo, contestService, cfg.App.RootOperator,
			time.Duration(sweepSecs)*time.Second)
		go sweeper.Start()
		defer sweeper.Stop()
	}

	// Set up Gin router
	router := gin.Default()

	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Public contest routes
	router.GET("/api/contests", contestHandler.ListContests)
	router.GET("/api/contests/:id", contestHandler.GetContest)
	router.GET("/api/contests/:id/entries", contestHandler.GetEntries)
	router.GET("/api/contests/:id/settlement", contestHandler.GetSettlement)
	router.GET("/api/identity/bindings/:identity", identityHandler.ResolveIdentity)

	// Participant routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.POST("/contests", contestHandler.CreateContest)
		api.GET("/contests/mine", contestHandler.GetMyContests)
		api.POST("/contests/:id/join", contestHandler.JoinContest)
		api.POST("/contests/:id/answers", contestHandler.SubmitAnswer)
		api.POST("/contests/:id/pick-winner", contestHandler.PickWinner)
		api.POST("/contests/:id/claims/winner", contestHandler.ClaimWinnerReward)
		api.POST("/contests/:id/claims/share", contestHandler.ClaimShare)
		api.POST("/contests/:id/claims/refund", contestHandler.ClaimCreatorRefund)

		api.GET("/escrow/balance", escrowHandler.GetPendingBalance)
		api.POST("/escrow/withdraw", escrowHandler.Withdraw)

		api.POST("/identity/bindings", identityHandler.RegisterIdentity)
		api.GET("/stats/me", contestHandler.GetStats)
	}

	// Operator routes (protected; each service call re-checks the role)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	{
		admin.POST("/contests/:id/question", adminHandler.PostQuestion)
		admin.POST("/contests/:id/open-answering", adminHandler.OpenAnswering)
		admin.POST("/contests/:id/settle", adminHandler.Settle)
		admin.POST("/contests/:id/approve", adminHandler.Approve)
		admin.POST("/contests/:id/reject", adminHandler.Reject)
		admin.POST("/contests/:id/expire", adminHandler.Expire)
		admin.POST("/contests/:id/refund", adminHandler.RefundTimeout)

		admin.POST("/operators", adminHandler.AddOperator)
		admin.DELETE("/operators/:account", adminHandler.RemoveOperator)
		admin.PUT("/treasury", adminHandler.UpdateTreasury)
		admin.PUT("/splits", adminHandler.UpdateSplits)
		admin.POST("/pause", adminHandler.Pause)
		admin.POST("/unpause", adminHandler.Unpause)
		admin.GET("/settings", adminHandler.GetSettings)
	}

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

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
