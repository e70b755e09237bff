package main

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"challengetracker/internal/config"
	"challengetracker/internal/database"
	"challengetracker/internal/handlers"
	"challengetracker/internal/models"
	"challengetracker/internal/repository"
	"challengetracker/internal/security"
	"challengetracker/internal/service"
	"challengetracker/migrations"
)

func main() {
	// Load configuration
	cfg := config.Load()

	slots, err := models.ParseClassSlots(cfg.ClassSlots)
	if err != nil {
		log.Fatalf("Invalid CLASS_SLOTS: %v", err)
	}

	// Initialize database with config (supports sqlite, postgres, mysql)
	handlers.SetCurrentStep(handlers.StepDatabase)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	handlers.CompleteStep(handlers.StepDatabase)

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	// Run migrations
	handlers.SetCurrentStep(handlers.StepMigrations)
	if err := db.RunMigrations(migrationsFS(cfg.MigrationsPath)); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	handlers.CompleteStep(handlers.StepMigrations)

	log.Println("Migrations completed successfully")

	// Initialize repositories and services
	store := repository.NewStore(db)
	historyRepo := repository.NewHistoryRepository(db)

	reconciler := service.NewReconciler(store, slots)
	ledger := service.NewHistoryLedger(historyRepo)
	workspace := service.NewWorkspace(reconciler, ledger, cfg.AutosaveDelay)
	poller := service.NewPoller(reconciler, cfg.PollInterval)
	backupService := service.NewBackupService(reconciler, ledger, cfg.DatabaseType)

	authService, err := service.NewAuthService(cfg.SharedPassword, cfg.SessionSecret, cfg.SessionDuration)
	if err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}

	emailService, err := service.NewEmailService(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.Debug)
	if err != nil {
		log.Printf("Warning: Failed to initialize email service: %v", err)
		emailService, _ = service.NewEmailService(cfg.AWSRegion, "", "", cfg.AppBaseURL, cfg.Debug)
	}
	digestService := service.NewDigestService(ledger, emailService, store.Settings, cfg.DigestTo, cfg.DigestHour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handlers.SetCurrentStep(handlers.StepLoadState)
	if err := workspace.Reload(ctx); err != nil {
		// edits are refused until the stored state has been read
		log.Printf("Warning: failed to load state, retrying in the background: %v", err)
		go reloadUntilLoaded(ctx, workspace, cfg.PollInterval)
	}
	handlers.CompleteStep(handlers.StepLoadState)

	// Background jobs
	handlers.SetCurrentStep(handlers.StepBackground)
	go poller.Run(ctx)
	go digestService.Run(ctx, 5*time.Minute)
	handlers.CompleteStep(handlers.StepBackground)

	// 5 login attempts per minute per client
	loginLimiter := security.NewRateLimiter(5, time.Minute)
	defer loginLimiter.Stop()

	handler := handlers.NewRouter(handlers.Services{
		Auth:           authService,
		Workspace:      workspace,
		Poller:         poller,
		Ledger:         ledger,
		Search:         service.NewStudentSearch(ledger),
		Backup:         backupService,
		LoginLimiter:   loginLimiter,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()
	handlers.CompleteStep(handlers.StepServer)
	handlers.MarkReady()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	if !workspace.Loaded() {
		return
	}
	if err := workspace.Flush(shutdownCtx); err != nil {
		log.Printf("Error saving pending changes: %v", err)
	}
}

// reloadUntilLoaded retries the initial state load every interval until it succeeds
func reloadUntilLoaded(ctx context.Context, workspace *service.Workspace, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := workspace.Reload(ctx); err != nil {
				log.Printf("Failed to load state: %v", err)
				continue
			}
			log.Println("State loaded")
			return
		}
	}
}

// migrationsFS returns the embedded schema unless MIGRATIONS_PATH points at a directory
func migrationsFS(path string) fs.FS {
	if path == "" {
		return migrations.FS
	}
	return os.DirFS(path)
}
