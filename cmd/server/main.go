package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/equinoxcap/investor-portal-backend/internal/api"
	"github.com/equinoxcap/investor-portal-backend/internal/config"
	"github.com/equinoxcap/investor-portal-backend/internal/database"
	"github.com/equinoxcap/investor-portal-backend/internal/repository"
	"github.com/equinoxcap/investor-portal-backend/internal/scheduler"
	"github.com/equinoxcap/investor-portal-backend/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database: %s", cfg.Database.Path)

	// Apply schema migrations
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Create repositories
	dealRepo := repository.NewDealRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	formulaRepo := repository.NewFormulaRepository(db)

	// Create services
	systemService := service.NewSystemService(db)
	feeService := service.NewFeeService(feeRepo, dealRepo, transactionRepo)
	importService := service.NewImportService(feeRepo, transactionRepo, cfg.Import.FernetKey)
	formulaService := service.NewFormulaService(formulaRepo, dealRepo)
	transactionService := service.NewTransactionService(transactionRepo, dealRepo, feeService)

	// Create router
	router := api.NewRouter(systemService, feeService, importService, formulaService, transactionService, cfg)

	// Start the nightly recalculation job
	recalcScheduler := scheduler.New(dealRepo, transactionService)
	if cfg.Scheduler.RecalcEnabled {
		if err := recalcScheduler.Start(cfg.Scheduler.RecalcSchedule); err != nil {
			log.Fatalf("Failed to start recalculation scheduler: %v", err)
		}
		defer recalcScheduler.Stop()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
