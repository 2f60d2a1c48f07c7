package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/CleanExpo/ATO-sub007/internal/analysis"
	"github.com/CleanExpo/ATO-sub007/internal/clients/redis"
	"github.com/CleanExpo/ATO-sub007/internal/db"
	"github.com/CleanExpo/ATO-sub007/internal/handlers"
	"github.com/CleanExpo/ATO-sub007/internal/observability"
	"github.com/CleanExpo/ATO-sub007/internal/platform/envutil"
	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
	"github.com/CleanExpo/ATO-sub007/internal/platform/openai"
	"github.com/CleanExpo/ATO-sub007/internal/ratelimit"
	"github.com/CleanExpo/ATO-sub007/internal/repos"
	"github.com/CleanExpo/ATO-sub007/internal/server"
)

func main() {
	// Logger
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownOtel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "ato-analysis",
		Environment: logMode,
		Version:     envutil.String("SERVICE_VERSION", "dev"),
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOtel(ctx)
	}()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	transactionRepo := repos.NewTransactionRepo(thePG, log)
	classificationRepo := repos.NewClassificationRepo(thePG, log)
	costLedgerRepo := repos.NewCostLedgerRepo(thePG, log)
	analysisJobRepo := repos.NewAnalysisJobRepo(thePG, log)

	// Report cache (completion hook). Optional: without redis the pipeline
	// still runs, the hook is simply disabled.
	var cache analysis.CacheInvalidator
	reportCache, err := redis.NewReportCache(log)
	if err != nil {
		log.Warn("Report cache unavailable, completion hook disabled", "error", err)
	} else {
		defer reportCache.Close()
		cache = reportCache
	}

	// Classifier
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	taxClassifier := analysis.NewTaxClassifier(openaiClient, log)
	concurrency := envutil.Int("ANALYSIS_CONCURRENCY", analysis.DefaultConcurrency)

	// Pipeline
	invoker := analysis.NewInvoker(taxClassifier, concurrency, log)
	persister := analysis.NewPersister(classificationRepo, log)
	accountant := analysis.NewAccountant(costLedgerRepo, log)
	tracker := analysis.NewTracker(analysisJobRepo, log)
	svc := analysis.NewService(log, transactionRepo, invoker, persister, accountant, tracker, cache)
	runner := analysis.NewRunner(svc, log)

	// HTTP
	limiter := ratelimit.NewFromEnv()
	analysisHandler := handlers.NewAnalysisHandler(svc, runner, limiter, log)
	router := server.NewRouter(server.RouterConfig{
		AnalysisHandler: analysisHandler,
		ServiceName:     "ato-analysis",
	})

	addr := ":" + envutil.String("PORT", "8080")
	log.Info("Starting server", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
