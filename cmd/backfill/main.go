// Command backfill re-runs test bank learning over stored assessments, for
// example after importing historical data. Learning is idempotent, so it is
// safe to run repeatedly.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/psych-report/backend/internal/cache"
	"github.com/psych-report/backend/internal/config"
	"github.com/psych-report/backend/internal/database"
	"github.com/psych-report/backend/internal/logging"
	"github.com/psych-report/backend/internal/repository"
	"github.com/psych-report/backend/internal/services"
)

func main() {
	ownerFlag := flag.String("owner", "", "only backfill assessments of this owner (uuid)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger := logging.New(cfg)
	defer logger.Sync()

	var owner *uuid.UUID
	if *ownerFlag != "" {
		id, err := uuid.Parse(*ownerFlag)
		if err != nil {
			logger.Fatal("invalid -owner", zap.String("owner", *ownerFlag), zap.Error(err))
		}
		owner = &id
	}

	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	store, closeStore := cache.NewStore(cfg.Redis, logger)
	defer closeStore()

	defs := cache.NewDefinitionRepository(repository.NewGormTestDefinitionRepository(db), store, cfg.Redis.TTL, logger)
	audit := services.NewAuditService(repository.NewGormAuditRepository(db))
	learning := services.NewLearningService(defs, audit, logger, cfg.Report.LearningMaxRetries)
	svc := services.NewAssessmentService(repository.NewGormAssessmentRepository(db), learning, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := svc.Backfill(ctx, owner)
	if err != nil {
		logger.Fatal("backfill failed", zap.Error(err))
	}

	logger.Info("backfill summary",
		zap.Strings("created", summary.Created),
		zap.Strings("updated", summary.Updated),
		zap.Int("added_subtests", summary.AddedSubtests),
		zap.Strings("failed", summary.Failed))
	if len(summary.Failed) > 0 {
		os.Exit(1)
	}
}
