package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/psych-report/backend/internal/cache"
	"github.com/psych-report/backend/internal/config"
	"github.com/psych-report/backend/internal/database"
	"github.com/psych-report/backend/internal/handlers"
	"github.com/psych-report/backend/internal/logging"
	"github.com/psych-report/backend/internal/middleware"
	"github.com/psych-report/backend/internal/repository"
	"github.com/psych-report/backend/internal/seed"
	"github.com/psych-report/backend/internal/services"
)

// @title Psychological Report API
// @version 1.0
// @description Test bank resolution, descriptor cascade and narrative template rendering for psychological reports
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger := logging.New(cfg)
	defer logger.Sync()

	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if len(os.Args) > 1 {
		handleCommand(os.Args[1], cfg, db, logger)
		return
	}

	store, closeStore := cache.NewStore(cfg.Redis, logger)
	defer closeStore()

	defs := cache.NewDefinitionRepository(repository.NewGormTestDefinitionRepository(db), store, cfg.Redis.TTL, logger)
	templates := repository.NewGormTemplateRepository(db)
	rules := repository.NewGormDescriptorRuleRepository(db)
	assessments := repository.NewGormAssessmentRepository(db)

	// Services
	auditService := services.NewAuditService(repository.NewGormAuditRepository(db))
	learningService := services.NewLearningService(defs, auditService, logger, cfg.Report.LearningMaxRetries)
	reportService := services.NewReportService(defs, templates, rules, cfg.Report, logger)
	catalogService := services.NewCatalogService(defs, templates, rules, auditService, logger)
	assessmentService := services.NewAssessmentService(assessments, learningService, logger)

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Health check - simple endpoint that doesn't require DB
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "psych-report-api"})
	})

	if cfg.Monitoring.PrometheusEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	handlers.Handlers{
		Reports:     handlers.NewReportHandler(reportService),
		Catalog:     handlers.NewCatalogHandler(catalogService),
		Assessments: handlers.NewAssessmentHandler(assessmentService),
		Audit:       handlers.NewAuditHandler(auditService),
	}.Register(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func handleCommand(cmd string, cfg *config.Config, db *gorm.DB, logger *zap.Logger) {
	switch cmd {
	case "migrate":
		if err := database.Migrate(db, logger); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		logger.Info("migration completed successfully")

	case "seed-system":
		seedSystem(cfg, db, logger)

	default:
		logger.Error("unknown command", zap.String("command", cmd))
		os.Exit(2)
	}
}

// seedSystem goes through the definition cache so a shared Redis drops its
// cached owner lists as soon as system definitions are added.
func seedSystem(cfg *config.Config, db *gorm.DB, logger *zap.Logger) {
	catalogue, err := seed.Load()
	if err != nil {
		logger.Fatal("failed to load seed catalogue", zap.Error(err))
	}

	store, closeStore := cache.NewStore(cfg.Redis, logger)
	defer closeStore()

	defs := cache.NewDefinitionRepository(repository.NewGormTestDefinitionRepository(db), store, cfg.Redis.TTL, logger)
	seeder := seed.NewSeeder(defs, repository.NewGormTemplateRepository(db), logger)
	if _, err := seeder.Run(context.Background(), catalogue); err != nil {
		logger.Fatal("failed to seed system catalogue", zap.Error(err))
	}
}
