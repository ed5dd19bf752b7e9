package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sis-records-api/api/swagger"
	"github.com/noah-isme/sis-records-api/internal/handler"
	"github.com/noah-isme/sis-records-api/internal/repository"
	"github.com/noah-isme/sis-records-api/internal/service"
	"github.com/noah-isme/sis-records-api/pkg/cache"
	"github.com/noah-isme/sis-records-api/pkg/config"
	"github.com/noah-isme/sis-records-api/pkg/database"
	"github.com/noah-isme/sis-records-api/pkg/export"
	"github.com/noah-isme/sis-records-api/pkg/jobs"
	"github.com/noah-isme/sis-records-api/pkg/logger"
	"github.com/noah-isme/sis-records-api/pkg/storage"
)

// @title School Records API
// @version 1.0.0
// @description Grades, promotion, remedial classes, attendance and DepEd SF9/SF10 report cards.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, grade summary cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	app, err := buildApp(cfg, db, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to wire application", zap.Error(err))
	}
	app.start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, app, logr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logr.Error("server failed", zap.Error(err))
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
		_ = srv.Close()
	}
	app.stop()
	logr.Info("server stopped")
}

// application holds the wired handlers and the background machinery that outlives requests.
type application struct {
	auth    *service.AuthService
	metrics *service.MetricsService
	reports *service.ReportService
	queue   *jobs.Queue

	students    *handler.StudentHandler
	sections    *handler.SectionHandler
	subjects    *handler.SubjectHandler
	enrollments *handler.EnrollmentHandler
	grades      *handler.GradeHandler
	promotions  *handler.PromotionHandler
	attendance  *handler.AttendanceHandler
	cards       *handler.ReportCardHandler
	reportsAPI  *handler.ReportHandler
	probes      *handler.MetricsHandler
}

func buildApp(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	checks := []handler.ReadinessCheck{{Name: "database", Ping: db.PingContext}}
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		redisRepo := repository.NewCacheRepository(redisClient, logr)
		cacheRepo = redisRepo
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Ping: redisRepo.Ping})
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	studentRepo := repository.NewStudentRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewSubjectGradeRepository(db)
	finalRepo := repository.NewFinalGradeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	reportRepo := repository.NewReportRepository(db)

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          audiences(cfg.JWT.Audience),
	})
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	sectionSvc := service.NewSectionService(sectionRepo, subjectRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, sectionRepo, subjectRepo, gradeRepo, cacheSvc, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, finalRepo, enrollmentRepo, sectionRepo, subjectRepo, cacheSvc, metrics, validate, logr)
	promotionSvc := service.NewPromotionService(enrollmentRepo, gradeRepo, finalRepo, cacheSvc, metrics, logr)
	remedialSvc := service.NewRemedialService(enrollmentRepo, finalRepo, cacheSvc, metrics, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, enrollmentRepo, validate, logr)
	reportCardSvc := service.NewReportCardService(enrollmentRepo, studentRepo, gradeSvc, attendanceRepo, finalRepo, nil, export.SchoolInfo{
		Name:     cfg.ReportCards.SchoolName,
		ID:       cfg.ReportCards.SchoolID,
		District: cfg.ReportCards.District,
		Division: cfg.ReportCards.Division,
		Region:   cfg.ReportCards.Region,
	}, logr)

	app := &application{
		auth:        authSvc,
		metrics:     metrics,
		students:    handler.NewStudentHandler(studentSvc),
		sections:    handler.NewSectionHandler(sectionSvc),
		subjects:    handler.NewSubjectHandler(subjectSvc),
		enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		grades:      handler.NewGradeHandler(gradeSvc),
		promotions:  handler.NewPromotionHandler(promotionSvc, remedialSvc),
		attendance:  handler.NewAttendanceHandler(attendanceSvc),
		cards:       handler.NewReportCardHandler(reportCardSvc),
		probes:      handler.NewMetricsHandler(metrics, checks...),
	}

	if !cfg.Reports.Enabled {
		return app, nil
	}

	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init report storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exporter := service.NewExportService(reportCardSvc, sectionRepo, files, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, nil, nil, nil)

	worker := service.NewReportWorker(reportRepo, exporter, metrics, cfg.Reports.WorkerRetries, logr)
	app.queue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:       cfg.Reports.WorkerConcurrency,
		MaxRetries:    cfg.Reports.WorkerRetries,
		RetryDelay:    2 * time.Second,
		MaxRetryDelay: time.Minute,
		JobTimeout:    5 * time.Minute,
		Logger:        logr,
	})
	app.reports = service.NewReportService(reportRepo, sectionRepo, app.queue, exporter, validate, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})
	app.reportsAPI = handler.NewReportHandler(app.reports, logr)
	return app, nil
}

// start launches the report workers, re-queues jobs left over from a previous run and
// schedules cleanup of expired exports.
func (a *application) start(ctx context.Context) {
	if a.queue == nil {
		return
	}
	a.queue.Start(ctx)
	a.reports.RecoverPendingJobs(ctx)
	a.reports.StartCleanup(ctx)
}

func (a *application) stop() {
	if a.queue != nil {
		a.queue.Stop()
	}
}

func audiences(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
