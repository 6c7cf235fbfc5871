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
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/matrischol-api/api/swagger"
	"github.com/noah-isme/matrischol-api/internal/handler"
	"github.com/noah-isme/matrischol-api/internal/middleware"
	"github.com/noah-isme/matrischol-api/internal/repository"
	"github.com/noah-isme/matrischol-api/internal/service"
	"github.com/noah-isme/matrischol-api/pkg/cache"
	"github.com/noah-isme/matrischol-api/pkg/config"
	"github.com/noah-isme/matrischol-api/pkg/database"
	"github.com/noah-isme/matrischol-api/pkg/geocode"
	"github.com/noah-isme/matrischol-api/pkg/jobs"
	"github.com/noah-isme/matrischol-api/pkg/logger"
	"github.com/noah-isme/matrischol-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/matrischol-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/matrischol-api/pkg/middleware/requestid"
	"github.com/noah-isme/matrischol-api/pkg/storage"
)

// @title Matrischol API
// @version 1.0.0
// @description School enrollment: institutions, courses, guardians, students, documents and enrollment requests.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	reporter := logger.NewReporter(cfg, logr)
	defer reporter.Close()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	// persistence
	users := repository.NewUserRepository(db)
	guardians := repository.NewGuardianRepository(db)
	staff := repository.NewStaffRepository(db)
	students := repository.NewStudentRepository(db)
	institutions := repository.NewInstitutionRepository(db)
	courses := repository.NewCourseRepository(db)
	subjects := repository.NewSubjectRepository(db)
	schedules := repository.NewScheduleRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	enrollmentRequests := repository.NewEnrollmentRequestRepository(db)
	institutionRequests := repository.NewInstitutionRequestRepository(db)
	courseRequests := repository.NewCourseRequestRepository(db)
	documents := repository.NewDocumentRepository(db)
	notifications := repository.NewNotificationRepository(db)
	audits := repository.NewAuditRepository(db)
	emailLogs := repository.NewEmailLogRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)

	files, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare document storage", zap.Error(err))
	}
	photos := storage.NewPhotoNormalizer(cfg.Documents.PhotoMaxEdge)
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	geocoder := geocode.NewClient(cfg.Geocoding, logr)

	// post-commit side effects
	renderer, err := mailer.NewRenderer(cfg.Email.SubjectPrefix)
	if err != nil {
		logr.Fatal("failed to parse email templates", zap.Error(err))
	}
	emailSvc := service.NewEmailService(renderer, newSender(cfg.Email, logr), emailLogs, cfg.Email.FrontendBaseURL, logr)
	dispatcher := service.NewSideEffectDispatcher(notifications, audits, emailSvc, metrics, logr)
	queue := jobs.NewQueue("side-effects", dispatcher.Handle, jobs.QueueConfig{
		Workers:    cfg.SideEffects.Workers,
		BufferSize: cfg.SideEffects.BufferSize,
		MaxRetries: cfg.SideEffects.MaxRetries,
		RetryDelay: cfg.SideEffects.RetryDelay,
		Logger:     logr,
		OnGiveUp:   dispatcher.GiveUp,
	})
	dispatcher.UseQueue(queue)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	queue.Start(ctx)
	defer queue.Stop()

	// domain services
	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	}).WithSideEffects(dispatcher).WithGeocoder(geocoder)
	userSvc := service.NewUserService(users, validate, logr, dispatcher)
	profileSvc := service.NewProfileService(guardians, students, geocoder, photos, files, validate, logr)
	catalogSvc := service.NewCatalogService(institutions, courses, cacheSvc, service.CatalogConfig{CacheTTL: cfg.Cache.TTL}, dispatcher, metrics, validate, logr)
	subjectSvc := service.NewSubjectService(subjects, validate, logr)
	scheduleSvc := service.NewScheduleService(schedules, courses, institutions, subjects, staff, validate, logr)
	documentSvc := service.NewDocumentService(documents, profileSvc, files, photos, signer, service.DocumentConfig{
		APIPrefix:    cfg.APIPrefix,
		MaxFileBytes: cfg.Documents.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Documents.AllowedMIMEs,
	}, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentDeps{
		Requests:     enrollmentRequests,
		Enrollments:  enrollments,
		Documents:    documents,
		Courses:      courses,
		Institutions: institutions,
		Students:     students,
		Guardians:    guardians,
	}, dispatcher, metrics, cfg.Enrollment.RequestTTL, validate, logr).WithCatalogCache(cacheSvc)
	approvalSvc := service.NewApprovalService(service.ApprovalDeps{
		Institutions: institutionRequests,
		Courses:      courseRequests,
		Authority:    institutions,
		Admins:       users,
		Staff:        staff,
		Catalog:      cacheSvc,
	}, dispatcher, metrics, validate, logr)
	notificationSvc := service.NewNotificationService(notifications, logr)
	auditSvc := service.NewAuditService(audits, logr)

	go runSweep(ctx, enrollmentSvc, cfg.Enrollment.SweepInterval, logr)

	r := gin.New()
	r.Use(reporter.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	health := handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
		"database": handler.PingFunc(db.PingContext),
		"redis": handler.PingFunc(func(ctx context.Context) error {
			if redisClient == nil {
				return nil
			}
			return cache.Ping(ctx, redisClient)
		}),
	})
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(userSvc),
		Profiles:      handler.NewProfileHandler(profileSvc, cfg.Documents.MaxFileSizeBytes),
		Documents:     handler.NewDocumentHandler(documentSvc, cfg.Documents.MaxFileSizeBytes),
		Catalog:       handler.NewCatalogHandler(catalogSvc),
		Subjects:      handler.NewSubjectHandler(subjectSvc),
		Schedules:     handler.NewScheduleHandler(scheduleSvc),
		Enrollments:   handler.NewEnrollmentHandler(enrollmentSvc),
		Approvals:     handler.NewApprovalHandler(approvalSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Audit:         handler.NewAuditHandler(auditSvc),
		Geocode:       handler.NewGeocodeHandler(geocoder),
	}, handler.RouteOptions{Tokens: authSvc, Audit: dispatcher})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			reporter.Report(err, nil)
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func newSender(cfg config.EmailConfig, logr *zap.Logger) mailer.Sender {
	if cfg.Provider == config.EmailProviderSendGrid && cfg.SendGridAPIKey != "" {
		return mailer.NewSendGridSender(cfg.SendGridAPIKey, cfg.FromName, cfg.FromAddress, "")
	}
	return mailer.NewConsoleSender(logr)
}

// runSweep expires overdue enrollment requests on a ticker. A non-positive interval disables it.
func runSweep(ctx context.Context, svc *service.EnrollmentService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Expire(ctx); err != nil {
				logr.Warn("expiry sweep failed", zap.Error(err))
			}
		}
	}
}
