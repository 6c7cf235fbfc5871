// Command expiry-sweep rejects every overdue pending enrollment request once and exits.
// Notifications and emails run inline before the process ends.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/repository"
	"github.com/noah-isme/matrischol-api/internal/service"
	"github.com/noah-isme/matrischol-api/pkg/config"
	"github.com/noah-isme/matrischol-api/pkg/database"
	"github.com/noah-isme/matrischol-api/pkg/logger"
	"github.com/noah-isme/matrischol-api/pkg/mailer"
)

func main() {
	if err := run(); err != nil {
		log.Printf("expiry-sweep: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	reporter := logger.NewReporter(cfg, logr)
	defer reporter.Close()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	renderer, err := mailer.NewRenderer(cfg.Email.SubjectPrefix)
	if err != nil {
		return fmt.Errorf("parse email templates: %w", err)
	}
	var sender mailer.Sender = mailer.NewConsoleSender(logr)
	if cfg.Email.Provider == config.EmailProviderSendGrid && cfg.Email.SendGridAPIKey != "" {
		sender = mailer.NewSendGridSender(cfg.Email.SendGridAPIKey, cfg.Email.FromName, cfg.Email.FromAddress, "")
	}

	metrics := service.NewMetricsService()
	emailSvc := service.NewEmailService(renderer, sender, repository.NewEmailLogRepository(db), cfg.Email.FrontendBaseURL, logr)
	// no queue: effects run inline
	dispatcher := service.NewSideEffectDispatcher(repository.NewNotificationRepository(db), repository.NewAuditRepository(db), emailSvc, metrics, logr)

	enrollments := service.NewEnrollmentService(service.EnrollmentDeps{
		Requests:     repository.NewEnrollmentRequestRepository(db),
		Enrollments:  repository.NewEnrollmentRepository(db),
		Documents:    repository.NewDocumentRepository(db),
		Courses:      repository.NewCourseRepository(db),
		Institutions: repository.NewInstitutionRepository(db),
		Students:     repository.NewStudentRepository(db),
		Guardians:    repository.NewGuardianRepository(db),
	}, dispatcher, metrics, cfg.Enrollment.RequestTTL, nil, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	expired, err := enrollments.Expire(ctx)
	if err != nil {
		reporter.Report(err, map[string]interface{}{"command": "expiry-sweep"})
		logr.Error("expiry sweep failed", zap.Error(err))
		return err
	}
	logr.Info("expiry sweep finished", zap.Int("expired", expired))
	return nil
}
