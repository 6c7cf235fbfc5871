// Command ensure-admin creates or refreshes the bootstrap administrator from ADMIN_EMAIL and
// ADMIN_PASSWORD. Without both variables it does nothing.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/repository"
	"github.com/noah-isme/matrischol-api/internal/service"
	"github.com/noah-isme/matrischol-api/pkg/config"
	"github.com/noah-isme/matrischol-api/pkg/database"
	"github.com/noah-isme/matrischol-api/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ensure-admin: %v", err)
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

	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		logr.Warn("ADMIN_EMAIL and ADMIN_PASSWORD are not set, no admin ensured")
		return nil
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	metrics := service.NewMetricsService()
	dispatcher := service.NewSideEffectDispatcher(repository.NewNotificationRepository(db), repository.NewAuditRepository(db), nil, metrics, logr)
	users := service.NewUserService(repository.NewUserRepository(db), nil, logr, dispatcher)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, err := users.EnsureAdmin(ctx, dto.EnsureAdminRequest{
		Email:     cfg.Admin.Email,
		Password:  cfg.Admin.Password,
		FirstName: cfg.Admin.FirstName,
		LastName:  cfg.Admin.LastName,
	})
	if err != nil {
		return err
	}
	if created {
		logr.Info("admin created", zap.String("email", cfg.Admin.Email))
	} else {
		logr.Info("admin updated", zap.String("email", cfg.Admin.Email))
	}
	return nil
}
