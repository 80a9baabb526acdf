package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-task-manager/config"
	"github.com/oksasatya/go-task-manager/internal/application"
	pginfra "github.com/oksasatya/go-task-manager/internal/infrastructure/postgres"
	"github.com/oksasatya/go-task-manager/pkg/helpers"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "password123"
	demoName     = "Demo User"
)

var demoTasks = []application.CreateTaskInput{
	{Title: "Read the API docs", Description: "Start with /api/auth/register and /api/auth/login"},
	{Title: "Create your first task"},
	{Title: "Mark a task as done", Description: "PATCH /api/tasks/:id with status DONE"},
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env, cfg.LogLevel)
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	auth := application.NewAuthService(pginfra.NewUserRepository(pool), helpers.NewJWTManager(cfg.JWTSecret, cfg.AccessTTL), logger, cfg.BcryptCost)
	tasks := application.NewTaskService(pginfra.NewTaskRepository(pool), nil, logger)

	if err := seed(ctx, auth, tasks, logger); err != nil {
		log.Fatalf("seed: %v", err)
	}
}

// seed creates the demo user, or reuses it when it exists, and adds any demo
// task whose title the user does not have yet. Running it twice is a no-op.
func seed(ctx context.Context, auth *application.AuthService, tasks *application.TaskService, logger *logrus.Logger) error {
	userID, err := demoUser(ctx, auth, logger)
	if err != nil {
		return err
	}

	existing, err := tasks.FindAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("list demo tasks: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t.Title] = true
	}

	for _, in := range demoTasks {
		if have[in.Title] {
			continue
		}
		t, err := tasks.Create(ctx, in, userID)
		if err != nil {
			return fmt.Errorf("seed task %q: %w", in.Title, err)
		}
		logger.WithFields(logrus.Fields{"id": t.ID, "title": t.Title}).Info("seeded task")
	}
	return nil
}

func demoUser(ctx context.Context, auth *application.AuthService, logger *logrus.Logger) (string, error) {
	u, err := auth.Register(ctx, application.RegisterInput{Email: demoEmail, Password: demoPassword, Name: demoName})
	if err == nil {
		logger.WithFields(logrus.Fields{"id": u.ID, "email": demoEmail}).Info("seeded user")
		return u.ID, nil
	}
	if !errors.Is(err, application.ErrEmailTaken) {
		return "", fmt.Errorf("seed user: %w", err)
	}

	existing, err := auth.Repo.GetByEmail(ctx, demoEmail)
	if err != nil {
		return "", fmt.Errorf("load demo user: %w", err)
	}
	logger.WithFields(logrus.Fields{"id": existing.ID, "email": demoEmail}).Info("reusing demo user")
	return existing.ID, nil
}
