package router

import (
	"github.com/oksasatya/go-task-manager/config"
	"github.com/oksasatya/go-task-manager/internal/application"
	"github.com/oksasatya/go-task-manager/internal/container"
	"github.com/oksasatya/go-task-manager/internal/domain/repository"
	pginfra "github.com/oksasatya/go-task-manager/internal/infrastructure/postgres"
	"github.com/oksasatya/go-task-manager/internal/infrastructure/search"
	handlers "github.com/oksasatya/go-task-manager/internal/interface/http"
	"github.com/oksasatya/go-task-manager/internal/router/modules"
	"github.com/oksasatya/go-task-manager/pkg/helpers"
	"github.com/oksasatya/go-task-manager/pkg/validation"
)

type Repos struct {
	Users repository.UserRepository
	Tasks repository.TaskRepository
}

// buildRepos picks the store named by STORAGE_DRIVER.
func buildRepos(cfg *config.Config) Repos {
	if cfg.StorageDriver == config.DriverMemory || container.GetPGPool() == nil {
		store := container.GetMemoryStore()
		return Repos{Users: store.Users(), Tasks: store.Tasks()}
	}
	pool := container.GetPGPool()
	return Repos{Users: pginfra.NewUserRepository(pool), Tasks: pginfra.NewTaskRepository(pool)}
}

type Services struct {
	Auth  *application.AuthService
	Tasks *application.TaskService
}

func buildServices(cfg *config.Config, repos Repos) Services {
	logger := container.GetLogger()

	jwt := container.GetJWT()
	if jwt == nil {
		jwt = helpers.NewJWTManager(cfg.JWTSecret, cfg.AccessTTL)
		container.SetJWT(jwt)
	}
	auth := application.NewAuthService(repos.Users, jwt, logger, cfg.BcryptCost)
	auth.Metrics = container.GetMetrics()
	auth.AppName = cfg.AppName
	auth.LoginURL = cfg.LoginURL
	if cfg.MailSendEnabled {
		if pub := container.GetRabbitPub(); pub != nil {
			auth.Pub = pub
		}
	}

	var index application.TaskIndex
	if cfg.SearchEnabled && container.GetES() != nil {
		index = search.NewTaskIndex(container.GetES(), cfg.ESTasksIndex)
	}
	tasks := application.NewTaskService(repos.Tasks, index, logger)
	tasks.Metrics = container.GetMetrics()

	return Services{Auth: auth, Tasks: tasks}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	validation.Init()

	cfg := container.GetConfig()
	svc := buildServices(cfg, buildRepos(cfg))
	logger := container.GetLogger()

	r.Add(modules.NewAuthModule(handlers.NewAuthHandler(svc.Auth, logger), svc.Auth, cfg))
	r.Add(modules.NewTaskModule(handlers.NewTaskHandler(svc.Tasks, logger), svc.Auth, cfg))
	r.AddRoot(modules.NewDebugModule(cfg))
}
