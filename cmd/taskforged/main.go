package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/taskforge/taskforge/internal/app"
	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/models"
)

func main() {
	var (
		instance = flag.String("instance", "taskforge", "instance name reported by this process")
		roleList = flag.String("roles", "all", "comma-separated roles: worker,scheduler,recovery,webhook-retry,api or all")
	)
	flag.Parse()

	cfg, err := config.New(*instance,
		config.WithPostgresURL(envOr("TASKFORGE_POSTGRES_URL",
			"host=localhost port=5432 user=postgres password=postgres dbname=taskforge sslmode=disable")),
		config.WithRedis(envOr("TASKFORGE_REDIS_ADDR", "localhost:6379"),
			os.Getenv("TASKFORGE_REDIS_PASSWORD"), envInt("TASKFORGE_REDIS_DB", 0)),
		config.WithMigrationsDir(envOr("TASKFORGE_MIGRATIONS_DIR", "./migrations")),
		config.WithWorkerConcurrency(envInt("TASKFORGE_WORKER_CONCURRENCY", config.DefaultWorkerConcurrency)),
		config.WithHTTPAddr(envOr("TASKFORGE_HTTP_ADDR", config.DefaultHTTPAddr)),
	)
	if err != nil {
		log.Fatalf("taskforged: %v", err)
	}

	roles, err := parseRoles(*roleList)
	if err != nil {
		log.Fatalf("taskforged: %v", err)
	}

	application, err := app.New(cfg, roles)
	if err != nil {
		log.Fatalf("taskforged: %v", err)
	}
	defer application.Close()

	registerHandlers(application)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("taskforged: %v", err)
	}
}

func registerHandlers(application *app.App) {
	// Built-in demo handler; real deployments register their own types here.
	err := application.Registry().Register("echo", func(ctx context.Context, job *models.Job) (json.RawMessage, error) {
		log.Printf("echo: job %s payload %s", job.ID, job.Payload)
		return job.Payload, nil
	})
	if err != nil {
		log.Fatalf("taskforged: %v", err)
	}
}

func parseRoles(list string) (app.Roles, error) {
	if list == "" || list == "all" {
		return app.AllRoles(), nil
	}
	var roles app.Roles
	for _, name := range strings.Split(list, ",") {
		switch strings.TrimSpace(name) {
		case "worker":
			roles.Worker = true
		case "scheduler":
			roles.Scheduler = true
		case "recovery":
			roles.Recovery = true
		case "webhook-retry":
			roles.WebhookRetry = true
		case "api":
			roles.API = true
		default:
			return app.Roles{}, &unknownRoleError{name: name}
		}
	}
	return roles, nil
}

type unknownRoleError struct{ name string }

func (e *unknownRoleError) Error() string {
	return "unknown role " + strconv.Quote(e.name)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("taskforged: %s: expected integer, got %q", key, raw)
	}
	return n
}
