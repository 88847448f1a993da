package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/reflecta/reflecta/internal/config"
	"github.com/reflecta/reflecta/internal/db"
	"github.com/reflecta/reflecta/internal/handlers"
	"github.com/reflecta/reflecta/internal/httpserver"
	"github.com/reflecta/reflecta/internal/logging"
	"github.com/reflecta/reflecta/internal/middleware"
)

const usage = `usage: reflecta <command> [args]

client commands:
  login <email> <password>
  register <name> <email> <password> --accept-terms
  logout | whoami | profile
  reflect <mood 1-5> [note...]
  weekly | insights
  export [weekly|insights]
  settings [show | set <key> <value>]
  reset
  moods

backend commands:
  serve
  migrate [up|status]
  seed <name>`

// Run bootstraps the Reflecta application.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch args[0] {
	case "serve":
		return serve(ctx, cfg, stdout)
	case "migrate":
		return runMigrations(ctx, cfg, args[1:], stdout)
	case "seed":
		return runSeed(ctx, cfg, args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage)
		return nil
	}

	logger := logging.New(stderr, cfg.LogLevel)
	ctx = logging.WithLogger(ctx, logger)

	deps, err := buildClient(cfg, logger)
	if err != nil {
		return err
	}
	return newCLI(deps, stdout).dispatch(ctx, args)
}

func serve(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	logger := logging.New(stdout, "info")
	slog.SetDefault(logger)

	var pool db.Pool
	switch cfg.Server.Store {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
	case "postgres", "":
		p, err := db.Connect(ctx, cfg.Server.DatabaseURL)
		if err != nil {
			return err
		}
		defer p.Close()
		pool = p
	default:
		return fmt.Errorf("unknown store %q", cfg.Server.Store)
	}

	if cfg.Server.JWTSecret == config.DevJWTSecret {
		logger.Warn("REFLECTA_JWT_SECRET is unset; using the development secret")
	}

	deps := buildDependencies(pool, cfg)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	handler := middleware.RequestLogger(logger)(mux)

	srv := httpserver.New(cfg.Server.Port, handler, logger)

	logger.Info("starting http server", "port", cfg.Server.Port, "store", cfg.Server.Store)

	return srv.Run(ctx)
}
