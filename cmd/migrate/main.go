// Command migrate управляет схемой Postgres витрины: каталог, заказы, outbox и timeline.
//
//	migrate [-env-file .env] [-dsn DSN] [-steps N] up|down|status
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const (
	dsnEnv         = "STOREFRONT_POSTGRES_DSN"
	commandTimeout = 30 * time.Second
)

var errUsage = errors.New("usage: migrate [-env-file .env] [-dsn DSN] [-steps N] up|down|status")

// schema: операции над схемой, которые нужны командам.
type schema interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (postgres.MigrationState, error)
}

// request: разобранная командная строка.
type request struct {
	command string
	steps   int
	dsn     string
}

func parseArgs(args []string, lookup func(string) (string, bool)) (request, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	envFile := fs.String("env-file", "", "dotenv file with "+dsnEnv)
	dsn := fs.String("dsn", "", "PostgreSQL DSN, overrides "+dsnEnv)
	steps := fs.Int("steps", 0, "how many versions to apply (0 = all) or roll back (0 = one)")
	if err := fs.Parse(args); err != nil {
		return request{}, fmt.Errorf("%w: %v", errUsage, err)
	}

	if *envFile != "" {
		env, err := godotenv.Read(*envFile)
		if err != nil {
			return request{}, fmt.Errorf("read %s: %w", *envFile, err)
		}
		base := lookup
		lookup = func(key string) (string, bool) {
			if v, ok := base(key); ok {
				return v, true
			}
			v, ok := env[key]
			return v, ok
		}
	}

	req := request{command: strings.ToLower(fs.Arg(0)), steps: *steps, dsn: strings.TrimSpace(*dsn)}
	if fs.NArg() != 1 || req.steps < 0 {
		return request{}, errUsage
	}
	if req.dsn == "" {
		if v, ok := lookup(dsnEnv); ok {
			req.dsn = strings.TrimSpace(v)
		}
	}
	if req.dsn == "" {
		return request{}, fmt.Errorf("%s (or -dsn) is required", dsnEnv)
	}
	return req, nil
}

// execute выполняет команду и печатает итоговое состояние схемы в out.
func execute(ctx context.Context, s schema, req request, out io.Writer) error {
	switch req.command {
	case "up":
		if err := s.MigrateUp(ctx, req.steps); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case "down":
		steps := req.steps
		if steps == 0 {
			steps = 1
		}
		if err := s.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	case "status":
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, req.command)
	}

	state, err := s.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	_, err = fmt.Fprintln(out, formatState(req.command, state))
	return err
}

func formatState(command string, state postgres.MigrationState) string {
	line := fmt.Sprintf("%s: schema version %d, %d of %d applied", command, state.Version, state.Applied, state.Available)
	if len(state.Pending) > 0 {
		line += ", pending " + strings.Join(state.Pending, " ")
	}
	return line
}

func main() {
	logger := log.WithField("component", "migrate")

	req, err := parseArgs(os.Args[1:], os.LookupEnv)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	// Мигратору хватает пары соединений: advisory lock и скрипт.
	pool := postgres.DefaultPoolOptions()
	pool.MaxOpen, pool.MaxIdle = 2, 1
	store, err := postgres.Open(ctx, req.dsn, pool)
	if err != nil {
		logger.WithError(err).Fatal("open postgres")
	}
	defer store.Close()

	if err := execute(ctx, store, req, os.Stdout); err != nil {
		logger.WithError(err).WithField("command", req.command).Error("migration failed")
		_ = store.Close()
		os.Exit(1)
	}
}
