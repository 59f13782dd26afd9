// Command seed loads the built-in starting scenario into a Postgres
// store: council roles, the issue queue, the kingdom's variables, and
// the opening game state. Running it against a played game resets the
// catalog and state but leaves the history ledger and notes untouched.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/emberfall/regnum/internal/config"
	"github.com/emberfall/regnum/internal/seed"
	"github.com/emberfall/regnum/internal/storage"
	"github.com/emberfall/regnum/migrations"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(context.Background(), logger); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	data := seed.Default()
	for _, role := range data.Roles {
		if err := db.UpsertRole(ctx, role); err != nil {
			return fmt.Errorf("seed role %s: %w", role.ID, err)
		}
	}
	for _, issue := range data.Issues {
		if err := db.UpsertIssue(ctx, issue); err != nil {
			return fmt.Errorf("seed issue %s: %w", issue.ID, err)
		}
	}
	for _, v := range data.Variables {
		if err := db.UpsertVariable(ctx, v); err != nil {
			return fmt.Errorf("seed variable %s: %w", v.ID, err)
		}
	}
	if err := db.PutState(ctx, data.State); err != nil {
		return fmt.Errorf("seed state: %w", err)
	}

	logger.Info("seed complete",
		"roles", len(data.Roles),
		"issues", len(data.Issues),
		"variables", len(data.Variables),
		"round", data.State.Round,
	)
	return nil
}
