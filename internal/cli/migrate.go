package cli

import (
	"context"
	"database/sql"
	"fmt"

	"exit-readiness-service/internal/config"
	"exit-readiness-service/internal/infra/memory"
	pgstore "exit-readiness-service/internal/infra/postgres"
	pgmigrations "exit-readiness-service/internal/infra/postgres/migrations"
	"exit-readiness-service/internal/logging"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// NewMigrateCmd applies database migrations and optionally seeds the built-in quiz.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := runMigrationsWithConfig(cmd.Context(), cfg, logger); err != nil {
				return err
			}
			if seed {
				return seedQuiz(cmd.Context(), cfg, logger)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "store the built-in exit readiness quiz in postgres")
	return cmd
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		logger.Info("no new migrations")
		return nil
	}
	logger.Info("migrations applied", zap.String("group", group.String()))
	return nil
}

func seedQuiz(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	quiz := memory.ExitReadinessQuiz()
	if err := pgstore.NewQuizLoader(pool).SaveQuiz(ctx, quiz); err != nil {
		return fmt.Errorf("seed quiz %q: %w", quiz.ID, err)
	}
	logger.Info("quiz seeded", zap.String("quiz_id", quiz.ID), zap.Int("questions", len(quiz.Questions)))
	return nil
}
