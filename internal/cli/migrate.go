package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"webinar-quiz-client/internal/config"
	"webinar-quiz-client/internal/domain"
	pgstore "webinar-quiz-client/internal/infra/postgres"
	pgmigrations "webinar-quiz-client/internal/infra/postgres/migrations"
)

// NewMigrateCmd applies database migrations and optionally seeds a local quiz bank.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seedPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			if seedPath == "" {
				return nil
			}
			return seedQuizzes(cmd.Context(), cfg, seedPath)
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "JSON file with quizzes to load into the local bank")
	return cmd
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
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
		log.Printf("no new migrations")
		return nil
	}
	log.Printf("migrations applied: %s", group)
	return nil
}

type seedQuiz struct {
	ID              string            `json:"id"`
	DurationSeconds int               `json:"durationSeconds"`
	Questions       []domain.Question `json:"questions"`
}

func seedQuizzes(ctx context.Context, cfg config.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var quizzes []seedQuiz
	if err := json.Unmarshal(data, &quizzes); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := pgstore.NewQuizLoader(pool)
	for _, q := range quizzes {
		if q.ID == "" {
			return fmt.Errorf("seed quiz without id")
		}
		err := loader.SaveQuiz(ctx, domain.Quiz{
			ID:        q.ID,
			Questions: q.Questions,
			Duration:  time.Duration(q.DurationSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
	}
	log.Printf("seeded %d quizzes", len(quizzes))
	return nil
}
