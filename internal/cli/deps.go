package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"webinar-quiz-client/internal/api"
	"webinar-quiz-client/internal/app"
	"webinar-quiz-client/internal/config"
	"webinar-quiz-client/internal/domain"
	"webinar-quiz-client/internal/infra/file"
	"webinar-quiz-client/internal/infra/memory"
	pgstore "webinar-quiz-client/internal/infra/postgres"
	redisstore "webinar-quiz-client/internal/infra/redis"
)

// quizCache is a quiz repository whose entries can be dropped on a retake.
type quizCache interface {
	app.QuizRepository
	Invalidate(ctx context.Context, quizID string) error
}

// deps is everything a command needs to run attempts against the portal.
type deps struct {
	cfg     config.Config
	client  *api.Client
	store   *app.AttemptStore
	quizzes quizCache
	pool    *pgxpool.Pool
	redis   *redis.Client
}

func buildDeps(ctx context.Context, cfg config.Config) (*deps, error) {
	d := &deps{cfg: cfg}

	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.close()
			return nil, err
		}
		d.pool = pool
	}

	d.client = api.NewClient(cfg.API.BaseURL, cfg.API.Token, config.TTLDuration(cfg.API.Timeout, 10*time.Second), nil)

	snapshots, err := d.snapshotStore()
	if err != nil {
		d.close()
		return nil, err
	}
	loader, err := d.quizLoader()
	if err != nil {
		d.close()
		return nil, err
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if d.redis != nil {
		d.quizzes = redisstore.NewQuizRepository(d.redis, loader, quizTTL)
	} else {
		d.quizzes = memory.NewQuizRepository(loader, quizTTL)
	}

	d.store = app.NewAttemptStore(ctx, snapshots)
	return d, nil
}

func (d *deps) snapshotStore() (app.SnapshotStore, error) {
	switch strings.ToLower(d.cfg.Storage.Driver) {
	case config.StorageMemory:
		return memory.NewSnapshotStore(), nil
	case config.StorageFile:
		return file.NewSnapshotStore(d.cfg.Storage.Path, d.cfg.Profile), nil
	case config.StorageRedis:
		if d.redis == nil {
			return nil, fmt.Errorf("storage driver redis needs redis.addr")
		}
		return redisstore.NewSnapshotStore(d.redis, d.cfg.Profile, config.TTLDuration(d.cfg.Redis.TTL, 0)), nil
	case config.StoragePostgres:
		if d.pool == nil {
			return nil, fmt.Errorf("storage driver postgres needs postgres.url")
		}
		return pgstore.NewSnapshotStore(d.pool, d.cfg.Profile), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", d.cfg.Storage.Driver)
	}
}

func (d *deps) quizLoader() (memory.QuizLoader, error) {
	switch strings.ToLower(d.cfg.Quiz.Source) {
	case config.SourceAPI:
		if d.cfg.API.BaseURL == "" {
			return nil, fmt.Errorf("quiz source api needs api.base_url or QUIZ_API_URL")
		}
		return d.client, nil
	case config.SourcePostgres:
		if d.pool == nil {
			return nil, fmt.Errorf("quiz source postgres needs postgres.url")
		}
		return pgstore.NewQuizLoader(d.pool), nil
	default:
		return nil, fmt.Errorf("unknown quiz source %q", d.cfg.Quiz.Source)
	}
}

func (d *deps) runner(userID, webinarID, quizID string, notify func(domain.Notice)) *app.Runner {
	return app.NewRunner(app.RunnerConfig{
		Store:        d.store,
		Quizzes:      d.quizzes,
		Grader:       d.client,
		UserID:       userID,
		WebinarID:    webinarID,
		QuizID:       quizID,
		TickInterval: config.TTLDuration(d.cfg.Quiz.Tick, app.DefaultTickInterval),
		Notify:       notify,
	})
}

// resetAttempt discards the stored attempt and the cached quiz definition, so a
// retake starts from the portal's current questions. It reports whether an
// attempt existed.
func (d *deps) resetAttempt(ctx context.Context, userID, quizID string) (bool, error) {
	_, existed := d.store.GetAttempt(userID, quizID)
	if existed {
		d.store.ResetQuiz(userID, quizID)
	}
	if err := d.quizzes.Invalidate(ctx, quizID); err != nil {
		return existed, fmt.Errorf("invalidate cached quiz %s: %w", quizID, err)
	}
	return existed, nil
}

// close waits for deferred store work, then releases connections.
func (d *deps) close() {
	if d.store != nil {
		d.store.Wait()
	}
	if d.pool != nil {
		d.pool.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}
