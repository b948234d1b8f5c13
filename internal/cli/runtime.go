package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/config"
	"classroom-quiz-service/internal/infra/memory"
	"classroom-quiz-service/internal/infra/postgres"
	redisinfra "classroom-quiz-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// runtime holds the wired service and the connections it owns.
type runtime struct {
	service *app.SessionService
	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// newRuntime picks Postgres or the in-memory store, and Redis or the in-process
// bus and cache, depending on which backends are configured.
func newRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{}

	var (
		store  app.Store
		loader memory.QuestionLoader
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		pgStore := postgres.NewStore(pool)
		store, loader = pgStore, pgStore
		logger.Info("using postgres session store")
	} else {
		memStore := memory.NewStore()
		store, loader = memStore, memStore
		logger.Info("using in-memory session store")
	}

	questionTTL := config.TTLDuration(cfg.Session.QuestionTTL, 10*time.Minute)
	var (
		bus       app.Bus
		questions app.QuestionSource
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			rt.Close()
			return nil, fmt.Errorf("pinging redis: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		bus = redisinfra.NewBus(client, logger)
		questions = redisinfra.NewQuestionCache(client, loader, config.TTLDuration(cfg.Redis.TTL, questionTTL))
		logger.Info("using redis bus and question cache", "addr", cfg.Redis.Addr)
	} else {
		bus = memory.NewBus()
		questions = memory.NewQuestionCache(loader, questionTTL)
	}

	rt.service = app.NewSessionService(store, bus, questions, app.Options{
		CodeLength:      cfg.Session.CodeLength,
		CodeAttempts:    cfg.Session.CodeAttempts,
		Scoring:         scoringRule(cfg.Session),
		AutoEnd:         cfg.Session.AutoEndDefault(),
		PollInterval:    config.TTLDuration(cfg.Session.PollInterval, 5*time.Second),
		RetryMaxElapsed: retryBudget(cfg.Session.RetryMaxElapsed),
		Logger:          logger,
	})
	return rt, nil
}

func scoringRule(cfg config.SessionConfig) app.ScoringRule {
	if cfg.SpeedBonus > 0 {
		return app.SpeedBonus{Base: cfg.Points, Bonus: cfg.SpeedBonus}
	}
	return app.FixedPoints{Value: cfg.Points}
}

// retryBudget maps "off" to a negative budget, which disables retries.
func retryBudget(raw string) time.Duration {
	if raw == "off" {
		return -1
	}
	return config.TTLDuration(raw, 0)
}
