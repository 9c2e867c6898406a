// Package main - точка входа движка гражданских симуляций Civic Sim Hub.
//
// Идея: обучать основам гражданского участия через короткие сценарные
// симуляции. Пользователь принимает решения шаг за шагом, получает очки,
// уровни и достижения - игровая механика превращает сухую теорию в опыт.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries/Sagas)
// - Infrastructure: хранилища, Redis, шина событий, внешние шлюзы
// - Interface: REST API
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/civic-hub/civic-sim-hub/config"
	"github.com/civic-hub/civic-sim-hub/internal/application/command"
	"github.com/civic-hub/civic-sim-hub/internal/application/query"
	"github.com/civic-hub/civic-sim-hub/internal/application/saga"
	"github.com/civic-hub/civic-sim-hub/internal/domain/profile"
	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
	"github.com/civic-hub/civic-sim-hub/internal/infrastructure/catalog"
	"github.com/civic-hub/civic-sim-hub/internal/infrastructure/messaging"
	"github.com/civic-hub/civic-sim-hub/internal/infrastructure/persistence/memory"
	"github.com/civic-hub/civic-sim-hub/internal/infrastructure/persistence/postgres"
	"github.com/civic-hub/civic-sim-hub/internal/infrastructure/persistence/redis"
	"github.com/civic-hub/civic-sim-hub/internal/infrastructure/service"
	httpserver "github.com/civic-hub/civic-sim-hub/internal/interface/http"
	"github.com/civic-hub/civic-sim-hub/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stdout, logger.ParseLevel(cfg.Observability.LogLevel))
	log.Info("starting Civic Sim Hub engine",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("storage", string(cfg.Storage.Mode)),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. КАТАЛОГ СИМУЛЯЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	simCatalog, err := catalog.Load(cfg.Catalog.Dir)
	if err != nil {
		return fmt.Errorf("failed to load simulation catalog: %w", err)
	}
	log.Info("simulation catalog loaded", logger.Int("simulations", simCatalog.Len()))

	achievementCatalog := profile.DefaultAchievements()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ: POSTGRES ИЛИ ПАМЯТЬ
	// ─────────────────────────────────────────────────────────────────────────
	repos, cleanup, err := buildRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (ЛИДЕРБОРД, ОПЦИОНАЛЬНО)
	// ─────────────────────────────────────────────────────────────────────────
	var leaderboard *redis.LeaderboardCache
	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		client, err := redis.NewClient(ctx, redisCfg)
		if err != nil {
			log.Warn("redis unavailable, leaderboard disabled", logger.Err(err))
		} else {
			defer func() { _ = client.Close() }()
			leaderboard = redis.NewLeaderboardCache(client)
			log.Info("redis connection established", logger.String("addr", redisCfg.Addr()))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ШИНА СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultConfig()
	busCfg.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus")
		_ = eventBus.Close()
	}()

	eventBus.SubscribeAll(func(_ context.Context, e shared.Event) error {
		log.Debug("domain event",
			logger.String("type", string(e.EventType())),
			logger.String("aggregate_id", e.AggregateID()),
		)
		return nil
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. УВЕДОМЛЕНИЯ О ЗАВЕРШЕНИИ
	// ─────────────────────────────────────────────────────────────────────────
	var notifier command.CompletionNotifier = service.NopNotifier{}
	if cfg.Notifier.GatewayURL != "" {
		nCfg := service.DefaultNotifierConfig(cfg.Notifier.GatewayURL)
		nCfg.APIKey = cfg.Notifier.APIKey
		nCfg.Timeout = cfg.Notifier.RequestTimeout
		nCfg.Retry.MaxAttempts = cfg.Notifier.MaxRetries
		notifier = service.NewWhatsAppNotifier(nCfg, log)
		log.Info("whatsapp notifier enabled", logger.String("gateway", cfg.Notifier.GatewayURL))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	var sagaLeaderboard saga.LeaderboardCache
	if leaderboard != nil {
		sagaLeaderboard = leaderboard
	}

	rewardFlow := saga.NewRewardFlowSaga(
		repos.profiles,
		repos.achievements,
		repos.activityLog,
		repos.completions,
		achievementCatalog,
		sagaLeaderboard,
		eventBus,
		service.NewUUIDGenerator(),
		log,
	)

	startCmd := command.NewStartSimulationHandler(simCatalog, repos.progress, eventBus, log)
	applyCmd := command.NewApplyChoiceHandler(simCatalog, repos.progress, rewardFlow, notifier, eventBus, log)
	resumeCmd := command.NewResumeSimulationHandler(simCatalog, repos.progress)

	listQuery := query.NewListSimulationsHandler(simCatalog)
	scenarioQuery := query.NewGetScenarioHandler(simCatalog)
	progressQuery := query.NewGetProgressHandler(simCatalog, repos.progress, repos.completions, achievementCatalog)
	statsQuery := query.NewGetUserStatsHandler(repos.profiles, repos.achievements, achievementCatalog)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.EnableCORS = cfg.HTTP.EnableCORS
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	var boardReader httpserver.LeaderboardReader
	if leaderboard != nil {
		boardReader = &leaderboardAdapter{cache: leaderboard}
	}

	server := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		StartSimulationHandler:  startCmd,
		ApplyChoiceHandler:      applyCmd,
		ResumeSimulationHandler: resumeCmd,
		ListSimulationsHandler:  listQuery,
		GetScenarioHandler:      scenarioQuery,
		GetProgressHandler:      progressQuery,
		GetUserStatsHandler:     statsQuery,
		Leaderboard:             boardReader,
		Logger:                  log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	log.Info("Civic Sim Hub engine is running", logger.String("address", httpCfg.Address()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server failed", logger.Err(err))
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}

	log.Info("engine stopped")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// repositories объединяет все хранилища независимо от бэкенда.
type repositories struct {
	progress     simulation.ProgressRepository
	profiles     profile.ProfileRepository
	achievements profile.AchievementRepository
	activityLog  profile.ActivityLogRepository
	completions  profile.CompletionRepository
}

// buildRepositories выбирает бэкенд хранения по конфигурации. Для Postgres
// устанавливает соединение и прогоняет миграции; возвращаемая функция
// закрывает соединение.
func buildRepositories(ctx context.Context, cfg *config.Config, log *logger.Logger) (*repositories, func(), error) {
	if cfg.Storage.Mode == config.StorageMemory {
		log.Warn("using in-memory storage, all state is lost on restart")
		return &repositories{
			progress:     memory.NewProgressStore(),
			profiles:     memory.NewProfileStore(),
			achievements: memory.NewAchievementStore(),
			activityLog:  memory.NewActivityLog(),
			completions:  memory.NewCompletionStore(),
		}, func() {}, nil
	}

	log.Info("connecting to database")
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Info("running database migrations")
	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cleanup := func() {
		log.Info("closing database connection")
		conn.Close()
	}

	return &repositories{
		progress:     postgres.NewProgressRepository(conn),
		profiles:     postgres.NewProfileRepository(conn),
		achievements: postgres.NewAchievementRepository(conn),
		activityLog:  postgres.NewActivityLogRepository(conn),
		completions:  postgres.NewCompletionRepository(conn),
	}, cleanup, nil
}

// leaderboardAdapter приводит Redis-лидерборд к интерфейсу HTTP-слоя.
type leaderboardAdapter struct {
	cache *redis.LeaderboardCache
}

func (a *leaderboardAdapter) Top(ctx context.Context, limit int64) ([]httpserver.LeaderboardEntry, error) {
	ranked, err := a.cache.Top(ctx, int(limit))
	if err != nil {
		return nil, err
	}

	out := make([]httpserver.LeaderboardEntry, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, httpserver.LeaderboardEntry{
			UserID: r.UserID,
			Points: int(r.Points),
			Rank:   r.Rank,
		})
	}
	return out, nil
}
