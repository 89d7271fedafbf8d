package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"jiragent/internal/bootstrap/config"
	"jiragent/internal/bootstrap/database"
	"jiragent/internal/bootstrap/logging"
	aiinfra "jiragent/internal/infrastructure/ai"
	cacheinfra "jiragent/internal/infrastructure/cache"
	"jiragent/internal/infrastructure/jira"
	sqliterepo "jiragent/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "jiragent/internal/infrastructure/persistence/sqlite/uow"
	"jiragent/internal/ports"
	"jiragent/internal/usecase/intake"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewRequestRepository,
			fx.As(new(ports.RequestRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewConnectionRepository,
			fx.As(new(ports.ConnectionRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideTrackerFactory),
	fx.Provide(provideAnalyzer),
	fx.Provide(intake.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideTrackerFactory(cfg config.Config) ports.TrackerFactory {
	return jira.NewFactory(cfg.Jira.Timeout)
}

// provideAnalyzer returns a nil analyzer when no API key is configured; the
// engine degrades to placeholder summaries and manual field entry.
func provideAnalyzer(ctx context.Context, cfg config.Config) (ports.Analyzer, error) {
	if cfg.AI.APIKey == "" {
		logging.Warn(logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")),
			"ai api key not configured, analysis disabled")
		return nil, nil
	}
	analyzer, err := aiinfra.NewAnalyzer(aiinfra.Options{
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		BaseURL: cfg.AI.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return analyzer, nil
}
