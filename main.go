package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/shelfmark/shelfmark-engine/pkg/auth"
	"github.com/shelfmark/shelfmark-engine/pkg/config"
	"github.com/shelfmark/shelfmark-engine/pkg/database"
	"github.com/shelfmark/shelfmark-engine/pkg/handlers"
	"github.com/shelfmark/shelfmark-engine/pkg/middleware"
	"github.com/shelfmark/shelfmark-engine/pkg/repositories"
	"github.com/shelfmark/shelfmark-engine/pkg/sandbox"
	"github.com/shelfmark/shelfmark-engine/pkg/seed"
	"github.com/shelfmark/shelfmark-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", cfg.Database.Database),
		zap.String("database_host", cfg.Database.Host),
		zap.Bool("redis_enabled", cfg.Redis.Host != ""),
		zap.Duration("sandbox_timeout", cfg.Sandbox.Timeout()))

	ctx := context.Background()

	// Migrations run over database/sql; the pool below uses pgx directly.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open database for migrations", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	schemaRepo := repositories.NewEntitySchemaRepository(db)
	scriptRepo := repositories.NewSandboxScriptRepository(db)
	entityRepo := repositories.NewEntityRepository(db)
	configValueRepo := repositories.NewConfigValueRepository(db)

	// The builtin catalog must be consistent before any request is served.
	seeder := seed.NewSeeder(schemaRepo, scriptRepo, logger)
	if err := seeder.Run(ctx); err != nil {
		logger.Fatal("Failed to seed entity schema catalog", zap.Error(err))
	}

	sandboxService := sandbox.NewService(cfg.Sandbox.Timeout(), logger)
	configValueService := services.NewConfigValueService(configValueRepo, redisClient, logger)
	schemaService := services.NewEntitySchemaService(
		schemaRepo, scriptRepo, entityRepo, configValueService, sandboxService, logger)

	mux := http.NewServeMux()
	authMiddleware := auth.NewMiddleware(logger)

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	schemaHandler := handlers.NewEntitySchemaHandler(schemaService, logger)
	schemaHandler.RegisterRoutes(mux, authMiddleware)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting shelfmark-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
