package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/go-redis/redis/v8"
	"github.com/kerem-kaynak/dashjs/internal/appcontext"
	"github.com/kerem-kaynak/dashjs/internal/entity"
	"github.com/kerem-kaynak/dashjs/internal/services"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func InitContext(cfg *Config) (*appcontext.Context, error) {
	logger, err := InitLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := InitDB(cfg)
	if err != nil {
		return nil, err
	}

	store, err := InitObjectStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	indexer, err := InitSearch(cfg, logger)
	if err != nil {
		return nil, err
	}

	locker, err := InitLocker(cfg, logger)
	if err != nil {
		return nil, err
	}

	mailer := InitMailer(cfg, logger)

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}

	return NewContext(cfg, db, logger, oauth2Config, store, locker, indexer, mailer), nil
}

// NewContext wires the services over already-built clients.
func NewContext(cfg *Config, db *gorm.DB, logger *zap.Logger, oauth2Config *oauth2.Config, store services.ObjectStore, locker services.Locker, indexer services.Indexer, mailer services.Mailer) *appcontext.Context {
	dashboards := services.NewDashboardService(db, indexer, mailer, cfg.AppURL, logger)
	datasets := services.NewDatasetService(db, store, locker, indexer, dashboards, cfg.UploadDir, logger)

	return &appcontext.Context{
		DB:     db,
		Logger: logger,

		OAuth2Config:  oauth2Config,
		SessionSecret: []byte(cfg.SessionSecret),
		SessionTTL:    cfg.SessionTTL,
		TokenSecret:   []byte(cfg.TokenSecret),
		PhantomSecret: cfg.PhantomSecret,

		AppURL:         strings.TrimSuffix(cfg.AppURL, "/"),
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.Origins(),
		TokenRateLimit: cfg.TokenRateLimit,
		TokenRateBurst: cfg.TokenRateBurst,

		Datasets:   datasets,
		Dashboards: dashboards,
		Widgets:    services.NewWidgetService(db),
		Search:     indexer,
	}
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := entity.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func InitLogger(cfg *Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	cfg.warnEnvFile(logger)
	return logger, nil
}

// InitObjectStore returns a GCS-backed store, or an in-memory one when no
// bucket is configured.
func InitObjectStore(cfg *Config, logger *zap.Logger) (services.ObjectStore, error) {
	if cfg.GCSBucketName == "" {
		logger.Warn("GCS_BUCKET_NAME is not set, dataset files are kept in memory")
		return services.NewMemoryStore(), nil
	}

	client, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCS client: %w", err)
	}
	return services.NewGCSStore(client, cfg.GCSBucketName), nil
}

// InitLocker returns a Redis lease locker when REDIS_URL is set, so that
// several instances can share one upload directory; otherwise an
// in-process lock.
func InitLocker(cfg *Config, logger *zap.Logger) (services.Locker, error) {
	if cfg.RedisURL == "" {
		return services.NewKeyedMutex(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Using redis dataset locks", zap.String("addr", opts.Addr))
	return services.NewRedisLocker(client, cfg.LockTTL, logger), nil
}

func InitSearch(cfg *Config, logger *zap.Logger) (services.Indexer, error) {
	if cfg.MeilisearchHost == "" {
		logger.Warn("MEILISEARCH_HOST is not set, search is disabled")
		return services.NopIndexer{}, nil
	}

	client, err := InitMeilisearch(cfg)
	if err != nil {
		return nil, err
	}
	return services.NewMeilisearchIndexer(client), nil
}

func InitMeilisearch(cfg *Config) (*meilisearch.Client, error) {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   cfg.MeilisearchHost,
		APIKey: cfg.MeilisearchAPIKey,
	})

	_, err := client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        services.SearchIndex,
		PrimaryKey: "id",
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	task, err := client.Index(services.SearchIndex).UpdateFilterableAttributes(&[]string{
		"type",
		"user_id",
		"is_public",
		"dataset_id",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update filterable attributes: %w", err)
	}

	if _, err := client.WaitForTask(task.TaskUID); err != nil {
		return nil, fmt.Errorf("failed to wait for filterable attributes update: %w", err)
	}

	task, err = client.Index(services.SearchIndex).UpdateSearchableAttributes(&[]string{
		"title",
		"description",
		"tags",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update searchable attributes: %w", err)
	}

	if _, err := client.WaitForTask(task.TaskUID); err != nil {
		return nil, fmt.Errorf("failed to wait for searchable attributes update: %w", err)
	}

	return client, nil
}

func InitMailer(cfg *Config, logger *zap.Logger) services.Mailer {
	if cfg.SendGridAPIKey == "" {
		return services.LogMailer{Logger: logger}
	}
	return services.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFrom)
}
