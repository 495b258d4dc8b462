package main

import (
	"context"
	"log"

	"github.com/healthmate/coach-chat/internal/ai"
	"github.com/healthmate/coach-chat/internal/auth"
	"github.com/healthmate/coach-chat/internal/chat"
	"github.com/healthmate/coach-chat/internal/config"
	"github.com/healthmate/coach-chat/internal/db"
	"github.com/healthmate/coach-chat/internal/httpapi"
	"github.com/healthmate/coach-chat/internal/store"
	"github.com/healthmate/coach-chat/internal/store/gormkv"
	"github.com/healthmate/coach-chat/internal/store/rabbitmq"
	"github.com/healthmate/coach-chat/internal/store/redisstore"
	"github.com/healthmate/coach-chat/internal/user"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	if err := gdb.AutoMigrate(&user.User{}); err != nil {
		logger.Fatal("db migrate failed", zap.Error(err))
	}

	var kv store.KV
	switch cfg.SessionBackend {
	case "redis":
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rds.Ping(context.Background()); err != nil {
			logger.Fatal("redis ping failed", zap.Error(err))
		}
		kv = rds
	case "memory":
		kv = store.NewMemory()
	default:
		gkv, err := gormkv.New(gdb)
		if err != nil {
			logger.Fatal("kv migrate failed", zap.Error(err))
		}
		kv = gkv
	}

	sessions := chat.NewStore(context.Background(), kv, logger)

	registry := ai.NewRegistry()
	registry.Register(chat.ProviderCoach, func(ctx context.Context) (ai.Provider, error) {
		_ = ctx
		return ai.NewCoachClient(cfg.CoachBaseURL, cfg.CoachAppName), nil
	})
	registry.Register(chat.ProviderBackup, func(ctx context.Context) (ai.Provider, error) {
		_ = ctx
		return ai.NewBackupClient(cfg.BackupBaseURL), nil
	})

	var creds auth.CredentialSource
	if cfg.CoachAPIKey != "" {
		creds = auth.StaticSource(cfg.CoachAPIKey)
	} else {
		creds = &auth.MintingSource{Secret: cfg.JWTSecret}
	}

	svc := chat.NewService(sessions, registry, creds, logger).WithLocale(cfg.Locale)

	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			logger.Warn("rabbit connect failed, degraded events disabled", zap.Error(err))
		} else {
			defer pub.Close()
			svc.WithDegradedSink(pub)
		}
	}

	r := httpapi.NewRouter(gdb, cfg, logger, svc)
	logger.Info("server starting", zap.String("addr", cfg.HTTPAddr))
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
