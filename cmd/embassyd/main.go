package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"TechHub-Embassy/internal/api"
	"TechHub-Embassy/internal/catalog"
	"TechHub-Embassy/internal/completion/openai"
	"TechHub-Embassy/internal/config"
	"TechHub-Embassy/internal/event"
	"TechHub-Embassy/internal/intent"
	"TechHub-Embassy/internal/match"
	"TechHub-Embassy/internal/observability/alerting"
	"TechHub-Embassy/internal/orchestrator"
	"TechHub-Embassy/internal/project"
	"TechHub-Embassy/internal/session"
	"TechHub-Embassy/pkg/logger"
)

// main 是 Embassy 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("embassyd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("EMBASSY_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "embassy.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// 加载资源目录并建立索引。
	source, err := catalog.LoadStaticSource(cfg.Catalog.Source)
	if err != nil {
		return err
	}
	index, err := catalog.NewIndex(ctx, source)
	if err != nil {
		return err
	}
	if cfg.Catalog.RefreshSeconds > 0 {
		go refreshCatalog(ctx, index, time.Duration(cfg.Catalog.RefreshSeconds)*time.Second)
	}

	projectStore, err := createProjectStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = projectStore.Close() }()

	sessionStore, err := createSessionStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sessionStore.Close() }()

	router, err := createIntentRouter(cfg)
	if err != nil {
		return err
	}

	matcher := match.NewMatcher(match.Config{
		ConfidenceFloor: cfg.Matcher.ConfidenceFloor,
		MaxPerCategory:  cfg.Matcher.MaxPerCategory,
	})

	alerts := alerting.NewFanout(&alerting.LogNotifier{})

	orch := orchestrator.New(orchestrator.Config{
		ConflictRetries: cfg.Storage.ProjectStore.ConflictRetries,
		MatchTimeout:    cfg.MatchTimeout(),
	}, projectStore, sessionStore, index, matcher, router, alerts)

	queue, err := createEventQueue(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.L().Warn("关闭事件队列失败", "error", err)
		}
	}()

	relay := event.NewRelay(orch, queue, queue,
		event.WithWorkerCount(cfg.EventBus.Workers),
		event.WithAlertDispatcher(alerts),
	)

	relayCtx, relayCancel := context.WithCancel(ctx)
	defer relayCancel()
	go func() {
		if err := relay.Start(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("事件中继异常退出", "error", err)
		}
	}()

	server := api.NewServer(cfg.Server.Address, orch, projectStore, index)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func refreshCatalog(ctx context.Context, index *catalog.Index, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := index.Refresh(ctx); err != nil {
				logger.L().Warn("刷新目录索引失败", "error", err)
			}
		}
	}
}

func createProjectStore(cfg *config.Config) (project.Store, error) {
	switch cfg.Storage.ProjectStore.Driver {
	case "", "memory":
		return project.NewMemoryStore(), nil
	case "mysql":
		return project.NewMySQLStore(cfg.Storage.ProjectStore.DSN, project.MySQLOptions{
			MaxOpenConns:    cfg.Storage.ProjectStore.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.ProjectStore.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Storage.ProjectStore.ConnMaxLifetimeSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("未知的项目存储驱动: %s", cfg.Storage.ProjectStore.Driver)
	}
}

func createSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Driver {
	case "", "memory":
		return session.NewMemoryStore(cfg.SessionTTL()), nil
	case "redis":
		return session.NewRedisStore(session.RedisConfig{
			Address:   cfg.Session.Redis.Address,
			Password:  cfg.Session.Redis.Password,
			DB:        cfg.Session.Redis.DB,
			KeyPrefix: cfg.Session.Redis.KeyPrefix,
			TTL:       cfg.SessionTTL(),
		})
	default:
		return nil, fmt.Errorf("未知的会话存储驱动: %s", cfg.Session.Driver)
	}
}

func createIntentRouter(cfg *config.Config) (intent.Router, error) {
	rules := intent.NewRuleRouter(cfg.Intent.ConfidenceThreshold)
	switch cfg.Intent.Provider {
	case "", "rules":
		return rules, nil
	case "model":
		apiKey := strings.TrimSpace(cfg.Intent.OpenAI.APIKey)
		if apiKey == "" && cfg.Intent.OpenAI.APIKeyEnv != "" {
			apiKey = strings.TrimSpace(os.Getenv(cfg.Intent.OpenAI.APIKeyEnv))
		}
		if apiKey == "" {
			return nil, errors.New("model provider 需要配置 api_key 或 api_key_env")
		}
		client, err := openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.Intent.OpenAI.BaseURL,
			Model:   cfg.Intent.OpenAI.Model,
			Timeout: cfg.Intent.OpenAI.Timeout(),
		})
		if err != nil {
			return nil, err
		}
		return intent.NewModelRouter(rules, client), nil
	default:
		return nil, fmt.Errorf("未知的意图识别 provider: %s", cfg.Intent.Provider)
	}
}

func createEventQueue(cfg *config.Config) (event.Queue, error) {
	switch cfg.EventBus.Driver {
	case "", "memory":
		return event.NewMemoryQueue(1024), nil
	case "redis":
		return event.NewRedisQueue(event.RedisQueueConfig{
			Address:   cfg.EventBus.Redis.Address,
			Password:  cfg.EventBus.Redis.Password,
			DB:        cfg.EventBus.Redis.DB,
			Queue:     cfg.EventBus.Redis.Queue,
			BlockWait: time.Duration(cfg.EventBus.Redis.BlockWait) * time.Second,
		})
	case "rabbitmq":
		return event.NewRabbitMQQueue(event.RabbitMQConfig{
			URL:        cfg.EventBus.RabbitMQ.URL,
			Queue:      cfg.EventBus.RabbitMQ.Queue,
			Prefetch:   cfg.EventBus.RabbitMQ.Prefetch,
			Durable:    cfg.EventBus.RabbitMQ.Durable,
			AutoDelete: cfg.EventBus.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的事件队列驱动: %s", cfg.EventBus.Driver)
	}
}
