package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Config 描述了 embassyd 在启动阶段需要加载的核心配置。
type Config struct {
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Session  SessionConfig  `json:"session"`
	Catalog  CatalogConfig  `json:"catalog"`
	Matcher  MatcherConfig  `json:"matcher"`
	Intent   IntentConfig   `json:"intent"`
	EventBus EventBusConfig `json:"event_bus"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// StorageConfig 描述项目存储后端的连接信息。
type StorageConfig struct {
	ProjectStore ProjectStoreConfig `json:"project_store"`
}

// ProjectStoreConfig 目前提供内存与 MySQL 两种实现。
type ProjectStoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	// ConflictRetries 是 Orchestrator 在版本冲突时的最大重试次数。
	ConflictRetries int `json:"conflict_retries"`
}

// SessionConfig 控制会话存储与过期策略。
type SessionConfig struct {
	Driver            string             `json:"driver"`
	InactivitySeconds int                `json:"inactivity_seconds"`
	Redis             RedisSessionConfig `json:"redis"`
}

// RedisSessionConfig 描述 Redis 会话存储的连接参数。
type RedisSessionConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

// CatalogConfig 指定资源目录的数据源。
type CatalogConfig struct {
	Source string `json:"source"`
	// RefreshSeconds 大于 0 时后台定期重建目录快照。
	RefreshSeconds int `json:"refresh_seconds"`
}

// MatcherConfig 控制资源匹配的打分与裁剪参数。
type MatcherConfig struct {
	ConfidenceFloor float64 `json:"confidence_floor"`
	MaxPerCategory  int     `json:"max_per_category"`
	TimeoutSeconds  int     `json:"timeout_seconds"`
}

// IntentConfig 控制意图识别的实现与阈值。
type IntentConfig struct {
	Provider            string       `json:"provider"`
	ConfidenceThreshold float64      `json:"confidence_threshold"`
	OpenAI              OpenAIConfig `json:"openai"`
}

// OpenAIConfig 描述模型意图识别所用的 OpenAI 接入参数。
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回模型调用的超时时长。
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EventBusConfig 描述异步事件接入的队列驱动。
type EventBusConfig struct {
	Driver   string         `json:"driver"`
	Workers  int            `json:"workers"`
	Redis    RedisBusConfig `json:"redis"`
	RabbitMQ AMQPBusConfig  `json:"rabbitmq"`
}

// RedisBusConfig 描述 Redis 队列的连接参数。
type RedisBusConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	Queue     string `json:"queue"`
	BlockWait int    `json:"block_wait_seconds"`
}

// AMQPBusConfig 描述 RabbitMQ 队列的连接参数。
type AMQPBusConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Prefetch   int    `json:"prefetch"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// LoggingConfig 映射到 pkg/logger 的配置。
type LoggingConfig struct {
	Level       string      `json:"level"`
	Format      string      `json:"format"`
	OutputPaths []string    `json:"output_paths"`
	Audit       AuditConfig `json:"audit"`
}

// AuditConfig 控制审计日志输出。
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Storage.ProjectStore.Driver == "" {
		c.Storage.ProjectStore.Driver = "memory"
	}
	if c.Storage.ProjectStore.ConflictRetries <= 0 {
		c.Storage.ProjectStore.ConflictRetries = 3
	}

	if c.Session.Driver == "" {
		c.Session.Driver = "memory"
	}
	if c.Session.InactivitySeconds <= 0 {
		c.Session.InactivitySeconds = 1800
	}
	if c.Session.Redis.KeyPrefix == "" {
		c.Session.Redis.KeyPrefix = "embassy:session:"
	}

	if c.Catalog.Source == "" {
		c.Catalog.Source = filepath.Join(baseDir, "catalog.yaml")
	} else if !filepath.IsAbs(c.Catalog.Source) {
		c.Catalog.Source = filepath.Join(baseDir, c.Catalog.Source)
	}

	if c.Matcher.ConfidenceFloor <= 0 {
		c.Matcher.ConfidenceFloor = 0.35
	}
	if c.Matcher.MaxPerCategory <= 0 {
		c.Matcher.MaxPerCategory = 20
	}
	if c.Matcher.TimeoutSeconds <= 0 {
		c.Matcher.TimeoutSeconds = 10
	}

	if c.Intent.Provider == "" {
		c.Intent.Provider = "rules"
	}
	if c.Intent.ConfidenceThreshold <= 0 {
		c.Intent.ConfidenceThreshold = 0.5
	}

	if c.EventBus.Driver == "" {
		c.EventBus.Driver = "memory"
	}
	if c.EventBus.Workers <= 0 {
		c.EventBus.Workers = 4
	}
}

// MatchTimeout 返回匹配操作的时间预算。
func (c *Config) MatchTimeout() time.Duration {
	return time.Duration(c.Matcher.TimeoutSeconds) * time.Second
}

// SessionTTL 返回会话的不活跃过期时长。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.InactivitySeconds) * time.Second
}
