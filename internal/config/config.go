package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	Exam      ExamConfig      `mapstructure:"exam"`
	Engine    EngineConfig    `mapstructure:"engine"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests      int `mapstructure:"max_requests"`
	WindowMinutes    int `mapstructure:"window_minutes"`
	AnswersPerMinute int `mapstructure:"answers_per_minute"` // per user, on top of auto-save ticks
}

// AnswerBudget is how many answer submissions a user may send per minute:
// the configured manual allowance plus one auto-save per interval.
func (c *Config) AnswerBudget() int {
	if c.RateLimit.AnswersPerMinute <= 0 {
		return 0
	}
	n := c.RateLimit.AnswersPerMinute
	if c.Exam.EnableAutoSave && c.Exam.AutoSaveInterval > 0 {
		n += (59 + c.Exam.AutoSaveInterval) / c.Exam.AutoSaveInterval
	}
	return n
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ExamConfig holds the resolved system settings the session engine consumes.
type ExamConfig struct {
	AutoSaveInterval           int  `mapstructure:"auto_save_interval"` // seconds
	EnableAutoSave             bool `mapstructure:"enable_auto_save"`
	AutoSubmitOnTimeout        bool `mapstructure:"auto_submit_on_timeout"`
	AllowQuestionNavigation    bool `mapstructure:"allow_question_navigation"`
	EnableQuestionFlagging     bool `mapstructure:"enable_question_flagging"`
	NetworkPauseEnabled        bool `mapstructure:"network_pause_enabled"`
	MaxPauseMinutes            int  `mapstructure:"max_pause_minutes"` // 0 = unlimited
	ManualFinalizeGraceSeconds int  `mapstructure:"manual_finalize_grace_seconds"`
}

type EngineConfig struct {
	SweepIntervalSeconds          int `mapstructure:"sweep_interval_seconds"`
	HierarchyCacheTTLSeconds      int `mapstructure:"hierarchy_cache_ttl_seconds"`
	HierarchyMaxDepth             int `mapstructure:"hierarchy_max_depth"`
	CertificateSequenceWidth      int `mapstructure:"certificate_sequence_width"`
	CertificateExpirySweepMinutes int `mapstructure:"certificate_expiry_sweep_minutes"`
}

func (e EngineConfig) SweepInterval() time.Duration {
	return time.Duration(e.SweepIntervalSeconds) * time.Second
}

func (e EngineConfig) HierarchyCacheTTL() time.Duration {
	return time.Duration(e.HierarchyCacheTTLSeconds) * time.Second
}

func (e EngineConfig) CertificateExpirySweep() time.Duration {
	return time.Duration(e.CertificateExpirySweepMinutes) * time.Minute
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("rate_limit.answers_per_minute", 60)

	v.SetDefault("exam.auto_save_interval", 30)
	v.SetDefault("exam.enable_auto_save", true)
	v.SetDefault("exam.auto_submit_on_timeout", true)
	v.SetDefault("exam.allow_question_navigation", true)
	v.SetDefault("exam.enable_question_flagging", true)
	v.SetDefault("exam.network_pause_enabled", true)
	v.SetDefault("exam.max_pause_minutes", 0)
	v.SetDefault("exam.manual_finalize_grace_seconds", 300)

	v.SetDefault("engine.sweep_interval_seconds", 5)
	v.SetDefault("engine.hierarchy_cache_ttl_seconds", 60)
	v.SetDefault("engine.hierarchy_max_depth", 32)
	v.SetDefault("engine.certificate_sequence_width", 6)
	v.SetDefault("engine.certificate_expiry_sweep_minutes", 60)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("TUTECK_EXAM")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.Exam.MaxPauseMinutes < 0 {
		return fmt.Errorf("exam.max_pause_minutes must not be negative, got %d", c.Exam.MaxPauseMinutes)
	}
	if c.RateLimit.AnswersPerMinute < 0 {
		return fmt.Errorf("rate_limit.answers_per_minute must not be negative, got %d", c.RateLimit.AnswersPerMinute)
	}
	if c.Exam.AutoSaveInterval < 0 {
		return fmt.Errorf("exam.auto_save_interval must not be negative, got %d", c.Exam.AutoSaveInterval)
	}
	if c.Engine.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("engine.sweep_interval_seconds must be positive, got %d", c.Engine.SweepIntervalSeconds)
	}
	if c.Engine.CertificateSequenceWidth <= 0 || c.Engine.CertificateSequenceWidth > 12 {
		return fmt.Errorf("engine.certificate_sequence_width must be between 1 and 12, got %d", c.Engine.CertificateSequenceWidth)
	}
	return nil
}
