package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
	Social    SocialConfig    `mapstructure:"social"`
	Media     MediaConfig     `mapstructure:"media"`
	Images    ImagesConfig    `mapstructure:"images"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr 监听地址
func (c ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	SessionIdle    time.Duration `mapstructure:"session_idle"`
	VerifyTTL      time.Duration `mapstructure:"verify_ttl"`
	VerifyURL      string        `mapstructure:"verify_url"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	MinPasswordLen int           `mapstructure:"min_password_len"`
}

// MirrorConfig 会话内用户资料镜像（读穿缓存）
type MirrorConfig struct {
	Driver  string        `mapstructure:"driver"` // memory, redis
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

type SocialConfig struct {
	Reconcile        bool `mapstructure:"reconcile"`
	ReconcileWorkers int  `mapstructure:"reconcile_workers"`
	ReconcileQueue   int  `mapstructure:"reconcile_queue"`
}

type MediaConfig struct {
	Driver          string `mapstructure:"driver"` // inline, s3
	MaxPayloadBytes int    `mapstructure:"max_payload_bytes"`
	ChunkSize       int    `mapstructure:"chunk_size"`
	MIMEType        string `mapstructure:"mime_type"`
	S3Region        string `mapstructure:"s3_region"`
	S3Endpoint      string `mapstructure:"s3_endpoint"`
	S3Bucket        string `mapstructure:"s3_bucket"`
	S3AccessKey     string `mapstructure:"s3_access_key"`
	S3SecretKey     string `mapstructure:"s3_secret_key"`
	S3PublicURL     string `mapstructure:"s3_public_url"`
}

// ImagesConfig 头像等远程图片允许的来源
type ImagesConfig struct {
	AllowedHosts []string `mapstructure:"allowed_hosts"`
}

type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// Load 从配置文件与环境变量加载配置（FV_ 前缀，例如 FV_DATABASE_DSN）
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/etc/friendlyvoice"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("FV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验关键配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Mirror.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported mirror driver %q", c.Mirror.Driver)
	}
	switch c.Media.Driver {
	case "inline":
	case "s3":
		if c.Media.S3Bucket == "" {
			return fmt.Errorf("media.s3_bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unsupported media driver %q", c.Media.Driver)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "friendlyvoice.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("auth.jwt_secret", "change-me-in-production-please")
	v.SetDefault("auth.session_ttl", "168h")
	v.SetDefault("auth.session_idle", "24h")
	v.SetDefault("auth.verify_ttl", "24h")
	v.SetDefault("auth.verify_url", "http://localhost:8080/api/v1/auth/verify-email")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.min_password_len", 6)

	v.SetDefault("mirror.driver", "memory")
	v.SetDefault("mirror.ttl", "10m")
	v.SetDefault("mirror.max_size", 1000)

	v.SetDefault("social.reconcile", false)
	v.SetDefault("social.reconcile_workers", 2)
	v.SetDefault("social.reconcile_queue", 1024)

	v.SetDefault("media.driver", "inline")
	v.SetDefault("media.max_payload_bytes", 5<<20)
	v.SetDefault("media.chunk_size", 32<<10)
	v.SetDefault("media.mime_type", "audio/webm")
	v.SetDefault("media.s3_region", "us-east-1")

	v.SetDefault("images.allowed_hosts", []string{
		"picsum.photos",
		"lh3.googleusercontent.com",
		"api.dicebear.com",
		"firebasestorage.googleapis.com",
	})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "friendlyvoice")
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 20)
	v.SetDefault("ratelimit.burst", 40)
}
