// Package config loads process configuration from the environment, with an
// optional YAML overlay for knobs that aren't secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the server needs at startup. Values come from
// the environment (or built-in defaults); an optional config.yaml overlay
// then replaces any knob it sets to a non-zero value.
type Config struct {
	ListenAddr string
	Production bool

	AuthSecretKey       string
	AuthTokenExpiryHrs  int
	AuthMaxSessions     int
	CORSOrigins         []string
	MetricsIPSalt       string

	DBPath      string
	StorageRoot string

	DefaultQuotaBytes int64
	MaxFilesPerUser   int
	MaxFilesPerCat    int

	RateLimitWindow   time.Duration
	RateLimitMax      int
	RateLimitLockout  time.Duration

	SessionIdleTimeout time.Duration
	SessionMaxCount    int
	SignalDenyPatterns []string

	TaskWorkerCap       int
	TaskCleanupConvert  time.Duration
	TaskCleanupConcat   time.Duration

	SandboxTimeout   time.Duration
	SandboxMemoryMiB int
	SandboxMaxAST    int
	SandboxMaxChars  int
	Python3Path      string

	MetricsRetentionDays int
	LogLevel             string
	LogPretty            bool

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	ViewCacheTTL  time.Duration
}

// overlay mirrors the subset of Config that may be set via config.yaml.
// Secrets (AuthSecretKey, MetricsIPSalt) are intentionally excluded; those
// come from the environment only.
type overlay struct {
	ListenAddr           string `yaml:"listen_addr"`
	DBPath               string `yaml:"db_path"`
	StorageRoot          string `yaml:"storage_root"`
	DefaultQuotaBytes    int64  `yaml:"default_quota_bytes"`
	MaxFilesPerUser      int    `yaml:"max_files_per_user"`
	MaxFilesPerCategory  int    `yaml:"max_files_per_category"`
	RateLimitWindowSec   int    `yaml:"rate_limit_window_seconds"`
	RateLimitMax         int    `yaml:"rate_limit_max_attempts"`
	RateLimitLockoutSec  int    `yaml:"rate_limit_lockout_seconds"`
	SessionIdleMinutes   int    `yaml:"session_idle_minutes"`
	SessionMaxCount      int    `yaml:"session_max_count"`
	TaskWorkerCap        int    `yaml:"task_worker_cap"`
	TaskCleanupConvertHr int    `yaml:"task_cleanup_convert_hours"`
	TaskCleanupConcatHr  int    `yaml:"task_cleanup_concat_hours"`
	SandboxTimeoutSec    int    `yaml:"sandbox_timeout_seconds"`
	SandboxMemoryMiB     int    `yaml:"sandbox_memory_mib"`
	SandboxMaxAST        int    `yaml:"sandbox_max_ast_nodes"`
	SandboxMaxChars      int    `yaml:"sandbox_max_code_chars"`
	Python3Path          string `yaml:"python3_path"`
	MetricsRetentionDays int    `yaml:"metrics_retention_days"`
	LogLevel             string `yaml:"log_level"`
	LogPretty            bool   `yaml:"log_pretty"`
}

// Load builds a Config from the environment, applying defaults for every
// knob the server reads, then overlays config.yaml (if present and readable):
// every non-zero value in the YAML replaces the environment or default value,
// and zero values in the YAML leave the knob unchanged.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:           getEnv("LISTEN_ADDR", ":8080"),
		Production:           getEnv("ENVIRONMENT", "development") == "production",
		AuthSecretKey:        os.Getenv("AUTH_SECRET_KEY"),
		AuthTokenExpiryHrs:   getEnvInt("AUTH_TOKEN_EXPIRY_HOURS", 168),
		AuthMaxSessions:      getEnvInt("AUTH_MAX_SESSIONS", 10),
		CORSOrigins:          splitCSV(os.Getenv("CORS_ORIGINS")),
		MetricsIPSalt:        os.Getenv("METRICS_IP_SALT"),
		DBPath:               getEnv("DB_PATH", "./data/signalstudio.db"),
		StorageRoot:          getEnv("STORAGE_ROOT", "./data/storage"),
		DefaultQuotaBytes:    int64(getEnvInt("DEFAULT_QUOTA_MIB", 5*1024)) * 1024 * 1024,
		MaxFilesPerUser:      getEnvInt("MAX_FILES_PER_USER", 1000),
		MaxFilesPerCat:       getEnvInt("MAX_FILES_PER_CATEGORY", 200),
		RateLimitWindow:      time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 900)) * time.Second,
		RateLimitMax:         getEnvInt("RATE_LIMIT_MAX_ATTEMPTS", 5),
		RateLimitLockout:     time.Duration(getEnvInt("RATE_LIMIT_LOCKOUT_SECONDS", 1800)) * time.Second,
		SessionIdleTimeout:   time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 60)) * time.Minute,
		SessionMaxCount:      getEnvInt("SESSION_MAX_COUNT", 50),
		SignalDenyPatterns:   splitCSV(os.Getenv("SIGNAL_DENY_PATTERNS")),
		TaskWorkerCap:        getEnvInt("TASK_WORKER_CAP", 0), // 0 ⇒ resolved to runtime.NumCPU() by the caller
		TaskCleanupConvert:   time.Duration(getEnvInt("TASK_CLEANUP_CONVERT_HOURS", 24)) * time.Hour,
		TaskCleanupConcat:    time.Duration(getEnvInt("TASK_CLEANUP_CONCAT_HOURS", 1)) * time.Hour,
		SandboxTimeout:       time.Duration(getEnvInt("SANDBOX_TIMEOUT_SECONDS", 30)) * time.Second,
		SandboxMemoryMiB:     getEnvInt("SANDBOX_MEMORY_MIB", 256),
		SandboxMaxAST:        getEnvInt("SANDBOX_MAX_AST_NODES", 10000),
		SandboxMaxChars:      getEnvInt("SANDBOX_MAX_CODE_CHARS", 500000),
		Python3Path:          getEnv("PYTHON3_PATH", "python3"),
		MetricsRetentionDays: getEnvInt("METRICS_RETENTION_DAYS", 30),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogPretty:            getEnvBool("LOG_PRETTY", false),
		RedisEnabled:         getEnvBool("REDIS_ENABLED", false),
		RedisHost:            getEnv("REDIS_HOST", "localhost"),
		RedisPort:            getEnv("REDIS_PORT", "6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		ViewCacheTTL:         time.Duration(getEnvInt("VIEW_CACHE_TTL_SECONDS", 30)) * time.Second,
	}

	if err := cfg.applyYAMLOverlay(getEnv("CONFIG_FILE", "config.yaml")); err != nil {
		return nil, err
	}

	if cfg.Production {
		for _, origin := range cfg.CORSOrigins {
			if !strings.HasPrefix(origin, "https://") {
				return nil, fmt.Errorf("CORS_ORIGINS must be HTTPS in production, got %q", origin)
			}
		}
	}

	return cfg, nil
}

func (c *Config) applyYAMLOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var ov overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return err
	}

	if ov.ListenAddr != "" {
		c.ListenAddr = ov.ListenAddr
	}
	if ov.DBPath != "" {
		c.DBPath = ov.DBPath
	}
	if ov.StorageRoot != "" {
		c.StorageRoot = ov.StorageRoot
	}
	if ov.DefaultQuotaBytes > 0 {
		c.DefaultQuotaBytes = ov.DefaultQuotaBytes
	}
	if ov.MaxFilesPerUser > 0 {
		c.MaxFilesPerUser = ov.MaxFilesPerUser
	}
	if ov.MaxFilesPerCategory > 0 {
		c.MaxFilesPerCat = ov.MaxFilesPerCategory
	}
	if ov.RateLimitWindowSec > 0 {
		c.RateLimitWindow = time.Duration(ov.RateLimitWindowSec) * time.Second
	}
	if ov.RateLimitMax > 0 {
		c.RateLimitMax = ov.RateLimitMax
	}
	if ov.RateLimitLockoutSec > 0 {
		c.RateLimitLockout = time.Duration(ov.RateLimitLockoutSec) * time.Second
	}
	if ov.SessionIdleMinutes > 0 {
		c.SessionIdleTimeout = time.Duration(ov.SessionIdleMinutes) * time.Minute
	}
	if ov.SessionMaxCount > 0 {
		c.SessionMaxCount = ov.SessionMaxCount
	}
	if ov.TaskWorkerCap > 0 {
		c.TaskWorkerCap = ov.TaskWorkerCap
	}
	if ov.TaskCleanupConvertHr > 0 {
		c.TaskCleanupConvert = time.Duration(ov.TaskCleanupConvertHr) * time.Hour
	}
	if ov.TaskCleanupConcatHr > 0 {
		c.TaskCleanupConcat = time.Duration(ov.TaskCleanupConcatHr) * time.Hour
	}
	if ov.SandboxTimeoutSec > 0 {
		c.SandboxTimeout = time.Duration(ov.SandboxTimeoutSec) * time.Second
	}
	if ov.SandboxMemoryMiB > 0 {
		c.SandboxMemoryMiB = ov.SandboxMemoryMiB
	}
	if ov.SandboxMaxAST > 0 {
		c.SandboxMaxAST = ov.SandboxMaxAST
	}
	if ov.SandboxMaxChars > 0 {
		c.SandboxMaxChars = ov.SandboxMaxChars
	}
	if ov.Python3Path != "" {
		c.Python3Path = ov.Python3Path
	}
	if ov.MetricsRetentionDays > 0 {
		c.MetricsRetentionDays = ov.MetricsRetentionDays
	}
	if ov.LogLevel != "" {
		c.LogLevel = ov.LogLevel
	}
	if ov.LogPretty {
		c.LogPretty = true
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
