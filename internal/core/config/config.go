package config

import (
	"time"

	redisclient "github.com/coumap/crawler/internal/infra/redis"
	"github.com/coumap/crawler/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Crawler  CrawlerConfig      `yaml:"crawler"`
	Geocode  GeocodeConfig      `yaml:"geocode"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	Metrics  MetricsConfig      `yaml:"metrics"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// CrawlerConfig holds browser and traversal settings.
type CrawlerConfig struct {
	// EntryURL is the merchant map widget page.
	EntryURL  string `yaml:"entry_url"`
	Headless  bool   `yaml:"headless"`
	UserAgent string `yaml:"user_agent"`

	// RunName namespaces the redis side channels.
	RunName string `yaml:"run_name"`

	SettlePause time.Duration `yaml:"settle_pause"`
	ResultPause time.Duration `yaml:"result_pause"`
	SlicePause  time.Duration `yaml:"slice_pause"`
	BatchPause  time.Duration `yaml:"batch_pause"`

	// OpTimeout is the per-operation ceiling on session calls.
	OpTimeout time.Duration `yaml:"op_timeout"`

	MaxRecoveryAttempts int           `yaml:"max_recovery_attempts"`
	RecoveryPause       time.Duration `yaml:"recovery_pause"`
}

// GeocodeConfig holds the provider credentials and pacing.
type GeocodeConfig struct {
	KakaoAPIKey       string `yaml:"kakao_api_key"`
	NaverClientID     string `yaml:"naver_client_id"`
	NaverClientSecret string `yaml:"naver_client_secret"`

	CallTimeout time.Duration `yaml:"call_timeout"`
	CallDelay   time.Duration `yaml:"call_delay"`

	// TownMatch is "strict" or "lenient"; see the resolver's validation.
	TownMatch string `yaml:"town_match"`
}

// MetricsConfig holds the Prometheus listener settings. Port 0 disables it.
type MetricsConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
