package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Crawler.EntryURL == "" {
		cfg.Crawler.EntryURL = "https://m.kbcard.com/BON/DVIEW/MBAM0005"
	}
	if cfg.Crawler.UserAgent == "" {
		cfg.Crawler.UserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_7_1 like Mac OS X) AppleWebKit/605.1.15"
	}
	if cfg.Crawler.RunName == "" {
		cfg.Crawler.RunName = "coumap"
	}
	if cfg.Crawler.SettlePause == 0 {
		cfg.Crawler.SettlePause = 2 * time.Second
	}
	if cfg.Crawler.ResultPause == 0 {
		cfg.Crawler.ResultPause = 5 * time.Second
	}
	if cfg.Crawler.SlicePause == 0 {
		cfg.Crawler.SlicePause = 500 * time.Millisecond
	}
	if cfg.Crawler.BatchPause == 0 {
		cfg.Crawler.BatchPause = time.Second
	}
	if cfg.Crawler.OpTimeout == 0 {
		cfg.Crawler.OpTimeout = 30 * time.Second
	}
	if cfg.Crawler.MaxRecoveryAttempts == 0 {
		cfg.Crawler.MaxRecoveryAttempts = 2
	}
	if cfg.Crawler.RecoveryPause == 0 {
		cfg.Crawler.RecoveryPause = 2 * time.Second
	}

	if cfg.Geocode.CallTimeout == 0 {
		cfg.Geocode.CallTimeout = 5 * time.Second
	}
	if cfg.Geocode.CallDelay == 0 {
		cfg.Geocode.CallDelay = time.Second
	}
	if cfg.Geocode.TownMatch == "" {
		cfg.Geocode.TownMatch = "strict"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}
