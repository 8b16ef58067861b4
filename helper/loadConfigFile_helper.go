package helper

import (
	"fmt"
	"os"
	"strings"
	"time"

	"pr_panel/model"

	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "config_file/panel-config.yaml"

// LoadConfigFile reads the YAML config, applies env overrides and defaults.
func LoadConfigFile(path string) (*model.Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg model.Config
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// ValidateBitbucket reports the first missing setting needed to talk to the server.
func ValidateBitbucket(s model.BitbucketSettings) error {
	switch {
	case strings.TrimSpace(s.URL) == "":
		return fmt.Errorf("bitbucket.url is required")
	case strings.TrimSpace(s.Login) == "":
		return fmt.Errorf("bitbucket.login is required")
	case s.Password == "":
		return fmt.Errorf("bitbucket.password is required (or set BITBUCKET_PASSWORD)")
	}
	return nil
}

func applyEnv(cfg *model.Config) {
	if v, ok := os.LookupEnv("BITBUCKET_PASSWORD"); ok && v != "" {
		cfg.Bitbucket.Password = v
	}
	if v, ok := os.LookupEnv("TELEGRAM_TOKEN"); ok && v != "" {
		cfg.Telegram.Token = v
	}
}

func applyDefaults(cfg *model.Config) {
	if cfg.Bitbucket.URL != "" && !strings.HasSuffix(cfg.Bitbucket.URL, "/") {
		cfg.Bitbucket.URL += "/"
	}
	if cfg.Bitbucket.RequestsPerSecond <= 0 {
		cfg.Bitbucket.RequestsPerSecond = 5
	}
	if cfg.Bitbucket.Burst <= 0 {
		cfg.Bitbucket.Burst = 10
	}
	if cfg.Bitbucket.Timeout <= 0 {
		cfg.Bitbucket.Timeout = 30 * time.Second
	}
	if cfg.Bitbucket.PageLimit <= 0 {
		cfg.Bitbucket.PageLimit = 25
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":1994"
	}
	if cfg.Git.RemoteName == "" {
		cfg.Git.RemoteName = "origin"
	}
	if cfg.Telegram.MinSeverity == "" {
		cfg.Telegram.MinSeverity = model.SeverityWarning
	}
}
