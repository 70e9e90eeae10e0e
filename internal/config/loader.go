package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"fabricmcp/pkg/logging"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, layered over the
// defaults, then applies environment overrides. A missing file is not an
// error; the defaults plus environment are used.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "no config file at %s, using defaults", path)
			applyEnv(&cfg)
			return cfg, cfg.Validate()
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	logging.Info("ConfigLoader", "loaded configuration from %s", path)

	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

// applyEnv layers FABRIC_* environment variables over the config. These win
// over file values, matching deployment practice where the file is baked
// into an image and the environment carries per-site differences.
func applyEnv(cfg *Config) {
	setString(&cfg.Upstream.OrchestratorHost, "FABRIC_ORCHESTRATOR_HOST")
	setString(&cfg.Upstream.CoreAPIHost, "FABRIC_CORE_API_HOST")
	setString(&cfg.Upstream.CredmgrHost, "FABRIC_CREDMGR_HOST")
	setString(&cfg.Server.Host, "FABRIC_MCP_HOST")
	setInt(&cfg.Server.Port, "FABRIC_MCP_PORT")
	setString(&cfg.Server.Transport, "FABRIC_MCP_TRANSPORT")
	setString(&cfg.Log.Level, "FABRIC_MCP_LOG_LEVEL")
	setString(&cfg.Log.Format, "FABRIC_MCP_LOG_FORMAT")
	setInt(&cfg.Cache.RefreshIntervalSecs, "FABRIC_CACHE_REFRESH_SECONDS")
	setInt(&cfg.Cache.MaxFetch, "FABRIC_CACHE_MAX_FETCH")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logging.Warn("ConfigLoader", "ignoring %s=%q: not an integer", key, v)
		return
	}
	*dst = n
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.Upstream.OrchestratorHost == "" {
		return fmt.Errorf("upstream.orchestratorHost must not be empty")
	}
	if c.Upstream.CredmgrHost == "" {
		return fmt.Errorf("upstream.credmgrHost must not be empty")
	}
	if c.Upstream.CoreAPIHost == "" {
		return fmt.Errorf("upstream.coreApiHost must not be empty")
	}
	switch c.Server.Transport {
	case TransportStreamableHTTP, TransportSSE, TransportStdio:
	default:
		return fmt.Errorf("unknown transport %q", c.Server.Transport)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Query.MaxUnsorted <= 0 || c.Query.MaxSorted <= 0 || c.Query.DefaultLimit <= 0 {
		return fmt.Errorf("query limits must be positive")
	}
	return nil
}
