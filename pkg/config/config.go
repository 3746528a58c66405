package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend struct {
		// BaseURL is the HTTP base address of the group-hub API, e.g.
		// "http://127.0.0.1:8000/api". The push-channel address is derived
		// from it (http->ws, https->wss) unless WSBaseURL is set.
		BaseURL      string `yaml:"base_url"`
		WSBaseURL    string `yaml:"ws_base_url"`
		AccessToken  string `yaml:"access_token"`
		RefreshToken string `yaml:"refresh_token"`
		// TimeoutSeconds bounds single REST calls; 0 means no timeout
		// beyond what the transport provides.
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"backend"`
	Chat struct {
		// Groups to start syncing at boot. Others are created lazily when
		// first accessed through the library API.
		Groups   []string `yaml:"groups"`
		PageSize int      `yaml:"page_size"`
	} `yaml:"chat"`
	Observe struct {
		Address   string `yaml:"address"`
		Port      int    `yaml:"port"`
		RateLimit struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"observe"`
	Retention struct {
		Enabled bool   `yaml:"enabled"`
		Cron    string `yaml:"cron"`
		// Period is how long terminal upload records are kept, e.g. "24h".
		Period string `yaml:"period"`
	} `yaml:"retention"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Addr returns host:port for the observe HTTP server.
func (c *Config) Addr() string {
	addr := c.Observe.Address
	if addr == "" {
		addr = "127.0.0.1"
	}
	p := c.Observe.Port
	if p == 0 {
		p = 8188
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// PageSize returns the configured history page size or the default of 50.
func (c *Config) PageSize() int {
	if c.Chat.PageSize > 0 {
		return c.Chat.PageSize
	}
	return 50
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, backend string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", "127.0.0.1:8188", "observe API listen address")
	backendPtr := flag.String("backend", "http://127.0.0.1:8000/api", "group-hub backend base URL")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *backendPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies environment overrides onto the provided cfg and
// reports whether any env vars were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("HUBSYNC_BACKEND_URL"); v != "" {
		envUsed = true
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("HUBSYNC_WS_URL"); v != "" {
		envUsed = true
		cfg.Backend.WSBaseURL = v
	}
	if v := os.Getenv("HUBSYNC_ACCESS_TOKEN"); v != "" {
		envUsed = true
		cfg.Backend.AccessToken = v
	}
	if v := os.Getenv("HUBSYNC_REFRESH_TOKEN"); v != "" {
		envUsed = true
		cfg.Backend.RefreshToken = v
	}
	if v := os.Getenv("HUBSYNC_GROUPS"); v != "" {
		envUsed = true
		cfg.Chat.Groups = parseList(v)
	}
	if v := os.Getenv("HUBSYNC_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			envUsed = true
			cfg.Chat.PageSize = n
		}
	}
	if v := os.Getenv("HUBSYNC_OBSERVE_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Observe.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Observe.Port = pi
			}
		} else {
			cfg.Observe.Address = v
		}
	}
	if v := os.Getenv("HUBSYNC_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Observe.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("HUBSYNC_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Observe.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("HUBSYNC_RETENTION_ENABLED"); v != "" {
		envUsed = true
		vl := strings.ToLower(strings.TrimSpace(v))
		cfg.Retention.Enabled = vl == "1" || vl == "true" || vl == "yes"
	}
	if v := os.Getenv("HUBSYNC_RETENTION_CRON"); v != "" {
		envUsed = true
		cfg.Retention.Cron = v
	}
	if v := os.Getenv("HUBSYNC_RETENTION_PERIOD"); v != "" {
		envUsed = true
		cfg.Retention.Period = v
	}
	if v := os.Getenv("HUBSYNC_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	return envUsed
}

// LoadEffective loads config from the given path (file) and applies
// environment overrides. A missing file is not an error; env and flags can
// carry the whole configuration.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	return cfg, envUsed, nil
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and the environment variable HUBSYNC_CONFIG when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("HUBSYNC_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
