// engine/internal/config/config.go
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port        int      `yaml:"port" json:"port"`
		Bind        string   `yaml:"bind" json:"bind"`
		DataDir     string   `yaml:"data_dir" json:"data_dir"`
		CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
	} `yaml:"app" json:"app"`

	Data struct {
		CSVPaths          []string `yaml:"csv_paths" json:"csv_paths"`
		Delimiters        []string `yaml:"delimiters" json:"delimiters"`
		EssentialOnly     bool     `yaml:"essential_only" json:"essential_only"`
		FilterMaxValues   int      `yaml:"filter_max_values" json:"filter_max_values"`
		SampleThresholdMB int      `yaml:"sample_threshold_mb" json:"sample_threshold_mb"`
		SampleEvery       int      `yaml:"sample_every" json:"sample_every"`
	} `yaml:"data" json:"data"`

	Query struct {
		DefaultPageSize int `yaml:"default_page_size" json:"default_page_size"`
		MaxPageSize     int `yaml:"max_page_size" json:"max_page_size"`
	} `yaml:"query" json:"query"`

	SMTP struct {
		Host                  string `yaml:"host" json:"host"`
		Port                  int    `yaml:"port" json:"port"`
		Security              string `yaml:"security" json:"security"` // starttls | tls | none
		Username              string `yaml:"username" json:"username"` // empty = sender address
		Password              string `yaml:"-" json:"-"`
		ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds" json:"connect_timeout_seconds"`
		SendTimeoutSeconds    int    `yaml:"send_timeout_seconds" json:"send_timeout_seconds"`
	} `yaml:"smtp" json:"smtp"`

	IMAP struct {
		Enabled bool   `yaml:"enabled" json:"enabled"`
		Host    string `yaml:"host" json:"host"`
		Port    int    `yaml:"port" json:"port"`
		Mailbox string `yaml:"mailbox" json:"mailbox"`
	} `yaml:"imap" json:"imap"`

	Pacing struct {
		MessageDelayMS int `yaml:"message_delay_ms" json:"message_delay_ms"`
		BatchSize      int `yaml:"batch_size" json:"batch_size"`
		BatchDelayMS   int `yaml:"batch_delay_ms" json:"batch_delay_ms"`
	} `yaml:"pacing" json:"pacing"`

	Auth struct {
		JWTSecret     string `yaml:"jwt_secret" json:"-"`
		TokenTTLHours int    `yaml:"token_ttl_hours" json:"token_ttl_hours"`
	} `yaml:"auth" json:"auth"`

	Tracking struct {
		QueueSize  int  `yaml:"queue_size" json:"queue_size"`
		FetchLogos bool `yaml:"fetch_logos" json:"fetch_logos"`
	} `yaml:"tracking" json:"tracking"`

	AI struct {
		Model       string  `yaml:"model" json:"model"`
		Temperature float64 `yaml:"temperature" json:"temperature"`
		MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
		APIKey      string  `yaml:"api_key" json:"-"`
	} `yaml:"ai" json:"ai"`
}

// Default is the baseline used when no config file exists and for keys the
// file leaves out.
func Default() Config {
	var cfg Config
	cfg.App.Port = 38471
	cfg.App.Bind = "127.0.0.1"
	cfg.App.DataDir = "."

	cfg.Data.CSVPaths = []string{
		filepath.Join("data", "lca_data.csv"),
		filepath.Join("data", "subset_lca_data.csv"),
	}
	cfg.Data.Delimiters = []string{",", "\t", "|", ";"}
	cfg.Data.EssentialOnly = true
	cfg.Data.FilterMaxValues = 500
	cfg.Data.SampleThresholdMB = 200
	cfg.Data.SampleEvery = 10

	cfg.Query.DefaultPageSize = 50
	cfg.Query.MaxPageSize = 100

	cfg.SMTP.Port = 587
	cfg.SMTP.Security = "starttls"
	cfg.SMTP.ConnectTimeoutSeconds = 10
	cfg.SMTP.SendTimeoutSeconds = 30

	cfg.IMAP.Port = 993
	cfg.IMAP.Mailbox = "Sent"

	// conservative: 3s between mails, 10s after every 5
	cfg.Pacing.MessageDelayMS = 3000
	cfg.Pacing.BatchSize = 5
	cfg.Pacing.BatchDelayMS = 10000

	cfg.Auth.TokenTTLHours = 24 * 7

	cfg.Tracking.QueueSize = 256

	cfg.AI.Model = "gpt-4.1"
	cfg.AI.Temperature = 0.7
	cfg.AI.MaxTokens = 1000
	return cfg
}

// Load reads path on top of Default and then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files are
// fine; variables already set win.
func LoadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// ApplyEnv overlays the variables the web app has always been configured with.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("EMAIL_HOST")); v != "" {
		cfg.SMTP.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("EMAIL_PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.SMTP.Port = p
		}
	}
	if v := strings.TrimSpace(os.Getenv("EMAIL_SECURE")); v != "" {
		if v == "true" {
			cfg.SMTP.Security = "tls"
		} else {
			cfg.SMTP.Security = "starttls"
		}
	}
	if v := os.Getenv("EMAIL_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
}

func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.SMTP.ConnectTimeoutSeconds) * time.Second
}

func (c Config) SendTimeout() time.Duration {
	return time.Duration(c.SMTP.SendTimeoutSeconds) * time.Second
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

// ResolvePath makes relative data paths relative to the data dir.
func (c Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.App.DataDir, p)
}

// DBPath is the tracker database location.
func (c Config) DBPath() string {
	return filepath.Join(c.App.DataDir, "lcamail.db")
}

// Redacted returns a copy safe to hand to the UI.
func (c Config) Redacted() Config {
	out := c
	out.SMTP.Password = ""
	out.Auth.JWTSecret = ""
	out.AI.APIKey = ""
	return out
}
