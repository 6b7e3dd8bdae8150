// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AIConfig struct {
	Keys               []string      `yaml:"keys"`
	TranscriptionModel string        `yaml:"transcription_model"`
	NoteModel          string        `yaml:"note_model"`
	DefaultProvider    string        `yaml:"default_provider"` // gemini | openai
	GeminiURL          string        `yaml:"gemini_url"`
	OpenAIBaseURL      string        `yaml:"openai_base_url"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	MaxRetries         int           `yaml:"max_retries"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	OverloadDelay      time.Duration `yaml:"overload_delay"`
	QuotaTimezone      string        `yaml:"quota_timezone"`
	NotePromptPath     string        `yaml:"note_prompt_path"`
	// ModelProviders pins a model name to a provider when the prefix heuristic is wrong.
	ModelProviders map[string]string `yaml:"model_providers"`
}

type AudioConfig struct {
	SizeCeilingBytes int64  `yaml:"size_ceiling_bytes"`
	SegmentSeconds   int    `yaml:"segment_seconds"`
	ReencodeBitrate  string `yaml:"reencode_bitrate"`
	FFmpegPath       string `yaml:"ffmpeg_path"`
	FFprobePath      string `yaml:"ffprobe_path"`
	YtDlpPath        string `yaml:"ytdlp_path"`
	CookiesFile      string `yaml:"cookies_file"`
	UserAgent        string `yaml:"user_agent"`
	TempDir          string `yaml:"temp_dir"`
	DownloadsDir     string `yaml:"downloads_dir"`
}

type StorageConfig struct {
	Backend  string `yaml:"backend"` // file | postgres
	JobsFile string `yaml:"jobs_file"`
	KeysFile string `yaml:"keys_file"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type AdminConfig struct {
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type NotionConfig struct {
	Secret     string `yaml:"secret"`
	DatabaseID string `yaml:"database_id"`
	BaseURL    string `yaml:"base_url"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type DeliveryConfig struct {
	OutputDir string         `yaml:"output_dir"`
	Notion    NotionConfig   `yaml:"notion"`
	Telegram  TelegramConfig `yaml:"telegram"`
}

type WorkerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	AI       AIConfig       `yaml:"ai"`
	Audio    AudioConfig    `yaml:"audio"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Admin    AdminConfig    `yaml:"admin"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Worker   WorkerConfig   `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, overlays environment secrets and
// fills defaults. A missing file is not an error: defaults plus environment
// are enough to run against the local file store.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AI_API_KEYS"); v != "" {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.AI.Keys = append(cfg.AI.Keys, k)
			}
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && cfg.Database.URL == "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("NOTION_SECRET"); v != "" {
		cfg.Delivery.Notion.Secret = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Delivery.Telegram.Token = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.AI.TranscriptionModel == "" {
		cfg.AI.TranscriptionModel = "gemini-2.5-flash"
	}
	if cfg.AI.NoteModel == "" {
		cfg.AI.NoteModel = "gemini-3-pro-preview"
	}
	if cfg.AI.DefaultProvider == "" {
		cfg.AI.DefaultProvider = "gemini"
	}
	if cfg.AI.RequestTimeout <= 0 {
		cfg.AI.RequestTimeout = 300 * time.Second
	}
	if cfg.AI.MaxRetries <= 0 {
		cfg.AI.MaxRetries = 3
	}
	if cfg.AI.RetryDelay <= 0 {
		cfg.AI.RetryDelay = 10 * time.Second
	}
	if cfg.AI.OverloadDelay <= 0 {
		cfg.AI.OverloadDelay = 600 * time.Second
	}
	if cfg.AI.QuotaTimezone == "" {
		cfg.AI.QuotaTimezone = "America/Los_Angeles"
	}

	if cfg.Audio.SizeCeilingBytes <= 0 {
		cfg.Audio.SizeCeilingBytes = 20 * 1024 * 1024
	}
	if cfg.Audio.SegmentSeconds <= 0 {
		cfg.Audio.SegmentSeconds = 1800
	}
	if cfg.Audio.ReencodeBitrate == "" {
		cfg.Audio.ReencodeBitrate = "32k"
	}
	if cfg.Audio.FFmpegPath == "" {
		cfg.Audio.FFmpegPath = "ffmpeg"
	}
	if cfg.Audio.FFprobePath == "" {
		cfg.Audio.FFprobePath = "ffprobe"
	}
	if cfg.Audio.YtDlpPath == "" {
		cfg.Audio.YtDlpPath = "yt-dlp"
	}
	if cfg.Audio.TempDir == "" {
		cfg.Audio.TempDir = "temp"
	}
	if cfg.Audio.DownloadsDir == "" {
		cfg.Audio.DownloadsDir = "downloads"
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.JobsFile == "" {
		cfg.Storage.JobsFile = "jobs.json"
	}
	if cfg.Storage.KeysFile == "" {
		cfg.Storage.KeysFile = "keys.json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 4
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 6 * time.Hour
	}

	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 30 * time.Minute
	}
	if cfg.Delivery.OutputDir == "" {
		cfg.Delivery.OutputDir = "notes"
	}
	if cfg.Delivery.Notion.BaseURL == "" {
		cfg.Delivery.Notion.BaseURL = "https://api.notion.com"
	}
	if cfg.Worker.Interval <= 0 {
		cfg.Worker.Interval = time.Minute
	}
}

// Validate reports configuration that cannot work at all.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file":
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if _, err := time.LoadLocation(c.AI.QuotaTimezone); err != nil {
		return fmt.Errorf("ai.quota_timezone: %w", err)
	}
	if c.Audio.SizeCeilingBytes <= 0 {
		return errors.New("audio.size_ceiling_bytes must be positive")
	}
	if c.Delivery.Notion.Secret != "" && c.Delivery.Notion.DatabaseID == "" {
		return errors.New("delivery.notion.database_id is required when a notion secret is set")
	}
	return nil
}

// QuotaLocation returns the fixed zone used for daily quota resets.
func (c *Config) QuotaLocation() *time.Location {
	loc, err := time.LoadLocation(c.AI.QuotaTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) SegmentLength() time.Duration {
	return time.Duration(c.Audio.SegmentSeconds) * time.Second
}
