package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	credentialsPathEnv = "TWITCH_CREDENTIALS_PATH"
	defaultFilePath    = "./config.yaml"
	backupSuffix       = ".back"
)

// App holds the chat application credentials.
type App struct {
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`
}

// RaffleConfig holds the raffle bot identity and the message templates used
// to recognise raffle announcements. WinnersTemplate must contain the
// {winners} placeholder.
type RaffleConfig struct {
	BotUsername     string `yaml:"bot_username"`
	JoinCommand     string `yaml:"join_command"`
	OpenPattern     string `yaml:"open_pattern"`
	DurationPattern string `yaml:"duration_pattern"`
	ClosePattern    string `yaml:"close_pattern"`
	WinnersTemplate string `yaml:"winners_template"`
}

// ResponderConfig holds the trigger/response pair of the responder feature.
type ResponderConfig struct {
	TriggerText     string `yaml:"trigger_text"`
	TriggerUsername string `yaml:"trigger_username"`
	ResponseText    string `yaml:"response_text"`
}

// File is the YAML-backed part of the configuration: credentials and
// message templates.
type File struct {
	App          App             `yaml:"app"`
	Scopes       []string        `yaml:"scopes"`
	AccessToken  string          `yaml:"access_token,omitempty"`
	RefreshToken string          `yaml:"refresh_token,omitempty"`
	BotNick      string          `yaml:"bot_nick"`
	Channel      string          `yaml:"channel"`
	Raffle       RaffleConfig    `yaml:"raffle"`
	Responder    ResponderConfig `yaml:"responder"`
}

// Runtime holds the environment-driven knobs.
type Runtime struct {
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	ActivityDir      string        `env:"ACTIVITY_DIR"`
	FlushEvery       time.Duration `env:"ACTIVITY_FLUSH_EVERY" envDefault:"1m"`
	MaxFileSize      int64         `env:"ACTIVITY_MAX_FILE_SIZE_BYTES" envDefault:"5242880"` // 5MiB
	RedactFields     []string      `env:"ACTIVITY_REDACT_FIELDS" envSeparator:","`
	ChatURL          string        `env:"TWITCH_CHAT_URL" envDefault:"wss://irc-ws.chat.twitch.tv:443"`
	ChatRatePer30s   int           `env:"CHAT_RATE_PER_30S" envDefault:"20"`
	SQLitePath       string        `env:"SQLITE_PATH" envDefault:"tctk.db"`
	PostgresURL      string        `env:"POSTGRES_URL"`
	RedisAddr        string        `env:"REDIS_ADDR"`
	RedisStream      string        `env:"REDIS_STREAM" envDefault:"chat_events"`
	RedisDLQStream   string        `env:"REDIS_DLQ_STREAM" envDefault:"chat_events_dlq"`
	ArchiveGroup     string        `env:"ARCHIVE_GROUP" envDefault:"chat-archivers"`
	ArchiveRetries   int           `env:"ARCHIVE_RETRIES" envDefault:"3"`
	ArchiveBackoff   time.Duration `env:"ARCHIVE_BACKOFF" envDefault:"1s"`
	AdminAddr        string        `env:"ADMIN_ADDR" envDefault:":9091"`
	HealthCheckEvery time.Duration `env:"REDIS_HEALTH_CHECK_EVERY" envDefault:"5s"`
}

// Config holds all application configuration.
type Config struct {
	File    `yaml:",inline"`
	Runtime `yaml:"-"`

	path string
}

// DefaultFile returns the values used when config.yaml omits them.
func DefaultFile() File {
	return File{
		Channel: "thestreameast",
		Scopes:  []string{"chat:read", "chat:edit"},
		Raffle: RaffleConfig{
			BotUsername:     "horse_person00",
			JoinCommand:     "Glerp",
			OpenPattern:     `a Multi-Raffle has begun for ([0-9]+) EastCoin`,
			DurationPattern: `it will end in ([0-9]+) Seconds`,
			ClosePattern:    `The Multi-Raffle has ended!`,
			WinnersTemplate: `The Multi-Raffle has ended! {winners} won`,
		},
		Responder: ResponderConfig{
			TriggerText:     "!blastin",
			TriggerUsername: "horse_person00",
			ResponseText:    "s! h! gunR p! ABOBA s! gunR",
		},
	}
}

// Path returns the config file location: $TWITCH_CREDENTIALS_PATH or ./config.yaml.
func Path() string {
	if p := os.Getenv(credentialsPathEnv); p != "" {
		return p
	}
	return defaultFilePath
}

// Load reads the YAML file (if present) and the environment.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()
	return LoadFrom(Path())
}

// LoadFrom reads configuration using the YAML file at path. A missing file
// leaves the defaults in place.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{File: DefaultFile(), path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg.File); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg.Runtime); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.ActivityDir == "" {
		cfg.ActivityDir = DefaultActivityDir()
	}
	return cfg, nil
}

// DefaultActivityDir is $HOME/var/log/tctk.
func DefaultActivityDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tctk")
	}
	return filepath.Join(home, "var", "log", "tctk")
}

// FilePath is the YAML file this configuration was loaded from.
func (c *Config) FilePath() string {
	return c.path
}

// HasTokens reports whether an access token is configured.
func (c *Config) HasTokens() bool {
	return c.AccessToken != ""
}

// ValidateChat checks the settings needed to connect to chat.
func (c *Config) ValidateChat() error {
	var missing []string
	if c.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if c.BotNick == "" {
		missing = append(missing, "bot_nick")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config %s is missing %s", c.path, strings.Join(missing, ", "))
	}
	return nil
}

// PersistWith applies update and rewrites the YAML file.
func (c *Config) PersistWith(update func(*File)) error {
	update(&c.File)
	return c.writeFile(c.path)
}

// Backup writes the current file contents next to the config with a .back suffix.
func (c *Config) Backup() (string, error) {
	path := strings.TrimSuffix(c.path, filepath.Ext(c.path)) + backupSuffix
	if err := c.writeFile(path); err != nil {
		return "", err
	}
	return path, nil
}

func (c *Config) writeFile(path string) error {
	data, err := yaml.Marshal(&c.File)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file %s: %w", path, err)
	}
	return nil
}
