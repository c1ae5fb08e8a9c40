package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Timers   TimersConfig   `yaml:"timers"`
	Log      LogConfig      `yaml:"log"`
}

// TelegramConfig содержит настройки Telegram бота. Пустой токен отключает бота.
type TelegramConfig struct {
	Token       string  `yaml:"token"`
	WebhookURL  string  `yaml:"webhook_url"`
	SecretToken string  `yaml:"secret_token"`
	AdminIDs    []int64 `yaml:"admin_ids"`
	// ChatRequestsPerMinute лимит обновлений от одного чата
	ChatRequestsPerMinute int `yaml:"chat_requests_per_minute"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	// AdminToken открытый токен для изменяющих запросов
	AdminToken string `yaml:"admin_token"`
	// AdminTokenHash bcrypt хеш токена; имеет приоритет над AdminToken
	AdminTokenHash    string   `yaml:"admin_token_hash"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	MaxLiveClients    int      `yaml:"max_live_clients"`
	// TrustedProxies IP и CIDR прокси, которым разрешено передавать IP клиента
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// DatabaseConfig содержит настройки базы данных
type DatabaseConfig struct {
	Path           string        `yaml:"path"`
	MaxConnections int           `yaml:"max_connections"`
	ConnTimeout    time.Duration `yaml:"conn_timeout"`
}

// TimersConfig содержит настройки таймеров и клиента отображения
type TimersConfig struct {
	TickInterval   time.Duration `yaml:"tick_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// Timezone календарная зона для дат без времени
	Timezone string `yaml:"timezone"`
	// DeadlineNotify включает уведомления об истечении обратных таймеров
	DeadlineNotify bool `yaml:"deadline_notify"`
}

// LogConfig содержит настройки логирования
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults возвращает конфигурацию по умолчанию
func Defaults() *Config {
	return &Config{
		Telegram: TelegramConfig{
			ChatRequestsPerMinute: 30,
		},
		Server: ServerConfig{
			Port:              "8080",
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			RequestsPerMinute: 300,
			MaxLiveClients:    100,
		},
		Database: DatabaseConfig{
			Path:           "servicedesk.db",
			MaxConnections: 1,
			ConnTimeout:    5 * time.Second,
		},
		Timers: TimersConfig{
			TickInterval:   time.Second,
			RequestTimeout: 10 * time.Second,
			Timezone:       "Local",
			DeadlineNotify: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load загружает конфигурацию: .env, затем YAML из CONFIG_FILE, затем
// переменные окружения поверх
func Load() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Telegram.Token = getEnv("TELEGRAM_TOKEN", c.Telegram.Token)
	c.Telegram.WebhookURL = getEnv("WEBHOOK_URL", c.Telegram.WebhookURL)
	c.Telegram.SecretToken = getEnv("WEBHOOK_SECRET_TOKEN", c.Telegram.SecretToken)
	c.Telegram.ChatRequestsPerMinute = getEnvAsInt("TELEGRAM_CHAT_RPM", c.Telegram.ChatRequestsPerMinute)
	if v := os.Getenv("ADMIN_IDS"); v != "" {
		ids, err := parseIDs(v)
		if err != nil {
			return fmt.Errorf("invalid ADMIN_IDS: %w", err)
		}
		c.Telegram.AdminIDs = ids
	}

	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvAsDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.AdminToken = getEnv("ADMIN_TOKEN", c.Server.AdminToken)
	c.Server.AdminTokenHash = getEnv("ADMIN_TOKEN_HASH", c.Server.AdminTokenHash)
	c.Server.RequestsPerMinute = getEnvAsInt("HTTP_RPM", c.Server.RequestsPerMinute)
	c.Server.MaxLiveClients = getEnvAsInt("MAX_LIVE_CLIENTS", c.Server.MaxLiveClients)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		c.Server.TrustedProxies = splitList(v)
	}

	c.Database.Path = getEnv("DB_FILE", c.Database.Path)
	c.Database.MaxConnections = getEnvAsInt("DB_MAX_CONNECTIONS", c.Database.MaxConnections)
	c.Database.ConnTimeout = getEnvAsDuration("DB_CONN_TIMEOUT", c.Database.ConnTimeout)

	c.Timers.TickInterval = getEnvAsDuration("TIMER_TICK_INTERVAL", c.Timers.TickInterval)
	c.Timers.RequestTimeout = getEnvAsDuration("TIMER_REQUEST_TIMEOUT", c.Timers.RequestTimeout)
	c.Timers.Timezone = getEnv("TIMEZONE", c.Timers.Timezone)
	c.Timers.DeadlineNotify = getEnvAsBool("DEADLINE_NOTIFY", c.Timers.DeadlineNotify)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	return nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Telegram.Token != "" && c.Telegram.WebhookURL == "" {
		return fmt.Errorf("WEBHOOK_URL is required when TELEGRAM_TOKEN is set")
	}
	if c.Telegram.ChatRequestsPerMinute <= 0 {
		return fmt.Errorf("TELEGRAM_CHAT_RPM must be positive")
	}

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid PORT %q", c.Server.Port)
	}
	if c.Server.RequestsPerMinute <= 0 {
		return fmt.Errorf("HTTP_RPM must be positive")
	}
	if c.Server.MaxLiveClients <= 0 {
		return fmt.Errorf("MAX_LIVE_CLIENTS must be positive")
	}
	if c.Server.AdminTokenHash != "" && !strings.HasPrefix(c.Server.AdminTokenHash, "$2") {
		return fmt.Errorf("ADMIN_TOKEN_HASH must be a bcrypt hash")
	}
	for _, p := range c.Server.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("invalid TRUSTED_PROXIES entry %q", p)
		}
	}

	if c.Database.Path == "" {
		return fmt.Errorf("DB_FILE is required")
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("DB_MAX_CONNECTIONS must be positive")
	}

	if c.Timers.TickInterval <= 0 {
		return fmt.Errorf("TIMER_TICK_INTERVAL must be positive")
	}
	if c.Timers.RequestTimeout <= 0 {
		return fmt.Errorf("TIMER_REQUEST_TIMEOUT must be positive")
	}
	if _, err := c.Timers.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}

	return nil
}

// BotEnabled сообщает, настроен ли Telegram бот
func (c *Config) BotEnabled() bool {
	return c.Telegram.Token != ""
}

// IsAdmin проверяет, входит ли чат в список администраторов
func (t TelegramConfig) IsAdmin(chatID int64) bool {
	for _, id := range t.AdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// Location возвращает календарную зону
func (t TimersConfig) Location() (*time.Location, error) {
	if t.Timezone == "" || t.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(t.Timezone)
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvAsInt получает переменную окружения как число
func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvAsDuration получает переменную окружения как duration
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a chat id", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
