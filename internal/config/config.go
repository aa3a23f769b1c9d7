package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	// Embedded zone data so LEDGER_TIMEZONE works in minimal containers.
	_ "time/tzdata"
)

type Config struct {
	// HTTP Server
	Port string

	// Store selection
	DataBackend  string
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID          string
	GoogleServiceAccountJSON     string
	GoogleServiceAccountFile     string
	GoogleApplicationCredentials string
	ExpensesSheetName            string
	SettingsSheetName            string
	SheetsCacheTTL               time.Duration

	// Discord
	DiscordBotToken  string
	DiscordChannelID string

	// Daily reminder
	ReminderHour          int
	ReminderCheckInterval time.Duration
	Timezone              string

	// AMQP
	AMQPURL              string
	AMQPExchange         string
	AMQPCommandQueue     string
	AMQPReplyQueue       string
	AMQPEventsRoutingKey string

	// Logging
	LogLevel  string
	LogFormat string

	RateLimitPerMinute int

	// ConfigFile is the TOML file values were read from, if any.
	ConfigFile string
}

// fileConfig mirrors the TOML layout. Durations are strings such as "30s".
type fileConfig struct {
	Port        string `toml:"port"`
	DataBackend string `toml:"data_backend"`
	SQLite      struct {
		Path string `toml:"path"`
	} `toml:"sqlite"`
	Sheets struct {
		SpreadsheetID      string `toml:"spreadsheet_id"`
		ServiceAccountFile string `toml:"service_account_file"`
		ExpensesSheet      string `toml:"expenses_sheet"`
		SettingsSheet      string `toml:"settings_sheet"`
		CacheTTL           string `toml:"cache_ttl"`
	} `toml:"sheets"`
	Discord struct {
		ChannelID string `toml:"channel_id"`
	} `toml:"discord"`
	Reminder struct {
		Hour          *int   `toml:"hour"`
		CheckInterval string `toml:"check_interval"`
		Timezone      string `toml:"timezone"`
	} `toml:"reminder"`
	AMQP struct {
		URL              string `toml:"url"`
		Exchange         string `toml:"exchange"`
		CommandQueue     string `toml:"command_queue"`
		ReplyQueue       string `toml:"reply_queue"`
		EventsRoutingKey string `toml:"events_routing_key"`
	} `toml:"amqp"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
}

func defaults() *Config {
	return &Config{
		Port:                  "8081",
		DataBackend:           "memory",
		SQLiteDBPath:          "./data/ledger.db",
		ExpensesSheetName:     "Expenses",
		SettingsSheetName:     "Settings",
		SheetsCacheTTL:        0,
		ReminderHour:          20,
		ReminderCheckInterval: time.Hour,
		AMQPExchange:          "ledger",
		AMQPCommandQueue:      "ledger.commands",
		AMQPReplyQueue:        "ledger.replies",
		AMQPEventsRoutingKey:  "ledger.events",
		LogLevel:              "info",
		LogFormat:             "text",
		RateLimitPerMinute:    30,
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// LEDGER_CONFIG_FILE (when set), then environment variables. Secrets such as
// the bot token and inline credentials are read from the environment only.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("LEDGER_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	c.ConfigFile = path

	setString(&c.Port, fc.Port)
	setString(&c.DataBackend, fc.DataBackend)
	setString(&c.SQLiteDBPath, fc.SQLite.Path)
	setString(&c.GoogleSpreadsheetID, fc.Sheets.SpreadsheetID)
	setString(&c.GoogleServiceAccountFile, fc.Sheets.ServiceAccountFile)
	setString(&c.ExpensesSheetName, fc.Sheets.ExpensesSheet)
	setString(&c.SettingsSheetName, fc.Sheets.SettingsSheet)
	setString(&c.DiscordChannelID, fc.Discord.ChannelID)
	setString(&c.Timezone, fc.Reminder.Timezone)
	setString(&c.AMQPURL, fc.AMQP.URL)
	setString(&c.AMQPExchange, fc.AMQP.Exchange)
	setString(&c.AMQPCommandQueue, fc.AMQP.CommandQueue)
	setString(&c.AMQPReplyQueue, fc.AMQP.ReplyQueue)
	setString(&c.AMQPEventsRoutingKey, fc.AMQP.EventsRoutingKey)
	setString(&c.LogLevel, fc.Log.Level)
	setString(&c.LogFormat, fc.Log.Format)

	if fc.Reminder.Hour != nil {
		c.ReminderHour = *fc.Reminder.Hour
	}
	if fc.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = fc.RateLimitPerMinute
	}

	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"sheets.cache_ttl", fc.Sheets.CacheTTL, &c.SheetsCacheTTL},
		{"reminder.check_interval", fc.Reminder.CheckInterval, &c.ReminderCheckInterval},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config file %s: invalid %s %q: %w", path, d.name, d.raw, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)
	c.GoogleApplicationCredentials = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.GoogleApplicationCredentials)
	c.ExpensesSheetName = getEnv("EXPENSES_SHEET_NAME", c.ExpensesSheetName)
	c.SettingsSheetName = getEnv("SETTINGS_SHEET_NAME", c.SettingsSheetName)
	c.SheetsCacheTTL = getEnvDuration("SHEETS_CACHE_TTL", c.SheetsCacheTTL)

	c.DiscordBotToken = getEnv("DISCORD_BOT_TOKEN", c.DiscordBotToken)
	c.DiscordChannelID = getEnv("DISCORD_CHANNEL_ID", c.DiscordChannelID)

	c.ReminderHour = getEnvInt("REMINDER_HOUR", c.ReminderHour)
	c.ReminderCheckInterval = getEnvDuration("REMINDER_CHECK_INTERVAL", c.ReminderCheckInterval)
	c.Timezone = getEnv("LEDGER_TIMEZONE", c.Timezone)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPCommandQueue = getEnv("AMQP_COMMAND_QUEUE", c.AMQPCommandQueue)
	c.AMQPReplyQueue = getEnv("AMQP_REPLY_QUEUE", c.AMQPReplyQueue)
	c.AMQPEventsRoutingKey = getEnv("AMQP_EVENTS_ROUTING_KEY", c.AMQPEventsRoutingKey)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sheets", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if c.DataBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "GOOGLE_SPREADSHEET_ID is required when using sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && c.GoogleApplicationCredentials == "" {
			errors = append(errors, "one of GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets backend")
		}
		for _, f := range []string{c.GoogleServiceAccountFile, c.GoogleApplicationCredentials} {
			if f == "" {
				continue
			}
			if _, err := os.Stat(f); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("service account file does not exist: %s", f))
			}
		}
		if c.ExpensesSheetName == "" || c.SettingsSheetName == "" {
			errors = append(errors, "sheet names cannot be empty")
		}
	}
	if c.SheetsCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid sheets cache TTL %v: must not be negative", c.SheetsCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPCommandQueue == "" {
			errors = append(errors, "AMQP command queue cannot be empty when AMQP URL is provided")
		}
	}

	if c.DiscordChannelID != "" {
		if _, err := strconv.ParseUint(c.DiscordChannelID, 10, 64); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Discord channel id '%s': must be numeric", c.DiscordChannelID))
		}
	}

	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		errors = append(errors, fmt.Sprintf("invalid reminder hour %d: must be between 0 and 23", c.ReminderHour))
	}
	if c.ReminderCheckInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid reminder check interval %v: must be at least 1 minute", c.ReminderCheckInterval))
	} else if c.ReminderCheckInterval > time.Hour {
		// Checking less than hourly could skip the reminder hour entirely.
		errors = append(errors, fmt.Sprintf("invalid reminder check interval %v: must be at most 1 hour", c.ReminderCheckInterval))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateDiscord reports missing settings required by the Discord transport.
func (c *Config) ValidateDiscord() error {
	if c.DiscordBotToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN must be set")
	}
	return nil
}

// ValidateAMQP reports missing settings required by the command worker.
func (c *Config) ValidateAMQP() error {
	if c.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL must be set")
	}
	return nil
}

// Location returns the time zone the ledger's "current month" is evaluated in.
// An empty Timezone means the process local zone.
func (c *Config) Location() *time.Location {
	// LoadLocation("") is UTC, not the local zone.
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
