package main

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const configFileName = ".jiracal.toml"

type JiraConfig struct {
	ServerURL  string `toml:"server_url"`
	Username   string `toml:"username"`
	APIToken   string `toml:"api_token"`
	ProjectKey string `toml:"project_key"`
	IssueType  string `toml:"issue_type"`
}

type CalendarConfig struct {
	Provider        string `toml:"provider"`
	CalendarID      string `toml:"calendar_id"`
	CredentialsPath string `toml:"credentials_path"`
	CalDAVURL       string `toml:"caldav_url"`
	CalDAVUsername  string `toml:"caldav_username"`
	CalDAVPassword  string `toml:"caldav_password"`
}

type ServerConfig struct {
	Port int `toml:"port"`
}

// Config is built once at startup and handed to everything that needs it.
type Config struct {
	Jira     JiraConfig     `toml:"jira"`
	Calendar CalendarConfig `toml:"calendar"`
	Server   ServerConfig   `toml:"server"`

	// StateDB is the sqlite file backing the link store. Empty disables it.
	StateDB  string `toml:"state_db"`
	LogLevel string `toml:"log_level"`
}

func defaultConfig() *Config {
	return &Config{
		Jira:     JiraConfig{IssueType: "Task"},
		Calendar: CalendarConfig{Provider: providerGoogle, CalendarID: "primary"},
		Server:   ServerConfig{Port: 8080},
		LogLevel: "info",
	}
}

// loadConfig reads .env, then the optional TOML file, then environment
// overrides, in increasing order of precedence.
func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	config := defaultConfig()
	if err := readConfig(configFileName, config); err != nil {
		return nil, err
	}
	if err := applyEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// readConfig decodes filename from the current dir, falling back to
// $HOME/.config/jiracal/. A missing file is not an error.
func readConfig(filename string, config *Config) error {
	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		data, err = os.ReadFile(filepath.Join(os.Getenv("HOME"), ".config", "jiracal", filename))
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err != nil {
		return errors.Wrapf(err, "reading %s", filename)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return errors.Wrapf(err, "parsing %s", filename)
	}
	return nil
}

func applyEnv(config *Config) error {
	setFromEnv(&config.Jira.ServerURL, "JIRA_SERVER_URL")
	setFromEnv(&config.Jira.Username, "JIRA_USERNAME")
	setFromEnv(&config.Jira.APIToken, "JIRA_API_TOKEN")
	setFromEnv(&config.Jira.ProjectKey, "JIRA_PROJECT_KEY")
	setFromEnv(&config.Jira.IssueType, "JIRA_ISSUE_TYPE")
	setFromEnv(&config.Calendar.Provider, "CALENDAR_PROVIDER")
	setFromEnv(&config.Calendar.CalendarID, "CALENDAR_ID")
	setFromEnv(&config.Calendar.CredentialsPath, "GOOGLE_CREDENTIALS_PATH")
	setFromEnv(&config.Calendar.CalDAVURL, "CALDAV_URL")
	setFromEnv(&config.Calendar.CalDAVUsername, "CALDAV_USERNAME")
	setFromEnv(&config.Calendar.CalDAVPassword, "CALDAV_PASSWORD")
	setFromEnv(&config.StateDB, "JIRACAL_STATE_DB")
	setFromEnv(&config.LogLevel, "LOG_LEVEL")

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return errors.Wrapf(err, "invalid PORT %q", portStr)
		}
		config.Server.Port = port
	}

	config.Jira.ServerURL = strings.TrimRight(config.Jira.ServerURL, "/")
	config.Calendar.Provider = strings.ToLower(config.Calendar.Provider)
	return nil
}

func setFromEnv(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func (c *Config) Validate() error {
	switch c.Calendar.Provider {
	case providerGoogle, providerCalDAV:
	default:
		return errors.Newf("unsupported calendar provider: %s (must be 'google' or 'caldav')", c.Calendar.Provider)
	}
	if c.Server.Port <= 0 {
		return errors.Newf("invalid port: %d", c.Server.Port)
	}
	return nil
}

func openDB(filename string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	return db, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
