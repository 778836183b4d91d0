// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/listenupapp/catalog-server/internal/domain"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Server  ServerConfig
	Store   StoreConfig
	Import  ImportConfig
	Search  SearchConfig
	History HistoryConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	// DataPath is the base directory for everything the server writes.
	DataPath string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // "pretty" or "json"; empty picks by environment
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 5m, imports run inside the request)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins  []string      // Allowed origins; empty allows any
	UploadRPS    float64       // Uploads per second per client (default: 0.5)
	UploadBurst  int           // Upload burst per client (default: 5)
}

// StoreConfig selects the catalog backend.
type StoreConfig struct {
	Driver string // sqlite or postgres
	Path   string // SQLite file (default: {data}/catalog.db)
	DSN    string // Postgres connection string
}

// ImportConfig holds spreadsheet import configuration.
type ImportConfig struct {
	LogDir          string // Audit logs (default: {data}/logs)
	UploadDir       string // Uploaded files while importing (default: {data}/uploads)
	MaxUploadMB     int    // Upload size limit (default: 32)
	DefaultCurrency string // Currency for rows without one (default: USD)
	FieldMapPath    string // Optional YAML header tables
	WatchDir        string // Optional drop folder; empty disables the watcher
	SkipDuplicates  bool
	SkipConflicts   bool
	UpdateExisting  bool
}

// Policy is the default reconciliation policy.
func (c ImportConfig) Policy() domain.Policy {
	return domain.Policy{
		SkipDuplicates: c.SkipDuplicates,
		SkipConflicts:  c.SkipConflicts,
		UpdateExisting: c.UpdateExisting,
	}
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c ImportConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// SearchConfig holds search index configuration.
type SearchConfig struct {
	Enabled bool
	Path    string // Index directory (default: {data}/search)
}

// HistoryConfig holds import history configuration.
type HistoryConfig struct {
	Path string // Badger directory (default: {data}/history)
}

// LoadConfig loads configuration from the process arguments. See Load.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("catalog-server", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (pretty, json)")
	dataPath := fs.String("data-path", "", "Base path for server data")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 5m)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed origins")

	// Store flags
	storeDriver := fs.String("store-driver", "", "Catalog store: sqlite or postgres (default: sqlite)")
	storePath := fs.String("store-path", "", "SQLite database file")
	storeDSN := fs.String("store-dsn", "", "Postgres connection string")

	// Import flags
	logDir := fs.String("import-log-dir", "", "Directory for import audit logs")
	uploadDir := fs.String("upload-dir", "", "Directory for uploads in progress")
	maxUploadMB := fs.String("max-upload-mb", "", "Upload size limit in MB (default: 32)")
	currency := fs.String("default-currency", "", "Currency for rows without one (default: USD)")
	fieldMapPath := fs.String("field-map", "", "YAML file with header tables")
	watchDir := fs.String("watch-dir", "", "Drop folder to import from")
	updateExisting := fs.String("update-existing", "", "Apply conflicting values by default (default: false)")

	searchEnabled := fs.String("search-enabled", "", "Enable the full-text index (default: true)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists; variables already set win.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "")),
			UploadRPS:   getFloatConfigValue("", "UPLOAD_RATE_PER_SECOND", 0.5),
			UploadBurst: getIntConfigValue("", "UPLOAD_BURST", 5),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getConfigValue(*storeDriver, "STORE_DRIVER", DriverSQLite)),
			Path:   getConfigValue(*storePath, "STORE_PATH", ""),
			DSN:    getConfigValue(*storeDSN, "STORE_DSN", ""),
		},
		Import: ImportConfig{
			LogDir:          getConfigValue(*logDir, "IMPORT_LOG_DIR", ""),
			UploadDir:       getConfigValue(*uploadDir, "UPLOAD_DIR", ""),
			MaxUploadMB:     getIntConfigValue(*maxUploadMB, "MAX_UPLOAD_MB", 32),
			DefaultCurrency: strings.ToUpper(getConfigValue(*currency, "DEFAULT_CURRENCY", domain.DefaultCurrency)),
			FieldMapPath:    getConfigValue(*fieldMapPath, "FIELD_MAP_PATH", ""),
			WatchDir:        getConfigValue(*watchDir, "WATCH_DIR", ""),
			SkipDuplicates:  getBoolConfigValue("", "IMPORT_SKIP_DUPLICATES", true),
			SkipConflicts:   getBoolConfigValue("", "IMPORT_SKIP_CONFLICTS", true),
			UpdateExisting:  getBoolConfigValue(*updateExisting, "IMPORT_UPDATE_EXISTING", false),
		},
		Search: SearchConfig{
			Enabled: getBoolConfigValue(*searchEnabled, "SEARCH_ENABLED", true),
			Path:    getConfigValue("", "SEARCH_PATH", ""),
		},
		History: HistoryConfig{
			Path: getConfigValue("", "HISTORY_PATH", ""),
		},
	}

	durations := []struct {
		flag, env, def string
		dst            *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "5m", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.env, d.def)
		v, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.env), raw, err)
		}
		*d.dst = v
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}
	switch c.Logger.Format {
	case "", "pretty", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be pretty or json)", c.Logger.Format)
	}

	if c.App.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return errors.New("sqlite store needs a path")
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("postgres store needs STORE_DSN")
		}
	default:
		return fmt.Errorf("invalid store driver: %s (must be sqlite or postgres)", c.Store.Driver)
	}

	if c.Import.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload must be positive, got %d MB", c.Import.MaxUploadMB)
	}
	if len(c.Import.DefaultCurrency) != 3 {
		return fmt.Errorf("invalid default currency: %q (want a 3-letter code)", c.Import.DefaultCurrency)
	}
	if c.Server.UploadRPS <= 0 || c.Server.UploadBurst <= 0 {
		return errors.New("upload rate and burst must be positive")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandPaths resolves the data path, then every path that defaults to a
// directory under it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	if c.App.DataPath, err = expandPath(c.App.DataPath, filepath.Join(homeDir, "CatalogServer", "data")); err != nil {
		return err
	}
	data := c.App.DataPath

	paths := []struct {
		dst *string
		def string
	}{
		{&c.Store.Path, filepath.Join(data, "catalog.db")},
		{&c.Import.LogDir, filepath.Join(data, "logs")},
		{&c.Import.UploadDir, filepath.Join(data, "uploads")},
		{&c.Search.Path, filepath.Join(data, "search")},
		{&c.History.Path, filepath.Join(data, "history")},
		{&c.Import.FieldMapPath, ""},
		{&c.Import.WatchDir, ""},
	}
	for _, p := range paths {
		expanded, err := expandPath(*p.dst, p.def)
		if err != nil {
			return err
		}
		*p.dst = expanded
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
