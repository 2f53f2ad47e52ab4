package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	envPrefix = "TAILORCRM_"

	defaultBusyTimeout       = 5 * time.Second
	defaultMaxOpenConns      = 4
	defaultCurrency          = "SAR"
	defaultOrderStatus       = "in progress"
	defaultAppointmentStatus = "scheduled"
	defaultPaymentMethod     = "cash"
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
	defaultLogMaxSizeMB      = 10
	defaultLogMaxFiles       = 5

	dbFilename     = "crm.db"
	configFilename = "config.toml"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Store   StoreConfig   `toml:"store"`
	Shop    ShopConfig    `toml:"shop"`
	Logging LoggingConfig `toml:"logging"`
}

type StoreConfig struct {
	Path         string        `toml:"path"`
	BusyTimeout  time.Duration `toml:"busy_timeout"`
	MaxOpenConns int           `toml:"max_open_conns"`
}

type ShopConfig struct {
	Currency                 string `toml:"currency"`
	DefaultOrderStatus       string `toml:"default_order_status"`
	DefaultAppointmentStatus string `toml:"default_appointment_status"`
	DefaultPaymentMethod     string `toml:"default_payment_method"`
}

type LoggingConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

type LoadOptions struct {
	ConfigPath string
	DotEnvPath string
	Env        map[string]string
	Flags      FlagOverrides
}

type FlagOverrides struct {
	DBPath   *string
	LogLevel *string
}

// LoadReport names where each layer came from.
type LoadReport struct {
	ConfigPath string
	DotEnvPath string
	DotEnvKeys []string
}

func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			BusyTimeout:  defaultBusyTimeout,
			MaxOpenConns: defaultMaxOpenConns,
		},
		Shop: ShopConfig{
			Currency:                 defaultCurrency,
			DefaultOrderStatus:       defaultOrderStatus,
			DefaultAppointmentStatus: defaultAppointmentStatus,
			DefaultPaymentMethod:     defaultPaymentMethod,
		},
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			Format:    defaultLogFormat,
			MaxSizeMB: defaultLogMaxSizeMB,
			MaxFiles:  defaultLogMaxFiles,
		},
	}
}

// Load layers defaults, the TOML file, the .env file, the process
// environment and flags, later layers winning.
func Load(opts LoadOptions) (Config, LoadReport, error) {
	cfg := DefaultConfig()
	report := LoadReport{}

	dotenv, dotenvPath, err := readDotEnv(opts)
	if err != nil {
		return Config{}, report, err
	}
	report.DotEnvPath = dotenvPath
	for key := range dotenv {
		if strings.HasPrefix(key, envPrefix) {
			report.DotEnvKeys = append(report.DotEnvKeys, key)
		}
	}
	env := layeredEnv{opts: opts, dotenv: dotenv}

	configPath, err := resolveConfigPath(opts.ConfigPath, env)
	if err != nil {
		return Config{}, report, fmt.Errorf("resolve config path: %w", err)
	}
	report.ConfigPath = configPath
	if err := loadAndApplyFile(configPath, &cfg); err != nil {
		return Config{}, report, err
	}

	if err := applyEnvOverrides(&cfg, env); err != nil {
		return Config{}, report, err
	}
	applyFlagOverrides(&cfg, opts.Flags)

	if cfg.Store.Path == "" {
		home, err := dataHome(env)
		if err != nil {
			return Config{}, report, err
		}
		cfg.Store.Path = filepath.Join(home, dbFilename)
	}

	if err := validate(cfg); err != nil {
		return Config{}, report, err
	}
	return cfg, report, nil
}

type rawConfig struct {
	Store   *rawStore   `toml:"store"`
	Shop    *rawShop    `toml:"shop"`
	Logging *rawLogging `toml:"logging"`
}

type rawStore struct {
	Path         *string `toml:"path"`
	BusyTimeout  *string `toml:"busy_timeout"`
	MaxOpenConns *int    `toml:"max_open_conns"`
}

type rawShop struct {
	Currency                 *string `toml:"currency"`
	DefaultOrderStatus       *string `toml:"default_order_status"`
	DefaultAppointmentStatus *string `toml:"default_appointment_status"`
	DefaultPaymentMethod     *string `toml:"default_payment_method"`
}

type rawLogging struct {
	Level     *string `toml:"level"`
	Format    *string `toml:"format"`
	File      *string `toml:"file"`
	MaxSizeMB *int    `toml:"max_size_mb"`
	MaxFiles  *int    `toml:"max_files"`
}

func loadAndApplyFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
	}
	return applyRawConfig(cfg, raw)
}

func applyRawConfig(cfg *Config, raw rawConfig) error {
	if raw.Store != nil {
		setString(raw.Store.Path, &cfg.Store.Path)
		if err := setDuration("store.busy_timeout", raw.Store.BusyTimeout, &cfg.Store.BusyTimeout); err != nil {
			return err
		}
		setInt(raw.Store.MaxOpenConns, &cfg.Store.MaxOpenConns)
	}

	if raw.Shop != nil {
		setString(raw.Shop.Currency, &cfg.Shop.Currency)
		setString(raw.Shop.DefaultOrderStatus, &cfg.Shop.DefaultOrderStatus)
		setString(raw.Shop.DefaultAppointmentStatus, &cfg.Shop.DefaultAppointmentStatus)
		setString(raw.Shop.DefaultPaymentMethod, &cfg.Shop.DefaultPaymentMethod)
	}

	if raw.Logging != nil {
		setString(raw.Logging.Level, &cfg.Logging.Level)
		setString(raw.Logging.Format, &cfg.Logging.Format)
		setString(raw.Logging.File, &cfg.Logging.File)
		setInt(raw.Logging.MaxSizeMB, &cfg.Logging.MaxSizeMB)
		setInt(raw.Logging.MaxFiles, &cfg.Logging.MaxFiles)
	}
	return nil
}

func applyEnvOverrides(cfg *Config, env layeredEnv) error {
	if value, ok := env.lookup("TAILORCRM_DB_PATH"); ok {
		cfg.Store.Path = value
	}
	if value, ok := env.lookup("TAILORCRM_BUSY_TIMEOUT"); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: parse TAILORCRM_BUSY_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		cfg.Store.BusyTimeout = d
	}
	if value, ok := env.lookup("TAILORCRM_MAX_OPEN_CONNS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse TAILORCRM_MAX_OPEN_CONNS: %v", ErrInvalidConfig, err)
		}
		cfg.Store.MaxOpenConns = parsed
	}

	if value, ok := env.lookup("TAILORCRM_CURRENCY"); ok {
		cfg.Shop.Currency = value
	}
	if value, ok := env.lookup("TAILORCRM_DEFAULT_ORDER_STATUS"); ok {
		cfg.Shop.DefaultOrderStatus = value
	}
	if value, ok := env.lookup("TAILORCRM_DEFAULT_APPOINTMENT_STATUS"); ok {
		cfg.Shop.DefaultAppointmentStatus = value
	}
	if value, ok := env.lookup("TAILORCRM_DEFAULT_PAYMENT_METHOD"); ok {
		cfg.Shop.DefaultPaymentMethod = value
	}

	if value, ok := env.lookup("TAILORCRM_LOG_LEVEL"); ok {
		cfg.Logging.Level = value
	}
	if value, ok := env.lookup("TAILORCRM_LOG_FORMAT"); ok {
		cfg.Logging.Format = value
	}
	if value, ok := env.lookup("TAILORCRM_LOG_FILE"); ok {
		cfg.Logging.File = value
	}
	if value, ok := env.lookup("TAILORCRM_LOG_MAX_SIZE_MB"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse TAILORCRM_LOG_MAX_SIZE_MB: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxSizeMB = parsed
	}
	if value, ok := env.lookup("TAILORCRM_LOG_MAX_FILES"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse TAILORCRM_LOG_MAX_FILES: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxFiles = parsed
	}
	return nil
}

func applyFlagOverrides(cfg *Config, flags FlagOverrides) {
	if flags.DBPath != nil && *flags.DBPath != "" {
		cfg.Store.Path = *flags.DBPath
	}
	if flags.LogLevel != nil && *flags.LogLevel != "" {
		cfg.Logging.Level = *flags.LogLevel
	}
}

func validate(cfg Config) error {
	if cfg.Store.BusyTimeout <= 0 || cfg.Store.BusyTimeout > time.Minute {
		return fmt.Errorf("%w: store.busy_timeout must be > 0 and <= 1m", ErrInvalidConfig)
	}
	if cfg.Store.MaxOpenConns <= 0 {
		return fmt.Errorf("%w: store.max_open_conns must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be debug, info, warn or error", ErrInvalidConfig)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format must be text or json", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Shop.DefaultOrderStatus) == "" ||
		strings.TrimSpace(cfg.Shop.DefaultAppointmentStatus) == "" ||
		strings.TrimSpace(cfg.Shop.DefaultPaymentMethod) == "" {
		return fmt.Errorf("%w: shop defaults must not be empty", ErrInvalidConfig)
	}
	return nil
}

func setDuration(field string, raw *string, target *time.Duration) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, field, err)
	}
	*target = d
	return nil
}

func setString(raw *string, target *string) {
	if raw == nil {
		return
	}
	*target = *raw
}

func setInt(raw *int, target *int) {
	if raw == nil {
		return
	}
	*target = *raw
}

// layeredEnv resolves a key from explicit overrides, then the process
// environment, then the .env file.
type layeredEnv struct {
	opts   LoadOptions
	dotenv map[string]string
}

func (e layeredEnv) lookup(key string) (string, bool) {
	if e.opts.Env != nil {
		if value, ok := e.opts.Env[key]; ok {
			return value, true
		}
	}
	if value, ok := os.LookupEnv(key); ok {
		return value, true
	}
	value, ok := e.dotenv[key]
	return value, ok
}

func readDotEnv(opts LoadOptions) (map[string]string, string, error) {
	path := opts.DotEnvPath
	if path == "" {
		path = (layeredEnv{opts: opts}).valueOr("TAILORCRM_ENV_FILE", ".env")
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, "", nil
		}
		return nil, "", fmt.Errorf("%w: read env file %q: %v", ErrInvalidConfig, path, err)
	}
	return values, path, nil
}

func (e layeredEnv) valueOr(key, fallback string) string {
	if value, ok := e.lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func resolveConfigPath(explicit string, env layeredEnv) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if value, ok := env.lookup("TAILORCRM_CONFIG_PATH"); ok {
		return value, nil
	}
	return defaultConfigPath(env)
}

// DataHome returns the directory holding crm.db when no path is configured.
func DataHome(env map[string]string) (string, error) {
	return dataHome(layeredEnv{opts: LoadOptions{Env: env}})
}

func dataHome(env layeredEnv) (string, error) {
	if value, ok := env.lookup("TAILORCRM_HOME"); ok && value != "" {
		return filepath.Clean(value), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "TailorCRM"), nil
	}

	base := filepath.Join(home, ".local", "share")
	if xdgDataHome, ok := env.lookup("XDG_DATA_HOME"); ok && xdgDataHome != "" {
		base = xdgDataHome
	}
	return filepath.Join(base, "tailorcrm"), nil
}

func defaultConfigPath(env layeredEnv) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "TailorCRM", configFilename), nil
	}

	configHome := filepath.Join(home, ".config")
	if xdgConfigHome, ok := env.lookup("XDG_CONFIG_HOME"); ok && xdgConfigHome != "" {
		configHome = xdgConfigHome
	}
	return filepath.Join(configHome, "tailorcrm", configFilename), nil
}
