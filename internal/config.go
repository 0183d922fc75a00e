package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Directory     DirectoryConfig     `mapstructure:"directory"`
	Evaluation    EvaluationConfig    `mapstructure:"evaluation"`
	Normalization NormalizationConfig `mapstructure:"normalization"`
	Sync          SyncConfig          `mapstructure:"sync"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"min=0,max=65535"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source" validate:"required"`
}

const (
	DirectoryKindHTTP = "http"
	DirectoryKindSQL  = "sql"
)

// DirectoryConfig describes where the employee snapshot comes from.
type DirectoryConfig struct {
	Kind               string        `mapstructure:"kind" validate:"required,oneof=http sql"`
	BaseURL            string        `mapstructure:"base_url" validate:"required_if=Kind http,omitempty,url"`
	DSN                string        `mapstructure:"dsn" validate:"required_if=Kind sql"`
	PageSize           int           `mapstructure:"page_size" validate:"min=0,max=5000"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	RetryAttempts      int           `mapstructure:"retry_attempts" validate:"min=0,max=10"`
	ServiceTokenSecret string        `mapstructure:"service_token_secret"`
	ServiceTokenTTL    time.Duration `mapstructure:"service_token_ttl"`
}

type EvaluationConfig struct {
	SeniorThreshold int      `mapstructure:"senior_threshold" validate:"min=1"`
	ManagerPatterns []string `mapstructure:"manager_patterns" validate:"dive,required"`
	MiddleBandMin   int      `mapstructure:"middle_band_min" validate:"min=1"`
	MiddleBandMax   int      `mapstructure:"middle_band_max" validate:"min=1"`
	PolicyFile      string   `mapstructure:"policy_file"`
}

type NormalizationRuleConfig struct {
	Pattern string `mapstructure:"pattern" validate:"required"`
	Match   string `mapstructure:"match" validate:"omitempty,oneof=exact contains"`
	Level   int    `mapstructure:"level" validate:"min=1"`
}

type NormalizationConfig struct {
	Rules []NormalizationRuleConfig `mapstructure:"rules" validate:"dive"`
}

type SyncConfig struct {
	MaxWorkers int           `mapstructure:"max_workers" validate:"min=0"`
	Interval   time.Duration `mapstructure:"interval"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
}

// ApplyDefaults fills the zero values a config file may leave out.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Directory.Kind == "" {
		c.Directory.Kind = DirectoryKindHTTP
	}
	if c.Directory.PageSize == 0 {
		c.Directory.PageSize = 200
	}
	if c.Directory.FetchTimeout == 0 {
		c.Directory.FetchTimeout = 30 * time.Second
	}
	if c.Directory.ServiceTokenTTL == 0 {
		c.Directory.ServiceTokenTTL = 5 * time.Minute
	}
	if c.Evaluation.SeniorThreshold == 0 {
		c.Evaluation.SeniorThreshold = 12
	}
	if len(c.Evaluation.ManagerPatterns) == 0 {
		c.Evaluation.ManagerPatterns = []string{"部门经理", "department manager"}
	}
	if c.Evaluation.MiddleBandMin == 0 {
		c.Evaluation.MiddleBandMin = 5
	}
	if c.Evaluation.MiddleBandMax == 0 {
		c.Evaluation.MiddleBandMax = 9
	}
	if c.Sync.MaxWorkers == 0 {
		c.Sync.MaxWorkers = 4
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = time.Hour
	}
	if c.Sync.LockTTL == 0 {
		c.Sync.LockTTL = 10 * time.Minute
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
}

// LoadConfigFromEnv builds the config for container deployments where no
// config file is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Directory: DirectoryConfig{
			Kind:               getEnv("DIRECTORY_KIND", DirectoryKindHTTP),
			BaseURL:            getEnv("DIRECTORY_BASE_URL", ""),
			DSN:                getEnv("DIRECTORY_DSN", ""),
			PageSize:           getEnvAsInt("DIRECTORY_PAGE_SIZE", 200),
			FetchTimeout:       getEnvAsDuration("DIRECTORY_FETCH_TIMEOUT", 30*time.Second),
			RetryAttempts:      getEnvAsInt("DIRECTORY_RETRY_ATTEMPTS", 2),
			ServiceTokenSecret: getEnv("DIRECTORY_SERVICE_TOKEN_SECRET", ""),
			ServiceTokenTTL:    getEnvAsDuration("DIRECTORY_SERVICE_TOKEN_TTL", 5*time.Minute),
		},
		Evaluation: EvaluationConfig{
			SeniorThreshold: getEnvAsInt("EVALUATION_SENIOR_THRESHOLD", 12),
			ManagerPatterns: getEnvAsList("EVALUATION_MANAGER_PATTERNS", []string{"部门经理", "department manager"}),
			MiddleBandMin:   getEnvAsInt("EVALUATION_MIDDLE_BAND_MIN", 5),
			MiddleBandMax:   getEnvAsInt("EVALUATION_MIDDLE_BAND_MAX", 9),
			PolicyFile:      getEnv("EVALUATION_POLICY_FILE", ""),
		},
		Sync: SyncConfig{
			MaxWorkers: getEnvAsInt("SYNC_MAX_WORKERS", 4),
			Interval:   getEnvAsDuration("SYNC_INTERVAL", time.Hour),
			LockTTL:    getEnvAsDuration("SYNC_LOCK_TTL", 10*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

var configValidator = validator.New()

func (c *Config) Validate() error {
	var errs []string

	if err := configValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Directory.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("directory config: %v", err))
	}

	if err := c.Evaluation.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("evaluation config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.ReadTimeout > 0 && c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *DirectoryConfig) Validate() error {
	if c.Kind == DirectoryKindHTTP && c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid base_url %s: %w", c.BaseURL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base_url must be http or https, got %q", u.Scheme)
		}
	}
	if c.FetchTimeout < 0 {
		return errors.New("fetch_timeout cannot be negative")
	}
	return nil
}

func (c *EvaluationConfig) Validate() error {
	if c.MiddleBandMin > c.MiddleBandMax {
		return errors.New("middle_band_min cannot be greater than middle_band_max")
	}
	return nil
}
