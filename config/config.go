package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config stores the application configuration.
// Values come from defaults, then an optional YAML file (CONFIG_FILE), then the environment.
type Config struct {
	Port string `yaml:"port"`

	DBDriver   string `yaml:"db_driver"` // sqlite or mysql
	DBPath     string `yaml:"db_path"`   // sqlite database file
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"-"` // env only
	DBName     string `yaml:"db_name"`

	StorageBackend string `yaml:"storage_backend"` // local or minio
	UploadDir      string `yaml:"upload_dir"`      // root for the local blob store
	WebAppDir      string `yaml:"web_app_dir"`     // static player UI
	MaxUploadMB    int    `yaml:"max_upload_mb"`

	MinioEndpoint   string `yaml:"minio_endpoint"`
	MinioAccessKey  string `yaml:"-"`
	MinioSecretKey  string `yaml:"-"`
	MinioBucket     string `yaml:"minio_bucket"`
	MinioRegion     string `yaml:"minio_region"`
	MinioUseSSL     bool   `yaml:"minio_use_ssl"`
	MinioPublicBase string `yaml:"minio_public_base"`

	RedisEnabled   bool          `yaml:"redis_enabled"`
	RedisHost      string        `yaml:"redis_host"`
	RedisPort      string        `yaml:"redis_port"`
	RedisPassword  string        `yaml:"-"`
	RedisDB        int           `yaml:"redis_db"`
	ChartsCacheTTL time.Duration `yaml:"charts_cache_ttl"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// MaxUploadBytes is the multipart body limit.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func defaults() *Config {
	uploadBase := "uploads"
	return &Config{
		Port:            "8080",
		DBDriver:        "sqlite",
		DBPath:          filepath.Join("data", "mini_radio.db"),
		DBHost:          "127.0.0.1",
		DBPort:          "3306",
		DBUser:          "root",
		DBName:          "radio",
		StorageBackend:  "local",
		UploadDir:       uploadBase,
		WebAppDir:       filepath.Join("web", "ui"),
		MaxUploadMB:     200,
		MinioBucket:     "pitaradio",
		MinioRegion:     "us-east-1",
		RedisHost:       "127.0.0.1",
		RedisPort:       "6379",
		ChartsCacheTTL:  30 * time.Second,
		LogLevel:        "info",
		MinioPublicBase: "",
	}
}

// Load loads configuration from defaults, an optional YAML file and the environment
// (a .env file in the working directory is honoured but never overrides real env vars).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAMLFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)

	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", cfg.DBDriver))
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = os.Getenv("DB_PASSWORD") // no default for passwords
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)

	cfg.StorageBackend = strings.ToLower(getEnv("STORAGE_BACKEND", cfg.StorageBackend))
	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.UploadDir)
	cfg.WebAppDir = getEnv("WEB_APP_DIR", cfg.WebAppDir)
	cfg.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", cfg.MaxUploadMB)

	cfg.MinioEndpoint = getEnv("MINIO_ENDPOINT", cfg.MinioEndpoint)
	cfg.MinioAccessKey = os.Getenv("MINIO_ACCESS_KEY")
	cfg.MinioSecretKey = os.Getenv("MINIO_SECRET_KEY")
	cfg.MinioBucket = getEnv("MINIO_BUCKET", cfg.MinioBucket)
	cfg.MinioRegion = getEnv("MINIO_REGION", cfg.MinioRegion)
	cfg.MinioUseSSL = getEnvBool("MINIO_USE_SSL", cfg.MinioUseSSL)
	cfg.MinioPublicBase = getEnv("MINIO_PUBLIC_BASE", cfg.MinioPublicBase)

	cfg.RedisEnabled = getEnvBool("REDIS_ENABLED", cfg.RedisEnabled)
	cfg.RedisHost = getEnv("REDIS_HOST", cfg.RedisHost)
	cfg.RedisPort = getEnv("REDIS_PORT", cfg.RedisPort)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.ChartsCacheTTL = getEnvDuration("CHARTS_CACHE_TTL", cfg.ChartsCacheTTL)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite or mysql)", c.DBDriver)
	}
	switch c.StorageBackend {
	case "local":
	case "minio":
		if c.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required when STORAGE_BACKEND=minio")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q (want local or minio)", c.StorageBackend)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}
