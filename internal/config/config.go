package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultFormURL is the external quiz form embedded in the quiz page
const DefaultFormURL = "https://docs.google.com/forms/d/e/1FAIpQLSeUizh9UXQIBD3ZAWf-6XXYN-VGgePf88dAw0PY7ykQ0ADMag/viewform?usp=dialog"

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreMongo  = "mongo"
)

// Config holds all configuration for the quiz wrapper
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Quiz       QuizConfig       `mapstructure:"quiz"`
	Instructor InstructorConfig `mapstructure:"instructor"`
	Features   Features         `mapstructure:"features"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port               string   `mapstructure:"port"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

type QuizConfig struct {
	FormURL         string        `mapstructure:"form_url"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// InstructorConfig is the static credential pair guarding record review.
// It is a visibility gate, not a security boundary.
type InstructorConfig struct {
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// Features toggles the optional capabilities of the wrapper
type Features struct {
	InstructorReview bool `mapstructure:"instructor_review" json:"instructorReview"`
	DuplicateCheck   bool `mapstructure:"duplicate_check" json:"duplicateCheck"`
}

type StorageConfig struct {
	Sessions string `mapstructure:"sessions"`
	Records  string `mapstructure:"records"`
	RedisURI string `mapstructure:"redis_uri"`
	MongoURI string `mapstructure:"mongo_uri"`
	MongoDB  string `mapstructure:"mongo_db"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load reads config.yaml from path (optional), .env (optional) and the environment
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_allowed_origins", []string{"*"})

	v.SetDefault("quiz.form_url", DefaultFormURL)
	v.SetDefault("quiz.session_ttl", 24*time.Hour)
	v.SetDefault("quiz.cleanup_interval", 5*time.Minute)

	v.SetDefault("instructor.username", "jnk")
	v.SetDefault("instructor.password", "123")
	v.SetDefault("instructor.jwt_secret", "quizwrap-dev-secret")

	v.SetDefault("features.instructor_review", true)
	v.SetDefault("features.duplicate_check", true)

	v.SetDefault("storage.sessions", StoreMemory)
	v.SetDefault("storage.records", StoreMemory)
	v.SetDefault("storage.redis_uri", "localhost:6379")
	v.SetDefault("storage.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo_db", "quizwrap")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "HTTP_PORT", "PORT")
	_ = v.BindEnv("server.cors_allowed_origins", "CORS_ALLOWED_ORIGINS")

	_ = v.BindEnv("quiz.form_url", "FORM_URL")
	_ = v.BindEnv("quiz.session_ttl", "SESSION_TTL")
	_ = v.BindEnv("quiz.cleanup_interval", "CLEANUP_INTERVAL")

	_ = v.BindEnv("instructor.username", "INSTRUCTOR_USERNAME")
	_ = v.BindEnv("instructor.password", "INSTRUCTOR_PASSWORD")
	_ = v.BindEnv("instructor.jwt_secret", "JWT_SECRET")

	_ = v.BindEnv("features.instructor_review", "FEATURE_INSTRUCTOR_REVIEW")
	_ = v.BindEnv("features.duplicate_check", "FEATURE_DUPLICATE_CHECK")

	_ = v.BindEnv("storage.sessions", "SESSION_STORE")
	_ = v.BindEnv("storage.records", "RECORD_STORE")
	_ = v.BindEnv("storage.redis_uri", "REDIS_URI")
	_ = v.BindEnv("storage.mongo_uri", "MONGO_URI")
	_ = v.BindEnv("storage.mongo_db", "MONGO_DB")

	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("log.file", "LOG_FILE")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %q", c.Server.Port)
	}

	u, err := url.ParseRequestURI(c.Quiz.FormURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid form url: %q", c.Quiz.FormURL)
	}

	if c.Quiz.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}

	if c.Instructor.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}

	switch c.Storage.Sessions {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown session store %q", c.Storage.Sessions)
	}
	switch c.Storage.Records {
	case StoreMemory, StoreMongo:
	default:
		return fmt.Errorf("unknown record store %q", c.Storage.Records)
	}

	return nil
}
