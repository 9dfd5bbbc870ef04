package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DeploymentTarget selects the defaults the server starts with.
type DeploymentTarget string

const (
	TargetDevelopment DeploymentTarget = "development"
	TargetProduction  DeploymentTarget = "production"
	TargetServerless  DeploymentTarget = "serverless"
)

// MissingKeyPolicy decides what happens when no Gemini API key is configured.
type MissingKeyPolicy string

const (
	PolicyMock   MissingKeyPolicy = "mock"   // answer with deterministic mock text
	PolicyReject MissingKeyPolicy = "reject" // answer generate requests with 503
	PolicyFail   MissingKeyPolicy = "fail"   // refuse to start
)

const (
	defaultHTTPPort     = "3001"
	defaultCORSOrigin   = "http://localhost:3000"
	defaultGeminiModel  = "gemini-1.5-flash"
	defaultSQLitePath   = "vibe_code.db"
	defaultDBHost       = "localhost"
	defaultDBName       = "vibe_code"
	defaultDBUser       = "postgres"
	defaultWindowMillis = 900000
	defaultMaxRequests  = 100
	defaultGenerateMax  = 10
)

type Config struct {
	Target     DeploymentTarget
	HTTPPort   string
	LogLevel   string
	CORSOrigin string
	StaticDir  string
	AI         AIConfig
	Storage    StorageConfig
	RateLimit  RateLimitConfig
}

type AIConfig struct {
	GeminiAPIKey     string
	Model            string
	MissingKeyPolicy MissingKeyPolicy
}

type RateLimitConfig struct {
	Window              time.Duration
	MaxRequests         int
	GenerateMaxRequests int
	RedisURL            string
}

// Load reads the configuration from the environment, after loading a .env
// file when one exists. An empty target falls back to DEPLOYMENT_TARGET.
func Load(target DeploymentTarget) (*Config, error) {
	_ = godotenv.Load()

	if target == "" {
		target = DeploymentTarget(strings.ToLower(getEnv("DEPLOYMENT_TARGET", string(TargetDevelopment))))
	}
	switch target {
	case TargetDevelopment, TargetProduction, TargetServerless:
	default:
		return nil, fmt.Errorf("invalid DEPLOYMENT_TARGET value %q", target)
	}

	logLevel := "info"
	if target == TargetDevelopment {
		logLevel = "debug"
	}

	cfg := &Config{
		Target:     target,
		HTTPPort:   getEnv("PORT", defaultHTTPPort),
		LogLevel:   strings.ToLower(getEnv("LOG_LEVEL", logLevel)),
		CORSOrigin: getEnv("CORS_ORIGIN", defaultCORSOrigin),
		StaticDir:  getEnv("STATIC_DIR", ""),
	}

	var err error
	if cfg.AI, err = loadAIConfig(target); err != nil {
		return nil, err
	}
	if cfg.Storage, err = loadStorageConfig(target); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = loadRateLimitConfig(); err != nil {
		return nil, err
	}

	if cfg.AI.GeminiAPIKey == "" && cfg.AI.MissingKeyPolicy == PolicyFail {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required when AI_MISSING_KEY_POLICY=%s", PolicyFail)
	}
	return cfg, nil
}

// Mode resolves which AI and storage backends this configuration runs with.
func (c *Config) Mode() Mode {
	return Mode{AI: c.AI.Mode(), Storage: c.Storage.Driver}
}

func (c *Config) IsDevelopment() bool {
	return c.Target == TargetDevelopment
}

func loadAIConfig(target DeploymentTarget) (AIConfig, error) {
	policy := PolicyMock
	if target == TargetServerless {
		policy = PolicyReject
	}
	if raw := strings.ToLower(getEnv("AI_MISSING_KEY_POLICY", "")); raw != "" {
		policy = MissingKeyPolicy(raw)
	}
	switch policy {
	case PolicyMock, PolicyReject, PolicyFail:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_MISSING_KEY_POLICY value %q", policy)
	}

	return AIConfig{
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		Model:            getEnv("GEMINI_MODEL", defaultGeminiModel),
		MissingKeyPolicy: policy,
	}, nil
}

func loadStorageConfig(target DeploymentTarget) (StorageConfig, error) {
	driver := DriverMemory
	if target == TargetProduction {
		driver = DriverPostgres
	}
	if raw := strings.ToLower(getEnv("STORAGE_DRIVER", "")); raw != "" {
		driver = StorageDriver(raw)
	}
	switch driver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return StorageConfig{}, fmt.Errorf("invalid STORAGE_DRIVER value %q", driver)
	}

	port, err := getEnvAsInt("DB_PORT", 0)
	if err != nil {
		return StorageConfig{}, err
	}
	ssl, err := getEnvAsBool("DB_SSL", target == TargetProduction)
	if err != nil {
		return StorageConfig{}, err
	}

	return StorageConfig{
		Driver:     driver,
		URL:        getEnv("DATABASE_URL", ""),
		Host:       getEnv("DB_HOST", defaultDBHost),
		Port:       port,
		Name:       getEnv("DB_NAME", defaultDBName),
		User:       getEnv("DB_USER", defaultDBUser),
		Password:   getEnv("DB_PASSWORD", ""),
		SSL:        ssl,
		SQLitePath: getEnv("SQLITE_PATH", defaultSQLitePath),
	}, nil
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	windowMillis, err := getEnvAsInt("RATE_LIMIT_WINDOW_MS", defaultWindowMillis)
	if err != nil {
		return RateLimitConfig{}, err
	}
	maxRequests, err := getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", defaultMaxRequests)
	if err != nil {
		return RateLimitConfig{}, err
	}
	generateMax, err := getEnvAsInt("RATE_LIMIT_GENERATE_MAX", defaultGenerateMax)
	if err != nil {
		return RateLimitConfig{}, err
	}
	if windowMillis <= 0 || maxRequests <= 0 || generateMax <= 0 {
		return RateLimitConfig{}, fmt.Errorf("rate limit window and maximums must be positive")
	}

	return RateLimitConfig{
		Window:              time.Duration(windowMillis) * time.Millisecond,
		MaxRequests:         maxRequests,
		GenerateMaxRequests: generateMax,
		RedisURL:            getEnv("REDIS_URL", ""),
	}, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, valueStr, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, valueStr, err)
	}
	return value, nil
}
