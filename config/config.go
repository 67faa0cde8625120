package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port        string
	BindAddress string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	RedisHost   string
	RedisPort   string
	JWTSecret   string

	// Sandboxed Python execution service (piston-compatible).
	SandboxURL    string
	PythonVersion string

	// Seconds a disconnected player has before the match is forfeited.
	ForfeitGraceSeconds int
}

func Load() *Config {
	// Optional .env for local development; env vars win.
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		BindAddress:         getEnv("BIND_ADDRESS", "localhost"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "codebattle"),
		DBPassword:          getEnv("DB_PASSWORD", "codebattle123"),
		DBName:              getEnv("DB_NAME", "codebattle"),
		RedisHost:           getEnv("REDIS_HOST", "localhost"),
		RedisPort:           getEnv("REDIS_PORT", "6379"),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		SandboxURL:          getEnv("SANDBOX_URL", "https://emkc.org/api/v2/piston/execute"),
		PythonVersion:       getEnv("SANDBOX_PYTHON_VERSION", "3.10.0"),
		ForfeitGraceSeconds: getEnvAsInt("FORFEIT_GRACE_SECONDS", 30),
	}
}

func (c *Config) ForfeitGrace() time.Duration {
	return time.Duration(c.ForfeitGraceSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	return client
}
