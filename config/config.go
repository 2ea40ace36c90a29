package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string
	Port       string
	Env        string

	// Credit system settings
	InitialCredits   int
	RedeemDailyLimit int

	// Google Play Developer API settings
	GooglePlayEnabled            bool
	GooglePackageName            string
	GooglePlayServiceAccountJSON string
}

// AppConfig is the loaded configuration, populated by LoadConfig.
var AppConfig *Config

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// A missing .env file is fine in deployed environments where the
	// variables come from the process environment.
	_ = godotenv.Load()

	config := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		Port:       os.Getenv("PORT"),
		Env:        os.Getenv("ENV"),

		InitialCredits:   getEnvInt("INITIAL_CREDITS", 10),
		RedeemDailyLimit: getEnvInt("REDEEM_DAILY_LIMIT", 5),

		GooglePlayEnabled:            getEnvBool("GOOGLE_PLAY_ENABLED", false),
		GooglePackageName:            os.Getenv("GOOGLE_PACKAGE_NAME"),
		GooglePlayServiceAccountJSON: os.Getenv("GOOGLE_PLAY_SERVICE_ACCOUNT_JSON"),
	}

	AppConfig = config
	return config, nil
}

func getEnvInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return fallback
}
