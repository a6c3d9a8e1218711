package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string // "development" or "production"

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTAccessSecret   string
	JWTAccessTTLHours int

	// ✅ Redis Config (OAuth state nonces)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ✅ Kafka Config (auth activity stream)
	KafkaBrokers string
	KafkaTopic   string

	// ✅ OAuth providers
	GoogleClientID     string
	GoogleClientSecret string
	GithubClientID     string
	GithubClientSecret string
	OAuthRedirectURL   string

	// ✅ External collaborators
	GeocoderBaseURL string
	ImageCDNBaseURL string
	ImageCDNAPIKey  string
}

// Load reads environment variables and returns a Config object
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using environment variables")
	}

	accessTTL, _ := strconv.Atoi(os.Getenv("JWT_ACCESS_TTL_HOURS"))
	if accessTTL <= 0 {
		accessTTL = 24
	}
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	return &Config{
		Port: os.Getenv("PORT"),
		Env:  env,

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		JWTAccessSecret:   os.Getenv("JWT_ACCESS_SECRET"),
		JWTAccessTTLHours: accessTTL,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:   os.Getenv("KAFKA_AUTH_TOPIC"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GithubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GithubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		OAuthRedirectURL:   os.Getenv("OAUTH_REDIRECT_URL"),

		GeocoderBaseURL: os.Getenv("GEOCODER_BASE_URL"),
		ImageCDNBaseURL: os.Getenv("IMAGE_CDN_BASE_URL"),
		ImageCDNAPIKey:  os.Getenv("IMAGE_CDN_API_KEY"),
	}
}

// IsDevelopment reports whether detailed errors should be surfaced to clients.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
