package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	MongoURI  string
	DBName    string
	JWTSecret string

	BaseDeliveryFee float64
	PerKmFee        float64
	CODLimit        float64

	DefaultLowStockThreshold int

	DirectionsURL     string
	DirectionsAPIKey  string
	DirectionsTimeout time.Duration
	DeliverySpeedKmh  float64
	TrafficFactor     float64

	LocationRateLimit  int
	LocationRateWindow time.Duration

	EventBufferSize int
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		MongoURI:  getEnvOrDefault("MONGO_URI", ""),
		DBName:    getEnvOrDefault("DB_NAME", "swiftdash"),
		JWTSecret: getEnvOrDefault("JWT_SECRET", ""),

		BaseDeliveryFee: getFloatEnv("BASE_DELIVERY_FEE", 20),
		PerKmFee:        getFloatEnv("PER_KM_FEE", 8),
		CODLimit:        getFloatEnv("COD_LIMIT", 5000),

		DefaultLowStockThreshold: getIntEnv("DEFAULT_LOW_STOCK_THRESHOLD", 10),

		DirectionsURL:     getEnvOrDefault("DIRECTIONS_URL", ""),
		DirectionsAPIKey:  getEnvOrDefault("DIRECTIONS_API_KEY", ""),
		DirectionsTimeout: getDurationEnv("DIRECTIONS_TIMEOUT", 5, time.Second),
		DeliverySpeedKmh:  getFloatEnv("DELIVERY_SPEED_KMH", 30),
		TrafficFactor:     getFloatEnv("TRAFFIC_FACTOR", 1),

		LocationRateLimit:  getIntEnv("LOCATION_RATE_LIMIT", 30),
		LocationRateWindow: getDurationEnv("LOCATION_RATE_WINDOW", 1, time.Minute),

		EventBufferSize: getIntEnv("EVENT_BUFFER_SIZE", 16),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func getIntEnv(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
