package config

import (
	"fmt"     // For building the DSN
	"os"      // For environment variables
	"strconv" // For string to number conversion
	"time"    // For cache TTL

	"github.com/joho/godotenv" // For loading .env files

	"library_system/internal/domain"
)

// Config holds the application configuration
type Config struct {
	AppPort     string            // Application port
	DBUser      string            // Database user
	DBPassword  string            // Database password
	DBHost      string            // Database host
	DBPort      string            // Database port
	DBName      string            // Database name
	JWTSecret   string            // JWT secret key
	RedisAddr   string            // Redis server address; empty disables cache and shared locks
	RedisPass   string            // Redis password
	RedisDB     int               // Redis database number
	RabbitMQURL string            // AMQP URL; empty disables lifecycle events
	IsProd      bool              // Is production environment
	LogLevel    string            // logrus level name
	LoanPolicy  domain.LoanPolicy // Loan period and daily fine
	AdminName   string            // Bootstrap admin name
	AdminEmail  string            // Bootstrap admin email
	AdminPass   string            // Bootstrap admin password
	LoginRate   float64           // Login attempts per second per client IP
	LoginBurst  int               // Login burst per client IP
	CacheTTL    time.Duration     // Book listing cache TTL
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:     getenv("APP_PORT", "8080"),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBHost:      getenv("DB_HOST", "127.0.0.1"),
		DBPort:      getenv("DB_PORT", "3306"),
		DBName:      getenv("DB_NAME", "library"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisPass:   os.Getenv("REDIS_PASS"),
		RedisDB:     getInt("REDIS_DB", 0),
		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
		IsProd:      os.Getenv("IS_PROD") == "true",
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LoanPolicy: domain.LoanPolicy{
			LoanPeriodDays: getInt("LOAN_PERIOD_DAYS", domain.DefaultLoanPeriodDays),
			FinePerDay:     getFloat("FINE_PER_DAY", domain.DefaultFinePerDay),
		},
		AdminName:  getenv("ADMIN_NAME", "Administrator"),
		AdminEmail: os.Getenv("ADMIN_EMAIL"),
		AdminPass:  os.Getenv("ADMIN_PASSWORD"),
		LoginRate:  getFloat("LOGIN_RATE", 2),
		LoginBurst: getInt("LOGIN_BURST", 4),
		CacheTTL:   getDuration("CACHE_TTL", 60*time.Second),
	}
}

// DSN builds the MySQL data source name
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// Validate reports settings the server cannot start without
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.LoanPolicy.LoanPeriodDays <= 0 {
		return fmt.Errorf("LOAN_PERIOD_DAYS must be positive, got %d", c.LoanPolicy.LoanPeriodDays)
	}
	if c.LoanPolicy.FinePerDay < 0 {
		return fmt.Errorf("FINE_PER_DAY cannot be negative, got %v", c.LoanPolicy.FinePerDay)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def // Unset or malformed
}

func getFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
