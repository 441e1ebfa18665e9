package config

import (
	"log"
	"os"

	"malu-taxi-api/models"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// JWTSecret used to sign tokens — read from env or fallback
var JWTSecret = []byte(getEnv("JWT_SECRET", "malu_taxi_super_secret_2024"))

// Config holds every tunable read from the environment
type Config struct {
	Port int

	DatabasePath string

	// External document scorer (PoC microservice)
	VerifyServiceURL     string
	VerifyTimeoutSeconds int

	// Messaging provider used for one-time codes
	GatewayBaseURL             string
	GatewayPollIntervalSeconds int

	UploadDir string

	CodeExpirationMinutes int
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.Port = cast.ToInt(getOrReturnDefault("PORT", 8080))
	cfg.DatabasePath = cast.ToString(getOrReturnDefault("DATABASE_PATH", "malu_taxi.db"))

	cfg.VerifyServiceURL = cast.ToString(getOrReturnDefault("VERIFY_SERVICE_URL", "http://localhost:5001/verify"))
	cfg.VerifyTimeoutSeconds = cast.ToInt(getOrReturnDefault("VERIFY_TIMEOUT_SECONDS", 5))

	cfg.GatewayBaseURL = cast.ToString(getOrReturnDefault("GATEWAY_BASE_URL", "http://localhost:5002"))
	cfg.GatewayPollIntervalSeconds = cast.ToInt(getOrReturnDefault("GATEWAY_POLL_SECONDS", 15))

	cfg.UploadDir = cast.ToString(getOrReturnDefault("UPLOAD_DIR", "uploads/drivers"))

	cfg.CodeExpirationMinutes = cast.ToInt(getOrReturnDefault("CODE_EXPIRATION_MINUTES", 10))

	return cfg
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func InitDB(path string) {
	var err error
	DB, err = gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	log.Println("✅ Database connected and migrated successfully")
}

// Migrate applies the schema; exposed so tests can run it on in-memory DBs.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.DriverProfile{},
		&models.FriendRequest{},
		&models.Friendship{},
	)
}
