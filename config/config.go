package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	AWS          AWSConfig
	Email        EmailConfig
	Certificates CertificatesConfig
	Admin        AdminConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:5173,http://localhost:3000)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/certificates?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the template image bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	TemplatesBucket      string
	PresignExpireMinutes int
}

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	UseTLS      bool
	// VerifyURL is the public frontend page linked in delivery emails; the
	// certificate code is appended as the final path segment.
	VerifyURL      string
	SendTimeoutSec int
	MaxConcurrent  int
	SendDelayMS    int
}

// CertificatesConfig holds generation pipeline settings.
type CertificatesConfig struct {
	CodePrefix        string
	MediaDir          string // generated images live under MediaDir/certificates
	FontsDir          string
	DefaultInstructor string
	GenerateWorkers   int
	FetchTimeoutSec   int // template image download timeout
}

// AdminConfig holds the bootstrap admin account seeded at startup.
type AdminConfig struct {
	Email    string
	Password string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 60),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/certificates?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "certificates"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			TemplatesBucket:      getEnv("AWS_S3_TEMPLATES_BUCKET", "certificate-templates-bucket"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			FromAddress:    getEnv("EMAIL_FROM_ADDRESS", "noreply@acmclub.com"),
			FromName:       getEnv("EMAIL_FROM_NAME", "ACM Certificates"),
			SMTPHost:       getEnv("SMTP_HOST", ""),
			SMTPPort:       getEnvInt("SMTP_PORT", 587),
			SMTPUser:       getEnv("SMTP_USER", ""),
			SMTPPass:       getEnv("SMTP_PASS", ""),
			UseTLS:         getEnvBool("SMTP_USE_TLS", true),
			VerifyURL:      getEnv("FRONTEND_VERIFY_URL", "http://localhost:5173/verify"),
			SendTimeoutSec: getEnvInt("EMAIL_SEND_TIMEOUT_SEC", 30),
			MaxConcurrent:  getEnvInt("EMAIL_MAX_CONCURRENT", 4),
			SendDelayMS:    getEnvInt("EMAIL_SEND_DELAY_MS", 300),
		},
		Certificates: CertificatesConfig{
			CodePrefix:        getEnv("CERT_CODE_PREFIX", "ACM"),
			MediaDir:          getEnv("MEDIA_DIR", "media"),
			FontsDir:          getEnv("FONTS_DIR", "assets/fonts"),
			DefaultInstructor: getEnv("CERT_DEFAULT_INSTRUCTOR", "ACM Club"),
			GenerateWorkers:   getEnvInt("GENERATE_WORKERS", 4),
			FetchTimeoutSec:   getEnvInt("TEMPLATE_FETCH_TIMEOUT_SEC", 30),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", "admin@acmclub.com"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
