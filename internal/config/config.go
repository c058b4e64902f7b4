package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Gateway     GatewayConfig
	Referral    ReferralConfig
	Installment InstallmentConfig
	SMTP        SMTPConfig
	Telegram    TelegramConfig
}

type ServerConfig struct {
	Port         string
	Environment  string
	AuthToken    string
	AdminKey     string
	AllowOrigins string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type GatewayConfig struct {
	BaseURL            string
	APIKey             string
	LookupTimeout      time.Duration
	PendingInterval    time.Duration
	ProcessingInterval time.Duration
}

type ReferralConfig struct {
	Gen1Percent float64
	Gen2Percent float64
	Gen3Percent float64
	DailySpec   string
	WeeklySpec  string
}

type InstallmentConfig struct {
	LateFeePercent    float64 // monthly
	LateFeeCapPercent float64 // of plan total price
	GracePeriodDays   int
	DailySpec         string
	WeeklySpec        string
	MonthlySpec       string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type TelegramConfig struct {
	BotToken  string
	OpsChatID int64
}

func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	smtpPort, _ := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	opsChatID, _ := strconv.ParseInt(getEnv("TELEGRAM_OPS_CHAT_ID", "0"), 10, 64)
	graceDays, _ := strconv.Atoi(getEnv("INSTALLMENT_GRACE_DAYS", "7"))

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			AuthToken:    getEnv("API_AUTH_TOKEN", ""),
			AdminKey:     getEnv("ADMIN_API_KEY", ""),
			AllowOrigins: getEnv("ALLOW_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "sharevest"),
			Password: getEnv("DB_PASSWORD", "sharevest"),
			Name:     getEnv("DB_NAME", "sharevest"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Gateway: GatewayConfig{
			BaseURL:            getEnv("GATEWAY_BASE_URL", ""),
			APIKey:             getEnv("GATEWAY_API_KEY", ""),
			LookupTimeout:      getDuration("GATEWAY_LOOKUP_TIMEOUT", 10*time.Second),
			PendingInterval:    getDuration("RECONCILE_PENDING_INTERVAL", 2*time.Minute),
			ProcessingInterval: getDuration("RECONCILE_PROCESSING_INTERVAL", 2*time.Minute),
		},
		Referral: ReferralConfig{
			Gen1Percent: getFloat("REFERRAL_GEN1_PERCENT", 15),
			Gen2Percent: getFloat("REFERRAL_GEN2_PERCENT", 3),
			Gen3Percent: getFloat("REFERRAL_GEN3_PERCENT", 2),
			DailySpec:   getEnv("REFERRAL_DAILY_CRON", "0 2 * * *"),
			WeeklySpec:  getEnv("REFERRAL_WEEKLY_CRON", "0 3 * * 0"),
		},
		Installment: InstallmentConfig{
			LateFeePercent:    getFloat("INSTALLMENT_LATE_FEE_PERCENT", 0.5),
			LateFeeCapPercent: getFloat("INSTALLMENT_LATE_FEE_CAP_PERCENT", 7.5),
			GracePeriodDays:   graceDays,
			DailySpec:         getEnv("INSTALLMENT_DAILY_CRON", "0 2 * * *"),
			WeeklySpec:        getEnv("INSTALLMENT_WEEKLY_CRON", "0 3 * * 0"),
			MonthlySpec:       getEnv("INSTALLMENT_MONTHLY_CRON", "0 4 1 * *"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     smtpPort,
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("EMAIL_FROM", "no-reply@sharevest.io"),
		},
		Telegram: TelegramConfig{
			BotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
			OpsChatID: opsChatID,
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Request handling bounds
const (
	HTTPReadTimeout = 25 * time.Second
)
