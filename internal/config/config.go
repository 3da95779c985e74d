package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config/config.yaml"

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TrustedOrigins  []string      `yaml:"trusted_origins"`
}

type DatabaseConfig struct {
	DSN              string        `yaml:"url"`
	MaxOpenConns     int           `yaml:"max_open_conns"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	AutoMigrate      bool          `yaml:"auto_migrate"`
}

type AuthConfig struct {
	JWTSecret            string        `yaml:"jwt_secret"`
	JWTExpiresIn         time.Duration `yaml:"jwt_expires_in"`
	EnableOTPOnLogin     bool          `yaml:"enable_otp_on_login"`
	RequireOTPOnRegister bool          `yaml:"require_otp_on_register"`
	AdminEmail           string        `yaml:"admin_email"`
	AdminPassword        string        `yaml:"admin_password"`
}

type OTPConfig struct {
	TTL               time.Duration `yaml:"ttl"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
	PurgeAfter        time.Duration `yaml:"purge_after"`
}

// SMTPCandidate is an alternate port/TLS combination tried when the primary fails.
type SMTPCandidate struct {
	Port int  `yaml:"port"`
	SSL  bool `yaml:"ssl"`
}

type EmailConfig struct {
	SMTPHost       string          `yaml:"smtp_host"`
	SMTPPort       int             `yaml:"smtp_port"`
	SMTPSSL        bool            `yaml:"smtp_ssl"`
	SMTPUser       string          `yaml:"smtp_user"`
	SMTPPassword   string          `yaml:"smtp_password"`
	FromEmail      string          `yaml:"from_email"`
	FromName       string          `yaml:"from_name"`
	Fallbacks      []SMTPCandidate `yaml:"fallbacks"`
	SendGridAPIKey string          `yaml:"sendgrid_api_key"`
	MaxAttempts    int             `yaml:"max_attempts"`
	SendTimeout    time.Duration   `yaml:"send_timeout"`
	LogCodes       bool            `yaml:"log_codes"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	AccessKey      string        `yaml:"access_key"`
	SecretKey      string        `yaml:"secret_key"`
	Bucket         string        `yaml:"bucket"`
	UseSSL         bool          `yaml:"use_ssl"`
	Region         string        `yaml:"region"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	PresignTTL     time.Duration `yaml:"presign_ttl"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
}

type FilesConfig struct {
	FontPath string `yaml:"font_path"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	OTP      OTPConfig      `yaml:"otp"`
	Email    EmailConfig    `yaml:"email"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	Files    FilesConfig    `yaml:"files"`
	LogLevel string         `yaml:"log_level"`
}

// Load reads the YAML file (missing file is allowed), applies env overrides and defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = getEnv("CONFIG_PATH", defaultConfigPath)
	}

	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployment
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load("")
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	return cfg
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database url is required")
	}
	if c.Server.Port <= 0 {
		return errors.New("server port must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	if v := os.Getenv("JWT_EXPIRES_IN"); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JWT_EXPIRES_IN: %w", err)
		}
		cfg.Auth.JWTExpiresIn = d
	}
	setBool(&cfg.Auth.EnableOTPOnLogin, "ENABLE_OTP_ON_LOGIN")
	setBool(&cfg.Auth.RequireOTPOnRegister, "REQUIRE_OTP_ON_REGISTER")
	setString(&cfg.Auth.AdminEmail, "ADMIN_EMAIL")
	setString(&cfg.Auth.AdminPassword, "ADMIN_PASSWORD")

	setString(&cfg.Database.DSN, "DATABASE_URL")
	setInt(&cfg.Server.Port, "SERVER_PORT")

	setString(&cfg.Email.SMTPHost, "SMTP_HOST")
	setInt(&cfg.Email.SMTPPort, "SMTP_PORT")
	setString(&cfg.Email.SMTPUser, "SMTP_USER")
	setString(&cfg.Email.SMTPPassword, "SMTP_PASSWORD")
	setString(&cfg.Email.FromEmail, "EMAIL_FROM")
	setString(&cfg.Email.SendGridAPIKey, "SENDGRID_API_KEY")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")

	setString(&cfg.Storage.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Storage.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Storage.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Storage.Bucket, "MINIO_BUCKET")

	setString(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	if v := os.Getenv("TELEGRAM_ADMIN_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_ADMIN_CHAT_ID: %w", err)
		}
		cfg.Telegram.AdminChatID = id
	}

	setString(&cfg.LogLevel, "LOG_LEVEL")
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if len(cfg.Server.TrustedOrigins) == 0 {
		cfg.Server.TrustedOrigins = []string{"*"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.StatementTimeout == 0 {
		cfg.Database.StatementTimeout = 5 * time.Second
	}
	if cfg.Auth.JWTExpiresIn == 0 {
		cfg.Auth.JWTExpiresIn = 24 * time.Hour
	}
	if cfg.OTP.TTL == 0 {
		cfg.OTP.TTL = 10 * time.Minute
	}
	if cfg.OTP.MaxAttempts == 0 {
		cfg.OTP.MaxAttempts = 5
	}
	if cfg.OTP.RequestsPerWindow == 0 {
		cfg.OTP.RequestsPerWindow = 3
	}
	if cfg.OTP.Window == 0 {
		cfg.OTP.Window = time.Minute
	}
	if cfg.OTP.PurgeAfter == 0 {
		cfg.OTP.PurgeAfter = 24 * time.Hour
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "VeriBoard"
	}
	if cfg.Email.MaxAttempts == 0 {
		cfg.Email.MaxAttempts = 3
	}
	if cfg.Email.SendTimeout == 0 {
		cfg.Email.SendTimeout = 20 * time.Second
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "verification-documents"
	}
	if cfg.Storage.MaxUploadBytes == 0 {
		cfg.Storage.MaxUploadBytes = 10 << 20
	}
	if cfg.Storage.PresignTTL == 0 {
		cfg.Storage.PresignTTL = 15 * time.Minute
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// ParseDuration accepts Go durations plus a day suffix ("7d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
