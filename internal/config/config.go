package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DetectorConfig struct {
	BaseURL string
	Timeout time.Duration
}

type UploadConfig struct {
	MaxBytes   int64
	PreviewDir string
	SessionTTL time.Duration
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	Detector    DetectorConfig
	Upload      UploadConfig
	DB          DBConfig
	Auth        AuthConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Detector: DetectorConfig{
			BaseURL: v.GetString("DETECTOR_BASE_URL"),
			Timeout: v.GetDuration("DETECTOR_TIMEOUT"),
		},
		Upload: UploadConfig{
			MaxBytes:   v.GetInt64("UPLOAD_MAX_BYTES"),
			PreviewDir: v.GetString("PREVIEW_DIR"),
			SessionTTL: v.GetDuration("SESSION_TTL"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Detector.BaseURL == "" {
		cfg.Detector.BaseURL = "http://127.0.0.1:5000"
	}
	cfg.Detector.BaseURL = strings.TrimRight(cfg.Detector.BaseURL, "/")
	if cfg.Detector.Timeout <= 0 {
		cfg.Detector.Timeout = 5 * time.Minute
	}
	if cfg.Upload.MaxBytes <= 0 {
		cfg.Upload.MaxBytes = 512 << 20
	}
	if cfg.Upload.PreviewDir == "" {
		cfg.Upload.PreviewDir = filepath.Join(os.TempDir(), "crashanalytix-previews")
	}
	if cfg.Upload.SessionTTL <= 0 {
		cfg.Upload.SessionTTL = 30 * time.Minute
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Detector.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("DETECTOR_BASE_URL must be an absolute URL, got %q", cfg.Detector.BaseURL)
	}
	if cfg.HTTP.Port < 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", cfg.HTTP.Port)
	}
	if cfg.DB.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(cfg.DB.ConnMaxLifetime); err != nil {
			return fmt.Errorf("DB_CONN_MAX_LIFETIME: %w", err)
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
