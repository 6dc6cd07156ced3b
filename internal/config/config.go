package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig selects where uploaded images and generated audio are written.
type StorageConfig struct {
	Driver    string // "local" or "minio"
	UploadDir string
}

// CaptionConfig configures the vision-to-text model client.
type CaptionConfig struct {
	Provider  string // "http" or "openai"
	URL       string
	Token     string
	Model     string
	MaxLength int
	NumBeams  int
	Timeout   time.Duration
}

// TranslateConfig configures the English to Indic translation client.
type TranslateConfig struct {
	Provider        string // "indictrans" or "google"
	URL             string
	Token           string
	Model           string
	MaxLength       int
	NumBeams        int
	CredentialsFile string
	Timeout         time.Duration
}

// SpeechConfig configures the text-to-speech client.
type SpeechConfig struct {
	URL     string
	TLD     string
	Slow    bool
	Timeout time.Duration
}

// OpenAIConfig holds credentials for the hosted captioning provider.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// EventsConfig configures completion events. An empty URL disables publishing.
type EventsConfig struct {
	NATSURL string
	Subject string
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost        string
	Port           string
	Timezone       string
	MaxUploadBytes int
	Storage        StorageConfig
	Database       DatabaseConfig
	MinIO          MinIOConfig
	Caption        CaptionConfig
	Translate      TranslateConfig
	Speech         SpeechConfig
	OpenAI         OpenAIConfig
	Events         EventsConfig
	Log            LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// Real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:        getEnv("APP_HOST", "localhost:8080"),
		Port:           getEnv("PORT", "8080"),
		Timezone:       getEnv("TZ_NAME", "UTC"),
		MaxUploadBytes: getEnvInt("MAX_UPLOAD_BYTES", 16*1024*1024),
		Storage: StorageConfig{
			Driver:    getEnv("STORAGE_DRIVER", "local"),
			UploadDir: getEnv("UPLOAD_DIR", "static/uploads"),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Caption: CaptionConfig{
			Provider:  getEnv("CAPTION_PROVIDER", "http"),
			URL:       getEnv("CAPTION_URL", ""),
			Token:     getEnv("CAPTION_TOKEN", ""),
			Model:     getEnv("CAPTION_MODEL", "nlpconnect/vit-gpt2-image-captioning"),
			MaxLength: getEnvInt("CAPTION_MAX_LENGTH", 16),
			NumBeams:  getEnvInt("CAPTION_NUM_BEAMS", 4),
			Timeout:   getEnvSeconds("CAPTION_TIMEOUT_SEC", 60),
		},
		Translate: TranslateConfig{
			Provider:        getEnv("TRANSLATE_PROVIDER", "indictrans"),
			URL:             getEnv("TRANSLATE_URL", ""),
			Token:           getEnv("TRANSLATE_TOKEN", ""),
			Model:           getEnv("TRANSLATE_MODEL", "ai4bharat/indictrans2-en-indic-1B"),
			MaxLength:       getEnvInt("TRANSLATE_MAX_LENGTH", 256),
			NumBeams:        getEnvInt("TRANSLATE_NUM_BEAMS", 5),
			CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
			Timeout:         getEnvSeconds("TRANSLATE_TIMEOUT_SEC", 60),
		},
		Speech: SpeechConfig{
			URL:     getEnv("TTS_URL", ""),
			TLD:     getEnv("TTS_TLD", "com"),
			Slow:    getEnvBool("TTS_SLOW", false),
			Timeout: getEnvSeconds("TTS_TIMEOUT_SEC", 30),
		},
		OpenAI: OpenAIConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
			Model:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Events: EventsConfig{
			NATSURL: getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT", "captions.completed"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvSeconds(key string, def int) time.Duration {
	return time.Duration(getEnvInt(key, def)) * time.Second
}
