package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server      ServerConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Elastic     ElasticConfig
	OIDC        OIDCConfig
	Session     SessionConfig
	ServiceKeys map[string]string
	AI          AIConfig
	MinIO       MinIOConfig
	RateLimit   RateLimitConfig
	Fields      FieldConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type ElasticConfig struct {
	Node   string
	APIKey string
	Index  string
}

type OIDCConfig struct {
	Issuer   string
	ClientID string
}

type SessionConfig struct {
	Secret     string
	CookieName string
	TTL        time.Duration
}

type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// FieldConfig makes the store's field conventions explicit configuration
// instead of hard-coded naming magic: fields starting with HiddenPrefix are
// elided from responses, fields starting with ControlPrefix are stripped
// from request bodies before persisting.
type FieldConfig struct {
	HiddenPrefix  string
	ControlPrefix string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5001")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("ELASTIC_INDEX", "solicitations")
	viper.SetDefault("SESSION_COOKIE_NAME", "session")
	viper.SetDefault("SESSION_TTL_MINUTES", 10080)
	viper.SetDefault("AI_MODEL", "gpt-4o-mini")
	viper.SetDefault("HIDDEN_FIELD_PREFIX", "_")
	viper.SetDefault("CONTROL_FIELD_PREFIX", "$")
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		Elastic: ElasticConfig{
			Node:   viper.GetString("ELASTIC_NODE"),
			APIKey: os.Getenv("ELASTIC_API_KEY"),
			Index:  viper.GetString("ELASTIC_INDEX"),
		},
		OIDC: OIDCConfig{
			Issuer:   viper.GetString("OIDC_ISSUER"),
			ClientID: viper.GetString("OIDC_CLIENT_ID"),
		},
		Session: SessionConfig{
			Secret:     os.Getenv("SESSION_SECRET"),
			CookieName: viper.GetString("SESSION_COOKIE_NAME"),
			TTL:        time.Duration(viper.GetInt("SESSION_TTL_MINUTES")) * time.Minute,
		},
		ServiceKeys: loadServiceKeys(),
		AI: AIConfig{
			APIKey:  os.Getenv("AI_API_KEY"),
			BaseURL: viper.GetString("AI_BASE_URL"),
			Model:   viper.GetString("AI_MODEL"),
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Fields: FieldConfig{
			HiddenPrefix:  viper.GetString("HIDDEN_FIELD_PREFIX"),
			ControlPrefix: viper.GetString("CONTROL_FIELD_PREFIX"),
		},
	}

	if cfg.Session.Secret == "" {
		log.Println("WARNING: SESSION_SECRET is not set; set a secure value in production")
	}

	return cfg, nil
}

// loadServiceKeys reads the static service credential allow-list from
// SERVICE_KEYS, formatted as "NAME1=secret1,NAME2=secret2".
func loadServiceKeys() map[string]string {
	keys := map[string]string{}
	raw := os.Getenv("SERVICE_KEYS")
	for _, pair := range strings.Split(raw, ",") {
		name, secret, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" || secret == "" {
			continue
		}
		keys[name] = secret
	}
	return keys
}
