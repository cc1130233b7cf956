package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Dotenv string `mapstructure:"dotenv"`
	Server struct {
		HTTPPort        string        `mapstructure:"HTTPPort"`
		Timeout         time.Duration `mapstructure:"HTTPTimeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Driver   string `mapstructure:"driver"`
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
			MaxConns          int    `mapstructure:"maxConns"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Providers struct {
		Yelp   YelpConfig   `mapstructure:"yelp"`
		Gemini GeminiConfig `mapstructure:"gemini"`
	} `mapstructure:"providers"`
	Cache         CacheConfig `mapstructure:"cache"`
	JWT           JWTConfig   `mapstructure:"jwt"`
	OAuth         OAuthConfig `mapstructure:"oauth"`
	Observability struct {
		ServiceName string `mapstructure:"serviceName"`
		MetricsPort string `mapstructure:"metricsPort"`
	} `mapstructure:"observability"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"cors"`
}

type YelpConfig struct {
	BaseURL       string        `mapstructure:"baseURL"`
	APIKey        string        `mapstructure:"apiKey"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DefaultRadius int           `mapstructure:"defaultRadius"`
	DefaultLimit  int           `mapstructure:"defaultLimit"`
}

type GeminiConfig struct {
	APIKey          string  `mapstructure:"apiKey"`
	Model           string  `mapstructure:"model"`
	Temperature     float32 `mapstructure:"temperature"`
	TopP            float32 `mapstructure:"topP"`
	TopK            float32 `mapstructure:"topK"`
	MaxOutputTokens int32   `mapstructure:"maxOutputTokens"`
}

// CacheConfig controls restaurant freshness and the click enrichment guard.
type CacheConfig struct {
	Freshness          time.Duration `mapstructure:"freshness"`
	EnrichmentGuardTTL time.Duration `mapstructure:"enrichmentGuardTTL"`
	BackgroundTimeout  time.Duration `mapstructure:"backgroundTimeout"`
}

type JWTConfig struct {
	SecretKey      string        `mapstructure:"secretKey"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
}

type OAuthConfig struct {
	SessionSecret string `mapstructure:"sessionSecret"`
	Google        struct {
		ClientID     string `mapstructure:"clientID"`
		ClientSecret string `mapstructure:"clientSecret"`
		CallbackURL  string `mapstructure:"callbackURL"`
	} `mapstructure:"google"`
}

// IsDevelopment reports whether diagnostic details may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return c.Mode == "" || c.Mode == ModeDevelopment
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSecrets(v)

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// bindSecrets maps the conventional env var names onto config keys.
func bindSecrets(v *viper.Viper) {
	binds := map[string]string{
		"mode":                           "APP_ENV",
		"providers.yelp.apiKey":          "YELP_API_KEY",
		"providers.gemini.apiKey":        "GEMINI_API_KEY",
		"jwt.secretKey":                  "JWT_SECRET_KEY",
		"oauth.sessionSecret":            "SESSION_SECRET",
		"oauth.google.clientID":          "GOOGLE_CLIENT_ID",
		"oauth.google.clientSecret":      "GOOGLE_CLIENT_SECRET",
		"repositories.postgres.host":     "POSTGRES_HOST",
		"repositories.postgres.port":     "POSTGRES_PORT",
		"repositories.postgres.username": "POSTGRES_USER",
		"repositories.postgres.password": "POSTGRES_PASSWORD",
		"repositories.postgres.db":       "POSTGRES_DB",
		"repositories.driver":            "STORE_DRIVER",
		"server.HTTPPort":                "PORT",
		"observability.metricsPort":      "METRICS_PORT",
	}
	for key, env := range binds {
		_ = v.BindEnv(key, env)
	}
}
