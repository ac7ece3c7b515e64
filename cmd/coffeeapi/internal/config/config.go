package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "COFFEE"

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN). postgres:// URLs select PostgreSQL,
	// anything else is opened as SQLite.
	DatabaseURL string `validate:"required"`

	// Server bind address (host:port)
	ServerAddr string `validate:"required"`

	// Maximum database connection pool size
	MaxDBConnections int `validate:"gte=1"`

	// Enable debug logging
	Debug bool

	// Origins allowed by the CORS policy
	AllowedOrigins []string

	// Token verification settings. Only checked by the serve command.
	Auth AuthConfig `validate:"-"`
}

// AuthConfig describes the identity provider whose tokens the API accepts.
type AuthConfig struct {
	// Issuer is the expected iss claim (e.g. "https://tenant.auth0.com/").
	Issuer string `validate:"required,url"`

	// Audience is the identifier of this API; tokens must list it in aud.
	Audience string `validate:"required"`

	// JWKSURL overrides the key set location. When empty it is discovered
	// from the issuer's openid-configuration document.
	JWKSURL string `validate:"omitempty,url"`

	// Algorithms accepted for token signatures.
	Algorithms []string `validate:"required,min=1,dive,oneof=RS256 RS384 RS512 PS256 PS384 PS512 ES256 ES384 ES512 EdDSA"`

	// JWKSCacheTTL bounds how long a fetched key set is trusted.
	JWKSCacheTTL time.Duration `validate:"gt=0"`

	// UnknownKidTTL is how long a key id missing from a freshly fetched key
	// set is remembered as unknown.
	UnknownKidTTL time.Duration `validate:"gt=0"`

	// HTTPTimeout applies to discovery and key set requests.
	HTTPTimeout time.Duration `validate:"gt=0"`

	// Leeway tolerated when checking exp and nbf.
	Leeway time.Duration `validate:"gte=0"`
}

var validate = validator.New()

// SetDefaults registers default values on the global viper instance.
func SetDefaults() {
	viper.SetDefault("database_url", "file:coffee.db")
	viper.SetDefault("server_addr", ":8080")
	viper.SetDefault("max_db_connections", 25)
	viper.SetDefault("debug", false)
	viper.SetDefault("cors.allowed_origins", []string{"*"})

	viper.SetDefault("auth.issuer", "")
	viper.SetDefault("auth.audience", "")
	viper.SetDefault("auth.jwks_url", "")
	viper.SetDefault("auth.algorithms", []string{"RS256"})
	viper.SetDefault("auth.jwks_cache_ttl", 10*time.Minute)
	viper.SetDefault("auth.unknown_kid_ttl", time.Minute)
	viper.SetDefault("auth.http_timeout", 5*time.Second)
	viper.SetDefault("auth.leeway", time.Duration(0))
}

// Load reads configuration from COFFEE_ prefixed environment variables, any
// config file already read into viper, and defaults. Environment variables
// take precedence over file values.
func Load() (*Config, error) {
	SetDefaults()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:      viper.GetString("database_url"),
		ServerAddr:       viper.GetString("server_addr"),
		MaxDBConnections: viper.GetInt("max_db_connections"),
		Debug:            viper.GetBool("debug"),
		AllowedOrigins:   viper.GetStringSlice("cors.allowed_origins"),
		Auth: AuthConfig{
			Issuer:        viper.GetString("auth.issuer"),
			Audience:      viper.GetString("auth.audience"),
			JWKSURL:       viper.GetString("auth.jwks_url"),
			Algorithms:    viper.GetStringSlice("auth.algorithms"),
			JWKSCacheTTL:  viper.GetDuration("auth.jwks_cache_ttl"),
			UnknownKidTTL: viper.GetDuration("auth.unknown_kid_ttl"),
			HTTPTimeout:   viper.GetDuration("auth.http_timeout"),
			Leeway:        viper.GetDuration("auth.leeway"),
		},
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the token verification settings are complete.
func (a *AuthConfig) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("invalid auth configuration: %w", err)
	}
	return nil
}
