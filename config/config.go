// Package config provides environment-based configuration for Sesame.
//
// Configuration is loaded from environment variables using Viper, with
// sensible defaults for development.
//
// # Environment Variables
//
//   - DB_TYPE: Database type (sqlite, postgres, mysql). Default: sqlite
//   - DSN: Database connection string. Default: sesame.db
//   - PORT: HTTP server port. Default: 8080
//   - LOG_LEVEL: Logging level (debug, info, warn, error). Default: info
//   - BASE_URL: Externally reachable origin for verification links
//   - MAX_TOKEN_LIFETIME: Token lifetime in seconds. Default: 300
//   - REQUIRE_SAME_IP / REQUIRE_SAME_BROWSER: Client binding policies
//   - ANONYMIZE_IP_ADDRESS: Store network prefixes instead of addresses
//   - COOKIE_NAME: Browser-binding cookie name
//   - DEFAULT_REDIRECT_URL: Post-login destination fallback
//   - ALLOWED_HOSTS: Comma-separated hosts absolute redirect destinations
//     may point at
//   - SESSION_STRATEGY: "database" or "jwt". Default: database
//   - SMTP_HOST / SMTP_PORT / SMTP_USER / SMTP_PASSWORD / SMTP_FROM
//   - VERIFY_RATE_LIMIT / VERIFY_RATE_WINDOW: Verification attempts per
//     client IP per window (seconds)
package config

import (
	"strings"
	"time"

	"github.com/getsesame/sesame/domain"
	"github.com/spf13/viper"
)

type Config struct {
	DBType   string `mapstructure:"DB_TYPE"` // sqlite, postgres, mysql
	DSN      string `mapstructure:"DSN"`
	Port     int    `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	BaseURL  string `mapstructure:"BASE_URL"`

	MaxTokenLifetime   int    `mapstructure:"MAX_TOKEN_LIFETIME"` // seconds
	RequireSameIP      bool   `mapstructure:"REQUIRE_SAME_IP"`
	RequireSameBrowser bool   `mapstructure:"REQUIRE_SAME_BROWSER"`
	AnonymizeIPAddress bool   `mapstructure:"ANONYMIZE_IP_ADDRESS"`
	CookieName         string `mapstructure:"COOKIE_NAME"`
	DefaultRedirectURL string `mapstructure:"DEFAULT_REDIRECT_URL"`
	AllowedHosts       string `mapstructure:"ALLOWED_HOSTS"` // comma-separated

	SessionStrategy string `mapstructure:"SESSION_STRATEGY"` // database, jwt
	SessionSecret   string `mapstructure:"SESSION_SECRET"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	VerifyRateLimit  int `mapstructure:"VERIFY_RATE_LIMIT"`
	VerifyRateWindow int `mapstructure:"VERIFY_RATE_WINDOW"` // seconds

	TelemetryEnabled bool   `mapstructure:"TELEMETRY_ENABLED"`
	OTLPEndpoint     string `mapstructure:"OTLP_ENDPOINT"`
}

func LoadConfig() (*Config, error) {
	// Every key needs a default so AutomaticEnv can resolve it: viper only
	// consults the environment for keys it already knows about.
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "sesame.db")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("BASE_URL", "http://localhost:8080")
	viper.SetDefault("MAX_TOKEN_LIFETIME", 300)
	viper.SetDefault("REQUIRE_SAME_IP", false)
	viper.SetDefault("REQUIRE_SAME_BROWSER", false)
	viper.SetDefault("ANONYMIZE_IP_ADDRESS", false)
	viper.SetDefault("COOKIE_NAME", "sesame_browser")
	viper.SetDefault("DEFAULT_REDIRECT_URL", "/")
	viper.SetDefault("ALLOWED_HOSTS", "")
	viper.SetDefault("SESSION_STRATEGY", "database")
	viper.SetDefault("SESSION_SECRET", "")
	viper.SetDefault("SMTP_HOST", "")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("SMTP_USER", "")
	viper.SetDefault("SMTP_PASSWORD", "")
	viper.SetDefault("SMTP_FROM", "")
	viper.SetDefault("VERIFY_RATE_LIMIT", 10)
	viper.SetDefault("VERIFY_RATE_WINDOW", 60)
	viper.SetDefault("TELEMETRY_ENABLED", false)
	viper.SetDefault("OTLP_ENDPOINT", "")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// AllowedHostList splits the comma-separated ALLOWED_HOSTS value.
func (c *Config) AllowedHostList() []string {
	if c.AllowedHosts == "" {
		return nil
	}
	var hosts []string
	for _, h := range strings.Split(c.AllowedHosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// Policy converts the loaded configuration into the explicit policy value
// the engine and flows are constructed with.
func (c *Config) Policy() domain.Policy {
	p := domain.DefaultPolicy()
	p.MaxTokenLifetime = time.Duration(c.MaxTokenLifetime) * time.Second
	p.RequireSameIP = c.RequireSameIP
	p.RequireSameBrowser = c.RequireSameBrowser
	p.AnonymizeIPAddress = c.AnonymizeIPAddress
	if c.CookieName != "" {
		p.CookieName = c.CookieName
	}
	if c.DefaultRedirectURL != "" {
		p.DefaultRedirectURL = c.DefaultRedirectURL
	}
	return p
}
