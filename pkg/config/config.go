package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration values
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	GinMode         string        `env:"GIN_MODE" envDefault:"release"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	RateLimitRPS    float64       `env:"SUBSCRIBE_RATE_LIMIT_RPS" envDefault:"1"`
	RateLimitBurst  int           `env:"SUBSCRIBE_RATE_LIMIT_BURST" envDefault:"5"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Mailchimp MailchimpConfig
}

// MailchimpConfig holds the list provider settings. Missing values are not
// rejected here: the subscribe endpoint reports them per request.
type MailchimpConfig struct {
	APIKey       string        `env:"MAILCHIMP_API_KEY"`
	AudienceID   string        `env:"MAILCHIMP_AUDIENCE_ID"`
	ServerPrefix string        `env:"MAILCHIMP_API_SERVER"`
	DoubleOptIn  string        `env:"MAILCHIMP_DOUBLE_OPT_IN"`
	HTTPTimeout  time.Duration `env:"MAILCHIMP_HTTP_TIMEOUT" envDefault:"0s"`
}

// DoubleOptInEnabled reports whether new members must confirm by email.
// Only "true", in any case, enables it.
func (m MailchimpConfig) DoubleOptInEnabled() bool {
	return strings.ToLower(m.DoubleOptIn) == "true"
}

// LoadConfig reads configuration from environment variables
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}
	for i := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(cfg.AllowedOrigins[i])
	}
	return &cfg, nil
}
