package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredentials is returned by Validate when the processor cannot be reached.
var ErrMissingCredentials = errors.New("missing razorpay credentials")

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	Database    Database
	Auth        Auth
	Storage     Storage
	Grid        Grid

	Razorpay Razorpay `envPrefix:"RAZORPAY_"`
	RabbitMQ RabbitMQ `envPrefix:"RABBITMQ_"`
}

type Razorpay struct {
	BaseApiURL    string `env:"BASE_API_URL" envDefault:"https://api.razorpay.com"`
	KeyID         string `env:"KEY_ID"`
	KeySecret     string `env:"KEY_SECRET"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	PublicKeyID   string `env:"PUBLIC_KEY_ID"`
	Currency      string `env:"CURRENCY" envDefault:"INR"`
}

type RabbitMQ struct {
	URL      string `env:"URL"`
	Exchange string `env:"EXCHANGE" envDefault:"adgrid.events"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host          string  `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port          string  `env:"HTTP_PORT" envDefault:"8080"`
	RateLimitRPS  float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	AllowedOrigin string  `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`
}

type Database struct {
	Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	URL    string `env:"DATABASE_URL" envDefault:"adgrid.db"`
}

type Auth struct {
	JWTSecret string `env:"AUTH_JWT_SECRET"`
}

type Storage struct {
	UploadDir string `env:"UPLOAD_DIR" envDefault:"uploads"`
}

type Grid struct {
	BoxPrice int64 `env:"BOX_PRICE" envDefault:"83"`
}

// IsDevelopment reports whether internal error details may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment.Name, "development")
}

// Validate enforces the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "" {
		return fmt.Errorf("%w: RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required", ErrMissingCredentials)
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	if c.Grid.BoxPrice <= 0 {
		return fmt.Errorf("BOX_PRICE must be positive")
	}
	return nil
}
