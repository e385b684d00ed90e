package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// Values come from the environment; a local .env file is loaded first when present.
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RabbitMQ  RabbitMQConfig
	PBX       PBXConfig
	Ticketing TicketingConfig
	Templates TemplatesConfig
	Transport TransportConfig
}

const (
	ModeMock = "mock"
	ModeLive = "live"
)

type AppConfig struct {
	Env  string
	Port int

	// Mode selects the collaborators: mock runs on in-memory stores and
	// sandbox providers, live requires every external system.
	Mode string

	// AllowedOrigins lists browser origins allowed to open the status stream.
	// Empty means same-origin only.
	AllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// ApplySchema runs the embedded migrations at startup.
	ApplySchema bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RabbitMQConfig struct {
	URL           string
	OutboundQueue string
	ReceiptQueue  string
}

type PBXConfig struct {
	BaseURL       string
	Token         string
	WebhookSecret string
}

type TicketingConfig struct {
	BaseURL string
	Token   string
	Group   string
}

type TemplatesConfig struct {
	WebhookSecret string
}

type TransportConfig struct {
	WebhookSecret string
	RatePerSecond float64
	Burst         int
}

func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Mode = strings.ToLower(strings.TrimSpace(os.Getenv("APP_MODE")))
	c.App.AllowedOrigins = splitList(os.Getenv("WS_ALLOWED_ORIGINS"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := optionalInt("DB_PORT", 5432)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.ApplySchema = optionalBool("DB_APPLY_SCHEMA")

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := optionalInt("REDIS_PORT", 6379)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	{
		n, err := optionalInt("REDIS_DB", 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.DB = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.RabbitMQ.URL = strings.TrimSpace(os.Getenv("RABBITMQ_URL"))
	c.RabbitMQ.OutboundQueue = strings.TrimSpace(os.Getenv("RABBITMQ_OUTBOUND_QUEUE"))
	c.RabbitMQ.ReceiptQueue = strings.TrimSpace(os.Getenv("RABBITMQ_RECEIPT_QUEUE"))

	c.PBX.BaseURL = strings.TrimSpace(os.Getenv("PBX_BASE_URL"))
	c.PBX.Token = os.Getenv("PBX_TOKEN")
	c.PBX.WebhookSecret = os.Getenv("PBX_WEBHOOK_SECRET")

	c.Ticketing.BaseURL = strings.TrimSpace(os.Getenv("TICKETING_BASE_URL"))
	c.Ticketing.Token = os.Getenv("TICKETING_TOKEN")
	c.Ticketing.Group = strings.TrimSpace(os.Getenv("TICKETING_GROUP"))

	c.Templates.WebhookSecret = os.Getenv("TEMPLATES_WEBHOOK_SECRET")

	c.Transport.WebhookSecret = os.Getenv("TRANSPORT_WEBHOOK_SECRET")
	{
		f, err := optionalFloat("TRANSPORT_RATE_PER_SECOND", 0)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Transport.RatePerSecond = f
	}
	{
		n, err := optionalInt("TRANSPORT_BURST", 1)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Transport.Burst = n
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem at once and fills in defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.Mode == "" {
		c.App.Mode = ModeMock
	}
	if c.App.Mode != ModeMock && c.App.Mode != ModeLive {
		errs = append(errs, fmt.Errorf("APP_MODE must be mock or live, got %q", c.App.Mode))
	}
	if c.IsProduction() && c.App.Mode == ModeMock {
		errs = append(errs, errors.New("APP_MODE=mock is not allowed in production"))
	}

	if c.IsLive() || c.DB.Host != "" {
		errs = append(errs, c.validateDB()...)
	}

	if c.IsLive() || c.Redis.Host != "" {
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	}

	if c.IsLive() {
		if c.RabbitMQ.URL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL is required"))
		}
		if c.PBX.BaseURL == "" {
			errs = append(errs, errors.New("PBX_BASE_URL is required"))
		}
		if c.Ticketing.BaseURL == "" {
			errs = append(errs, errors.New("TICKETING_BASE_URL is required"))
		}
		if c.Ticketing.Token == "" {
			errs = append(errs, errors.New("TICKETING_TOKEN is required"))
		}
		if c.PBX.WebhookSecret == "" || c.Templates.WebhookSecret == "" || c.Transport.WebhookSecret == "" {
			errs = append(errs, errors.New("webhook secrets are required in live mode"))
		}
	}
	if c.RabbitMQ.OutboundQueue == "" {
		c.RabbitMQ.OutboundQueue = "chat.outbound"
	}
	if c.RabbitMQ.ReceiptQueue == "" {
		c.RabbitMQ.ReceiptQueue = "chat.receipts"
	}

	if c.Transport.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("TRANSPORT_RATE_PER_SECOND must not be negative, got %v", c.Transport.RatePerSecond))
	}
	if c.Transport.Burst <= 0 {
		c.Transport.Burst = 1
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	return joinErrors(errs)
}

// splitList parses a comma-separated env value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) IsLive() bool {
	return c.App.Mode == ModeLive
}

// UsePostgres reports whether repositories should be Postgres backed.
func (c Config) UsePostgres() bool {
	return c.DB.Host != ""
}

// UseRedis reports whether the Redis-backed cache, de-duplication and relay are enabled.
func (c Config) UseRedis() bool {
	return c.Redis.Host != ""
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string, def int) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return def, nil
	}
	return mustInt(key)
}

func optionalFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return f, nil
}

func optionalBool(key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return b
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
