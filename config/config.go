package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Payment      PaymentConfig
	LiberecMpesa LiberecMpesaConfig
	Midtrans     MidtransConfig
	PayPal       PayPalConfig
	Escrow       EscrowConfig
	Payout       PayoutConfig
	Sweep        SweepConfig
	Rabbit       RabbitConfig
	Redis        RedisConfig
	Otel         OtelConfig
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8099"`
	Env          string        `envconfig:"APP_ENV" default:"development"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
}

type DatabaseConfig struct {
	DSN             string        `envconfig:"DATABASE_DSN" default:"tutorly:tutorly@tcp(localhost:3306)/tutorly?charset=utf8mb4&parseTime=True&loc=UTC"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"100"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	// TxRetries bounds how often a transaction is replayed after a deadlock or lock wait timeout.
	TxRetries int `envconfig:"DB_TX_RETRIES" default:"3"`
}

type JWTConfig struct {
	AccessSecret string        `envconfig:"JWT_ACCESS_SECRET" default:"change-me-in-production"`
	AccessExpiry time.Duration `envconfig:"JWT_ACCESS_EXPIRY" default:"15m"`
	Issuer       string        `envconfig:"JWT_ISSUER" default:"tutorly"`
}

type PaymentConfig struct {
	WebhookSecret     string        `envconfig:"PAYMENT_WEBHOOK_SECRET"`
	RoomWebhookSecret string        `envconfig:"ROOM_WEBHOOK_SECRET"`
	// CallbackSecret signs the order id into gateway callback URLs.
	CallbackSecret    string        `envconfig:"PAYMENT_CALLBACK_SECRET"`
	PaymentExpiry     time.Duration `envconfig:"PAYMENT_EXPIRY" default:"30m"`
	Currency          string        `envconfig:"CURRENCY" default:"KES"`
	// DefaultGateway is used when a pay request names no gateway.
	DefaultGateway string `envconfig:"PAYMENT_DEFAULT_GATEWAY" default:"stub"`
}

// LiberecMpesaConfig for M-Pesa STK and B2C via TheLiberec Card API
type LiberecMpesaConfig struct {
	BaseURL        string `envconfig:"MPESA_BASE_URL" default:"https://card-api.theliberec.com"`
	Email          string `envconfig:"MPESA_EMAIL"`
	Password       string `envconfig:"MPESA_PASSWORD"`
	WebhookBaseURL string `envconfig:"MPESA_WEBHOOK_BASE_URL"` // callback will be WebhookBaseURL + /api/v1/webhooks/mpesa
}

func (c LiberecMpesaConfig) Enabled() bool { return c.Email != "" && c.Password != "" }

type MidtransConfig struct {
	ServerKey  string `envconfig:"MIDTRANS_SERVER_KEY"`
	Production bool   `envconfig:"MIDTRANS_PRODUCTION" default:"false"`
}

// PayPalConfig configures the PayPal-style payouts API (OAuth2 client credentials).
type PayPalConfig struct {
	BaseURL      string `envconfig:"PAYPAL_BASE_URL" default:"https://api-m.sandbox.paypal.com"`
	ClientID     string `envconfig:"PAYPAL_CLIENT_ID"`
	ClientSecret string `envconfig:"PAYPAL_CLIENT_SECRET"`
}

// EscrowConfig holds the settlement policy. None of these are read from the
// database; changing them only affects bookings settled afterwards.
type EscrowConfig struct {
	PlatformUserID         uint          `envconfig:"PLATFORM_USER_ID" default:"1"`
	DefaultCommissionRate  string        `envconfig:"DEFAULT_COMMISSION_RATE" default:"15.00"`
	MinAttendanceRatio     float64       `envconfig:"ESCROW_MIN_ATTENDANCE_RATIO" default:"0.5"`
	EarlyJoinGrace         time.Duration `envconfig:"ESCROW_EARLY_JOIN_GRACE" default:"15m"`
	LateGrace              time.Duration `envconfig:"ESCROW_LATE_GRACE" default:"15m"`
	ReleaseOnStudentNoShow bool          `envconfig:"ESCROW_RELEASE_ON_STUDENT_NO_SHOW" default:"false"`
	DisputeClaimWindow     time.Duration `envconfig:"DISPUTE_CLAIM_WINDOW" default:"72h"`
	RescheduleExpiry       time.Duration `envconfig:"RESCHEDULE_EXPIRY" default:"48h"`
}

type PayoutConfig struct {
	MinimumCents      int64 `envconfig:"PAYOUT_MINIMUM_CENTS" default:"100000"`
	MaxSubmitAttempts int   `envconfig:"PAYOUT_MAX_SUBMIT_ATTEMPTS" default:"5"`
}

type SweepConfig struct {
	Enabled  bool          `envconfig:"SWEEP_ENABLED" default:"true"`
	Schedule string        `envconfig:"SWEEP_SCHEDULE" default:"@every 1m"`
	LockTTL  time.Duration `envconfig:"SWEEP_LOCK_TTL" default:"55s"`
}

type RabbitConfig struct {
	URL      string `envconfig:"RABBITMQ_URL"`
	Exchange string `envconfig:"RABBITMQ_EXCHANGE" default:"tutorly.events"`
}

type RedisConfig struct {
	URL string `envconfig:"REDIS_URL"`
}

type OtelConfig struct {
	Endpoint    string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `envconfig:"OTEL_SERVICE_NAME" default:"tutorly"`
}

const defaultJWTSecret = "change-me-in-production"

func (c *Config) Production() bool { return c.Server.Env == "production" }

// Validate refuses a production config that would leave webhooks or tokens
// unauthenticated.
func (c *Config) Validate() error {
	if !c.Production() {
		return nil
	}
	var missing []string
	if c.Payment.WebhookSecret == "" {
		missing = append(missing, "PAYMENT_WEBHOOK_SECRET")
	}
	if c.Payment.RoomWebhookSecret == "" {
		missing = append(missing, "ROOM_WEBHOOK_SECRET")
	}
	if c.Payment.CallbackSecret == "" && c.LiberecMpesa.Enabled() {
		missing = append(missing, "PAYMENT_CALLBACK_SECRET")
	}
	if c.JWT.AccessSecret == "" || c.JWT.AccessSecret == defaultJWTSecret {
		missing = append(missing, "JWT_ACCESS_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: production requires %s", strings.Join(missing, ", "))
	}
	return nil
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
