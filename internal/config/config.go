package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/avstrong/roomstay/internal/pricing"
)

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	GatewayLocal    = "local"
	GatewayRazorpay = "razorpay"

	devGatewaySecret = "local-dev-secret"
)

var ErrInvalidValue = errors.New("invalid configuration value")

type HTTP struct {
	Host              string        `env:"HTTP_HOST"                env-default:"localhost" validate:"required"`
	Port              string        `env:"HTTP_PORT"                env-default:"8092"      validate:"required,port"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"20s"       validate:"gt=0"`
	LivenessEndpoint  string        `env:"LIVENESS_ENDPOINT"        env-default:"/liveness" validate:"required,startswith=/"`
}

type Storage struct {
	Driver      string `env:"STORAGE_DRIVER" env-default:"memory" validate:"required,oneof=memory sqlite postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
}

type Pricing struct {
	FlatInstitutional int64 `env:"PRICING_FLAT_INSTITUTIONAL_RATE" env-default:"500" validate:"min=0"`
	ACSurchargeSingle int64 `env:"PRICING_AC_SURCHARGE_SINGLE"     env-default:"400" validate:"min=0"`
	ACSurchargeDouble int64 `env:"PRICING_AC_SURCHARGE_DOUBLE"     env-default:"500" validate:"min=0"`
}

func (p Pricing) Rates() pricing.Rates {
	return pricing.Rates{
		FlatInstitutional: p.FlatInstitutional,
		ACSurchargeSingle: p.ACSurchargeSingle,
		ACSurchargeDouble: p.ACSurchargeDouble,
	}
}

type Payment struct {
	HoldTTL  time.Duration `env:"PAYMENT_HOLD_TTL" env-default:"15m" validate:"gt=0"`
	Currency string        `env:"PAYMENT_CURRENCY" env-default:"INR" validate:"required,len=3"`
}

type Gateway struct {
	Driver    string `env:"GATEWAY_DRIVER"      env-default:"local" validate:"required,oneof=local razorpay"`
	KeyID     string `env:"RAZORPAY_KEY_ID"`
	KeySecret string `env:"RAZORPAY_KEY_SECRET"`
	BaseURL   string `env:"RAZORPAY_BASE_URL"   validate:"omitempty,url"`
}

type AMQP struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE" env-default:"booking_events" validate:"required"`
}

type Config struct {
	HTTP                HTTP
	LogLevel            string `env:"LOG_LEVEL" env-default:"info" validate:"required,oneof=debug info warn error"`
	Storage             Storage
	Pricing             Pricing
	Payment             Payment
	Gateway             Gateway
	AMQP                AMQP
	ExpirySweepInterval time.Duration `env:"EXPIRY_SWEEP_INTERVAL" env-default:"1m" validate:"gte=0"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return FromEnv()
}

func FromEnv() (*Config, error) {
	var conf Config

	if err := cleanenv.ReadEnv(&conf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	if conf.Gateway.Driver == GatewayLocal && conf.Gateway.KeySecret == "" {
		conf.Gateway.KeySecret = devGatewaySecret
	}

	return &conf, nil
}

// Validate is run by Load and again after command line flags have been applied.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]

			return invalid(fe.Field(), fmt.Sprint(fe.Value()), "failed "+fe.ActualTag()+" check")
		}

		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	switch c.Storage.Driver {
	case StorageSQLite, StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return invalid("DATABASE_URL", "", "required for "+c.Storage.Driver+" storage")
		}
	}

	if c.Gateway.Driver == GatewayRazorpay {
		if c.Gateway.KeyID == "" {
			return invalid("RAZORPAY_KEY_ID", "", "required for razorpay gateway")
		}

		if c.Gateway.KeySecret == "" {
			return invalid("RAZORPAY_KEY_SECRET", "", "required for razorpay gateway")
		}
	}

	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if key := field.Tag.Get("env"); key != "" {
			return key
		}

		return field.Name
	})

	return v
}

func invalid(key, value, reason string) error {
	return fmt.Errorf("%w: %v=%q %v", ErrInvalidValue, key, value, reason)
}
