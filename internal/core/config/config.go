package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
// - oneof: space separated list of accepted values
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`

	Store  StoreConfig  `mapstructure:",squash"`
	Orders OrdersConfig `mapstructure:",squash"`
	Notify NotifyConfig `mapstructure:",squash"`
	Stream StreamConfig `mapstructure:",squash"`
}

// StoreConfig selects where orders live.
type StoreConfig struct {
	// Backend is "memory" for a single-process development store or "redis".
	Backend string `mapstructure:"STORE_BACKEND" default:"memory" oneof:"memory redis"`
	// RedisURL is required when Backend is redis.
	RedisURL string `mapstructure:"REDIS_URL"`
}

// OrdersConfig tunes the order lifecycle.
type OrdersConfig struct {
	// StrictTransitions rejects changes to orders in a terminal status.
	StrictTransitions bool `mapstructure:"STRICT_TRANSITIONS" default:"true"`
	// RetryMaxRetries is how many times a transient store failure is retried. 0 disables retries.
	RetryMaxRetries uint64 `mapstructure:"RETRY_MAX_RETRIES" default:"3"`
	// RetryBaseDelay is the first backoff interval.
	RetryBaseDelay time.Duration `mapstructure:"RETRY_BASE_DELAY" default:"50ms"`
}

// NotifyConfig configures status change notifications.
type NotifyConfig struct {
	// WebhookURL receives status changes. Empty means log only.
	WebhookURL string `mapstructure:"NOTIFY_WEBHOOK_URL"`
	// Timeout bounds each webhook call.
	Timeout time.Duration `mapstructure:"NOTIFY_TIMEOUT" default:"5s"`
}

// StreamConfig bounds live order streams.
type StreamConfig struct {
	// MaxDuration closes a stream after this long; clients reconnect.
	MaxDuration time.Duration `mapstructure:"STREAM_MAX_DURATION" default:"30m"`
	// Heartbeat is the interval between keep-alive comments.
	Heartbeat time.Duration `mapstructure:"STREAM_HEARTBEAT" default:"15s"`
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// validate checks rules spanning several fields.
func (c *AppConfig) validate() error {
	if c.Store.Backend == "redis" && c.Store.RedisURL == "" {
		return errors.New("missing required configuration: REDIS_URL (STORE_BACKEND=redis)")
	}
	if c.Stream.MaxDuration <= 0 || c.Stream.Heartbeat <= 0 {
		return errors.New("invalid configuration: STREAM_MAX_DURATION and STREAM_HEARTBEAT must be positive")
	}
	return nil
}

// processTags binds every tagged field to its environment variable and registers defaults.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			if err := v.BindEnv(key); err != nil {
				return fmt.Errorf("failed to bind %s: %w", key, err)
			}
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks required and oneof tags.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		value := val.Field(i)

		if field.Tag.Get("required") == "true" && isZero(value) {
			return fmt.Errorf("missing required configuration: %s", key)
		}

		if allowed := field.Tag.Get("oneof"); allowed != "" && value.Kind() == reflect.String {
			options := strings.Fields(allowed)
			if !slices.Contains(options, value.String()) {
				return fmt.Errorf("invalid configuration: %s=%q, expected one of %s", key, value.String(), strings.Join(options, ", "))
			}
		}
	}
	return nil
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
