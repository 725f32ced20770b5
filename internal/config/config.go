package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

type Config struct {
	LogLevel string
	Port     string

	// StoreBackend selects the document store. For postgres the endpoint is
	// host:port and the key is the password; for firestore the endpoint is
	// the GCP project and the key is a credentials file path.
	StoreBackend  string
	StoreEndpoint string
	StoreKey      string
	StoreDatabase string
	StoreUser     string
	StoreSSLMode  string
	StoreTimeout  time.Duration

	DemoUserID  string
	SeedCatalog bool

	KafkaBrokers    []string
	RedisAddr       string
	EmailServiceURL string
}

func Load() (Config, error) {
	cfg := Config{
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnv("PORT", "8080"),
		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		StoreEndpoint:   os.Getenv("STORE_ENDPOINT"),
		StoreKey:        os.Getenv("STORE_KEY"),
		StoreDatabase:   os.Getenv("STORE_DATABASE"),
		StoreUser:       getEnv("STORE_USER", "cloudmart"),
		StoreSSLMode:    getEnv("STORE_SSLMODE", "disable"),
		StoreTimeout:    5 * time.Second,
		DemoUserID:      getEnv("DEMO_USER_ID", "demo-user"),
		SeedCatalog:     true,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		EmailServiceURL: os.Getenv("EMAIL_SERVICE_URL"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	var errs []error
	if err := getEnvDuration("STORE_TIMEOUT", &cfg.StoreTimeout); err != nil {
		errs = append(errs, err)
	}
	if err := getEnvBool("SEED_CATALOG", &cfg.SeedCatalog); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, cfg.Validate())

	return cfg, errors.Join(errs...)
}

// Validate fails when a required store setting is unset or still holds a
// template placeholder.
func (c Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres, BackendFirestore:
		required := []struct{ name, value string }{
			{"STORE_ENDPOINT", c.StoreEndpoint},
			{"STORE_KEY", c.StoreKey},
			{"STORE_DATABASE", c.StoreDatabase},
		}
		for _, r := range required {
			if r.value == "" {
				errs = append(errs, fmt.Errorf("%s is required", r.name))
			} else if IsPlaceholder(r.value) {
				errs = append(errs, fmt.Errorf("%s still holds a placeholder value", r.name))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	if c.DemoUserID == "" {
		errs = append(errs, errors.New("DEMO_USER_ID must not be empty"))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// PostgresURL builds the connection string for the postgres backend.
func (c Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.StoreUser, c.StoreKey),
		Host:     c.StoreEndpoint,
		Path:     "/" + c.StoreDatabase,
		RawQuery: url.Values{"sslmode": {c.StoreSSLMode}}.Encode(),
	}
	return u.String()
}

var placeholders = []string{"changeme", "change-me", "todo", "xxx", "placeholder"}

func IsPlaceholder(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">") {
		return true
	}
	if strings.HasPrefix(v, "your-") || strings.HasPrefix(v, "your_") {
		return true
	}
	for _, p := range placeholders {
		if v == p {
			return true
		}
	}
	return false
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvBool leaves dst untouched when key is unset and reports values that
// do not parse.
func getEnvBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	*dst = b
	return nil
}

func getEnvDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a duration such as 5s", key, v)
	}
	*dst = d
	return nil
}
