// Package config reads the process configuration shared by the function and
// the operator tools from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"cloud.google.com/go/datastore"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

const (
	EnvProjectID   = "PROJECT_ID"
	EnvNamespace   = "DATASTORE_NAMESPACE"
	EnvLogLevel    = "LOG_LEVEL"
	EnvMaxAttempts = "COUNTER_MAX_ATTEMPTS"
	EnvPort        = "PORT"
)

type Config struct {
	// ProjectID is datastore.DetectProjectID when PROJECT_ID is unset.
	ProjectID   string
	Namespace   string
	LogLevel    string
	MaxAttempts int
	Port        string
}

// Load reads .env if present and then the environment.
func Load() (*Config, error) {
	// .env is optional
	godotenv.Load()

	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, which has the signature of os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	c := &Config{
		ProjectID: get(EnvProjectID, datastore.DetectProjectID),
		Namespace: get(EnvNamespace, ""),
		LogLevel:  get(EnvLogLevel, "info"),
		Port:      get(EnvPort, "8080"),
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvLogLevel, err)
	}

	n, err := strconv.Atoi(get(EnvMaxAttempts, "1"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvMaxAttempts, err)
	}
	if n < 1 {
		return nil, fmt.Errorf("%s must be >= 1: %d", EnvMaxAttempts, n)
	}
	c.MaxAttempts = n

	return c, nil
}
