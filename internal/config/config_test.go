package config

import (
	"testing"

	"cloud.google.com/go/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	c, err := FromEnv(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, &Config{
		ProjectID:   datastore.DetectProjectID,
		Namespace:   "",
		LogLevel:    "info",
		MaxAttempts: 1,
		Port:        "8080",
	}, c)
}

func TestFromEnv_Values(t *testing.T) {
	c, err := FromEnv(lookupFrom(map[string]string{
		EnvProjectID:   "my-project",
		EnvNamespace:   "shop",
		EnvLogLevel:    "debug",
		EnvMaxAttempts: "3",
		EnvPort:        "9090",
	}))
	require.NoError(t, err)

	assert.Equal(t, "my-project", c.ProjectID)
	assert.Equal(t, "shop", c.Namespace)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 3, c.MaxAttempts)
	assert.Equal(t, "9090", c.Port)
}

func TestFromEnv_BadMaxAttempts(t *testing.T) {
	for _, v := range []string{"zero", "0", "-2"} {
		_, err := FromEnv(lookupFrom(map[string]string{EnvMaxAttempts: v}))
		assert.Error(t, err, v)
	}
}

func TestFromEnv_BadLogLevel(t *testing.T) {
	_, err := FromEnv(lookupFrom(map[string]string{EnvLogLevel: "loud"}))
	assert.ErrorContains(t, err, EnvLogLevel)

	c, err := FromEnv(lookupFrom(map[string]string{EnvLogLevel: "warn"}))
	require.NoError(t, err)
	assert.Equal(t, "warn", c.LogLevel)
}
