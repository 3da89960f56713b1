package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("REPRICER_TEST_STR", "value")
	assert.Equal(t, "value", GetEnv("REPRICER_TEST_STR", "def"))
	assert.Equal(t, "def", GetEnv("REPRICER_TEST_UNSET", "def"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("REPRICER_TEST_INT", "42")
	assert.Equal(t, 42, GetEnvInt("REPRICER_TEST_INT", 7))

	t.Setenv("REPRICER_TEST_INT", "not-a-number")
	assert.Equal(t, 7, GetEnvInt("REPRICER_TEST_INT", 7))
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("REPRICER_TEST_FLOAT", "0.51")
	assert.InDelta(t, 0.51, GetEnvFloat("REPRICER_TEST_FLOAT", 1), 0)

	t.Setenv("REPRICER_TEST_FLOAT", "half")
	assert.InDelta(t, 1.0, GetEnvFloat("REPRICER_TEST_FLOAT", 1), 0)
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("REPRICER_TEST_BOOL", "true")
	assert.True(t, GetEnvBool("REPRICER_TEST_BOOL", false))

	t.Setenv("REPRICER_TEST_BOOL", "0")
	assert.False(t, GetEnvBool("REPRICER_TEST_BOOL", true))

	t.Setenv("REPRICER_TEST_BOOL", "maybe")
	assert.True(t, GetEnvBool("REPRICER_TEST_BOOL", true))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("REPRICER_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, GetEnvDuration("REPRICER_TEST_DUR", time.Minute))
	assert.Equal(t, time.Minute, GetEnvDuration("REPRICER_TEST_DUR_UNSET", time.Minute))
}
