package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `{"chain": {"lcd_url": "https://lcd.veridian.network"}}`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "VRD", config.BaseSymbol)
	assert.Equal(t, "ANIMA", config.SecondarySymbol)
	assert.Equal(t, "uvrd", config.Chain.FeeDenom)
	assert.Equal(t, int64(1_000_000), config.Submitter.MinBalance)
	assert.Equal(t, 30, config.Submitter.MaxAttempts)
	assert.Equal(t, time.Second, config.PollInterval())
	assert.Equal(t, 24*time.Hour, config.AnalyticsInterval())
	assert.Equal(t, 90*time.Second, config.RequestTimeout())
	assert.Equal(t, 144*time.Hour, config.RegistrationWindow())
	assert.Equal(t, 1, config.Server.RegistrationLimit)
	assert.Equal(t, 5000, config.Server.Port)
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	path := writeConfig(t, `{
		"base_symbol": "TEST",
		"submitter": {"max_attempts": 10, "poll_interval": "500ms"},
		"analytics": {"interval": "1h"},
		"server": {"port": 8080}
	}`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "TEST", config.BaseSymbol)
	assert.Equal(t, 10, config.Submitter.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, config.PollInterval())
	assert.Equal(t, time.Hour, config.AnalyticsInterval())
	assert.Equal(t, 8080, config.Server.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AI_API_KEY", "sk-from-env")
	t.Setenv("SIGNER_URL", "http://signer:9000")
	t.Setenv("ANALYTICS_CONN_STR", "postgres://env")

	path := writeConfig(t, `{
		"ai_config": {"api_key": "sk-from-file"},
		"chain": {"signer_url": "http://file:9000"}
	}`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", config.AIConfig.APIKey)
	assert.Equal(t, "http://signer:9000", config.Chain.SignerURL)
	assert.Equal(t, "postgres://env", config.Analytics.ConnStr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoad_BadDurationFallsBack(t *testing.T) {
	path := writeConfig(t, `{"submitter": {"poll_interval": "soon"}}`)

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, config.PollInterval())
}
