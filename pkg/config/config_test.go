package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 5, s.Speed)
	assert.Equal(t, "warn", s.Log.Level)
	assert.Equal(t, "text", s.Log.Format)
	assert.True(t, s.Screen.Color)
}

func TestLoad_File(t *testing.T) {
	s, err := Load(newViper(t, `
speed: 9
max_steps: 20
log:
  level: debug
  format: json
screen:
  color: false
`))
	require.NoError(t, err)

	assert.Equal(t, 9, s.Speed)
	assert.Equal(t, 20, s.MaxSteps)
	assert.Equal(t, "debug", s.Log.Level)
	assert.False(t, s.Screen.Color)
}

func TestLoad_Invalid(t *testing.T) {
	for _, yaml := range []string{"speed: 0", "speed: 11", "log:\n  level: loud", "log:\n  format: xml"} {
		t.Run(yaml, func(t *testing.T) {
			_, err := Load(newViper(t, yaml))
			assert.True(t, errors.Is(err, ErrInvalidSetting), "got %v", err)
		})
	}
}

func TestLogger_Console(t *testing.T) {
	var out bytes.Buffer
	logger, closer, err := LogSettings{Level: "info", Format: "json"}.Logger(&out)
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("shown", "vector", 0x21)

	var record map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, float64(0x21), record["vector"])
}

func TestLogger_FanOutToFile(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "emu.log")
	logger, closer, err := LogSettings{Level: "error", File: path}.Logger(&out)
	require.NoError(t, err)

	logger.Debug("detail")
	require.NoError(t, closer.Close())

	assert.Empty(t, out.String(), "below the console level")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"detail"`)
}

func TestLogger_Off(t *testing.T) {
	var out bytes.Buffer
	logger, _, err := LogSettings{Level: "off"}.Logger(&out)
	require.NoError(t, err)

	logger.Error("nothing")
	assert.Empty(t, out.String())
}
