// Package config holds the user settings shared by every emu8086 command and
// builds the slog logger they describe.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/viper"
)

// ErrInvalidSetting is returned for settings with unknown values
var ErrInvalidSetting = errors.New("invalid setting")

// Settings is the decoded configuration. Keys map to viper keys
// ("log.level", "screen.color"...) and EMU8086_* environment variables.
type Settings struct {
	// Speed is the initial run speed of the debugger frontends (1-10)
	Speed int `mapstructure:"speed"`
	// MaxSteps bounds non-interactive runs (0 = unlimited)
	MaxSteps int         `mapstructure:"max_steps"`
	Log      LogSettings `mapstructure:"log"`
	Screen   Screen      `mapstructure:"screen"`
}

// LogSettings configures the diagnostic log
type LogSettings struct {
	// Level is debug, info, warn, error or off
	Level string `mapstructure:"level"`
	// Format is text or json
	Format string `mapstructure:"format"`
	// File additionally receives every record at debug level, as JSON
	File string `mapstructure:"file"`
}

// Screen configures terminal rendering
type Screen struct {
	Color bool `mapstructure:"color"`
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("speed", 5)
	v.SetDefault("max_steps", 1_000_000)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("screen.color", true)
}

// Load decodes and validates the settings held by v
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("failed to decode settings: %w", err)
	}
	if s.Speed < 1 || s.Speed > 10 {
		return s, fmt.Errorf("%w: speed %d is not in 1..10", ErrInvalidSetting, s.Speed)
	}
	if _, err := s.Log.level(); err != nil {
		return s, err
	}
	switch strings.ToLower(s.Log.Format) {
	case "text", "json":
	default:
		return s, fmt.Errorf("%w: log format %q", ErrInvalidSetting, s.Log.Format)
	}
	return s, nil
}

const levelOff = slog.Level(100)

func (l LogSettings) level() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "off", "none":
		return levelOff, nil
	}
	return 0, fmt.Errorf("%w: log level %q", ErrInvalidSetting, l.Level)
}

// Logger builds the logger described by the settings. Records go to console
// (skipped when nil) at the configured level and format, and to the log file
// if one is set. The returned closer releases the file.
func (l LogSettings) Logger(console io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := l.level()
	if err != nil {
		return nil, nil, err
	}

	var handlers []slog.Handler
	if console != nil && level != levelOff {
		options := &slog.HandlerOptions{Level: level}
		if strings.ToLower(l.Format) == "json" {
			handlers = append(handlers, slog.NewJSONHandler(console, options))
		} else {
			handlers = append(handlers, slog.NewTextHandler(console, options))
		}
	}

	var closer io.Closer = nopCloser{}
	if l.File != "" {
		file, err := os.OpenFile(l.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closer = file
	}

	if len(handlers) == 0 {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), closer, nil
	}
	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
