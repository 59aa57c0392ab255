package emu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Manu343726/emu8086/pkg/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runFile runs source through the run command with the log going to a file
func runFile(t *testing.T, source string) (int, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "program.asm")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	logFile := filepath.Join(dir, "emu.log")

	config.SetDefaults(viper.GetViper())
	viper.Set("log.file", logFile)
	viper.Set("screen.color", false)
	t.Cleanup(func() {
		viper.Set("log.file", "")
		runQuiet = false
	})
	runQuiet = true
	require.NoError(t, runCmd.Flags().Set("input", ""))

	return runProgram(runCmd, path), logFile
}

func TestRunProgram_ExitCodes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		code   int
	}{
		{"exit code", "MOV AH, 4CH\nMOV AL, 7\nINT 21H", 7},
		{"runtime error", "MOV AX, 1\nMOV BL, 0\nDIV BL", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, logFile := runFile(t, tt.source)
			assert.Equal(t, tt.code, code)

			log, err := os.ReadFile(logFile)
			require.NoError(t, err)
			assert.Contains(t, string(log), "program loaded")
		})
	}
}

func TestRunProgram_MissingFile(t *testing.T) {
	config.SetDefaults(viper.GetViper())
	runQuiet = true
	t.Cleanup(func() { runQuiet = false })

	assert.Equal(t, 1, runProgram(runCmd, filepath.Join(t.TempDir(), "missing.asm")))
}
