package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace":   TRACE,
		"DEBUG":   DEBUG,
		" info ":  INFO,
		"warning": WARN,
		"error":   ERROR,
		"мусор":   INFO,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLoggerLevelsAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	dir := t.TempDir()

	Configure(Options{Dir: dir, ConsoleLevel: WARN, FileLevel: TRACE, MaxSizeMB: 1, Console: &buf})
	defer Configure(DefaultOptions())

	logger, err := NewLogger("test")
	require.NoError(t, err)
	defer logger.Close()

	conn := logger.With("conn 3")
	conn.Info("скрыто в консоли")
	conn.Warn("видно %d", 42)

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "[WARN] [test] [conn 3] видно 42")

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "скрыто в консоли"), "файл должен содержать все уровни")
}

func TestManagerReturnsSameLogger(t *testing.T) {
	Configure(Options{DisableFile: true, ConsoleLevel: ERROR, Console: &bytes.Buffer{}})
	defer Configure(DefaultOptions())

	a := GetComponentLogger("same")
	b := GetComponentLogger("same")
	assert.Same(t, a, b)
	assert.Contains(t, GetLoggerManager().ListComponents(), "same")
}
