package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		info  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"bogus", false, true},
		{"", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(Config{Level: tt.level, Output: &bytes.Buffer{}})
			require.NoError(t, err)
			assert.Equal(t, tt.debug, logger.Core().Enabled(zapcore.DebugLevel))
			assert.Equal(t, tt.info, logger.Core().Enabled(zapcore.InfoLevel))
		})
	}
}

func TestNew_JSONEncoding(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Encoding: "json", Output: &buf})
	require.NoError(t, err)

	logger.Named("storage").Info("registered settings", zap.String("settings_id", "Testing"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "storage", entry["logger"])
	assert.Equal(t, "registered settings", entry["msg"])
	assert.Equal(t, "Testing", entry["settings_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_ConsoleEncoding(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Encoding: "console", Output: &buf})
	require.NoError(t, err)

	logger.Warn("field fell back to default", zap.String("field", "TestProperty3"))
	require.NoError(t, logger.Sync())

	line := buf.String()
	assert.True(t, strings.Contains(line, "WARN"), line)
	assert.Contains(t, line, "field fell back to default")
	assert.Contains(t, line, `"field": "TestProperty3"`)
}

func TestNew_UnknownEncoding(t *testing.T) {
	_, err := New(Config{Encoding: "xml"})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	logger := Nop()
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}
