package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"DEBUG", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"nonsense", logrus.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLevel(tt.input), "level %q", tt.input)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	logger := New(Options{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestNew_TextFormatDefault(t *testing.T) {
	logger := New(Options{Level: "info"})
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNewNop_Discards(t *testing.T) {
	logger := NewNop()
	// Must not panic and must not write anywhere visible.
	logger.WithField("k", "v").Info("dropped")
	assert.Equal(t, logrus.PanicLevel, logger.GetLevel())
}
