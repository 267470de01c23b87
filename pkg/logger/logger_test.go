package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}

func TestNewWritesRotatedFileWithRequestID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "core.log")
	l, closer, err := New(Config{Level: "debug", Format: "json", Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)

	ctx := WithRequestID(context.Background(), "req-42")
	l.With("component", "test").InfoContext(ctx, "hello", "account", "111111111111")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"hello"`)
	assert.Contains(t, string(raw), `"request_id":"req-42"`)
	assert.Contains(t, string(raw), `"component":"test"`)
}

func TestNewRejectsUnknownOutput(t *testing.T) {
	_, _, err := New(Config{Output: "syslog"})
	assert.Error(t, err)
}
