package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestModuleLoggerFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelDebug, time.UTC).Module("filerange").Module("merge")

	log.With(Uint("phase_id", 7)).Info("ranges reconciled", Int("created", 2), Error(errors.New("boom")))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "filerange.merge", lines[0]["module"])
	assert.Equal(t, "ranges reconciled", lines[0]["msg"])
	assert.EqualValues(t, 7, lines[0]["phase_id"])
	assert.EqualValues(t, 2, lines[0]["created"])
	assert.Equal(t, "boom", lines[0]["error"])
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	log.Trace("hidden")
	log.Debug("hidden")
	log.Log(LogLevelDebug, "hidden")
	log.Warn("shown")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestTraceLevelName(t *testing.T) {
	buf := &bytes.Buffer{}
	NewSlogLogger(buf, LogLevelTrace, time.UTC).Trace("sql")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "TRACE", lines[0]["level"])
}

func TestWithContextTraceID(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithTraceID(context.Background(), "req-1")

	NewSlogLogger(buf, LogLevelInfo, time.UTC).WithContext(ctx).Info("handled")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-1", lines[0]["trace_id"])
}

func TestGormAdapterTrace(t *testing.T) {
	buf := &bytes.Buffer{}
	adapter := NewGormLoggerAdapter(NewSlogLogger(buf, LogLevelWarn, time.UTC), 50*time.Millisecond)

	sql := func() (string, int64) { return "SELECT 1", 1 }

	adapter.Trace(context.Background(), time.Now(), sql, nil)
	adapter.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	adapter.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	adapter.Trace(context.Background(), time.Now(), sql, errors.New("locked"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "slow query", lines[0]["msg"])
	assert.Equal(t, "query error", lines[1]["msg"])
}

func TestRedactSensitiveData(t *testing.T) {
	in := "Authorization: Bearer abc.def.ghi password=hunter2"
	out := RedactSensitiveData(in)

	assert.NotContains(t, out, "abc.def.ghi")
	assert.NotContains(t, out, "hunter2")
	assert.True(t, IsSensitiveKey("X-Auth-Token"))
	assert.False(t, IsSensitiveKey("campaign_id"))
}

func TestNewCentralLoggerDefaults(t *testing.T) {
	cl, err := NewCentralLogger(&LoggingConfig{Timezone: "UTC"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })

	assert.NotNil(t, cl.Module("api"))
	assert.NoError(t, cl.Flush())

	_, err = NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}

func TestCentralLoggerWritesConsoleAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "aplose.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		Timezone:   "UTC",
		Console:    &ConsoleOutput{Enabled: true, Level: "error"},
		FileOutput: &FileOutput{Enabled: true, Path: path, Level: "info"},
	})
	require.NoError(t, err)
	require.IsType(t, fanoutHandler{}, cl.baseHandler)

	log := cl.Module("filerange").With(String("phase", "annotation"))
	log.Info("ranges reconciled", Int("created", 2))
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := decodeLines(t, bytes.NewBuffer(data))
	require.Len(t, lines, 1)
	assert.Equal(t, "ranges reconciled", lines[0]["msg"])
	assert.Equal(t, "annotation", lines[0]["phase"])
	assert.EqualValues(t, 2, lines[0]["created"])
}
