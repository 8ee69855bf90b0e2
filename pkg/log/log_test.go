package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStandard(t *testing.T) *bytes.Buffer {
	t.Helper()
	std := logrus.StandardLogger()
	var buf bytes.Buffer
	prevOut, prevFmt, prevLevel := std.Out, std.Formatter, std.GetLevel()
	std.SetOutput(&buf)
	std.SetFormatter(&logrus.JSONFormatter{})
	std.SetLevel(logrus.DebugLevel)
	t.Cleanup(func() {
		std.SetOutput(prevOut)
		std.SetFormatter(prevFmt)
		std.SetLevel(prevLevel)
	})
	return &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		entry := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(l), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLevelHelpers(t *testing.T) {
	buf := captureStandard(t)

	Debug(Fields{"step": 1}, "debug line")
	Info(nil, "info line")
	Warn(Fields{"step": 3}, "warn line")
	Error(Fields{"step": 4}, "error line")

	entries := lines(t, buf)
	require.Len(t, entries, 4)
	for i, want := range []string{"debug", "info", "warning", "error"} {
		assert.Equal(t, want, entries[i]["level"])
	}
	assert.Equal(t, "warn line", entries[2]["msg"])
	assert.EqualValues(t, 4, entries[3]["step"])
}

func TestErrorWithTraceID(t *testing.T) {
	buf := captureStandard(t)

	traceID := ErrorWithTraceID(Fields{"request_id": "req-7"}, "failed")
	assert.Equal(t, "req-7", traceID)

	generated := ErrorWithTraceID(Fields{"request_id": "unknown"}, "failed")
	assert.Len(t, generated, 36)
	assert.NotEqual(t, "unknown", generated)

	entries := lines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "req-7", entries[0]["trace_id"])
	assert.Equal(t, generated, entries[1]["trace_id"])
}
