package log

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestLineFormat(t *testing.T) {
	buf := capture(t)

	Info("calendar written", "output", "x.ics", "events", 12)

	line := buf.String()
	assert.Contains(t, line, "[INFO] calendar written output=x.ics events=12")
}

func TestErrorPrependsErrPair(t *testing.T) {
	buf := capture(t)

	Error("write failed", errors.New("disk full"), "path", "/tmp/x")

	assert.Contains(t, buf.String(), "[ERROR] write failed err=disk full path=/tmp/x")
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)

	SetLevel(LevelWarn)
	Debug("hidden debug")
	Info("hidden info")
	Warn("visible warn")
	Error("visible error", errors.New("x"))

	out := buf.String()
	assert.NotContains(t, out, "hidden debug")
	assert.NotContains(t, out, "hidden info")
	assert.Contains(t, out, "visible warn")
	assert.Contains(t, out, "visible error")
}

func TestFormatKVs_SkipsMalformedPairs(t *testing.T) {
	buf := capture(t)

	// A non-string key is dropped; a trailing odd value is ignored.
	Info("msg", 42, "value", "key", "kept", "dangling")

	out := buf.String()
	assert.Contains(t, out, "key=kept")
	assert.NotContains(t, out, "dangling")
	assert.NotContains(t, out, "=value")
}
