package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, sonic.UnmarshalString(line, &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, "fatal", LevelFatal.String())
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo}).With(String("service", "clinical"))

	log.Debug("hidden")
	log.Info("makeup logged", StudentID("s1"), Hours(2.5), Latency(1500*time.Microsecond), Err(nil))
	log.Error("store failed", Err(errors.New("boom")))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "makeup logged", lines[0]["msg"])
	assert.Equal(t, "clinical", lines[0]["service"])
	assert.Equal(t, "s1", lines[0]["student_id"])
	assert.Equal(t, 2.5, lines[0]["hours"])
	assert.Equal(t, 1.5, lines[0]["latency_ms"])
	assert.NotContains(t, lines[0], "error")

	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestWithDoesNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Options{Output: &buf, Level: LevelDebug})
	child := parent.WithRequestID("req-1")

	parent.Info("parent")
	child.Info("child")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], RequestIDKey)
	assert.Equal(t, "req-1", lines[1][RequestIDKey])
}

func TestDerivedLoggersShareWriterLock(t *testing.T) {
	var buf bytes.Buffer
	root := New(Options{Output: &buf, Level: LevelInfo})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l := root.With(Int("worker", i))
			for j := 0; j < 50; j++ {
				l.Info("tick", Int("n", j))
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, decodeLines(t, &buf), 400)
}

func TestFatalExits(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo})
	code := -1
	log.exit = func(c int) { code = c }

	log.Fatal("cannot start")

	assert.Equal(t, 1, code)
	assert.Equal(t, "fatal", decodeLines(t, &buf)[0]["level"])
}

func TestCaller(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf, AddCaller: true}).Info("where")

	caller, _ := decodeLines(t, &buf)[0]["caller"].(string)
	assert.True(t, strings.HasPrefix(caller, "logger_test.go:"), caller)
}

func TestContext(t *testing.T) {
	assert.Same(t, Default(), FromContext(context.Background()))

	l := New(Options{})
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
}
