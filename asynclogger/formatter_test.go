package asynclogger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBasename(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"unix path", "/var/log/app/server.go", "server.go"},
		{"windows path", `C:\app\server.go`, "server.go"},
		{"bare name", "server.go", "server.go"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, basename(c.in))
		})
	}
}

func TestFormatFile(t *testing.T) {
	t.Run("IncludesAllGrammarFields", func(t *testing.T) {
		at := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
		rec := Record{
			Level:    LevelInfo,
			File:     "/src/worker.go",
			Func:     "main.handle",
			Line:     42,
			Body:     "request accepted",
			WorkerID: 7,
			At:       at,
		}
		line := FormatFile(rec, 0)

		assert.True(t, strings.HasPrefix(line, "2026-03-05T09:30:00"))
		assert.Contains(t, line, "[INFO]")
		assert.Contains(t, line, "request accepted")
		assert.Contains(t, line, "[worker.go:42, main.handle()]")
		assert.True(t, strings.HasSuffix(line, "\n"))
	})

	t.Run("OmitsLocationWhenUnavailable", func(t *testing.T) {
		rec := Record{Level: LevelWarning, Body: "no source info", At: time.Now()}
		line := FormatFile(rec, 0)
		assert.NotContains(t, line, "\t[")
	})

	t.Run("RendersNegativeOffset", func(t *testing.T) {
		rec := Record{Level: LevelError, Body: "x", At: time.Now()}
		line := FormatFile(rec, -330)
		assert.Contains(t, line, "-05:30")
	})

	t.Run("RendersPositiveOffset", func(t *testing.T) {
		rec := Record{Level: LevelError, Body: "x", At: time.Now()}
		line := FormatFile(rec, 330)
		assert.Contains(t, line, "+05:30")
	})
}

func TestThreadTag_StableForSameWorker(t *testing.T) {
	a := threadTag(42)
	b := threadTag(42)
	c := threadTag(43)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 4)
}

func TestFormatConsole_NoTrailingNewline(t *testing.T) {
	Colors = false
	defer func() { Colors = true }()

	rec := Record{Level: LevelInfo, Body: "hello", At: time.Now()}
	line := FormatConsole(rec)
	assert.False(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, "[INFO]")
	assert.Contains(t, line, "hello")
}
