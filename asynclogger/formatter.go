package asynclogger

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Record is everything the Formatter needs to render one log line:
// spec.md §4.3's (level, file, func, line, user_body) plus a captured
// timestamp and the identifier of the worker that produced it.
type Record struct {
	Level    Level
	File     string // absolute or relative source path; "" if unavailable
	Func     string // function name; "" if unavailable
	Line     int
	Body     string
	WorkerID uint64
	At       time.Time
}

// threadTag returns the stable low-16-bit hex tag for a worker id, per
// spec.md §4.3: "tttt is the low 16 bits of a hash of the thread
// identifier". xxhash gives a cheap, well-distributed 64-bit hash; we only
// need its low 16 bits for display purposes.
func threadTag(workerID uint64) string {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(workerID >> (8 * i))
	}
	h := xxhash.Sum64(buf[:])
	return fmt.Sprintf("%04x", uint16(h))
}

func basename(path string) string {
	if path == "" {
		return ""
	}
	// spec.md §4.3: "reduced to basename (last / or \)". filepath.Base
	// already does the platform-correct version of this; Replace handles
	// the case of a foreign-platform path containing the other separator.
	path = strings.ReplaceAll(path, "\\", "/")
	return filepath.Base(path)
}

func locationSuffix(file, fn string, line int) string {
	if file == "" && fn == "" {
		return ""
	}
	return fmt.Sprintf("\t[%s:%d, %s()]", basename(file), line, fn)
}

// formatOffset renders ±HH:MM for a UTC-offset-in-minutes value.
func formatOffset(offsetMinutes int) string {
	sign := "+"
	if offsetMinutes < 0 {
		sign = "-"
		offsetMinutes = -offsetMinutes
	}
	return fmt.Sprintf("%s%02d:%02d", sign, offsetMinutes/60, offsetMinutes%60)
}

// subsecond renders the ".mmm_uuu" fraction from spec.md §4.3: three digits
// of milliseconds, a literal underscore, then three digits of the
// remaining microseconds.
func subsecond(t time.Time) string {
	micros := t.Nanosecond() / 1000
	return fmt.Sprintf("%03d_%03d", micros/1000, micros%1000)
}

// FormatFile renders the file-record grammar from spec.md §4.3/§6:
//
//	<iso-ts>.mmm_uuu±HH:MM [<tid-hex4>] [<lvl4>] <body>[\t[<basename>:<line>, <func>()]]\n
func FormatFile(r Record, offsetMinutes int) string {
	ts := r.At.Format("2006-01-02T15:04:05") + "." + subsecond(r.At)
	var b strings.Builder
	b.WriteString(ts)
	b.WriteString(formatOffset(offsetMinutes))
	b.WriteString(" [")
	b.WriteString(threadTag(r.WorkerID))
	b.WriteString("] [")
	b.WriteString(r.Level.tag4())
	b.WriteString("] ")
	b.WriteString(r.Body)
	b.WriteString(locationSuffix(r.File, r.Func, r.Line))
	b.WriteByte('\n')
	return b.String()
}

// ANSI SGR codes for the console variant (spec.md §4.3/§6). FormatConsole
// leaves them out entirely when Colors is false.
const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
	ansiCyan   = "\x1b[36m"
	ansiGray   = "\x1b[90m"
	ansiBold   = "\x1b[1m"
)

func levelColor(l Level) string {
	switch l {
	case LevelSystem, LevelFatal:
		return ansiBold + ansiRed
	case LevelError:
		return ansiRed
	case LevelWarning:
		return ansiYellow
	case LevelInfo:
		return ansiGreen
	case LevelDebug, LevelTrace:
		return ansiGray
	default:
		return ""
	}
}

// Colors toggles whether FormatConsole emits ANSI escapes at all; set it to
// false to compile color out to empty strings process-wide, per spec.md §4.3.
var Colors = true

// FormatConsole renders the shorter, undated, colorized console line.
func FormatConsole(r Record) string {
	color, reset := "", ""
	if Colors {
		color, reset = levelColor(r.Level), ansiReset
	}

	ts := r.At.Format("15:04:05.000")
	var b strings.Builder
	if Colors {
		b.WriteString(ansiGray)
		b.WriteString(ts)
		b.WriteString(ansiReset)
	} else {
		b.WriteString(ts)
	}
	b.WriteString(" [")
	b.WriteString(color)
	b.WriteString(r.Level.tag4())
	b.WriteString(reset)
	b.WriteString("] ")

	if r.Level == LevelSystem || r.Level == LevelFatal {
		b.WriteString(color)
		b.WriteString(r.Body)
		b.WriteString(reset)
	} else {
		b.WriteString(r.Body)
	}

	b.WriteString(locationSuffix(r.File, r.Func, r.Line))
	return b.String()
}
