package asynclogger

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

const initialStackBufSize = 64 * 1024
const maxStackBufSize = 64 * 1024 * 1024

// stacks captures the stack trace(s) via runtime.Stack, growing the buffer
// until the trace fits or maxStackBufSize is hit. With all=true this is
// Go's native stop-the-world equivalent of the directed-signal-plus-
// sigsuspend handshake the original logger used to pause every thread and
// collect its backtrace: the runtime already serializes all goroutines
// during the scan, so there is nothing else to coordinate.
//
// Grounded on the stacks() helper in the vendored glog fork
// (other_examples/...cosnicolaou-llog-glog.go.go).
func stacks(all bool) []byte {
	n := initialStackBufSize
	var trace []byte
	for n <= maxStackBufSize {
		trace = make([]byte, n)
		nbytes := runtime.Stack(trace, all)
		if nbytes < len(trace) {
			return trace[:nbytes]
		}
		n *= 2
	}
	return trace
}

// goroutineStack is one parsed block from a runtime.Stack(buf, true) dump:
// the Go-idiomatic stand-in for the original logger's per-thread snapshot
// (id and status instead of a kernel thread id, since Go exposes neither an
// OS thread id nor raw frame addresses per goroutine).
type goroutineStack struct {
	id     uint64
	status string
	frames []string
}

var goroutineHeaderPattern = regexp.MustCompile(`^goroutine (\d+) \[([^\]]*)\]:$`)

// parseStacks splits the raw text from stacks(true) into per-goroutine
// records, pairing each call line with the indented file:line that follows
// it. runtime.Stack documents that the dump always lists the calling
// goroutine's stack first, so callers can treat entry 0 as the origin.
func parseStacks(raw []byte) []goroutineStack {
	text := strings.TrimRight(string(raw), "\n")
	if text == "" {
		return nil
	}

	blocks := strings.Split(text, "\n\n")
	out := make([]goroutineStack, 0, len(blocks))
	for _, block := range blocks {
		lines := strings.Split(block, "\n")
		if len(lines) == 0 {
			continue
		}
		sub := goroutineHeaderPattern.FindStringSubmatch(strings.TrimSpace(lines[0]))
		if sub == nil {
			continue
		}
		id, _ := strconv.ParseUint(sub[1], 10, 64)
		g := goroutineStack{id: id, status: sub[2]}

		for i := 1; i < len(lines); i += 2 {
			call := strings.TrimSpace(lines[i])
			if call == "" {
				continue
			}
			loc := ""
			if i+1 < len(lines) {
				loc = strings.TrimSpace(lines[i+1])
			}
			if loc != "" {
				g.frames = append(g.frames, fmt.Sprintf("%s at %s", call, loc))
			} else {
				g.frames = append(g.frames, call)
			}
		}
		out = append(out, g)
	}
	return out
}

// callerLocation reports the file, line, and function name of the caller
// skip frames above this function, for use by the macro wrappers that need
// to attribute a Put call to its source line.
func callerLocation(skip int) (file string, line int, fn string) {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "", 0, ""
	}
	f := runtime.FuncForPC(pc)
	if f != nil {
		fn = f.Name()
	}
	return file, line, fn
}
