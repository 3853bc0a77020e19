package asynclogger

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-timecache"
)

// clock is a package-level millisecond-resolution cached clock, grounded on
// agilira-lethe's timeCache field: repeated time.Now() calls on a hot
// logging path cost a vdso syscall each; a cache refreshed on a timer
// amortizes that cost across every Put call.
var clock = timecache.NewWithResolution(time.Millisecond)

// consoleMu serializes every Logger's console write process-wide, per
// spec.md §5: "the console display is protected by a process-wide mutex so
// only one multi-byte line reaches stdout at a time."
var consoleMu sync.Mutex

// Statistics holds operational counters for a Logger, grounded on the
// teacher's Statistics (asynclogger/logger.go) but trimmed to what the
// ring/slot model can actually observe.
type Statistics struct {
	TotalLogs    atomic.Int64 // Put calls, successful or dropped
	DroppedLogs  atomic.Int64 // Put calls made before Start or after Stop
	BytesWritten atomic.Int64 // bytes successfully written to the file
	Flushes      atomic.Int64 // slot-flush operations completed
	FlushErrors  atomic.Int64 // slot-flush operations that returned a write error
	Rotations    atomic.Int64 // rotations triggered
}

// Logger is one named, independently-configured log stream: a Ring for
// lock-free concurrent append, a file it appends to, and the size-trigger
// that hands off to a RotationManager.
//
// Grounded on the teacher's Logger (asynclogger/logger.go): kept the single
// CAS-guarded "only one flusher at a time" idea (there: swapping, here:
// flushing) and the Statistics struct; replaced the double-buffer/Direct I/O
// machinery with the Ring of Slots and ordinary buffered file I/O.
type Logger struct {
	name   string
	ring   *Ring
	config Config
	stats  Statistics

	logThreshold  atomic.Int32
	dispThreshold atomic.Int32

	mu           sync.Mutex // guards file, currentSize, and rotation
	file         *os.File
	bw           *bufio.Writer
	currentSize  int64
	offsetMinute int

	rotation *RotationManager
	manager  *Manager

	flushing atomic.Bool
	started  atomic.Bool
	stopOnce atomic.Bool
	closed   atomic.Bool
}

// New validates config and allocates the ring, but performs no I/O, per
// spec.md §4.4: "new(...): configuration; no I/O." Call Start to open the
// file and begin accepting Put calls.
func New(name string, config Config) (*Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("asynclogger: invalid config: %w", err)
	}

	_, offsetSeconds := time.Now().Zone()
	offsetMinute := offsetSeconds / 60
	if config.TimezoneOffsetMinutes != nil {
		offsetMinute = *config.TimezoneOffsetMinutes
	}

	l := &Logger{
		name:         name,
		ring:         NewRing(config.RingCapacity, config.SlotSize),
		config:       config,
		offsetMinute: offsetMinute,
	}
	l.logThreshold.Store(int32(config.LogThreshold))
	l.dispThreshold.Store(int32(config.DispThreshold))
	return l, nil
}

// Name reports the logger's registered name (used by Manager for lookups).
func (l *Logger) Name() string { return l.name }

// Start opens the configured file for append, records mgr so Stop can later
// deregister, and emits the "Start logger" System record required by the
// output grammar, followed by mgr's critical info at Info level if set.
// Calling Start more than once is a no-op.
//
// Per spec.md §4.5's naming scheme the base path always holds the current
// file; RotationManager's own directory scan is what picks up numbering
// from the highest existing revision, so Start simply opens the base path
// for append.
func (l *Logger) Start(mgr *Manager) error {
	if !l.started.CompareAndSwap(false, true) {
		return nil
	}

	f, err := os.OpenFile(l.config.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l.started.Store(false)
		return fmt.Errorf("asynclogger: open %s: %w", l.config.LogFilePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		l.started.Store(false)
		return fmt.Errorf("asynclogger: stat %s: %w", l.config.LogFilePath, err)
	}

	l.mu.Lock()
	l.file = f
	l.bw = bufio.NewWriterSize(f, 64*1024)
	l.currentSize = info.Size()
	l.mu.Unlock()

	if l.config.MaxFileSize > 0 {
		l.rotation = NewRotationManager(l.config.LogFilePath, l.config.MaxFiles)
	}

	l.manager = mgr
	l.Sys(0, "Start logger")
	if mgr != nil && mgr.opts.CriticalInfo != "" {
		l.Info(0, "%s", mgr.opts.CriticalInfo)
	}
	return nil
}

// Stop emits a "Stop logger" record, drains and flushes the ring, closes the
// file, and deregisters from its Manager. Idempotent: a second call, or a
// call on a Logger that was never started, is a no-op.
func (l *Logger) Stop() error {
	if !l.started.Load() {
		return nil
	}
	if !l.stopOnce.CompareAndSwap(false, true) {
		return nil
	}

	l.Sys(0, "Stop logger")
	l.closed.Store(true)

	err := l.Sweep()

	l.mu.Lock()
	if l.rotation != nil {
		l.rotation.Close()
	}
	flushErr := l.bw.Flush()
	closeErr := l.file.Close()
	l.mu.Unlock()

	if err == nil {
		err = flushErr
	}
	if err == nil {
		err = closeErr
	}

	if l.manager != nil {
		l.manager.unregister(l.name)
	}
	return err
}

// SetLogLevel changes the file-persistence threshold at runtime. n above
// LevelTrace (6) is out of range and ignored, per spec.md §4.4.
func (l *Logger) SetLogLevel(n Level) {
	if n <= LevelTrace {
		l.logThreshold.Store(int32(n))
	}
}

// SetDispLevel changes the console-display threshold at runtime. n above
// LevelTrace (6) is out of range and ignored, per spec.md §4.4.
func (l *Logger) SetDispLevel(n Level) {
	if n <= LevelTrace {
		l.dispThreshold.Store(int32(n))
	}
}

// Put renders one record and appends it to the ring if it clears the
// log threshold, and writes it to stdout under the process-wide console
// mutex if it clears the display threshold. workerID identifies the
// calling worker for the thread-hash tag in the rendered line. A Put
// against a Logger that hasn't been Start-ed yet, or has been Stop-ed,
// counts as dropped and produces no output, per spec.md §4.4's
// "no-op ... if file is not open."
func (l *Logger) Put(workerID uint64, level Level, file string, line int, fn string, format string, args ...interface{}) {
	l.stats.TotalLogs.Add(1)

	if !l.started.Load() || l.closed.Load() {
		l.stats.DroppedLogs.Add(1)
		return
	}
	if level == LevelDisabled {
		return
	}

	logThreshold := Level(l.logThreshold.Load())
	dispThreshold := Level(l.dispThreshold.Load())
	if level > logThreshold && level > dispThreshold {
		return
	}

	body := format
	if len(args) > 0 {
		body = fmt.Sprintf(format, args...)
	}
	rec := Record{
		Level:    level,
		File:     file,
		Func:     fn,
		Line:     line,
		Body:     body,
		WorkerID: workerID,
		At:       clock.CachedTime(),
	}

	if level <= dispThreshold {
		consoleMu.Lock()
		fmt.Fprintln(os.Stdout, FormatConsole(rec))
		consoleMu.Unlock()
	}

	if level <= logThreshold {
		p := []byte(FormatFile(rec, l.offsetMinute))
		slot := l.ring.slots[l.ring.reserve()]
		// A reserved slot that still holds an unflushed record is drained by
		// this producer through Sweep (or, when another goroutine holds the
		// sweep, waited on), so Put makes progress without a background flusher.
		for !slot.tryWrite(p) {
			if slot.needsFlush() {
				l.Sweep()
			}
			runtime.Gosched()
		}
	}
}

// Sweep drains every DIRTY slot in the ring to the file, in circular order
// starting at the current write cursor, per spec.md §4.2's flusher
// contract. Only one goroutine may sweep a given Logger at a time; a
// concurrent caller's Sweep returns immediately without error.
//
// Grounded on the teacher's trySwap/flushWorker pair in logger.go: "only one
// flush in flight" becomes a CAS on flushing instead of a channel handoff.
func (l *Logger) Sweep() error {
	if !l.flushing.CompareAndSwap(false, true) {
		return nil
	}
	defer l.flushing.Store(false)

	slots := l.ring.Slots()
	n := len(slots)
	start := int(l.ring.Cursor()) % n

	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	wrote := false
	var swept int64
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		slot := slots[idx]
		if !slot.needsFlush() {
			continue
		}

		ok, err := slot.tryFlush(func(p []byte) error {
			nw, werr := l.bw.Write(p)
			l.currentSize += int64(nw)
			swept += int64(nw)
			return werr
		})
		if !ok {
			continue
		}
		wrote = true
		l.stats.Flushes.Add(1)
		if err != nil {
			l.stats.FlushErrors.Add(1)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if wrote {
		if err := l.bw.Flush(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			l.stats.BytesWritten.Add(swept)
		}
	}

	if l.rotation != nil && l.currentSize >= l.config.MaxFileSize {
		if err := l.rotateLocked(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// rotateLocked performs a size-triggered rotation. l.mu must be held.
func (l *Logger) rotateLocked() error {
	if err := l.bw.Flush(); err != nil {
		return err
	}
	if err := l.file.Close(); err != nil {
		return err
	}

	if err := l.rotation.Rotate(); err != nil {
		// Reopen regardless so the logger keeps accepting writes even if
		// rotation bookkeeping failed.
		f, reopenErr := os.OpenFile(l.config.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if reopenErr == nil {
			l.file = f
			l.bw = bufio.NewWriterSize(f, 64*1024)
		} else {
			l.closed.Store(true)
			log.Println("asynclogger: reopen", l.config.LogFilePath, "after rotation failed:", reopenErr)
		}
		return err
	}
	l.stats.Rotations.Add(1)

	f, err := os.OpenFile(l.config.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		// Leave the Logger file-closed: later Put calls are dropped.
		l.closed.Store(true)
		log.Println("asynclogger: reopen", l.config.LogFilePath, "after rotation failed:", err)
		return err
	}
	l.file = f
	l.bw = bufio.NewWriterSize(f, 64*1024)
	l.currentSize = 0
	return nil
}

// TotalLogs, DroppedLogs, BytesWritten, Flushes, FlushErrors, Rotations
// expose individual counters (atomic.Int64 can't be copied by value, so
// there's no single StatsSnapshot accessor).
func (l *Logger) TotalLogs() int64    { return l.stats.TotalLogs.Load() }
func (l *Logger) DroppedLogs() int64  { return l.stats.DroppedLogs.Load() }
func (l *Logger) BytesWritten() int64 { return l.stats.BytesWritten.Load() }
func (l *Logger) Flushes() int64      { return l.stats.Flushes.Load() }
func (l *Logger) FlushErrors() int64  { return l.stats.FlushErrors.Load() }
func (l *Logger) Rotations() int64    { return l.stats.Rotations.Load() }
