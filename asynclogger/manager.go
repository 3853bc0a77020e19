package asynclogger

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Manager is the process-wide registry of Loggers plus the background
// flusher and crash handler that operate across all of them, per spec.md
// §2 ("one flusher thread serves every ring in the process") and §7 (the
// crash handler walks every registered worker).
//
// Grounded on the teacher's LoggerManager (asynclogger/logger_manager.go):
// the sync.Map-of-named-loggers registry and LoadOrStore-guarded
// getOrCreateLogger are kept; the per-event-log-file concept becomes
// "named Logger streams" under one shared flusher and crash handler
// instead of one LoggerManager per event category.
type Manager struct {
	opts ManagerOptions

	loggers sync.Map // name (string) -> *Logger

	workers    sync.Map // workerID (uint64) -> string (worker label)
	nextWorker atomic.Uint64

	flushStop chan struct{}
	flushDone chan struct{}

	crashHandler *crashHandler

	closed atomic.Bool
}

var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// Default returns the process-wide Manager, constructing it on first use
// with zero-value ManagerOptions (500ms flush interval, 2 compression
// workers, no crash dump directory).
func Default() *Manager {
	defaultManagerOnce.Do(func() {
		defaultManager = NewManager(ManagerOptions{})
	})
	return defaultManager
}

// NewManager constructs a Manager, starts its background flusher, and
// installs its crash handler. Most processes should use Default(); NewManager
// exists for tests and for processes that need more than one independently
// configured manager.
func NewManager(opts ManagerOptions) *Manager {
	opts.setDefaults()

	m := &Manager{
		opts:      opts,
		flushStop: make(chan struct{}),
		flushDone: make(chan struct{}),
	}

	m.crashHandler = newCrashHandler(m)
	m.crashHandler.install()

	go m.flushLoop()

	return m
}

// sanitizeLoggerName keeps names usable as filenames-under-a-directory,
// grounded on the teacher's sanitizeEventName.
func sanitizeLoggerName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("asynclogger: logger name cannot be empty")
	}
	const invalid = `/\:*?"<>|`
	out := make([]rune, 0, len(name))
	for _, r := range name {
		skip := false
		for _, bad := range invalid {
			if r == bad {
				skip = true
				break
			}
		}
		if skip || r == ' ' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	if len(out) > 255 {
		out = out[:255]
	}
	return string(out), nil
}

// GetOrCreate returns the named Logger, creating it from config on first
// use. Safe for concurrent callers; only one Logger is ever created per name.
func (m *Manager) GetOrCreate(name string, config Config) (*Logger, error) {
	sanitized, err := sanitizeLoggerName(name)
	if err != nil {
		return nil, err
	}

	if existing, ok := m.loggers.Load(sanitized); ok {
		return existing.(*Logger), nil
	}

	logger, err := New(sanitized, config)
	if err != nil {
		return nil, fmt.Errorf("asynclogger: create logger %q: %w", sanitized, err)
	}

	actual, loaded := m.loggers.LoadOrStore(sanitized, logger)
	if loaded {
		// Another caller already claimed this name; our logger never did
		// any I/O (New is inert), so there's nothing to undo.
		return actual.(*Logger), nil
	}

	if err := logger.Start(m); err != nil {
		m.loggers.Delete(sanitized)
		return nil, fmt.Errorf("asynclogger: start logger %q: %w", sanitized, err)
	}
	return logger, nil
}

// unregister backs Logger.Stop's "deregisters from Manager" side effect.
func (m *Manager) unregister(name string) {
	m.loggers.Delete(name)
}

// Logger returns a previously created named Logger, or false if none exists.
func (m *Manager) Logger(name string) (*Logger, bool) {
	sanitized, err := sanitizeLoggerName(name)
	if err != nil {
		return nil, false
	}
	v, ok := m.loggers.Load(sanitized)
	if !ok {
		return nil, false
	}
	return v.(*Logger), true
}

// CloseLogger closes and unregisters the named Logger.
func (m *Manager) CloseLogger(name string) error {
	sanitized, err := sanitizeLoggerName(name)
	if err != nil {
		return err
	}
	v, ok := m.loggers.Load(sanitized)
	if !ok {
		return fmt.Errorf("asynclogger: logger not found: %s", sanitized)
	}
	return v.(*Logger).Stop() // Stop deregisters itself
}

// TrackWorker registers the calling goroutine/thread as a named worker so
// the crash dump lists it by id and label, and returns an
// untrack function the caller must invoke (typically via defer) when the
// worker exits.
//
// Go has no destructor-bearing thread-local storage, unlike the pthread
// key-with-destructor the original logger used to auto-deregister exiting
// threads; this explicit RAII-style guard is the idiomatic replacement.
func (m *Manager) TrackWorker(label string) (id uint64, untrack func()) {
	id = m.nextWorker.Add(1)
	m.workers.Store(id, label)
	return id, func() { m.workers.Delete(id) }
}

// workerLabels returns a snapshot of id->label for every tracked worker,
// used by the crash handler to annotate the dump.
func (m *Manager) workerLabels() map[uint64]string {
	out := make(map[uint64]string)
	m.workers.Range(func(k, v interface{}) bool {
		out[k.(uint64)] = v.(string)
		return true
	})
	return out
}

// flushLoop sweeps every registered Logger every FlushInterval, per
// spec.md §2/§4.6's single background flusher.
func (m *Manager) flushLoop() {
	defer close(m.flushDone)
	ticker := time.NewTicker(m.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweepAll()
		case <-m.flushStop:
			return
		}
	}
}

func (m *Manager) sweepAll() {
	m.loggers.Range(func(_, v interface{}) bool {
		v.(*Logger).Sweep()
		return true
	})
}

// Shutdown stops the flusher, uninstalls the crash handler, and closes
// every registered Logger, flushing pending data first.
func (m *Manager) Shutdown() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(m.flushStop)
	<-m.flushDone

	m.crashHandler.uninstall()

	var firstErr error
	m.loggers.Range(func(k, v interface{}) bool {
		if err := v.(*Logger).Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("asynclogger: stop logger %q: %w", k.(string), err)
		}
		return true
	})

	return firstErr
}

// Names returns the names of every currently registered Logger.
func (m *Manager) Names() []string {
	names := make([]string, 0)
	m.loggers.Range(func(k, _ interface{}) bool {
		names = append(names, k.(string))
		return true
	})
	return names
}
