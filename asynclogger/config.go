package asynclogger

import (
	"fmt"
	"time"
)

// Level is the log-level taxonomy from System (most severe) to Trace (most verbose).
// -1 disables a threshold entirely.
type Level int

const (
	LevelSystem Level = iota
	LevelFatal
	LevelError
	LevelWarning
	LevelInfo
	LevelDebug
	LevelTrace
)

// LevelDisabled is the sentinel threshold value meaning "never persist/display".
const LevelDisabled Level = -1

func (l Level) tag4() string {
	switch l {
	case LevelSystem:
		return "===="
	case LevelFatal:
		return "FATL"
	case LevelError:
		return "ERRO"
	case LevelWarning:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBG"
	case LevelTrace:
		return "TRAC"
	default:
		return "????"
	}
}

// Config holds the per-Logger configuration: where it writes, how big the
// ring is, and the rotation/retention policy for the underlying file.
type Config struct {
	// LogFilePath is the path to the active log file (required).
	LogFilePath string

	// RingCapacity is the number of slots in the logger's ring (default: 4096).
	RingCapacity int

	// SlotSize is the byte capacity of a single slot's message buffer
	// (default: 4096, per spec.md's recommended message slot size).
	SlotSize int

	// FlushTimeout is validated and defaulted (default: 10ms) but not read
	// by Sweep: a sweep never waits on a slot that is still being written,
	// it skips it and leaves it for a later sweep.
	FlushTimeout time.Duration

	// MaxFileSize is the size in bytes that triggers rotation. 0 disables
	// rotation (default: 0, i.e. disabled, matching spec.md's "0 disables rotation").
	MaxFileSize int64

	// MaxFiles bounds how many rotated revisions (compressed or not) are
	// retained on disk. 0 disables retention trimming.
	MaxFiles int

	// LogThreshold is the maximum Level persisted to the file (default: LevelInfo).
	LogThreshold Level

	// DispThreshold is the maximum Level written to the console (default: LevelWarning).
	DispThreshold Level

	// TimezoneOffsetMinutes, when non-nil, pins the Formatter's ±HH:MM
	// offset instead of deriving it from the local zone at construction.
	TimezoneOffsetMinutes *int
}

// DefaultConfig returns a Config with baseline defaults. logPath is required.
func DefaultConfig(logPath string) Config {
	return Config{
		LogFilePath:   logPath,
		RingCapacity:  4096,
		SlotSize:      4096,
		FlushTimeout:  10 * time.Millisecond,
		MaxFileSize:   0,
		MaxFiles:      0,
		LogThreshold:  LevelInfo,
		DispThreshold: LevelWarning,
	}
}

// Validate checks the configuration and fills in defaults for any zero-valued
// field that has one, mirroring the teacher's defaulting-not-just-erroring style.
func (c *Config) Validate() error {
	if c.LogFilePath == "" {
		return fmt.Errorf("LogFilePath is required")
	}

	if c.RingCapacity <= 0 {
		c.RingCapacity = 4096
	}
	if c.SlotSize <= 0 {
		c.SlotSize = 4096
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = 10 * time.Millisecond
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("MaxFileSize must be >= 0 (0 disables rotation)")
	}
	if c.MaxFiles < 0 {
		return fmt.Errorf("MaxFiles must be >= 0 (0 disables retention trimming)")
	}
	if c.LogThreshold < LevelDisabled || c.LogThreshold > LevelTrace {
		return fmt.Errorf("LogThreshold out of range [-1,6]: %d", c.LogThreshold)
	}
	if c.DispThreshold < LevelDisabled || c.DispThreshold > LevelTrace {
		return fmt.Errorf("DispThreshold out of range [-1,6]: %d", c.DispThreshold)
	}

	return nil
}

// ManagerOptions configures the process-wide Manager singleton.
type ManagerOptions struct {
	// CriticalInfo is emitted at Error level into every logger, and into
	// the crash dump file, at the start of crash handling.
	CriticalInfo string

	// CrashDumpDir, when non-empty, is where crash dump files are written.
	CrashDumpDir string

	// FlushInterval is how often the background flusher sweeps every
	// registered Logger (default: 500ms, per spec.md §2/§4.6).
	FlushInterval time.Duration

	// CompressionWorkers is defaulted to 2 (agilira-lethe's BackgroundWorkers
	// default) but is not read elsewhere: each Logger's RotationManager runs
	// its own pool of 2 workers regardless of this value.
	CompressionWorkers int
}

func (o *ManagerOptions) setDefaults() {
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	if o.CompressionWorkers <= 0 {
		o.CompressionWorkers = 2
	}
}
