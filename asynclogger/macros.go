package asynclogger

// Sys, Fatal, Err, Warn, Info, Debug, and Trace are the per-level
// convenience wrappers around Put, mirroring the original logger's
// level-named logging macros. Each one resolves the caller's file/line/
// function only if the level would actually be persisted or displayed, so
// a disabled level costs one threshold comparison and nothing else.
func (l *Logger) log(workerID uint64, level Level, format string, args ...interface{}) {
	logThreshold := Level(l.logThreshold.Load())
	dispThreshold := Level(l.dispThreshold.Load())
	if level > logThreshold && level > dispThreshold {
		return
	}
	file, line, fn := callerLocation(2)
	l.Put(workerID, level, file, line, fn, format, args...)
}

func (l *Logger) Sys(workerID uint64, format string, args ...interface{}) {
	l.log(workerID, LevelSystem, format, args...)
}

func (l *Logger) Fatal(workerID uint64, format string, args ...interface{}) {
	l.log(workerID, LevelFatal, format, args...)
}

func (l *Logger) Err(workerID uint64, format string, args ...interface{}) {
	l.log(workerID, LevelError, format, args...)
}

func (l *Logger) Warn(workerID uint64, format string, args ...interface{}) {
	l.log(workerID, LevelWarning, format, args...)
}

func (l *Logger) Info(workerID uint64, format string, args ...interface{}) {
	l.log(workerID, LevelInfo, format, args...)
}

func (l *Logger) Debug(workerID uint64, format string, args ...interface{}) {
	l.log(workerID, LevelDebug, format, args...)
}

func (l *Logger) Trace(workerID uint64, format string, args ...interface{}) {
	l.log(workerID, LevelTrace, format, args...)
}
