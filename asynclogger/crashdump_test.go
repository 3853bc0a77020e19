package asynclogger

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStacks_CapturesCurrentGoroutine(t *testing.T) {
	trace := stacks(false)
	assert.Contains(t, string(trace), "goroutine")
}

func TestParseStacks_SplitsBlocksAndMarksOrigin(t *testing.T) {
	raw := stacks(true)
	parsed := parseStacks(raw)
	require.NotEmpty(t, parsed)
	assert.NotZero(t, parsed[0].id)
	assert.NotEmpty(t, parsed[0].frames)
}

func TestCrashHandler_WriteDump(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(ManagerOptions{
		FlushInterval: time.Hour,
		CrashDumpDir:  dir,
		CriticalInfo:  "service=checkout region=us-east-1",
	})
	defer m.Shutdown()

	id, untrack := m.TrackWorker("request-handler-3")
	defer untrack()
	_ = id

	m.crashHandler.writeDump("test reason")

	matches, err := filepath.Glob(filepath.Join(dir, "dump_*.txt"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	text := string(content)

	assert.True(t, strings.HasPrefix(text, "When: "))
	assert.Contains(t, text, "Reason: test reason")
	assert.Contains(t, text, "service=checkout region=us-east-1")
	assert.Contains(t, text, "request-handler-3")
	assert.Contains(t, text, "captured")
	assert.Contains(t, text, "active threads")
	assert.Contains(t, text, "(crashed here)")
}

func TestCrashHandler_Crash_FlushesAndCollapsesDisplay(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(ManagerOptions{FlushInterval: time.Hour, CrashDumpDir: dir})
	defer m.Shutdown()

	dir1 := t.TempDir()
	cfg1 := DefaultConfig(filepath.Join(dir1, "a.log"))
	cfg1.LogThreshold = LevelFatal
	l1, err := m.GetOrCreate("a", cfg1)
	require.NoError(t, err)

	dir2 := t.TempDir()
	cfg2 := DefaultConfig(filepath.Join(dir2, "b.log"))
	cfg2.LogThreshold = LevelFatal
	l2, err := m.GetOrCreate("b", cfg2)
	require.NoError(t, err)

	m.crashHandler.crash("test crash")

	data1, err := os.ReadFile(cfg1.LogFilePath)
	require.NoError(t, err)
	data2, err := os.ReadFile(cfg2.LogFilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data1), "test crash")
	assert.Contains(t, string(data2), "test crash")

	names := m.Names()
	sort.Strings(names)
	if names[0] == "a" {
		assert.Equal(t, int32(LevelDisabled), l2.dispThreshold.Load())
	} else {
		assert.Equal(t, int32(LevelDisabled), l1.dispThreshold.Load())
	}

	matches, err := filepath.Glob(filepath.Join(dir, "dump_*.txt"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestRecoverAndDump_RePanicsAfterWritingDump(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(ManagerOptions{FlushInterval: time.Hour, CrashDumpDir: dir})
	defer m.Shutdown()

	panicked := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
			}
		}()
		func() {
			defer RecoverAndDump(m)
			panic("boom")
		}()
	}()

	assert.True(t, panicked, "RecoverAndDump must re-panic so the process still crashes normally")

	matches, err := filepath.Glob(filepath.Join(dir, "dump_*.txt"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "panic: boom")
}
