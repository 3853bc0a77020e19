package asynclogger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(ManagerOptions{FlushInterval: 10 * time.Millisecond})
	t.Cleanup(func() { m.Shutdown() })
	return m
}

func TestManager_GetOrCreate(t *testing.T) {
	t.Run("CreatesOnFirstCallReturnsSameAfter", func(t *testing.T) {
		dir := t.TempDir()
		m := newTestManager(t)
		cfg := DefaultConfig(filepath.Join(dir, "svc.log"))

		l1, err := m.GetOrCreate("svc", cfg)
		require.NoError(t, err)
		l2, err := m.GetOrCreate("svc", cfg)
		require.NoError(t, err)
		assert.Same(t, l1, l2)
	})

	t.Run("SanitizesUnsafeCharactersInName", func(t *testing.T) {
		dir := t.TempDir()
		m := newTestManager(t)
		cfg := DefaultConfig(filepath.Join(dir, "x.log"))
		_, err := m.GetOrCreate("pay/ment:svc", cfg)
		require.NoError(t, err)
		assert.Contains(t, m.Names(), "pay_ment_svc")
	})
}

func TestManager_BackgroundFlusherSweepsRegisteredLoggers(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t)
	cfg := DefaultConfig(filepath.Join(dir, "svc.log"))
	l, err := m.GetOrCreate("svc", cfg)
	require.NoError(t, err)

	l.Put(1, LevelInfo, "", 0, "", "message")

	assert.Eventually(t, func() bool {
		return l.Flushes() > 0
	}, time.Second, 5*time.Millisecond)
}

func TestManager_TrackWorker(t *testing.T) {
	m := newTestManager(t)

	id, untrack := m.TrackWorker("reader-1")
	assert.NotZero(t, id)
	assert.Equal(t, map[uint64]string{id: "reader-1"}, m.workerLabels())

	untrack()
	assert.Empty(t, m.workerLabels())
}

func TestManager_Shutdown(t *testing.T) {
	t.Run("IsIdempotent", func(t *testing.T) {
		dir := t.TempDir()
		m := NewManager(ManagerOptions{FlushInterval: 10 * time.Millisecond})
		cfg := DefaultConfig(filepath.Join(dir, "svc.log"))
		_, err := m.GetOrCreate("svc", cfg)
		require.NoError(t, err)

		require.NoError(t, m.Shutdown())
		require.NoError(t, m.Shutdown())
	})

	t.Run("ClosesRegisteredLoggers", func(t *testing.T) {
		dir := t.TempDir()
		m := NewManager(ManagerOptions{FlushInterval: 10 * time.Millisecond})
		cfg := DefaultConfig(filepath.Join(dir, "svc.log"))
		_, err := m.GetOrCreate("svc", cfg)
		require.NoError(t, err)

		require.NoError(t, m.Shutdown())
		assert.Empty(t, m.Names())
	})
}
