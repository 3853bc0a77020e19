package asynclogger

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// RotationManager owns the size-triggered rotation, async compression, and
// retention trimming for one log file, per spec.md §5.
//
// Grounded on agilira-lethe/rotation.go: performRotation's
// close-rename-reopen sequence becomes Rotate (the reopen step itself lives
// in Logger.rotateLocked, since only the Logger holds the live *os.File);
// generateBackupName's timestamp scheme becomes a monotonic numeric
// revision per spec.md's "<path>.N" naming; compressFile's
// gzip-to-temp-then-atomic-rename becomes compressToArchive, switched from
// a bare .gz to a .tar.gz so the archive preserves the original member name;
// cleanupOldFiles becomes trimRetention; BackgroundWorkers becomes
// compressionPool.
type RotationManager struct {
	path     string
	maxFiles int

	mu      sync.Mutex
	nextRev int

	pool *compressionPool
}

var revisionPattern = regexp.MustCompile(`\.(\d+)(?:\.tar\.gz)?$`)

// NewRotationManager scans path's directory for existing "<path>.N" and
// "<path>.N.tar.gz" revisions so a restarted process continues numbering
// from the highest one found, rather than risking an overwrite.
func NewRotationManager(path string, maxFiles int) *RotationManager {
	rm := &RotationManager{
		path:     path,
		maxFiles: maxFiles,
		pool:     newCompressionPool(2),
	}
	rm.nextRev = rm.discoverNextRevision()
	return rm
}

func (rm *RotationManager) discoverNextRevision() int {
	matches, err := filepath.Glob(rm.path + ".*")
	if err != nil {
		return 1
	}
	highest := 0
	for _, m := range matches {
		sub := revisionPattern.FindStringSubmatch(m)
		if sub == nil {
			continue
		}
		n, err := strconv.Atoi(sub[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1
}

// Rotate renames the active file to its next numeric revision and submits
// background compression and retention-trim tasks. The caller is
// responsible for closing the active file first and reopening a fresh one
// after Rotate returns, since the *os.File handle is owned by the Logger.
func (rm *RotationManager) Rotate() error {
	rm.mu.Lock()
	rev := rm.nextRev
	rm.nextRev++
	rm.mu.Unlock()

	backupName := fmt.Sprintf("%s.%d", rm.path, rev)
	if err := os.Rename(rm.path, backupName); err != nil {
		return fmt.Errorf("asynclogger: rotate rename %s: %w", rm.path, err)
	}

	rm.pool.submit(func() { rm.compressToArchive(backupName) })
	rm.pool.submit(func() { rm.trimRetention() })

	return nil
}

// compressToArchive wraps backupName in a single-member tar.gz, writing to
// a .tmp sibling first and renaming atomically so a crash mid-compression
// never leaves a half-written archive in place of a readable source file,
// per the crash-consistency note in agilira-lethe's compressFile.
func (rm *RotationManager) compressToArchive(backupName string) {
	archiveName := backupName + ".tar.gz"
	tempName := archiveName + ".tmp"

	src, err := os.Open(backupName)
	if err != nil {
		return
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return
	}

	dst, err := os.Create(tempName)
	if err != nil {
		return
	}

	gz := gzip.NewWriter(dst)
	tw := tar.NewWriter(gz)

	hdr := &tar.Header{
		Name: filepath.Base(backupName),
		Mode: int64(info.Mode().Perm()),
		Size: info.Size(),
	}

	writeErr := tw.WriteHeader(hdr)
	if writeErr == nil {
		_, writeErr = io.Copy(tw, src)
	}
	if writeErr == nil {
		writeErr = tw.Close()
	}
	if writeErr == nil {
		writeErr = gz.Close()
	}
	closeErr := dst.Close()

	if writeErr != nil || closeErr != nil {
		os.Remove(tempName)
		return
	}

	if err := os.Rename(tempName, archiveName); err != nil {
		os.Remove(tempName)
		return
	}

	os.Remove(backupName)
}

type revisionFile struct {
	path string
	rev  int
}

// trimRetention keeps at most maxFiles rotated revisions (compressed or
// not), removing the oldest by revision number first.
func (rm *RotationManager) trimRetention() {
	if rm.maxFiles <= 0 {
		return
	}

	matches, err := filepath.Glob(rm.path + ".*")
	if err != nil {
		return
	}

	var files []revisionFile
	for _, m := range matches {
		sub := revisionPattern.FindStringSubmatch(m)
		if sub == nil {
			continue
		}
		n, err := strconv.Atoi(sub[1])
		if err != nil {
			continue
		}
		files = append(files, revisionFile{path: m, rev: n})
	}

	if len(files) <= rm.maxFiles {
		return
	}

	sort.Slice(files, func(i, j int) bool { return files[i].rev < files[j].rev })

	excess := len(files) - rm.maxFiles
	for i := 0; i < excess; i++ {
		os.Remove(files[i].path)
	}
}

// Close stops the compression worker pool, waiting for queued tasks to drain.
func (rm *RotationManager) Close() {
	rm.pool.stop()
}

// Wait blocks until every queued and in-flight compression/retention task
// has finished, without stopping the pool's workers. Grounded on
// agilira-lethe's BackgroundWorkers.waitForCompletion: an atomic
// outstanding-job gauge, polled until it drains, lets a caller (Manager
// shutdown, a test) observe "background compression is caught up" without
// tearing the pool down.
func (rm *RotationManager) Wait() {
	rm.pool.waitForCompletion()
}

// compressionPool is a small bounded worker pool for rotation's background
// work, grounded on agilira-lethe's BackgroundWorkers: a buffered task
// queue, a fixed worker count, and a stopOnce-guarded shutdown.
type compressionPool struct {
	tasks       chan func()
	done        chan struct{}
	wg          sync.WaitGroup
	activeTasks atomic.Int64
	stopOnce    sync.Once
}

func newCompressionPool(workers int) *compressionPool {
	if workers <= 0 {
		workers = 2
	}
	p := &compressionPool{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *compressionPool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case task := <-p.tasks:
			task()
			p.activeTasks.Add(-1)
		}
	}
}

// submit counts task as outstanding (queued or running) before attempting
// to enqueue it, and backs the count out again if it never got queued, so
// activeTasks always reflects work waitForCompletion still has to see
// finish.
func (p *compressionPool) submit(task func()) {
	p.activeTasks.Add(1)
	select {
	case p.tasks <- task:
	case <-p.done:
		p.activeTasks.Add(-1)
	default:
		// Queue full: drop rather than block the rotating Logger, matching
		// agilira-lethe's safeSubmitTask non-blocking submit.
		p.activeTasks.Add(-1)
	}
}

// waitForCompletion busy-polls activeTasks down to zero, grounded on
// agilira-lethe's BackgroundWorkers.waitForCompletion.
func (p *compressionPool) waitForCompletion() {
	for p.activeTasks.Load() > 0 {
		time.Sleep(time.Millisecond)
	}
}

// stop drains every queued/in-flight task before tearing down the worker
// goroutines, so shutdown genuinely blocks until background compression is
// caught up rather than racing workers' exit against undrained work.
func (p *compressionPool) stop() {
	p.stopOnce.Do(func() {
		p.waitForCompletion()
		close(p.done)
		p.wg.Wait()
	})
}
