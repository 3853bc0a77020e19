// Command logdemo exercises asynclogger's full lifecycle: a named logger
// under the process-wide Manager, a handful of tracked worker goroutines
// logging concurrently, rotation triggered by a small MaxFileSize, and a
// graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/greensky00/simple-logger/asynclogger"
)

func main() {
	var (
		logDir     = flag.String("log-dir", ".", "directory for the demo log file and rotated revisions")
		name       = flag.String("name", "demo", "logger name, also used as the log file's base name")
		workers    = flag.Int("workers", 8, "number of concurrent worker goroutines emitting log lines")
		maxSize    = flag.Int64("max-file-size", 1<<20, "bytes before rotation triggers (0 disables rotation)")
		maxFiles   = flag.Int("max-files", 5, "rotated revisions to retain")
		crashDumpDir = flag.String("crash-dump-dir", os.TempDir(), "directory for crash dump files")
	)
	flag.Parse()

	path := filepath.Join(*logDir, *name+".log")
	cfg := asynclogger.DefaultConfig(path)
	cfg.MaxFileSize = *maxSize
	cfg.MaxFiles = *maxFiles

	mgr := asynclogger.NewManager(asynclogger.ManagerOptions{
		CriticalInfo: fmt.Sprintf("logdemo pid=%d", os.Getpid()),
		CrashDumpDir: *crashDumpDir,
	})

	logger, err := mgr.GetOrCreate(*name, cfg)
	if err != nil {
		log.Fatalf("logdemo: create logger: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go runWorker(mgr, logger, i, done, &wg)
	}

	log.Printf("logdemo: writing to %s with %d workers (Ctrl-C to stop)", path, *workers)
	<-stop
	log.Println("logdemo: shutting down")

	close(done)
	wg.Wait()

	if err := mgr.Shutdown(); err != nil {
		log.Fatalf("logdemo: shutdown: %v", err)
	}
}

func runWorker(mgr *asynclogger.Manager, logger *asynclogger.Logger, idx int, done <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	id, untrack := mgr.TrackWorker(fmt.Sprintf("worker-%d", idx))
	defer untrack()
	defer asynclogger.RecoverAndDump(mgr)

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			n++
			logger.Info(id, "worker %d heartbeat #%d", idx, n)
			if n%97 == 0 {
				logger.Warn(id, "worker %d slow tick at #%d", idx, n)
			}
		}
	}
}
