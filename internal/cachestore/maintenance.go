package cachestore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Maintainer periodically sweeps a DiskStore's root for orphaned
// ".tmp-<pid>" files left behind by a process that crashed between
// WriteAtomic's os.Create and its os.Rename. It never touches a
// finished ".tile" file. Grounded on the teacher's
// internal/services/rollup_scheduler.go: the same hourly-tick plus
// debounced-immediate-trigger shape, repurposed from a Postgres stats
// rollup to a disk-cache janitor.
type Maintainer struct {
	root     string
	log      *slog.Logger
	interval time.Duration

	mu               sync.Mutex
	running          bool
	lastRun          time.Time
	lastSwept        int
	debounceTimer    *time.Timer
	debounceDuration time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewMaintainer(root string, interval time.Duration, log *slog.Logger) *Maintainer {
	if log == nil {
		log = slog.Default()
	}
	return &Maintainer{
		root:             root,
		log:              log,
		interval:         interval,
		debounceDuration: 5 * time.Second,
		stopChan:         make(chan struct{}),
	}
}

// Start begins the background sweep loop: once immediately, then every
// interval until Stop or ctx is cancelled.
func (m *Maintainer) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.worker(ctx)
	m.log.Info("cache maintainer started", "interval", m.interval, "root", m.root)
}

func (m *Maintainer) worker(ctx context.Context) {
	defer m.wg.Done()
	m.runSweep(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.runSweep(ctx)
		}
	}
}

// TriggerDebounced schedules a sweep after a quiet period, coalescing
// rapid successive calls (e.g. one per cancelled query that leaves
// behind a stale temp write) into a single pass.
func (m *Maintainer) TriggerDebounced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	m.debounceTimer = time.AfterFunc(m.debounceDuration, func() {
		m.runSweep(context.Background())
	})
}

func (m *Maintainer) runSweep(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	start := time.Now()
	swept, err := m.sweepTmpFiles()

	m.mu.Lock()
	m.running = false
	m.lastRun = time.Now()
	m.lastSwept = swept
	m.mu.Unlock()

	if err != nil {
		m.log.Error("cache maintenance sweep failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	if swept > 0 {
		m.log.Info("cache maintenance swept orphaned temp files", "count", swept, "duration_ms", time.Since(start).Milliseconds())
	}
}

func (m *Maintainer) sweepTmpFiles() (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, err
	}
	swept := 0
	cutoff := time.Now().Add(-m.interval)
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), ".tmp-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue // still plausibly an in-progress write
		}
		if err := os.Remove(filepath.Join(m.root, e.Name())); err == nil {
			swept++
		}
	}
	return swept, nil
}

// Status reports the maintainer's last sweep outcome.
func (m *Maintainer) Status() (lastRun time.Time, running bool, lastSwept int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRun, m.running, m.lastSwept
}

// Stop signals the worker to exit and waits for it.
func (m *Maintainer) Stop() {
	close(m.stopChan)
	m.wg.Wait()
	m.mu.Lock()
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	m.mu.Unlock()
}
