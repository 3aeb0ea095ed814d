// Package sensor polls disk and heap usage while the pipeline runs and
// logs alerts when usage crosses configured thresholds. Alerts fire once
// on crossing and clear only after usage stays low for a recovery window.
package sensor

import (
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"logremap/pkg/config"
	"logremap/pkg/logger"
)

// Sensor watches the filesystem holding a target path plus the process
// heap. Start launches the poll loop; Stop halts it and waits.
type Sensor struct {
	cfg  config.SensorConfig
	path string

	statfs  func(path string, st *unix.Statfs_t) error
	readMem func(m *runtime.MemStats)

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu            sync.Mutex
	diskAlert     bool
	memAlert      bool
	lastDiskAlert time.Time
	lastMemAlert  time.Time
}

// New builds a sensor that samples the filesystem containing path. An
// empty path falls back to the working directory.
func New(cfg config.SensorConfig, path string) *Sensor {
	if path == "" {
		path = "."
	}
	return &Sensor{
		cfg:     cfg,
		path:    path,
		statfs:  unix.Statfs,
		readMem: runtime.ReadMemStats,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the poll loop.
func (s *Sensor) Start() {
	s.wg.Add(1)
	go s.run()
	logger.Info("sensor_started", "path", s.path, "poll_interval", time.Duration(s.cfg.PollInterval).String())
}

// Stop halts polling and waits for the loop to exit.
func (s *Sensor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// Alerts reports the current alert state.
func (s *Sensor) Alerts() (disk, mem bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diskAlert, s.memAlert
}

func (s *Sensor) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Duration(s.cfg.PollInterval))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.check(time.Now())
		case <-s.stopCh:
			return
		}
	}
}

// check samples disk and heap usage once and updates alert state.
func (s *Sensor) check(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st unix.Statfs_t
	if err := s.statfs(s.path, &st); err != nil {
		logger.Error("sensor_statfs_failed", "path", s.path, "error", err)
	} else if st.Blocks > 0 {
		avail := st.Bavail * uint64(st.Bsize)
		total := st.Blocks * uint64(st.Bsize)
		s.checkDisk(now, float64(total-avail)/float64(total)*100)
	}

	var m runtime.MemStats
	s.readMem(&m)
	if m.HeapSys > 0 {
		s.checkMem(now, float64(m.HeapInuse)/float64(m.HeapSys)*100)
	}
}

func (s *Sensor) checkDisk(now time.Time, usedPct float64) {
	if usedPct > float64(s.cfg.DiskHighPct) {
		if !s.diskAlert {
			logger.Warn("disk_usage_high", "path", s.path, "used_pct", usedPct, "threshold_pct", s.cfg.DiskHighPct)
			s.diskAlert = true
			s.lastDiskAlert = now
		}
	} else if s.diskAlert && usedPct < float64(s.cfg.DiskLowPct) {
		if now.Sub(s.lastDiskAlert) >= time.Duration(s.cfg.RecoveryWindow) {
			logger.Info("disk_usage_recovered", "path", s.path, "used_pct", usedPct, "threshold_pct", s.cfg.DiskLowPct)
			s.diskAlert = false
		}
	}
}

func (s *Sensor) checkMem(now time.Time, usedPct float64) {
	if usedPct > float64(s.cfg.MemHighPct) {
		if !s.memAlert {
			logger.Warn("memory_usage_high", "used_pct", usedPct, "threshold_pct", s.cfg.MemHighPct)
			s.memAlert = true
			s.lastMemAlert = now
		}
	} else if s.memAlert {
		if now.Sub(s.lastMemAlert) >= time.Duration(s.cfg.RecoveryWindow) {
			logger.Info("memory_usage_recovered", "used_pct", usedPct, "threshold_pct", s.cfg.MemHighPct)
			s.memAlert = false
		}
	}
}
