package metrics

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// Sampler periodically records process-level resource usage into the
// Prometheus gauges. One sampler runs per process.
type Sampler struct {
	proc     *process.Process
	interval time.Duration
	logger   zerolog.Logger
}

// NewSampler creates a process resource sampler. A nil proc (lookup
// failure) disables CPU/memory gauges but keeps the goroutine gauge.
func NewSampler(interval time.Duration, logger zerolog.Logger) *Sampler {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get process info, resource gauges disabled")
		proc = nil
	}

	return &Sampler{
		proc:     proc,
		interval: interval,
		logger:   logger.With().Str("component", "metrics_sampler").Logger(),
	}
}

// Run samples until ctx is cancelled. Call in its own goroutine.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	Goroutines.Set(float64(runtime.NumGoroutine()))

	if s.proc == nil {
		return
	}
	if cpuPct, err := s.proc.CPUPercent(); err == nil {
		ProcessCPUPercent.Set(cpuPct)
	}
	if memInfo, err := s.proc.MemoryInfo(); err == nil {
		ProcessMemoryMB.Set(float64(memInfo.RSS) / 1024 / 1024)
	}
}
