// Package simulator produces the synthetic environment feed that drives
// mood selection.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moorebrett0/moodstage/internal/mood"
)

// Per-tick perturbation windows. Each field moves by (u-0.5)*width with u
// uniform in [0,1).
const (
	occupancyWidth = 4
	movementWidth  = 0.2
	audioWidth     = 0.1
	lightWidth     = 0.05
)

// Initial is the reading the simulator starts from.
var Initial = mood.Reading{
	Occupancy: 12,
	Movement:  0.4,
	Audio:     0.25,
	Light:     0.7,
}

// Step perturbs prev by one tick and clamps every field to its range.
func Step(prev mood.Reading, rng *rand.Rand, now time.Time) mood.Reading {
	occ := prev.Occupancy + int(math.Floor((rng.Float64()-0.5)*occupancyWidth))
	if occ < 1 {
		occ = 1
	}
	return mood.Reading{
		Occupancy:  occ,
		Movement:   clamp(prev.Movement + (rng.Float64()-0.5)*movementWidth),
		Audio:      clamp(prev.Audio + (rng.Float64()-0.5)*audioWidth),
		Light:      clamp(prev.Light + (rng.Float64()-0.5)*lightWidth),
		CapturedAt: now,
	}
}

// Simulator holds the latest reading and advances it on demand or on a timer.
type Simulator struct {
	latest   atomic.Pointer[mood.Reading]
	interval time.Duration
	onUpdate func(mood.Reading)

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a Simulator. onUpdate is called each time a reading is produced.
// A nil rng is seeded from the clock.
func New(interval time.Duration, rng *rand.Rand, onUpdate func(mood.Reading)) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Simulator{
		interval: interval,
		onUpdate: onUpdate,
		rng:      rng,
	}
	start := Initial
	start.CapturedAt = time.Now()
	s.latest.Store(&start)
	return s
}

// Latest returns the most recent reading without blocking.
func (s *Simulator) Latest() mood.Reading {
	return *s.latest.Load()
}

// Seed replaces the current reading, e.g. with one restored from disk.
func (s *Simulator) Seed(r mood.Reading) {
	if r.Occupancy < 1 {
		r.Occupancy = 1
	}
	r.Movement = clamp(r.Movement)
	r.Audio = clamp(r.Audio)
	r.Light = clamp(r.Light)
	s.latest.Store(&r)
}

// Tick produces the next reading and publishes it.
func (s *Simulator) Tick(now time.Time) mood.Reading {
	s.rngMu.Lock()
	next := Step(s.Latest(), s.rng, now)
	s.rngMu.Unlock()

	s.latest.Store(&next)
	if s.onUpdate != nil {
		s.onUpdate(next)
	}
	return next
}

// Run ticks until the context is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("simulator: stopped")
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// Format returns a one-line human-readable summary of r.
func Format(r mood.Reading) string {
	return fmt.Sprintf("People: %d | Movement: %.0f%% | Audio: %.0f%% | Light: %.0f%%",
		r.Occupancy, r.Movement*100, r.Audio*100, r.Light*100)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
