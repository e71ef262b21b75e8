// Package engine drives the installation: it ticks the simulator, runs the
// rule evaluator against each new reading and injects cosmetic output
// faults that heal themselves.
package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/moorebrett0/moodstage/internal/metrics"
	"github.com/moorebrett0/moodstage/internal/mood"
	"github.com/moorebrett0/moodstage/internal/simulator"
	"github.com/moorebrett0/moodstage/internal/stage"
)

// Config for the engine.
type Config struct {
	TickInterval   time.Duration
	FallbackChance float64 // chance of a random mood when no rule matches
	FaultChance    float64 // chance per tick of faulting one connected output
	RecoveryDelay  time.Duration
	Seed           int64 // 0 seeds from the clock
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		TickInterval:   3 * time.Second,
		FallbackChance: 0.1,
		FaultChance:    0.02,
		RecoveryDelay:  5 * time.Second,
	}
}

// Outcome describes what one evaluation did.
type Outcome struct {
	Rule    string      `json:"rule,omitempty"`
	Mood    string      `json:"mood"`
	Cause   stage.Cause `json:"cause,omitempty"`
	Changed bool        `json:"changed"`
}

// Engine owns the recurring tick. All engine-originated mutations happen
// while holding mu and only if the current run has not been cancelled.
type Engine struct {
	store *stage.Store
	sim   *simulator.Simulator
	cfg   Config
	now   func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu     sync.Mutex
	runCtx context.Context
	cancel context.CancelFunc
	done   chan struct{}
	timers map[*time.Timer]struct{}
}

// New creates an engine over store. The simulator continues from the
// store's reading when it has one.
func New(store *stage.Store, cfg Config) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}

	e := &Engine{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(seed)),
		timers: make(map[*time.Timer]struct{}),
	}
	e.sim = simulator.New(cfg.TickInterval, rand.New(rand.NewSource(seed+1)), e.onReading)

	if r := store.Reading(); r.CapturedAt.IsZero() {
		store.SetReading(e.sim.Latest())
	} else {
		e.sim.Seed(r)
	}
	return e
}

// Start begins the recurring tick. Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.runCtx != nil {
		e.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.runCtx, e.cancel, e.done = runCtx, cancel, done
	e.mu.Unlock()

	e.store.SetActive(true)
	slog.Info("engine: started", "tick", e.cfg.TickInterval.String())

	go func() {
		defer close(done)
		e.sim.Run(runCtx)
	}()
}

// Stop cancels the tick and every pending recovery. Once Stop returns the
// engine performs no further state mutation.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.runCtx == nil {
		e.mu.Unlock()
		return
	}
	e.cancel()
	for t := range e.timers {
		t.Stop()
	}
	e.timers = make(map[*time.Timer]struct{})
	done := e.done
	e.runCtx, e.cancel, e.done = nil, nil, nil
	e.mu.Unlock()

	<-done
	e.store.SetActive(false)
	slog.Info("engine: stopped")
}

// Running reports whether the tick is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runCtx != nil
}

// EmergencyStop halts the engine immediately.
func (e *Engine) EmergencyStop() {
	slog.Warn("engine: emergency stop")
	e.Stop()
	if err := e.store.ApplyControls(stage.SafeControls(), true); err != nil {
		slog.Error("engine: safe levels rejected", "err", err)
	}
}

// Reset stops the engine, clears manual override and restores the stock
// output levels, rules and starting mood.
func (e *Engine) Reset() error {
	e.Stop()
	if err := e.store.ApplyControls(stage.DefaultControls(), false); err != nil {
		return err
	}
	if err := e.store.ReplaceRules(mood.DefaultRules()); err != nil {
		return err
	}
	if _, err := e.SetMood(mood.Contemplative); err != nil {
		return err
	}
	slog.Info("engine: reset to defaults")
	return nil
}

// SetMood activates a mood on operator request.
func (e *Engine) SetMood(name string) (bool, error) {
	changed, err := e.store.Activate(name, stage.CauseManual, "")
	if err != nil {
		return false, err
	}
	if changed {
		metrics.IncTransition(name, string(stage.CauseManual))
		slog.Info("engine: mood set manually", "mood", name)
	}
	return changed, nil
}

// Evaluate runs the rule evaluator once against the current reading,
// regardless of whether the tick is running.
func (e *Engine) Evaluate() Outcome {
	return e.evaluate(e.store.Reading(), e.now())
}

// tick advances the simulator by one step; used by tests to drive the loop
// without a timer.
func (e *Engine) tick(now time.Time) {
	e.sim.Tick(now)
}

// onReading is the simulator callback for every new reading.
func (e *Engine) onReading(r mood.Reading) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runCtx == nil || e.runCtx.Err() != nil {
		return
	}

	e.store.SetReading(r)
	metrics.SetReading(r.Occupancy, r.Movement, r.Audio, r.Light)

	e.evaluate(r, r.CapturedAt)
	e.maybeFault()

	metrics.ObserveTick(time.Since(start))
}

func (e *Engine) evaluate(r mood.Reading, now time.Time) Outcome {
	catalog := e.store.Catalog()
	if e.store.Override() {
		return Outcome{Mood: e.store.Current().Name}
	}

	if rule, ok := mood.Select(r, e.store.Rules(), now); ok {
		metrics.IncRuleMatch(rule.Name)
		out := Outcome{Rule: rule.Name, Mood: e.store.Current().Name}
		if _, found := catalog.Lookup(rule.TargetMood); !found {
			// Dangling target: no change, nothing reported.
			slog.Debug("engine: rule target not in catalog", "rule", rule.Name, "target", rule.TargetMood)
			return out
		}
		changed, err := e.store.Activate(rule.TargetMood, stage.CauseRule, rule.Name)
		if err != nil {
			slog.Debug("engine: activate failed", "rule", rule.Name, "err", err)
			return out
		}
		out.Mood, out.Cause, out.Changed = rule.TargetMood, stage.CauseRule, changed
		if changed {
			metrics.IncTransition(rule.TargetMood, string(stage.CauseRule))
			slog.Info("engine: mood switched", "mood", rule.TargetMood, "rule", rule.Name)
		}
		return out
	}

	current := e.store.Current().Name
	out := Outcome{Mood: current}
	if !e.chance(e.cfg.FallbackChance) {
		return out
	}

	var candidates []string
	for _, name := range catalog.Names() {
		if name != current {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return out
	}
	pick := candidates[e.intn(len(candidates))]
	changed, err := e.store.Activate(pick, stage.CauseFallback, "")
	if err != nil {
		return out
	}
	if changed {
		metrics.IncTransition(pick, string(stage.CauseFallback))
		slog.Info("engine: random mood change", "mood", pick)
	}
	return Outcome{Mood: pick, Cause: stage.CauseFallback, Changed: changed}
}

// maybeFault moves one connected output to error and schedules its
// recovery. Caller holds mu with a live run context.
func (e *Engine) maybeFault() {
	if !e.chance(e.cfg.FaultChance) {
		return
	}

	var connected []string
	for _, c := range e.store.Snapshot().Connections {
		if c.State == stage.Connected {
			connected = append(connected, c.Name)
		}
	}
	if len(connected) == 0 {
		return
	}

	name := connected[e.intn(len(connected))]
	if err := e.store.SetConnection(name, stage.Errored); err != nil {
		return
	}
	metrics.IncConnectionEvent(name, "fault")
	slog.Warn("engine: simulated output fault", "connection", name, "recover_in", e.cfg.RecoveryDelay.String())

	runCtx := e.runCtx
	var t *time.Timer
	t = time.AfterFunc(e.cfg.RecoveryDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.timers, t)
		if runCtx.Err() != nil {
			return
		}
		if err := e.store.SetConnection(name, stage.Connected); err != nil {
			return
		}
		metrics.IncConnectionEvent(name, "recovered")
		slog.Info("engine: output recovered", "connection", name)
	})
	e.timers[t] = struct{}{}
}

func (e *Engine) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Float64() < p
}

func (e *Engine) intn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Intn(n)
}
