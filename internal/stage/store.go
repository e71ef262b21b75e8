// Package stage holds the installation's application state: the active mood,
// the latest reading, the rule list and the output roster. Every mutation
// bumps a version and notifies subscribers.
package stage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moorebrett0/moodstage/internal/mood"
)

var (
	ErrUnknownMood       = errors.New("unknown mood")
	ErrUnknownRule       = errors.New("unknown rule")
	ErrUnknownConnection = errors.New("unknown connection")
)

// DefaultHistorySize is how many recent mood transitions are kept.
const DefaultHistorySize = 10

// Cause says why a mood was activated.
type Cause string

const (
	CauseRule     Cause = "rule"
	CauseFallback Cause = "fallback"
	CauseManual   Cause = "manual"
	CauseRestore  Cause = "restore"
)

// Transition is one entry in the recent-activity window. Seq is the store
// version that recorded it, so consumers that missed events can tell which
// entries are new.
type Transition struct {
	Seq   uint64    `json:"seq"`
	From  string    `json:"from"`
	To    string    `json:"to"`
	Cause Cause     `json:"cause"`
	Rule  string    `json:"rule,omitempty"`
	At    time.Time `json:"at"`
}

// Snapshot is a read-only deep copy of the store for use outside the lock.
type Snapshot struct {
	Version     uint64         `json:"version"`
	Active      bool           `json:"active"`
	Override    bool           `json:"override"`
	Controls    Controls       `json:"controls"`
	Mood        mood.Profile   `json:"mood"`
	Moods       []mood.Profile `json:"moods"`
	Reading     mood.Reading   `json:"reading"`
	Rules       []mood.Rule    `json:"rules"`
	Connections []Connection   `json:"connections"`
	History     []Transition   `json:"history"`
}

// Connection returns the roster entry with the given name.
func (s Snapshot) Connection(name string) (Connection, bool) {
	for _, c := range s.Connections {
		if c.Name == name {
			return c, true
		}
	}
	return Connection{}, false
}

// RulePatch is a partial rule update; nil fields are left unchanged.
type RulePatch struct {
	Name       *string          `json:"name,omitempty"`
	Conditions *mood.Conditions `json:"conditions,omitempty"`
	TargetMood *string          `json:"target_mood,omitempty"`
	Priority   *int             `json:"priority,omitempty"`
	Enabled    *bool            `json:"enabled,omitempty"`
}

// Store is the owned application state shared by the engine and every
// consumer.
type Store struct {
	mu sync.RWMutex

	catalog     *mood.Catalog
	current     mood.Profile
	reading     mood.Reading
	rules       []mood.Rule
	conns       []Connection
	history     []Transition
	historySize int
	active      bool
	override    bool
	controls    Controls
	version     uint64

	now func() time.Time

	hub hub
}

// Options configure a new Store. Zero values select the stock defaults.
type Options struct {
	Catalog     *mood.Catalog
	Initial     string
	Rules       []mood.Rule
	Connections []Connection
	HistorySize int
	Clock       func() time.Time
	Override    bool
	Controls    *Controls // nil selects DefaultControls
}

// New creates a store with the initial mood active.
func New(opts Options) (*Store, error) {
	if opts.Catalog == nil {
		opts.Catalog = mood.DefaultCatalog()
	}
	if opts.Initial == "" {
		opts.Initial = mood.Contemplative
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Rules == nil {
		opts.Rules = mood.DefaultRules()
	}
	if opts.Connections == nil {
		opts.Connections = DefaultConnections(opts.Clock())
	}

	initial, ok := opts.Catalog.Lookup(opts.Initial)
	if !ok {
		return nil, fmt.Errorf("initial mood %q: %w", opts.Initial, ErrUnknownMood)
	}
	initial.LastUpdated = opts.Clock()

	controls := DefaultControls()
	if opts.Controls != nil {
		if err := opts.Controls.Validate(); err != nil {
			return nil, err
		}
		controls = *opts.Controls
	}

	s := &Store{
		catalog:     opts.Catalog,
		current:     initial,
		historySize: opts.HistorySize,
		override:    opts.Override,
		controls:    controls,
		now:         opts.Clock,
		hub: hub{
			subs:    make(map[int]chan Event),
			dropped: make(map[int]uint64),
		},
	}
	for _, r := range opts.Rules {
		s.rules = append(s.rules, r.Clone())
	}
	for _, c := range opts.Connections {
		s.conns = append(s.conns, c.clone())
	}
	return s, nil
}

// Catalog returns the mood catalog. It is never mutated after New.
func (s *Store) Catalog() *mood.Catalog {
	return s.catalog
}

// Snapshot copies the state under RLock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:     s.version,
		Active:      s.active,
		Override:    s.override,
		Controls:    s.controls,
		Mood:        s.current,
		Moods:       s.catalog.Profiles(),
		Reading:     s.reading,
		Rules:       make([]mood.Rule, 0, len(s.rules)),
		Connections: make([]Connection, 0, len(s.conns)),
		History:     make([]Transition, len(s.history)),
	}
	for _, r := range s.rules {
		snap.Rules = append(snap.Rules, r.Clone())
	}
	for _, c := range s.conns {
		snap.Connections = append(snap.Connections, c.clone())
	}
	copy(snap.History, s.history)
	return snap
}

// Current returns the active mood.
func (s *Store) Current() mood.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reading returns the latest reading.
func (s *Store) Reading() mood.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reading
}

// Rules returns a copy of the rule list in stored order.
func (s *Store) Rules() []mood.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mood.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r.Clone())
	}
	return out
}

// Active reports whether the system is running.
func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Version returns the mutation counter.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Override reports whether manual override is on.
func (s *Store) Override() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.override
}

// commit bumps the version, snapshots and notifies. Caller holds mu and
// must not touch state after calling. The hub lock is taken before mu is
// released so subscribers see versions in order.
func (s *Store) commit(kind EventKind) {
	s.version++
	snap := s.snapshotLocked()
	s.hub.mu.Lock()
	s.mu.Unlock()
	defer s.hub.mu.Unlock()
	s.hub.publishLocked(Event{Kind: kind, Version: snap.Version, Snapshot: snap})
}

// SetReading replaces the current reading.
func (s *Store) SetReading(r mood.Reading) {
	s.mu.Lock()
	s.reading = r
	s.commit(EventReading)
}

// SetActive records whether the system is running.
func (s *Store) SetActive(active bool) {
	s.mu.Lock()
	if s.active == active {
		s.mu.Unlock()
		return
	}
	s.active = active
	s.commit(EventSystem)
}

// Activate makes the named mood current, stamping LastUpdated. Activating
// the already-current mood is a no-op and reports false. Mood changes are
// refused while manual override is on.
func (s *Store) Activate(name string, cause Cause, rule string) (bool, error) {
	p, ok := s.catalog.Lookup(name)
	if !ok {
		return false, fmt.Errorf("%q: %w", name, ErrUnknownMood)
	}

	s.mu.Lock()
	if s.override {
		s.mu.Unlock()
		return false, ErrOverrideActive
	}
	if s.current.Name == name {
		s.mu.Unlock()
		return false, nil
	}

	now := s.now()
	p.LastUpdated = now
	s.history = append(s.history, Transition{
		Seq:   s.version + 1,
		From:  s.current.Name,
		To:    name,
		Cause: cause,
		Rule:  rule,
		At:    now,
	})
	if over := len(s.history) - s.historySize; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
	s.current = p
	s.commit(EventMood)
	return true, nil
}

// AddRule validates and appends a rule, assigning an ID when empty.
func (s *Store) AddRule(r mood.Rule) (mood.Rule, error) {
	if err := mood.ValidateRule(r, s.catalog); err != nil {
		return mood.Rule{}, err
	}
	r = r.Clone()
	if r.ID == "" {
		r.ID = mood.NewRuleID()
	}

	s.mu.Lock()
	for _, existing := range s.rules {
		if existing.ID == r.ID {
			s.mu.Unlock()
			return mood.Rule{}, fmt.Errorf("%w: duplicate id %q", mood.ErrInvalidRule, r.ID)
		}
	}
	s.rules = append(s.rules, r)
	s.commit(EventRules)
	return r.Clone(), nil
}

// UpdateRule applies a patch to the rule with the given ID.
func (s *Store) UpdateRule(id string, p RulePatch) (mood.Rule, error) {
	s.mu.Lock()
	idx := s.ruleIndexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return mood.Rule{}, fmt.Errorf("%q: %w", id, ErrUnknownRule)
	}

	r := s.rules[idx].Clone()
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Conditions != nil {
		r.Conditions = mood.Rule{Conditions: *p.Conditions}.Clone().Conditions
	}
	if p.TargetMood != nil {
		r.TargetMood = *p.TargetMood
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	if err := mood.ValidateRule(r, s.catalog); err != nil {
		s.mu.Unlock()
		return mood.Rule{}, err
	}

	s.rules[idx] = r
	s.commit(EventRules)
	return r.Clone(), nil
}

// RemoveRule deletes the rule with the given ID.
func (s *Store) RemoveRule(id string) error {
	s.mu.Lock()
	idx := s.ruleIndexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%q: %w", id, ErrUnknownRule)
	}
	s.rules = append(s.rules[:idx:idx], s.rules[idx+1:]...)
	s.commit(EventRules)
	return nil
}

// ReplaceRules swaps the whole rule list, e.g. when loading a preset. Every
// rule is validated first; on error nothing changes.
func (s *Store) ReplaceRules(rules []mood.Rule) error {
	next := make([]mood.Rule, 0, len(rules))
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := mood.ValidateRule(r, s.catalog); err != nil {
			return fmt.Errorf("rule %q: %w", r.Name, err)
		}
		r = r.Clone()
		if r.ID == "" {
			r.ID = mood.NewRuleID()
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: duplicate id %q", mood.ErrInvalidRule, r.ID)
		}
		seen[r.ID] = true
		next = append(next, r)
	}

	s.mu.Lock()
	s.rules = next
	s.commit(EventRules)
	return nil
}

func (s *Store) ruleIndexLocked(id string) int {
	for i, r := range s.rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// SetConnection replaces the state of a named output and stamps LastPing.
func (s *Store) SetConnection(name string, state ConnState) error {
	s.mu.Lock()
	for i := range s.conns {
		if s.conns[i].Name != name {
			continue
		}
		now := s.now()
		s.conns[i].State = state
		s.conns[i].LastPing = &now
		s.commit(EventConnection)
		return nil
	}
	s.mu.Unlock()
	return fmt.Errorf("%q: %w", name, ErrUnknownConnection)
}

// SetOverride turns manual override on or off.
func (s *Store) SetOverride(on bool) {
	s.mu.Lock()
	if s.override == on {
		s.mu.Unlock()
		return
	}
	s.override = on
	s.commit(EventControls)
}

// UpdateControls applies a manual level change. Override must be on.
func (s *Store) UpdateControls(p ControlsPatch) (Controls, error) {
	s.mu.Lock()
	if !s.override {
		s.mu.Unlock()
		return Controls{}, ErrOverrideOff
	}
	next := p.apply(s.controls)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return Controls{}, err
	}
	s.controls = next
	s.commit(EventControls)
	return next, nil
}

// ApplyControls sets every output level and the override flag in one
// mutation, as emergency stop and reset do.
func (s *Store) ApplyControls(c Controls, override bool) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.controls = c
	s.override = override
	s.commit(EventControls)
	return nil
}
