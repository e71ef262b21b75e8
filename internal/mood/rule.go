package mood

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrInvalidRule is wrapped by every rule validation failure.
var ErrInvalidRule = errors.New("invalid rule")

// Reading is one simulated snapshot of the installation space.
type Reading struct {
	Occupancy  int       `json:"occupancy"`
	Movement   float64   `json:"movement"`
	Audio      float64   `json:"audio"`
	Light      float64   `json:"light"`
	CapturedAt time.Time `json:"captured_at"`
}

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// TimeWindow is a wall-clock window in "HH:MM" form.
type TimeWindow struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Contains compares the zero-padded clock of now lexically against the
// window. Windows that wrap past midnight (22:00-02:00) never match.
func (w TimeWindow) Contains(now time.Time) bool {
	clock := now.Format("15:04")
	return clock >= w.Start && clock <= w.End
}

// Conditions are the optional predicates of a rule. A nil field is always
// satisfied.
type Conditions struct {
	Occupancy *Range      `json:"occupancy,omitempty" yaml:"occupancy,omitempty"`
	Movement  *Range      `json:"movement,omitempty" yaml:"movement,omitempty"`
	Audio     *Range      `json:"audio,omitempty" yaml:"audio,omitempty"`
	TimeOfDay *TimeWindow `json:"time_of_day,omitempty" yaml:"time_of_day,omitempty"`
}

// Match reports whether every present condition holds for r at now.
func (c Conditions) Match(r Reading, now time.Time) bool {
	if c.Occupancy != nil && !c.Occupancy.Contains(float64(r.Occupancy)) {
		return false
	}
	if c.Movement != nil && !c.Movement.Contains(r.Movement) {
		return false
	}
	if c.Audio != nil && !c.Audio.Contains(r.Audio) {
		return false
	}
	if c.TimeOfDay != nil && !c.TimeOfDay.Contains(now) {
		return false
	}
	return true
}

// Rule maps a set of conditions to a target mood.
type Rule struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Conditions Conditions `json:"conditions" yaml:"conditions"`
	TargetMood string     `json:"target_mood" yaml:"target_mood"`
	Priority   int        `json:"priority" yaml:"priority"`
	Enabled    bool       `json:"enabled" yaml:"enabled"`
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	out := r
	if r.Conditions.Occupancy != nil {
		v := *r.Conditions.Occupancy
		out.Conditions.Occupancy = &v
	}
	if r.Conditions.Movement != nil {
		v := *r.Conditions.Movement
		out.Conditions.Movement = &v
	}
	if r.Conditions.Audio != nil {
		v := *r.Conditions.Audio
		out.Conditions.Audio = &v
	}
	if r.Conditions.TimeOfDay != nil {
		v := *r.Conditions.TimeOfDay
		out.Conditions.TimeOfDay = &v
	}
	return out
}

// NewRuleID returns a fresh sortable rule identifier.
func NewRuleID() string {
	return ulid.Make().String()
}

// Select returns the enabled rule with the highest priority whose conditions
// all hold. Rules of equal priority keep their relative order.
func Select(r Reading, rules []Rule, now time.Time) (Rule, bool) {
	active := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.Enabled {
			active = append(active, rule)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})

	for _, rule := range active {
		if rule.Conditions.Match(r, now) {
			return rule, true
		}
	}
	return Rule{}, false
}

// ValidateRule checks a rule before it is stored. A nil catalog skips the
// target lookup.
func ValidateRule(r Rule, c *Catalog) error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if r.TargetMood == "" {
		return fmt.Errorf("%w: target mood is required", ErrInvalidRule)
	}
	if c != nil {
		if _, ok := c.Lookup(r.TargetMood); !ok {
			return fmt.Errorf("%w: unknown target mood %q", ErrInvalidRule, r.TargetMood)
		}
	}

	if err := checkRange("occupancy", r.Conditions.Occupancy, 0, -1); err != nil {
		return err
	}
	if err := checkRange("movement", r.Conditions.Movement, 0, 1); err != nil {
		return err
	}
	if err := checkRange("audio", r.Conditions.Audio, 0, 1); err != nil {
		return err
	}

	if w := r.Conditions.TimeOfDay; w != nil {
		if !validClock(w.Start) {
			return fmt.Errorf("%w: time_of_day start %q is not HH:MM", ErrInvalidRule, w.Start)
		}
		if !validClock(w.End) {
			return fmt.Errorf("%w: time_of_day end %q is not HH:MM", ErrInvalidRule, w.End)
		}
	}
	return nil
}

// checkRange validates rg against [lo, hi]; hi < lo means unbounded above.
func checkRange(field string, rg *Range, lo, hi float64) error {
	if rg == nil {
		return nil
	}
	if rg.Min > rg.Max {
		return fmt.Errorf("%w: %s min %.2f exceeds max %.2f", ErrInvalidRule, field, rg.Min, rg.Max)
	}
	if rg.Min < lo {
		return fmt.Errorf("%w: %s min %.2f below %.0f", ErrInvalidRule, field, rg.Min, lo)
	}
	if hi >= lo && rg.Max > hi {
		return fmt.Errorf("%w: %s max %.2f above %.0f", ErrInvalidRule, field, rg.Max, hi)
	}
	return nil
}

func validClock(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}
