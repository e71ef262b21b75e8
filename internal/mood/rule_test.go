package mood

import (
	"errors"
	"testing"
	"time"
)

func at(clock string) time.Time {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		panic(err)
	}
	return time.Date(2026, 3, 14, t.Hour(), t.Minute(), 0, 0, time.Local)
}

func TestSelectSingleMatch(t *testing.T) {
	r := Reading{Occupancy: 22, Movement: 0.85, Audio: 0.3, Light: 0.5}
	rules := []Rule{{
		ID:   "crowd",
		Name: "High Energy Crowds",
		Conditions: Conditions{
			Occupancy: &Range{Min: 20, Max: 100},
			Movement:  &Range{Min: 0.7, Max: 1.0},
		},
		TargetMood: Energetic,
		Priority:   10,
		Enabled:    true,
	}}

	got, ok := Select(r, rules, at("12:00"))
	if !ok {
		t.Fatal("expected a match")
	}
	if got.TargetMood != Energetic {
		t.Errorf("expected %s, got %s", Energetic, got.TargetMood)
	}
}

func TestSelectHigherPriorityWins(t *testing.T) {
	r := Reading{Occupancy: 12, Movement: 0.5, Audio: 0.5}
	rules := []Rule{
		{ID: "low", Name: "low", TargetMood: Peaceful, Priority: 5, Enabled: true},
		{ID: "high", Name: "high", TargetMood: Social, Priority: 10, Enabled: true},
	}

	got, ok := Select(r, rules, at("12:00"))
	if !ok {
		t.Fatal("expected a match")
	}
	if got.ID != "high" {
		t.Errorf("expected rule high, got %s", got.ID)
	}
}

func TestSelectStableOnTies(t *testing.T) {
	rules := []Rule{
		{ID: "first", Name: "a", TargetMood: Peaceful, Priority: 3, Enabled: true},
		{ID: "second", Name: "b", TargetMood: Social, Priority: 3, Enabled: true},
	}
	got, _ := Select(Reading{Occupancy: 1}, rules, at("12:00"))
	if got.ID != "first" {
		t.Errorf("expected first rule on tie, got %s", got.ID)
	}
}

func TestSelectSkipsDisabled(t *testing.T) {
	rules := []Rule{
		{ID: "off", Name: "off", TargetMood: Energetic, Priority: 99, Enabled: false},
		{ID: "on", Name: "on", TargetMood: Peaceful, Priority: 1, Enabled: true},
	}
	got, ok := Select(Reading{Occupancy: 3}, rules, at("12:00"))
	if !ok || got.ID != "on" {
		t.Errorf("expected enabled rule, got %+v ok=%v", got, ok)
	}
}

func TestSelectNoMatch(t *testing.T) {
	rules := DefaultRules()
	_, ok := Select(Reading{Occupancy: 7, Movement: 0.1, Audio: 0.1}, rules, at("14:00"))
	if ok {
		t.Error("expected no match")
	}
}

func TestRangeBoundsInclusive(t *testing.T) {
	c := Conditions{Movement: &Range{Min: 0.7, Max: 1.0}}
	if !c.Match(Reading{Movement: 0.7}, at("12:00")) {
		t.Error("min bound should match")
	}
	if !c.Match(Reading{Movement: 1.0}, at("12:00")) {
		t.Error("max bound should match")
	}
	if c.Match(Reading{Movement: 0.69}, at("12:00")) {
		t.Error("below min should not match")
	}
}

func TestTimeWindow(t *testing.T) {
	w := TimeWindow{Start: "09:00", End: "11:00"}
	cases := map[string]bool{
		"08:59": false,
		"09:00": true,
		"10:30": true,
		"11:00": true,
		"11:01": false,
	}
	for clock, want := range cases {
		if got := w.Contains(at(clock)); got != want {
			t.Errorf("%s: expected %v, got %v", clock, want, got)
		}
	}
}

func TestTimeWindowAcrossMidnightNeverMatches(t *testing.T) {
	w := TimeWindow{Start: "22:00", End: "02:00"}
	for _, clock := range []string{"23:30", "01:00", "12:00"} {
		if w.Contains(at(clock)) {
			t.Errorf("%s: wrapped window should not match", clock)
		}
	}
}

func TestValidateRule(t *testing.T) {
	cat := DefaultCatalog()

	ok := Rule{
		Name:       "ok",
		TargetMood: Social,
		Conditions: Conditions{
			Occupancy: &Range{Min: 0, Max: 500},
			Audio:     &Range{Min: 0.2, Max: 0.4},
			TimeOfDay: &TimeWindow{Start: "08:00", End: "18:30"},
		},
	}
	if err := ValidateRule(ok, cat); err != nil {
		t.Fatalf("expected valid rule, got %v", err)
	}

	bad := []Rule{
		{TargetMood: Social},
		{Name: "no target"},
		{Name: "dangling", TargetMood: "Euphoric"},
		{Name: "inverted", TargetMood: Social, Conditions: Conditions{Movement: &Range{Min: 0.8, Max: 0.2}}},
		{Name: "out of domain", TargetMood: Social, Conditions: Conditions{Audio: &Range{Min: 0, Max: 1.5}}},
		{Name: "negative", TargetMood: Social, Conditions: Conditions{Occupancy: &Range{Min: -1, Max: 4}}},
		{Name: "clock", TargetMood: Social, Conditions: Conditions{TimeOfDay: &TimeWindow{Start: "9:00", End: "10:00"}}},
		{Name: "clock", TargetMood: Social, Conditions: Conditions{TimeOfDay: &TimeWindow{Start: "09:00", End: "25:00"}}},
	}
	for _, r := range bad {
		err := ValidateRule(r, cat)
		if !errors.Is(err, ErrInvalidRule) {
			t.Errorf("rule %q: expected ErrInvalidRule, got %v", r.Name, err)
		}
	}
}

func TestPresetRulesAreValidAndFresh(t *testing.T) {
	cat := DefaultCatalog()
	for _, id := range PresetIDs {
		p := Presets[id]
		a := p.Rules()
		b := p.Rules()
		if len(a) == 0 {
			t.Fatalf("preset %s has no rules", id)
		}
		for i := range a {
			if err := ValidateRule(a[i], cat); err != nil {
				t.Errorf("preset %s rule %q: %v", id, a[i].Name, err)
			}
			if a[i].ID == "" || a[i].ID == b[i].ID {
				t.Errorf("preset %s: expected distinct IDs, got %q and %q", id, a[i].ID, b[i].ID)
			}
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	r := DefaultRules()[0]
	c := r.Clone()
	c.Conditions.Occupancy.Min = 99
	if r.Conditions.Occupancy.Min == 99 {
		t.Error("clone shares condition pointers")
	}
}
