package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func find(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestHelpersBeforeInit(t *testing.T) {
	// Must not panic with nil instruments.
	ObserveTick(time.Millisecond)
	IncTransition("Energetic", "rule")
	IncRuleMatch("High Energy Crowds")
	IncConnectionEvent("QLab", "fault")
	SetReading(1, 0, 0, 0)
	IncExport("xlsx", nil)
}

func TestInstruments(t *testing.T) {
	Init(func() int { return 3 })
	Init(nil) // second call is a no-op

	ObserveTick(5 * time.Millisecond)
	IncTransition("Energetic", "")
	IncExport("pdf", errors.New("boom"))
	SetReading(42, 0.5, 0.25, 0.75)

	if f := find(t, "moodstage_ticks_total"); f == nil || f.GetMetric()[0].GetCounter().GetValue() < 1 {
		t.Errorf("ticks not counted: %v", f)
	}

	f := find(t, "moodstage_mood_transitions_total")
	if f == nil {
		t.Fatal("transitions not registered")
	}
	var cause string
	for _, l := range f.GetMetric()[0].GetLabel() {
		if l.GetName() == "cause" {
			cause = l.GetValue()
		}
	}
	if cause != "unknown" {
		t.Errorf("empty cause should be recorded as unknown, got %q", cause)
	}

	if f := find(t, "moodstage_subscribers"); f == nil || f.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Errorf("subscriber gauge wrong: %v", f)
	}

	f = find(t, "moodstage_analytics_exports_total")
	if f == nil {
		t.Fatal("exports not registered")
	}
	for _, l := range f.GetMetric()[0].GetLabel() {
		if l.GetName() == "result" && l.GetValue() != "error" {
			t.Errorf("expected error result, got %q", l.GetValue())
		}
	}
}
