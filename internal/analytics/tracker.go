// Package analytics aggregates the state event stream into session figures:
// time spent per mood, transitions by cause, occupancy peaks and an hourly
// profile. Summaries can be exported as XLSX or PDF.
package analytics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/moorebrett0/moodstage/internal/stage"
)

// MoodShare is the time one mood has been active.
type MoodShare struct {
	Mood    string  `json:"mood"`
	Seconds float64 `json:"seconds"`
	Share   float64 `json:"share"`
}

// HourBucket aggregates readings captured in one hour of the day.
type HourBucket struct {
	Hour          int     `json:"hour"`
	Readings      int     `json:"readings"`
	Transitions   int     `json:"transitions"`
	AvgOccupancy  float64 `json:"avg_occupancy"`
	PeakOccupancy int     `json:"peak_occupancy"`
	DominantMood  string  `json:"dominant_mood,omitempty"`
}

// Summary is a point-in-time view of the tracked session.
type Summary struct {
	Since         time.Time          `json:"since"`
	GeneratedAt   time.Time          `json:"generated_at"`
	CurrentMood   string             `json:"current_mood"`
	Readings      int                `json:"readings"`
	AvgOccupancy  float64            `json:"avg_occupancy"`
	PeakOccupancy int                `json:"peak_occupancy"`
	Transitions   int                `json:"transitions"`
	ByCause       map[string]int     `json:"by_cause"`
	Moods         []MoodShare        `json:"moods"`
	Hourly        []HourBucket       `json:"hourly"`
	Recent        []stage.Transition `json:"recent"`
}

type hourAcc struct {
	readings    int
	transitions int
	occSum      int
	peak        int
	moods       map[string]int // readings seen per active mood
}

// Tracker folds store events into running totals.
type Tracker struct {
	mu sync.Mutex

	since     time.Time
	mood      string
	moodSince time.Time
	moodTime  map[string]time.Duration

	lastReading time.Time
	readings    int
	occSum      int
	peak        int
	hourly      [24]hourAcc

	transitions int
	byCause     map[string]int
	recent      []stage.Transition
	lastSeq     uint64 // newest history entry already counted

	now func() time.Time
}

// NewTracker starts tracking from the given snapshot.
func NewTracker(snap stage.Snapshot, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	start := now()
	var lastSeq uint64
	if n := len(snap.History); n > 0 {
		lastSeq = snap.History[n-1].Seq
	}
	return &Tracker{
		since:     start,
		mood:      snap.Mood.Name,
		moodSince: start,
		moodTime:  make(map[string]time.Duration),
		byCause:   make(map[string]int),
		recent:    append([]stage.Transition(nil), snap.History...),
		lastSeq:   lastSeq,
		now:       now,
	}
}

// Run consumes store events until ctx is done.
func (t *Tracker) Run(ctx context.Context, store *stage.Store) {
	events, cancel := store.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			t.Observe(ev)
		}
	}
}

// Observe folds one event into the totals. Events may be skipped by a slow
// consumer; every event carries a full snapshot so the next one catches up.
func (t *Tracker) Observe(ev stage.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := ev.Snapshot
	if r := snap.Reading; !r.CapturedAt.IsZero() && r.CapturedAt.After(t.lastReading) {
		t.lastReading = r.CapturedAt
		t.readings++
		t.occSum += r.Occupancy
		if r.Occupancy > t.peak {
			t.peak = r.Occupancy
		}
		h := &t.hourly[r.CapturedAt.Hour()]
		h.readings++
		h.occSum += r.Occupancy
		if r.Occupancy > h.peak {
			h.peak = r.Occupancy
		}
		if h.moods == nil {
			h.moods = make(map[string]int)
		}
		h.moods[snap.Mood.Name]++
	}

	// Count history entries not seen yet so transitions between skipped
	// events are not lost.
	fresh := false
	for _, tr := range snap.History {
		if tr.Seq <= t.lastSeq {
			continue
		}
		t.switchTo(tr.To, string(tr.Cause), tr.At)
		t.lastSeq = tr.Seq
		fresh = true
	}
	// Entries can fall out of the bounded window before being seen.
	if snap.Mood.Name != t.mood {
		t.switchTo(snap.Mood.Name, "unknown", t.now())
		fresh = true
	}
	if fresh {
		t.recent = append(t.recent[:0:0], snap.History...)
	}
}

// switchTo closes the open mood interval at at and opens one for name.
// Caller holds mu.
func (t *Tracker) switchTo(name, cause string, at time.Time) {
	if at.Before(t.moodSince) {
		at = t.moodSince
	}
	if cause == "" {
		cause = "unknown"
	}
	t.moodTime[t.mood] += at.Sub(t.moodSince)
	t.mood = name
	t.moodSince = at
	t.transitions++
	t.hourly[at.Hour()].transitions++
	t.byCause[cause]++
}

// Summary returns the totals as of now, including time in the current mood.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	times := make(map[string]time.Duration, len(t.moodTime)+1)
	var total time.Duration
	for m, d := range t.moodTime {
		times[m] = d
		total += d
	}
	open := now.Sub(t.moodSince)
	times[t.mood] += open
	total += open

	moods := make([]MoodShare, 0, len(times))
	for m, d := range times {
		share := 0.0
		if total > 0 {
			share = float64(d) / float64(total)
		}
		moods = append(moods, MoodShare{Mood: m, Seconds: d.Seconds(), Share: share})
	}
	sort.Slice(moods, func(i, j int) bool {
		if moods[i].Seconds != moods[j].Seconds {
			return moods[i].Seconds > moods[j].Seconds
		}
		return moods[i].Mood < moods[j].Mood
	})

	var hourly []HourBucket
	for h, acc := range t.hourly {
		if acc.readings == 0 && acc.transitions == 0 {
			continue
		}
		b := HourBucket{
			Hour:          h,
			Readings:      acc.readings,
			Transitions:   acc.transitions,
			PeakOccupancy: acc.peak,
			DominantMood:  dominant(acc.moods),
		}
		if acc.readings > 0 {
			b.AvgOccupancy = float64(acc.occSum) / float64(acc.readings)
		}
		hourly = append(hourly, b)
	}

	byCause := make(map[string]int, len(t.byCause))
	for k, v := range t.byCause {
		byCause[k] = v
	}

	s := Summary{
		Since:         t.since,
		GeneratedAt:   now,
		CurrentMood:   t.mood,
		Readings:      t.readings,
		PeakOccupancy: t.peak,
		Transitions:   t.transitions,
		ByCause:       byCause,
		Moods:         moods,
		Hourly:        hourly,
		Recent:        append([]stage.Transition(nil), t.recent...),
	}
	if t.readings > 0 {
		s.AvgOccupancy = float64(t.occSum) / float64(t.readings)
	}
	return s
}

// dominant returns the most seen mood, breaking ties by name.
func dominant(counts map[string]int) string {
	best, bestN := "", 0
	for m, n := range counts {
		if n > bestN || (n == bestN && m < best) {
			best, bestN = m, n
		}
	}
	return best
}
