package proactive

import (
	"strings"
	"testing"
	"time"

	"github.com/moorebrett0/moodstage/internal/mood"
	"github.com/moorebrett0/moodstage/internal/stage"
)

type fakeSender struct {
	channel   string
	messages  []string
	presences []string
}

func (f *fakeSender) SendMessage(_, text string) { f.messages = append(f.messages, text) }

func (f *fakeSender) UpdatePresence(m string, active bool) {
	if !active {
		m += " (paused)"
	}
	f.presences = append(f.presences, m)
}

func (f *fakeSender) ChannelID() string { return f.channel }

func setup(t *testing.T, cfg Config) (*Scheduler, *stage.Store, *fakeSender, *time.Time) {
	t.Helper()
	store, err := stage.New(stage.Options{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	sender := &fakeSender{channel: "chan"}
	s := New(sender, store.Snapshot(), cfg)
	now := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, store, sender, &now
}

func TestTransitionAnnouncedAndThrottled(t *testing.T) {
	s, store, sender, now := setup(t, Config{AnnounceTransitions: true, Cooldown: time.Minute})

	store.Activate(mood.Energetic, stage.CauseRule, "High Energy Crowds")
	s.check(store.Snapshot())
	if len(sender.messages) != 1 || !strings.Contains(sender.messages[0], "High Energy Crowds") {
		t.Fatalf("expected one transition post, got %v", sender.messages)
	}

	*now = now.Add(10 * time.Second)
	store.Activate(mood.Social, stage.CauseManual, "")
	s.check(store.Snapshot())
	if len(sender.messages) != 1 {
		t.Fatalf("second transition inside cooldown should be silent, got %v", sender.messages)
	}
	if got := sender.presences[len(sender.presences)-1]; !strings.HasPrefix(got, mood.Social) {
		t.Errorf("presence should follow every change, got %q", got)
	}

	*now = now.Add(time.Minute)
	store.Activate(mood.Peaceful, stage.CauseFallback, "")
	s.check(store.Snapshot())
	if len(sender.messages) != 2 {
		t.Errorf("expected post after cooldown, got %v", sender.messages)
	}
}

func TestTransitionsMuted(t *testing.T) {
	s, store, sender, _ := setup(t, Config{AnnounceTransitions: false})

	store.Activate(mood.Energetic, stage.CauseManual, "")
	s.check(store.Snapshot())
	if len(sender.messages) != 0 {
		t.Errorf("expected no posts, got %v", sender.messages)
	}
	if len(sender.presences) != 1 {
		t.Errorf("expected a presence update, got %v", sender.presences)
	}
}

func TestFaultAndRecoveryPosted(t *testing.T) {
	s, store, sender, _ := setup(t, Config{})

	store.SetConnection("QLab", stage.Errored)
	s.check(store.Snapshot())
	store.SetConnection("QLab", stage.Connected)
	s.check(store.Snapshot())

	if len(sender.messages) != 2 {
		t.Fatalf("expected fault and recovery posts, got %v", sender.messages)
	}
	if !strings.Contains(sender.messages[0], "error") || !strings.Contains(sender.messages[1], "back online") {
		t.Errorf("unexpected posts %v", sender.messages)
	}

	// Disconnected -> connected is not a recovery.
	store.SetConnection("Chamsys MagicQ", stage.Connected)
	s.check(store.Snapshot())
	if len(sender.messages) != 2 {
		t.Errorf("unexpected post %v", sender.messages[2:])
	}
}

func TestSystemToggle(t *testing.T) {
	s, store, sender, _ := setup(t, Config{})

	store.SetActive(true)
	s.check(store.Snapshot())
	store.SetActive(false)
	s.check(store.Snapshot())

	if len(sender.messages) != 2 {
		t.Fatalf("expected start and stop posts, got %v", sender.messages)
	}
	if got := sender.presences[len(sender.presences)-1]; !strings.HasSuffix(got, "(paused)") {
		t.Errorf("expected paused presence, got %q", got)
	}
}

func TestNoChannelOnlyPresence(t *testing.T) {
	s, store, sender, _ := setup(t, Config{AnnounceTransitions: true})
	sender.channel = ""

	store.Activate(mood.Energetic, stage.CauseManual, "")
	s.check(store.Snapshot())
	if len(sender.messages) != 0 || len(sender.presences) != 1 {
		t.Errorf("expected presence only, got messages=%v presences=%v", sender.messages, sender.presences)
	}
}

func TestOverrideAnnounced(t *testing.T) {
	s, store, sender, _ := setup(t, Config{})

	store.SetOverride(true)
	s.check(store.Snapshot())
	store.SetOverride(false)
	s.check(store.Snapshot())

	if len(sender.messages) != 2 {
		t.Fatalf("expected override on and off posts, got %v", sender.messages)
	}
	if !strings.Contains(sender.messages[0], "override on") || !strings.Contains(sender.messages[1], "override off") {
		t.Errorf("unexpected posts %v", sender.messages)
	}
}

func TestStaleSnapshotIgnored(t *testing.T) {
	s, store, sender, _ := setup(t, Config{AnnounceTransitions: true})

	store.Activate(mood.Energetic, stage.CauseManual, "")
	older := store.Snapshot()
	store.Activate(mood.Social, stage.CauseManual, "")
	s.check(store.Snapshot())
	s.check(older)

	if got := sender.presences[len(sender.presences)-1]; got != mood.Social+" (paused)" {
		t.Errorf("stale snapshot moved presence back, got %q", got)
	}
	if len(sender.presences) != 1 || len(sender.messages) != 1 {
		t.Errorf("expected one presence and one post, got %v %v", sender.presences, sender.messages)
	}
}
