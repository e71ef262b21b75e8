// Package proactive posts unprompted updates to the operator channel: mood
// transitions, output faults and show start/stop, and keeps the bot's
// presence in step with the active mood.
package proactive

import (
	"context"
	"sync"
	"time"

	"github.com/moorebrett0/moodstage/internal/discord"
	"github.com/moorebrett0/moodstage/internal/stage"
)

// MessageSender can send messages and update presence.
type MessageSender interface {
	SendMessage(channelID, text string)
	UpdatePresence(mood string, active bool)
	ChannelID() string
}

// Config for the announcer.
type Config struct {
	AnnounceTransitions bool
	Cooldown            time.Duration // minimum gap between transition posts
}

// Scheduler turns state events into channel messages.
type Scheduler struct {
	sender MessageSender
	cfg    Config
	now    func() time.Time

	mu           sync.Mutex
	lastVersion  uint64
	lastMood     string
	lastActive   bool
	lastOverride bool
	lastAnnounce time.Time
	connStates   map[string]stage.ConnState
}

// New creates an announcer primed with the current state so that startup
// does not post.
func New(sender MessageSender, initial stage.Snapshot, cfg Config) *Scheduler {
	s := &Scheduler{
		sender:       sender,
		cfg:          cfg,
		now:          time.Now,
		lastVersion:  initial.Version,
		lastMood:     initial.Mood.Name,
		lastActive:   initial.Active,
		lastOverride: initial.Override,
		connStates:   make(map[string]stage.ConnState, len(initial.Connections)),
	}
	for _, c := range initial.Connections {
		s.connStates[c.Name] = c.State
	}
	return s
}

// Run consumes store events. Blocks until context is cancelled.
func (s *Scheduler) Run(ctx context.Context, store *stage.Store) {
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
			s.check(ev.Snapshot)
		}
	}
}

// check compares snap against what was last seen. Dropped events are
// harmless: every snapshot is complete. Snapshots older than the last one
// seen are ignored.
func (s *Scheduler) check(snap stage.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Version <= s.lastVersion {
		return
	}
	s.lastVersion = snap.Version

	channelID := s.sender.ChannelID()
	now := s.now()

	// Always update presence when mood or run state changes
	moodChanged := snap.Mood.Name != s.lastMood
	activeChanged := snap.Active != s.lastActive
	if moodChanged || activeChanged {
		s.lastMood = snap.Mood.Name
		s.lastActive = snap.Active
		s.sender.UpdatePresence(snap.Mood.Name, snap.Active)
	}

	if channelID == "" {
		return
	}

	if activeChanged {
		s.sender.SendMessage(channelID, discord.TemplateSystem(snap.Active))
	}

	if snap.Override != s.lastOverride {
		s.lastOverride = snap.Override
		s.sender.SendMessage(channelID, discord.TemplateOverride(snap.Override))
	}

	if moodChanged && s.cfg.AnnounceTransitions && now.Sub(s.lastAnnounce) >= s.cfg.Cooldown {
		if n := len(snap.History); n > 0 && snap.History[n-1].To == snap.Mood.Name {
			s.lastAnnounce = now
			s.sender.SendMessage(channelID, discord.TemplateTransition(snap.History[n-1]))
		}
	}

	for _, c := range snap.Connections {
		prev := s.connStates[c.Name]
		s.connStates[c.Name] = c.State
		if prev == c.State {
			continue
		}
		switch {
		case c.State == stage.Errored:
			s.sender.SendMessage(channelID, discord.TemplateFault(c))
		case prev == stage.Errored && c.State == stage.Connected:
			s.sender.SendMessage(channelID, discord.TemplateRecovered(c))
		}
	}
}
