package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/moorebrett0/moodstage/internal/simulator"
	"github.com/moorebrett0/moodstage/internal/stage"
)

// MoodSetter activates a mood on operator request.
type MoodSetter interface {
	SetMood(name string) (bool, error)
}

// Brain wraps an AI provider with system prompt building and tool-use loop.
type Brain struct {
	provider Provider
	maxTools int
	store    *stage.Store
	moods    MoodSetter
	tools    map[string]ToolSpec

	// Sliding-window rate limiter
	mu      sync.Mutex
	window  []time.Time
	rateMax int
	rateDur time.Duration
}

// Config for creating a Brain.
type Config struct {
	// Claude
	ClaudeAPIKey string
	ClaudeModel  string

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Which provider to force ("claude", "gemini", or "" for auto-detect)
	Provider string

	MaxTokens  int64
	MaxTools   int
	RateLimit  int
	RateWindow time.Duration
}

// New creates a Brain. Returns nil if no API key is configured.
func New(ctx context.Context, cfg Config, store *stage.Store, moods MoodSetter) *Brain {
	specs := toolSpecs(store.Catalog().Names())
	provider := newProvider(ctx, cfg, specs)
	if provider == nil {
		slog.Info("brain: no API key configured, AI features disabled")
		return nil
	}
	return newBrain(provider, cfg, store, moods, specs)
}

func newBrain(p Provider, cfg Config, store *stage.Store, moods MoodSetter, specs []ToolSpec) *Brain {
	tools := make(map[string]ToolSpec, len(specs))
	for _, s := range specs {
		tools[s.Name] = s
	}
	return &Brain{
		provider: p,
		maxTools: cfg.MaxTools,
		store:    store,
		moods:    moods,
		tools:    tools,
		rateMax:  cfg.RateLimit,
		rateDur:  cfg.RateWindow,
	}
}

// newProvider auto-detects or forces the AI provider.
func newProvider(ctx context.Context, cfg Config, specs []ToolSpec) Provider {
	pick := cfg.Provider

	// Auto-detect if not forced
	if pick == "" {
		switch {
		case cfg.ClaudeAPIKey != "":
			pick = "claude"
		case cfg.GeminiAPIKey != "":
			pick = "gemini"
		}
	}

	switch pick {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			slog.Error("brain: AI_PROVIDER=claude but ANTHROPIC_API_KEY is not set")
			return nil
		}
		slog.Info("brain: using claude", "model", cfg.ClaudeModel)
		return newClaudeProvider(cfg.ClaudeAPIKey, cfg.ClaudeModel, cfg.MaxTokens, specs)
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			slog.Error("brain: AI_PROVIDER=gemini but GOOGLE_API_KEY is not set")
			return nil
		}
		slog.Info("brain: using gemini", "model", cfg.GeminiModel)
		p, err := newGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.MaxTokens, specs)
		if err != nil {
			slog.Error("brain: failed to create gemini provider", "err", err)
			return nil
		}
		return p
	default:
		return nil
	}
}

// Ask sends an operator message to the AI with the live installation state
// and returns the text response. allowWrites gates the mutating tools.
func (b *Brain) Ask(ctx context.Context, userMessage string, allowWrites bool) (string, error) {
	if !b.rateAllow() {
		return "Too many requests right now. Try again in a moment.", nil
	}

	systemPrompt := b.buildSystemPrompt(allowWrites)

	history := []Message{
		{Role: "user", Text: userMessage},
	}

	// Tool-use loop
	for i := 0; i <= b.maxTools; i++ {
		resp, err := b.provider.Send(ctx, systemPrompt, history)
		if err != nil {
			slog.Error("brain: AI API error", "err", err)
			return "", fmt.Errorf("AI API error: %w", err)
		}

		if resp.Done {
			return resp.Text, nil
		}

		history = append(history, Message{
			Role:      "assistant",
			Text:      resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		var results []ToolResult
		for _, tc := range resp.ToolCalls {
			content, isError := b.executeTool(tc.Name, tc.Input, allowWrites)
			results = append(results, ToolResult{
				ID:      tc.ID,
				Content: content,
				IsError: isError,
			})
		}

		history = append(history, Message{
			Role:        "user",
			ToolResults: results,
		})
	}

	slog.Warn("brain: hit max tool iterations", "max", b.maxTools)
	return "That took more steps than I'm allowed. Check /status for where things landed.", nil
}

func (b *Brain) buildSystemPrompt(allowWrites bool) string {
	snap := b.store.Snapshot()

	var rules strings.Builder
	for _, r := range snap.Rules {
		state := "on"
		if !r.Enabled {
			state = "off"
		}
		fmt.Fprintf(&rules, "- [%s] %s -> %s (priority %d, %s)\n", r.ID, r.Name, r.TargetMood, r.Priority, state)
	}
	if rules.Len() == 0 {
		rules.WriteString("- (none)\n")
	}

	var conns strings.Builder
	for _, c := range snap.Connections {
		fmt.Fprintf(&conns, "- %s (%s): %s\n", c.Name, c.Protocol, c.State)
	}

	access := "The person asking is the installation owner; you may use every tool."
	if !allowWrites {
		access = "The person asking is a spectator. Answer questions but do not change anything; mutating tools will be refused."
	}

	running := "running"
	if !snap.Active {
		running = "stopped"
	}
	if snap.Override {
		running += ", manual override on (mood changes are refused; output levels are set by hand)"
	}

	return fmt.Sprintf(`You are the operator assistant for an interactive installation that sets a "mood" (lighting, sound and visual atmosphere) from sensed audience activity.

## Current State
- Mood: %s (%s)
- System: %s
- Reading: %s

## Rules (highest priority match wins)
%s
## Outputs
%s
## Guidelines
- Keep responses concise (1-3 sentences usually).
- Use get_state instead of guessing when asked about the live show.
- Readings are simulated; outputs are mock connections and nothing is sent to real gear.
- %s`,
		snap.Mood.Name, snap.Mood.Description,
		running,
		simulator.Format(snap.Reading),
		rules.String(),
		conns.String(),
		access)
}

// --- Sliding-window rate limiter ---

func (b *Brain) rateAllow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-b.rateDur)

	// Remove expired entries
	valid := b.window[:0]
	for _, t := range b.window {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	b.window = valid

	if len(b.window) >= b.rateMax {
		return false
	}

	b.window = append(b.window, now)
	return true
}
