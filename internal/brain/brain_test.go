package brain

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/moorebrett0/moodstage/internal/mood"
	"github.com/moorebrett0/moodstage/internal/stage"
)

// scriptedProvider replays canned responses and records what it was sent.
type scriptedProvider struct {
	responses []*Response
	prompts   []string
	histories [][]Message
	err       error
}

func (p *scriptedProvider) Send(_ context.Context, systemPrompt string, history []Message) (*Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.prompts = append(p.prompts, systemPrompt)
	p.histories = append(p.histories, append([]Message(nil), history...))
	if len(p.responses) == 0 {
		return &Response{Text: "done", Done: true}, nil
	}
	r := p.responses[0]
	p.responses = p.responses[1:]
	return r, nil
}

// storeMoods sets moods directly on the store.
type storeMoods struct{ store *stage.Store }

func (m storeMoods) SetMood(name string) (bool, error) {
	return m.store.Activate(name, stage.CauseManual, "")
}

func newTestBrain(t *testing.T, p Provider) (*Brain, *stage.Store) {
	t.Helper()
	store, err := stage.New(stage.Options{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	cfg := Config{MaxTools: 3, RateLimit: 10, RateWindow: time.Minute}
	return newBrain(p, cfg, store, storeMoods{store}, toolSpecs(store.Catalog().Names())), store
}

func call(name string, args any) ToolCall {
	raw, _ := json.Marshal(args)
	return ToolCall{ID: "call-" + name, Name: name, Input: raw}
}

func TestAskPlainAnswer(t *testing.T) {
	p := &scriptedProvider{responses: []*Response{{Text: "All calm.", Done: true}}}
	b, _ := newTestBrain(t, p)

	got, err := b.Ask(context.Background(), "how's the room?", true)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got != "All calm." {
		t.Errorf("unexpected answer %q", got)
	}
	if !strings.Contains(p.prompts[0], "Mood: Contemplative") {
		t.Errorf("system prompt missing current mood:\n%s", p.prompts[0])
	}
}

func TestAskRunsSetMoodTool(t *testing.T) {
	p := &scriptedProvider{responses: []*Response{
		{ToolCalls: []ToolCall{call("set_mood", map[string]string{"mood": mood.Mysterious})}},
		{Text: "Switched to Mysterious.", Done: true},
	}}
	b, store := newTestBrain(t, p)

	if _, err := b.Ask(context.Background(), "make it spooky", true); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if store.Current().Name != mood.Mysterious {
		t.Errorf("expected Mysterious, got %s", store.Current().Name)
	}

	// Second send carries the tool result back.
	last := p.histories[1][len(p.histories[1])-1]
	if len(last.ToolResults) != 1 || last.ToolResults[0].IsError {
		t.Errorf("unexpected tool result: %+v", last.ToolResults)
	}
}

func TestSpectatorCannotMutate(t *testing.T) {
	p := &scriptedProvider{responses: []*Response{
		{ToolCalls: []ToolCall{call("set_mood", map[string]string{"mood": mood.Energetic})}},
		{Text: "I can't do that.", Done: true},
	}}
	b, store := newTestBrain(t, p)

	if _, err := b.Ask(context.Background(), "party time", false); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if store.Current().Name != mood.Contemplative {
		t.Errorf("spectator changed the mood to %s", store.Current().Name)
	}
	last := p.histories[1][len(p.histories[1])-1]
	if len(last.ToolResults) != 1 || !last.ToolResults[0].IsError {
		t.Errorf("expected a refused tool result, got %+v", last.ToolResults)
	}
}

func TestSetRuleEnabledByName(t *testing.T) {
	p := &scriptedProvider{responses: []*Response{
		{ToolCalls: []ToolCall{call("set_rule_enabled", map[string]any{"rule": "quiet hours", "enabled": false})}},
		{Text: "ok", Done: true},
	}}
	b, store := newTestBrain(t, p)

	if _, err := b.Ask(context.Background(), "turn off quiet hours", true); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	for _, r := range store.Rules() {
		if r.Name == "Quiet Hours" && r.Enabled {
			t.Error("expected Quiet Hours to be disabled")
		}
	}
}

func TestSetConnectionTool(t *testing.T) {
	b, store := newTestBrain(t, &scriptedProvider{})

	out, isErr := b.executeTool("set_connection", json.RawMessage(`{"name":"Chamsys MagicQ","state":"connected"}`), true)
	if isErr {
		t.Fatalf("unexpected error: %s", out)
	}
	c, _ := store.Snapshot().Connection("Chamsys MagicQ")
	if c.State != stage.Connected {
		t.Errorf("expected connected, got %s", c.State)
	}

	if _, isErr := b.executeTool("set_connection", json.RawMessage(`{"name":"Nope","state":"connected"}`), true); !isErr {
		t.Error("expected error for unknown connection")
	}
	if _, isErr := b.executeTool("run_shell", nil, true); !isErr {
		t.Error("expected error for unknown tool")
	}
}

func TestGetStateTool(t *testing.T) {
	b, _ := newTestBrain(t, &scriptedProvider{})

	out, isErr := b.executeTool("get_state", nil, false)
	if isErr {
		t.Fatalf("get_state failed: %s", out)
	}
	var st struct {
		Mood string `json:"mood"`
	}
	if err := json.Unmarshal([]byte(out), &st); err != nil || st.Mood != mood.Contemplative {
		t.Errorf("unexpected get_state output %q (err %v)", out, err)
	}
}

func TestAskStopsAtMaxTools(t *testing.T) {
	loop := &Response{ToolCalls: []ToolCall{call("get_state", map[string]string{})}}
	p := &scriptedProvider{responses: []*Response{loop, loop, loop, loop, loop, loop}}
	b, _ := newTestBrain(t, p)

	if _, err := b.Ask(context.Background(), "keep looking", true); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got := len(p.histories); got != b.maxTools+1 {
		t.Errorf("expected %d sends, got %d", b.maxTools+1, got)
	}
}

func TestAskProviderError(t *testing.T) {
	b, _ := newTestBrain(t, &scriptedProvider{err: errors.New("boom")})
	if _, err := b.Ask(context.Background(), "hi", true); err == nil {
		t.Error("expected provider error")
	}
}

func TestRateLimit(t *testing.T) {
	p := &scriptedProvider{}
	b, _ := newTestBrain(t, p)
	b.rateMax = 2

	for i := 0; i < 3; i++ {
		if _, err := b.Ask(context.Background(), "hi", true); err != nil {
			t.Fatalf("Ask: %v", err)
		}
	}
	if len(p.prompts) != 2 {
		t.Errorf("expected 2 provider calls under the limit, got %d", len(p.prompts))
	}
}

func TestToolConversions(t *testing.T) {
	specs := toolSpecs(mood.DefaultCatalog().Names())
	if got := len(claudeTools(specs)); got != len(specs) {
		t.Errorf("claude: expected %d tools, got %d", len(specs), got)
	}
	decls := geminiDecls(specs)
	for _, d := range decls {
		if d.Name == "set_mood" && len(d.Parameters.Properties["mood"].Enum) != 5 {
			t.Errorf("set_mood enum should list the 5 moods, got %v", d.Parameters.Properties["mood"].Enum)
		}
	}
}

func TestSetMoodRefusedUnderOverride(t *testing.T) {
	p := &scriptedProvider{responses: []*Response{
		{ToolCalls: []ToolCall{call("set_mood", map[string]string{"mood": mood.Social})}},
		{Text: "Override is on.", Done: true},
	}}
	b, store := newTestBrain(t, p)
	store.SetOverride(true)

	if _, err := b.Ask(context.Background(), "liven it up", true); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(p.prompts[0], "manual override on") {
		t.Errorf("system prompt missing override:\n%s", p.prompts[0])
	}
	last := p.histories[1][len(p.histories[1])-1]
	if len(last.ToolResults) != 1 || !last.ToolResults[0].IsError {
		t.Errorf("expected refused tool result, got %+v", last.ToolResults)
	}
	if store.Current().Name != mood.Contemplative {
		t.Errorf("mood changed under override: %s", store.Current().Name)
	}
}
