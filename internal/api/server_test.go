package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/moorebrett0/moodstage/internal/analytics"
	"github.com/moorebrett0/moodstage/internal/engine"
	"github.com/moorebrett0/moodstage/internal/mood"
	"github.com/moorebrett0/moodstage/internal/stage"
)

func newTestServer(t *testing.T) (*Server, *stage.Store) {
	t.Helper()
	store, err := stage.New(stage.Options{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	eng := engine.New(store, engine.Config{TickInterval: time.Hour, Seed: 7})
	t.Cleanup(eng.Stop)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracker := analytics.NewTracker(store.Snapshot(), nil)
	return NewServer(context.Background(), store, eng, tracker, logger), store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v (body %q)", err, rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rr := do(t, s.Router(), http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestGetState(t *testing.T) {
	s, _ := newTestServer(t)
	rr := do(t, s.Router(), http.MethodGet, "/api/state", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var snap stage.Snapshot
	decodeBody(t, rr, &snap)
	if snap.Mood.Name != mood.Contemplative || len(snap.Rules) != 3 {
		t.Errorf("unexpected snapshot: mood=%s rules=%d", snap.Mood.Name, len(snap.Rules))
	}
}

func TestSetMood(t *testing.T) {
	s, store := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodPost, "/api/mood", `{"name":"Social"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if store.Current().Name != mood.Social {
		t.Errorf("expected Social, got %s", store.Current().Name)
	}

	rr = do(t, h, http.MethodPost, "/api/mood", `{"name":"Gloomy"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown mood, got %d", rr.Code)
	}
}

func TestRuleLifecycle(t *testing.T) {
	s, store := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodPost, "/api/rules",
		`{"name":"Late Crowd","conditions":{"occupancy":{"min":30,"max":80}},"target_mood":"Mysterious","priority":6,"enabled":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created mood.Rule
	decodeBody(t, rr, &created)
	if created.ID == "" {
		t.Fatal("expected an assigned id")
	}

	rr = do(t, h, http.MethodPut, "/api/rules/"+created.ID, `{"enabled":false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var updated mood.Rule
	decodeBody(t, rr, &updated)
	if updated.Enabled || updated.Name != "Late Crowd" {
		t.Errorf("unexpected update: %+v", updated)
	}

	rr = do(t, h, http.MethodDelete, "/api/rules/"+created.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if len(store.Rules()) != 3 {
		t.Errorf("expected 3 rules after delete, got %d", len(store.Rules()))
	}

	rr = do(t, h, http.MethodDelete, "/api/rules/"+created.ID, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for second delete, got %d", rr.Code)
	}
}

func TestCreateRuleValidation(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	cases := map[string]string{
		"min over max":   `{"name":"Bad","conditions":{"movement":{"min":0.9,"max":0.1}},"target_mood":"Social","enabled":true}`,
		"unknown target": `{"name":"Bad","target_mood":"Gloomy","enabled":true}`,
		"bad clock":      `{"name":"Bad","conditions":{"time_of_day":{"start":"9am","end":"11:00"}},"target_mood":"Social"}`,
		"not json":       `{`,
	}
	for name, body := range cases {
		rr := do(t, h, http.MethodPost, "/api/rules", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rr.Code)
		}
		var payload map[string]string
		decodeBody(t, rr, &payload)
		if payload["error"] == "" {
			t.Errorf("%s: expected an error message", name)
		}
	}
}

func TestApplyPreset(t *testing.T) {
	s, store := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodPost, "/api/rules/preset/festival", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got, want := len(store.Rules()), len(mood.Presets["festival"].Rules()); got != want {
		t.Errorf("expected %d rules, got %d", want, got)
	}

	rr = do(t, h, http.MethodPost, "/api/rules/preset/nightclub", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestSetConnection(t *testing.T) {
	s, store := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodPut, "/api/connections/Chamsys%20MagicQ", `{"state":"connected"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	c, _ := store.Snapshot().Connection("Chamsys MagicQ")
	if c.State != stage.Connected {
		t.Errorf("expected connected, got %s", c.State)
	}

	if rr := do(t, h, http.MethodPut, "/api/connections/Grandma", `{"state":"connected"}`); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPut, "/api/connections/QLab", `{"state":"flaky"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestSystemControls(t *testing.T) {
	s, store := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodPost, "/api/system", `{"active":true}`)
	if rr.Code != http.StatusOK || !store.Active() {
		t.Fatalf("expected active system, got %d active=%v", rr.Code, store.Active())
	}

	rr = do(t, h, http.MethodPost, "/api/system/emergency-stop", "")
	if rr.Code != http.StatusOK || store.Active() {
		t.Fatalf("expected stopped system, got %d active=%v", rr.Code, store.Active())
	}

	if rr := do(t, h, http.MethodPost, "/api/system", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without active, got %d", rr.Code)
	}
}

func TestReset(t *testing.T) {
	s, store := newTestServer(t)
	h := s.Router()

	do(t, h, http.MethodPost, "/api/mood", `{"name":"Energetic"}`)
	do(t, h, http.MethodPost, "/api/rules/preset/gallery", "")

	rr := do(t, h, http.MethodPost, "/api/system/reset", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	snap := store.Snapshot()
	if snap.Mood.Name != mood.Contemplative || len(snap.Rules) != 3 {
		t.Errorf("expected defaults after reset, got mood=%s rules=%d", snap.Mood.Name, len(snap.Rules))
	}
}

func TestEvaluate(t *testing.T) {
	s, store := newTestServer(t)
	store.SetReading(mood.Reading{Occupancy: 40, Movement: 0.85, CapturedAt: time.Now()})

	rr := do(t, s.Router(), http.MethodPost, "/api/evaluate", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out engine.Outcome
	decodeBody(t, rr, &out)
	if out.Mood != mood.Energetic || !out.Changed {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestAnalyticsExports(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodGet, "/api/analytics/export.xlsx", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("xlsx: expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), ".xlsx") {
		t.Errorf("xlsx: unexpected disposition %q", rr.Header().Get("Content-Disposition"))
	}

	rr = do(t, h, http.MethodGet, "/api/analytics/export.pdf", "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Body.String(), "%PDF") {
		t.Fatalf("pdf: expected a PDF, got %d", rr.Code)
	}
}

func TestStreamSendsSnapshotThenEvents(t *testing.T) {
	s, store := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first stage.Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Kind != "snapshot" || first.Snapshot.Mood.Name != mood.Contemplative {
		t.Fatalf("unexpected first message: kind=%s mood=%s", first.Kind, first.Snapshot.Mood.Name)
	}

	if _, err := store.Activate(mood.Peaceful, stage.CauseManual, ""); err != nil {
		t.Fatalf("activate: %v", err)
	}

	var ev stage.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Kind != stage.EventMood || ev.Snapshot.Mood.Name != mood.Peaceful {
		t.Errorf("unexpected event: kind=%s mood=%s", ev.Kind, ev.Snapshot.Mood.Name)
	}
}

func TestEmergencyStopEngagesOverride(t *testing.T) {
	s, store := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodPost, "/api/system/emergency-stop", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var st systemStatus
	decodeBody(t, rr, &st)
	if st.Active || !st.Override {
		t.Errorf("unexpected status %+v", st)
	}
	if got := store.Snapshot().Controls; got != stage.SafeControls() {
		t.Errorf("expected safe levels, got %+v", got)
	}

	rr = do(t, h, http.MethodPost, "/api/mood", `{"name":"Social"}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("expected 409 for quick mood under override, got %d", rr.Code)
	}
	if store.Current().Name != mood.Contemplative {
		t.Errorf("mood changed under override: %s", store.Current().Name)
	}

	rr = do(t, h, http.MethodPost, "/api/system/reset", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", rr.Code)
	}
	var snap stage.Snapshot
	decodeBody(t, rr, &snap)
	if snap.Override || snap.Controls != stage.DefaultControls() {
		t.Errorf("reset left override=%v controls=%+v", snap.Override, snap.Controls)
	}
}

func TestUpdateOutput(t *testing.T) {
	s, store := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodPut, "/api/outputs/qlab", `{"volume":0.4}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 without override, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/api/system/override", `{"active":true}`)
	if rr.Code != http.StatusOK || !store.Override() {
		t.Fatalf("override: code %d, override %v", rr.Code, store.Override())
	}

	rr = do(t, h, http.MethodPut, "/api/outputs/lighting", `{"brightness":0.9,"color":"#10B981"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var c stage.Controls
	decodeBody(t, rr, &c)
	if c.Lighting.Brightness != 0.9 || c.Lighting.Color != "#10B981" {
		t.Errorf("unexpected lighting %+v", c.Lighting)
	}
	if c.QLab != stage.DefaultControls().QLab {
		t.Errorf("qlab changed: %+v", c.QLab)
	}

	cases := []struct {
		target, body string
		code         int
	}{
		{"/api/outputs/resolume", `{"layer":"Strobe"}`, http.StatusBadRequest},
		{"/api/outputs/qlab", `{"volume":2}`, http.StatusBadRequest},
		{"/api/outputs/qlab", `{"opacity":0.5}`, http.StatusBadRequest},
		{"/api/outputs/fog", `{}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		if rr := do(t, h, http.MethodPut, tc.target, tc.body); rr.Code != tc.code {
			t.Errorf("%s %s: expected %d, got %d", tc.target, tc.body, tc.code, rr.Code)
		}
	}

	rr = do(t, h, http.MethodGet, "/api/outputs", "")
	var out struct {
		Override bool           `json:"override"`
		Controls stage.Controls `json:"controls"`
	}
	decodeBody(t, rr, &out)
	if !out.Override || out.Controls.Lighting.Color != "#10B981" {
		t.Errorf("unexpected outputs %+v", out)
	}
}
