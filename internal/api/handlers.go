package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/moorebrett0/moodstage/internal/analytics"
	"github.com/moorebrett0/moodstage/internal/metrics"
	"github.com/moorebrett0/moodstage/internal/mood"
	"github.com/moorebrett0/moodstage/internal/stage"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": s.engine.Running(),
		"version": s.store.Version(),
	})
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) listMoods(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Catalog().Profiles())
}

func (s *Server) setMood(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	changed, err := s.engine.SetMood(req.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mood": s.store.Current(), "changed": changed})
}

// Rules

func (s *Server) listRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Rules())
}

func (s *Server) getRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	for _, rule := range s.store.Rules() {
		if rule.ID == id {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("%q: %v", id, stage.ErrUnknownRule))
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var rule mood.Rule
	if err := decode(r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	created, err := s.store.AddRule(rule)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.log.Info("api: rule created", "id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	var patch stage.RulePatch
	if err := decode(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	updated, err := s.store.UpdateRule(mux.Vars(r)["id"], patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.RemoveRule(id); err != nil {
		writeStoreError(w, err)
		return
	}
	s.log.Info("api: rule deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) applyPreset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	preset, ok := mood.Presets[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown preset %q", name))
		return
	}
	if err := s.store.ReplaceRules(preset.Rules()); err != nil {
		writeStoreError(w, err)
		return
	}
	s.log.Info("api: preset applied", "preset", name)
	writeJSON(w, http.StatusOK, s.store.Rules())
}

// Connections

func (s *Server) listConnections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot().Connections)
}

func (s *Server) setConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State string `json:"state"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	state, err := stage.ParseConnState(req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := mux.Vars(r)["name"]
	if err := s.store.SetConnection(name, state); err != nil {
		writeStoreError(w, err)
		return
	}
	metrics.IncConnectionEvent(name, "manual")
	c, _ := s.store.Snapshot().Connection(name)
	writeJSON(w, http.StatusOK, c)
}

// System

type systemStatus struct {
	Active      bool   `json:"active"`
	Override    bool   `json:"override"`
	Version     uint64 `json:"version"`
	Subscribers int    `json:"subscribers"`
}

func (s *Server) status() systemStatus {
	return systemStatus{
		Active:      s.engine.Running(),
		Override:    s.store.Override(),
		Version:     s.store.Version(),
		Subscribers: s.store.Subscribers(),
	}
}

func (s *Server) getSystem(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) setSystem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := decode(r, &req); err != nil || req.Active == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"active\": bool}")
		return
	}
	if *req.Active {
		s.engine.Start(s.ctx)
	} else {
		s.engine.Stop()
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) setOverride(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := decode(r, &req); err != nil || req.Active == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"active\": bool}")
		return
	}
	s.store.SetOverride(*req.Active)
	s.log.Info("api: manual override", "active", *req.Active)
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) emergencyStop(w http.ResponseWriter, _ *http.Request) {
	s.engine.EmergencyStop()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) reset(w http.ResponseWriter, _ *http.Request) {
	if err := s.engine.Reset(); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) evaluate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Evaluate())
}

// Outputs

func (s *Server) listOutputs(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"override": snap.Override, "controls": snap.Controls})
}

// updateOutput sets one output's manual levels. Each output accepts only its
// own fields.
func (s *Server) updateOutput(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var (
		patch stage.ControlsPatch
		err   error
	)
	switch name {
	case stage.OutputQLab:
		var req struct {
			Volume *float64 `json:"volume"`
			Cue    *string  `json:"current_cue"`
		}
		err = decode(r, &req)
		patch.Volume, patch.Cue = req.Volume, req.Cue
	case stage.OutputResolume:
		var req struct {
			Opacity *float64 `json:"opacity"`
			Layer   *string  `json:"layer"`
		}
		err = decode(r, &req)
		patch.Opacity, patch.Layer = req.Opacity, req.Layer
	case stage.OutputLighting:
		var req struct {
			Brightness *float64 `json:"brightness"`
			Color      *string  `json:"color"`
		}
		err = decode(r, &req)
		patch.Brightness, patch.Color = req.Brightness, req.Color
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown output %q", name))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	controls, err := s.store.UpdateControls(patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, controls)
}

// Analytics

func (s *Server) summary(w http.ResponseWriter) (analytics.Summary, bool) {
	if s.tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics disabled")
		return analytics.Summary{}, false
	}
	return s.tracker.Summary(), true
}

func (s *Server) getAnalytics(w http.ResponseWriter, _ *http.Request) {
	sum, ok := s.summary(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) exportXLSX(w http.ResponseWriter, _ *http.Request) {
	sum, ok := s.summary(w)
	if !ok {
		return
	}
	data, err := analytics.BuildXLSX(sum)
	metrics.IncExport("xlsx", err)
	if err != nil {
		s.log.Error("api: xlsx export failed", "err", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeFile(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx", sum.GeneratedAt, data)
}

func (s *Server) exportPDF(w http.ResponseWriter, _ *http.Request) {
	sum, ok := s.summary(w)
	if !ok {
		return
	}
	data, err := analytics.BuildPDF(sum)
	metrics.IncExport("pdf", err)
	if err != nil {
		s.log.Error("api: pdf export failed", "err", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeFile(w, "application/pdf", "pdf", sum.GeneratedAt, data)
}

func writeFile(w http.ResponseWriter, contentType, ext string, at time.Time, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=mood-analytics-%s.%s", at.Format("20060102-150405"), ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
