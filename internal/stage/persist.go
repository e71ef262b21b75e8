package stage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moorebrett0/moodstage/internal/mood"
)

// savedState is the on-disk form of the store. Readings and history are
// transient and not saved.
type savedState struct {
	Mood        string       `json:"mood"`
	Rules       []mood.Rule  `json:"rules"`
	Connections []Connection `json:"connections"`
	Override    bool         `json:"override,omitempty"`
	Controls    *Controls    `json:"controls,omitempty"`
}

// Save writes the rule list, active mood, roster and manual controls to disk
// atomically (write tmp, then rename).
func (s *Store) Save(path string) error {
	s.mu.RLock()
	controls := s.controls
	st := savedState{
		Mood:        s.current.Name,
		Override:    s.override,
		Controls:    &controls,
		Rules:       make([]mood.Rule, 0, len(s.rules)),
		Connections: make([]Connection, 0, len(s.conns)),
	}
	for _, r := range s.rules {
		st.Rules = append(st.Rules, r.Clone())
	}
	for _, c := range s.conns {
		st.Connections = append(st.Connections, c.clone())
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	// Unique tmp per call so concurrent saves never share a half-written file.
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create tmp state: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write tmp state: %w", err)
	}
	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("chmod tmp state: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close tmp state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// Load builds a store from a saved state file layered over opts. A missing
// file yields a store built from opts alone.
func Load(path string, opts Options) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(opts)
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var st savedState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = mood.DefaultCatalog()
		opts.Catalog = catalog
	}
	for _, r := range st.Rules {
		if err := mood.ValidateRule(r, catalog); err != nil {
			return nil, fmt.Errorf("saved rule %q: %w", r.ID, err)
		}
	}

	if st.Mood != "" {
		opts.Initial = st.Mood
	}
	if st.Rules != nil {
		opts.Rules = st.Rules
	}
	if st.Connections != nil {
		opts.Connections = st.Connections
	}
	if st.Controls != nil {
		opts.Controls = st.Controls
	}
	opts.Override = st.Override
	return New(opts)
}

// ReadRules returns only the rule list from a saved state file.
func ReadRules(path string) ([]mood.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st savedState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return st.Rules, nil
}
