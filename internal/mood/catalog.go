// Package mood defines the mood catalog, the condition→mood rules and the
// rule evaluator that picks a mood for the current environment reading.
package mood

import "time"

// Profile is a selectable ambient state with its display parameters.
type Profile struct {
	Name        string    `json:"name"`
	Energy      float64   `json:"energy"`
	Valence     float64   `json:"valence"`
	Arousal     float64   `json:"arousal"`
	Color       string    `json:"color"`
	Description string    `json:"description"`
	LastUpdated time.Time `json:"last_updated"`
}

// Catalog is an ordered set of profiles keyed by name.
type Catalog struct {
	order    []string
	profiles map[string]Profile
}

// NewCatalog builds a catalog. Later duplicates replace earlier entries but
// keep the first position.
func NewCatalog(profiles ...Profile) *Catalog {
	c := &Catalog{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		if _, ok := c.profiles[p.Name]; !ok {
			c.order = append(c.order, p.Name)
		}
		c.profiles[p.Name] = p
	}
	return c
}

// Lookup returns the profile with the given name.
func (c *Catalog) Lookup(name string) (Profile, bool) {
	p, ok := c.profiles[name]
	return p, ok
}

// Names returns profile names in display order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Profiles returns all profiles in display order.
func (c *Catalog) Profiles() []Profile {
	out := make([]Profile, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.profiles[n])
	}
	return out
}

// Len returns the number of profiles.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Stock mood names.
const (
	Energetic     = "Energetic"
	Contemplative = "Contemplative"
	Social        = "Social"
	Mysterious    = "Mysterious"
	Peaceful      = "Peaceful"
)

// DefaultCatalog returns the stock installation moods.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Profile{
			Name:        Energetic,
			Energy:      0.9,
			Valence:     0.8,
			Arousal:     0.9,
			Color:       "#EF4444",
			Description: "High energy and excitement",
		},
		Profile{
			Name:        Contemplative,
			Energy:      0.3,
			Valence:     0.6,
			Arousal:     0.2,
			Color:       "#8B5CF6",
			Description: "Quiet reflection and thoughtful observation",
		},
		Profile{
			Name:        Social,
			Energy:      0.7,
			Valence:     0.9,
			Arousal:     0.6,
			Color:       "#10B981",
			Description: "Interactive and collaborative atmosphere",
		},
		Profile{
			Name:        Mysterious,
			Energy:      0.5,
			Valence:     0.3,
			Arousal:     0.7,
			Color:       "#6366F1",
			Description: "Intriguing and thought-provoking",
		},
		Profile{
			Name:        Peaceful,
			Energy:      0.2,
			Valence:     0.8,
			Arousal:     0.1,
			Color:       "#06B6D4",
			Description: "Calm and serene environment",
		},
	)
}
