package mood

// Preset is a named venue rule set an operator can load in one step.
type Preset struct {
	ID          string
	Name        string
	Description string
	rules       []Rule
}

// Rules returns fresh copies of the preset rules, each with a new ID.
func (p *Preset) Rules() []Rule {
	out := make([]Rule, 0, len(p.rules))
	for _, r := range p.rules {
		c := r.Clone()
		c.ID = NewRuleID()
		out = append(out, c)
	}
	return out
}

// Presets holds all venue presets keyed by ID.
var Presets = map[string]*Preset{
	"gallery":   gallery,
	"museum":    museum,
	"corporate": corporate,
	"festival":  festival,
}

// PresetIDs defines display order for preset selection.
var PresetIDs = []string{"gallery", "museum", "corporate", "festival"}

// DefaultRules returns the stock rule set loaded on first start.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:   "1",
			Name: "High Energy Crowds",
			Conditions: Conditions{
				Occupancy: &Range{Min: 20, Max: 100},
				Movement:  &Range{Min: 0.7, Max: 1.0},
			},
			TargetMood: Energetic,
			Priority:   10,
			Enabled:    true,
		},
		{
			ID:   "2",
			Name: "Quiet Hours",
			Conditions: Conditions{
				Occupancy: &Range{Min: 1, Max: 5},
				TimeOfDay: &TimeWindow{Start: "09:00", End: "11:00"},
			},
			TargetMood: Peaceful,
			Priority:   8,
			Enabled:    true,
		},
		{
			ID:   "3",
			Name: "Social Gatherings",
			Conditions: Conditions{
				Occupancy: &Range{Min: 10, Max: 25},
				Audio:     &Range{Min: 0.4, Max: 0.8},
			},
			TargetMood: Social,
			Priority:   7,
			Enabled:    true,
		},
	}
}

var gallery = &Preset{
	ID:          "gallery",
	Name:        "Art Gallery",
	Description: "Sophisticated atmosphere for art appreciation",
	rules: []Rule{
		{
			Name:       "Quiet Contemplation",
			Conditions: Conditions{Occupancy: &Range{Min: 1, Max: 8}},
			TargetMood: Contemplative,
			Priority:   8,
			Enabled:    true,
		},
		{
			Name: "Opening Night Energy",
			Conditions: Conditions{
				Occupancy: &Range{Min: 20, Max: 100},
				Audio:     &Range{Min: 0.5, Max: 0.8},
			},
			TargetMood: Social,
			Priority:   9,
			Enabled:    true,
		},
	},
}

var museum = &Preset{
	ID:          "museum",
	Name:        "Museum Experience",
	Description: "Educational and engaging environment",
	rules: []Rule{
		{
			Name: "Learning Mode",
			Conditions: Conditions{
				Occupancy: &Range{Min: 5, Max: 15},
				TimeOfDay: &TimeWindow{Start: "10:00", End: "16:00"},
			},
			TargetMood: Contemplative,
			Priority:   7,
			Enabled:    true,
		},
		{
			Name:       "Interactive Discovery",
			Conditions: Conditions{Movement: &Range{Min: 0.6, Max: 1.0}},
			TargetMood: Energetic,
			Priority:   8,
			Enabled:    true,
		},
	},
}

var corporate = &Preset{
	ID:          "corporate",
	Name:        "Corporate Event",
	Description: "Professional networking and presentations",
	rules: []Rule{
		{
			Name: "Networking Energy",
			Conditions: Conditions{
				Occupancy: &Range{Min: 15, Max: 50},
				Audio:     &Range{Min: 0.4, Max: 0.7},
			},
			TargetMood: Social,
			Priority:   9,
			Enabled:    true,
		},
		{
			Name: "Presentation Focus",
			Conditions: Conditions{
				Movement: &Range{Min: 0, Max: 0.3},
				Audio:    &Range{Min: 0, Max: 0.3},
			},
			TargetMood: Contemplative,
			Priority:   8,
			Enabled:    true,
		},
	},
}

// The late-night window wraps midnight and so never matches; kept as shipped.
var festival = &Preset{
	ID:          "festival",
	Name:        "Festival/Event",
	Description: "High energy crowd entertainment",
	rules: []Rule{
		{
			Name: "Festival Energy",
			Conditions: Conditions{
				Occupancy: &Range{Min: 30, Max: 200},
				Movement:  &Range{Min: 0.7, Max: 1.0},
			},
			TargetMood: Energetic,
			Priority:   10,
			Enabled:    true,
		},
		{
			Name:       "Late Night Mysterious",
			Conditions: Conditions{TimeOfDay: &TimeWindow{Start: "22:00", End: "02:00"}},
			TargetMood: Mysterious,
			Priority:   7,
			Enabled:    true,
		},
	},
}
