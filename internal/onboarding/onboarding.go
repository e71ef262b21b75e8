// Package onboarding runs the first-time terminal setup: pick a venue preset
// and a starting mood, then write the state file.
package onboarding

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/moorebrett0/moodstage/internal/mood"
	"github.com/moorebrett0/moodstage/internal/stage"
)

// ErrAlreadyInitialized is returned when the state file exists and force is off.
var ErrAlreadyInitialized = errors.New("state file already exists")

// charDelay paces printSlow. Zero in tests.
var charDelay = 30 * time.Millisecond

// Result is what the operator picked.
type Result struct {
	Preset *mood.Preset
	Mood   string
	Rules  []mood.Rule
}

// Run performs interactive onboarding and saves the chosen setup to statePath.
func Run(in io.Reader, out io.Writer, statePath string, force bool) (*Result, error) {
	if !force {
		if _, err := os.Stat(statePath); err == nil {
			return nil, fmt.Errorf("%s: %w", statePath, ErrAlreadyInitialized)
		}
	}

	reader := bufio.NewReader(in)
	catalog := mood.DefaultCatalog()

	fmt.Fprintln(out)
	printSlow(out, "  warming up the room...")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "  pick a venue:")
	fmt.Fprintln(out)
	for i, id := range mood.PresetIDs {
		p := mood.Presets[id]
		fmt.Fprintf(out, "  %d) %-18s %s\n", i+1, p.Name, p.Description)
	}
	fmt.Fprintln(out)

	var preset *mood.Preset
	for preset == nil {
		input, err := prompt(reader, out)
		if err != nil {
			return nil, err
		}
		preset = pickPreset(input)
		if preset == nil {
			fmt.Fprintf(out, "  hmm, pick a number 1-%d or type the preset id\n", len(mood.PresetIDs))
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  starting mood? (%s) [%s]\n", strings.Join(catalog.Names(), ", "), mood.Contemplative)
	fmt.Fprintln(out)

	var initial string
	for initial == "" {
		input, err := prompt(reader, out)
		if err != nil {
			return nil, err
		}
		if input == "" {
			initial = mood.Contemplative
			break
		}
		for _, name := range catalog.Names() {
			if strings.EqualFold(name, input) {
				initial = name
			}
		}
		if initial == "" {
			fmt.Fprintln(out, "  no such mood, try again")
		}
	}

	rules := preset.Rules()
	store, err := stage.New(stage.Options{Catalog: catalog, Initial: initial, Rules: rules})
	if err != nil {
		return nil, fmt.Errorf("build state: %w", err)
	}
	if err := store.Save(statePath); err != nil {
		return nil, err
	}

	fmt.Fprintln(out)
	printSlow(out, fmt.Sprintf("  %s loaded with %d rules.", preset.Name, len(rules)))
	printSlow(out, fmt.Sprintf("  the room starts %s.", strings.ToLower(initial)))
	fmt.Fprintln(out)

	return &Result{Preset: preset, Mood: initial, Rules: rules}, nil
}

// prompt reads one trimmed line. A closed input with nothing typed is an error.
func prompt(r *bufio.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "  > ")
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", errors.New("onboarding: input closed")
		}
		return "", fmt.Errorf("onboarding: read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func pickPreset(input string) *mood.Preset {
	if num, err := strconv.Atoi(input); err == nil && num >= 1 && num <= len(mood.PresetIDs) {
		return mood.Presets[mood.PresetIDs[num-1]]
	}
	return mood.Presets[strings.ToLower(input)]
}

// Check is one line of the startup checklist.
type Check struct {
	Label string
	OK    bool
}

// PrintStartup prints the startup checklist.
func PrintStartup(out io.Writer, moodName string, checks []Check) {
	fmt.Fprintln(out, "  starting up...")

	for _, c := range checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		fmt.Fprintf(out, "  %s %s\n", mark, c.Label)
	}

	fmt.Fprintln(out)
	printSlow(out, fmt.Sprintf("  the room is %s.", strings.ToLower(moodName)))
	fmt.Fprintln(out)
}

func printSlow(out io.Writer, text string) {
	for _, ch := range text {
		fmt.Fprint(out, string(ch))
		if charDelay > 0 {
			time.Sleep(charDelay)
		}
	}
	fmt.Fprintln(out)
}
