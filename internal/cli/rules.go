package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/moorebrett0/moodstage/internal/mood"
	"github.com/moorebrett0/moodstage/internal/stage"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect or replace the rules in the state file",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List rules by priority",
		Run:   runRulesList,
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check every rule against the mood catalog",
		Run:   runRulesValidate,
	}

	load := &cobra.Command{
		Use:   "load <preset>",
		Short: "Replace the rules with a venue preset",
		Args:  cobra.ExactArgs(1),
		Run:   runRulesLoad,
	}

	cmd.AddCommand(list, validate, load)
	RootCmd.AddCommand(cmd)
}

func runRulesList(cmd *cobra.Command, args []string) {
	rules, err := loadRules(getStatePath())
	if err != nil {
		exitErr("read rules", err)
	}

	if formatFlag == "text" {
		for _, r := range sortedByPriority(rules) {
			state := "on"
			if !r.Enabled {
				state = "off"
			}
			fmt.Printf("%3d  %-3s  %-28s -> %s\n", r.Priority, state, r.Name, r.TargetMood)
		}
		return
	}
	printJSON(sortedByPriority(rules))
}

// ruleProblem is one validation failure.
type ruleProblem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

func runRulesValidate(cmd *cobra.Command, args []string) {
	rules, err := loadRules(getStatePath())
	if err != nil {
		exitErr("read rules", err)
	}

	problems := validateRules(rules, mood.DefaultCatalog())
	if formatFlag == "text" {
		for _, p := range problems {
			fmt.Printf("%s (%s): %s\n", p.Name, p.ID, p.Error)
		}
		if len(problems) == 0 {
			fmt.Printf("%d rules ok\n", len(rules))
		}
	} else {
		printJSON(map[string]any{"rules": len(rules), "problems": problems})
	}
	if len(problems) > 0 {
		os.Exit(1)
	}
}

func runRulesLoad(cmd *cobra.Command, args []string) {
	preset, ok := mood.Presets[args[0]]
	if !ok {
		exitErr("load preset", fmt.Errorf("unknown preset %q (try: moodstage presets)", args[0]))
	}

	path := getStatePath()
	store, err := stage.Load(path, stage.Options{})
	if err != nil {
		exitErr("load state", err)
	}
	if err := store.ReplaceRules(preset.Rules()); err != nil {
		exitErr("replace rules", err)
	}
	if err := store.Save(path); err != nil {
		exitErr("save state", err)
	}
	fmt.Printf("loaded %s into %s\n", preset.Name, path)
}

func validateRules(rules []mood.Rule, catalog *mood.Catalog) []ruleProblem {
	problems := []ruleProblem{}
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if seen[r.ID] {
			problems = append(problems, ruleProblem{ID: r.ID, Name: r.Name, Error: "duplicate id"})
			continue
		}
		seen[r.ID] = true
		if err := mood.ValidateRule(r, catalog); err != nil {
			problems = append(problems, ruleProblem{ID: r.ID, Name: r.Name, Error: err.Error()})
		}
	}
	return problems
}

// sortedByPriority returns rules in evaluation order.
func sortedByPriority(rules []mood.Rule) []mood.Rule {
	out := append([]mood.Rule(nil), rules...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}
