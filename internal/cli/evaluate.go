package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/moorebrett0/moodstage/internal/mood"
	"github.com/moorebrett0/moodstage/internal/simulator"
	"github.com/moorebrett0/moodstage/internal/stage"
)

func init() {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one reading against the saved rules",
		Long:  "Runs rule selection once for a reading given by flags. Rules come from the state file, or the stock rules if there is none.",
		Run:   runEvaluate,
	}

	cmd.Flags().Int("occupancy", 10, "People present")
	cmd.Flags().Float64("movement", 0.5, "Movement level 0-1")
	cmd.Flags().Float64("audio", 0.5, "Audio level 0-1")
	cmd.Flags().Float64("light", 0.5, "Light level 0-1")
	cmd.Flags().String("at", "", "Local time of day HH:MM (default: now)")

	RootCmd.AddCommand(cmd)
}

// evaluation is the evaluate command's output.
type evaluation struct {
	Reading    mood.Reading `json:"reading"`
	At         string       `json:"at"`
	Matched    bool         `json:"matched"`
	RuleID     string       `json:"rule_id,omitempty"`
	Rule       string       `json:"rule,omitempty"`
	TargetMood string       `json:"target_mood,omitempty"`
}

func runEvaluate(cmd *cobra.Command, args []string) {
	occupancy, _ := cmd.Flags().GetInt("occupancy")
	movement, _ := cmd.Flags().GetFloat64("movement")
	audio, _ := cmd.Flags().GetFloat64("audio")
	light, _ := cmd.Flags().GetFloat64("light")
	at, _ := cmd.Flags().GetString("at")

	now, err := timeOfDay(time.Now(), at)
	if err != nil {
		exitErr("parse --at", err)
	}

	rules, err := loadRules(getStatePath())
	if err != nil {
		exitErr("read rules", err)
	}

	r := mood.Reading{
		Occupancy:  occupancy,
		Movement:   movement,
		Audio:      audio,
		Light:      light,
		CapturedAt: now,
	}
	out := evaluateReading(r, rules, now)

	if formatFlag == "text" {
		fmt.Println(simulator.Format(r))
		if !out.Matched {
			fmt.Println("no rule matched")
			return
		}
		fmt.Printf("%s -> %s\n", out.Rule, out.TargetMood)
		return
	}
	printJSON(out)
}

func evaluateReading(r mood.Reading, rules []mood.Rule, now time.Time) evaluation {
	out := evaluation{Reading: r, At: now.Format("15:04")}
	if rule, ok := mood.Select(r, rules, now); ok {
		out.Matched = true
		out.RuleID = rule.ID
		out.Rule = rule.Name
		out.TargetMood = rule.TargetMood
	}
	return out
}

// timeOfDay returns day with its clock set to hhmm. Empty hhmm returns day.
func timeOfDay(day time.Time, hhmm string) (time.Time, error) {
	if hhmm == "" {
		return day, nil
	}
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

// loadRules reads the rule list from a state file. A missing file yields the
// stock rules.
func loadRules(path string) ([]mood.Rule, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return mood.DefaultRules(), nil
	}
	return stage.ReadRules(path)
}
