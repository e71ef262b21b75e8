package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moorebrett0/moodstage/internal/mood"
)

func init() {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List venue presets",
		Run:   runPresets,
	}

	RootCmd.AddCommand(cmd)
}

type presetInfo struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Rules       []mood.Rule `json:"rules"`
}

func runPresets(cmd *cobra.Command, args []string) {
	if formatFlag == "text" {
		for _, id := range mood.PresetIDs {
			p := mood.Presets[id]
			fmt.Printf("%-10s %-18s %s\n", p.ID, p.Name, p.Description)
		}
		return
	}
	printJSON(listPresets())
}

func listPresets() []presetInfo {
	out := make([]presetInfo, 0, len(mood.PresetIDs))
	for _, id := range mood.PresetIDs {
		p := mood.Presets[id]
		out = append(out, presetInfo{ID: p.ID, Name: p.Name, Description: p.Description, Rules: p.Rules()})
	}
	return out
}
