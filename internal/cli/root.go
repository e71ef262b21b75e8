// Package cli implements the moodstage CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moorebrett0/moodstage/internal/config"
)

var (
	configPath string
	statePath  string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "moodstage",
	Short: "Ambient mood control for installations",
	Long:  "Simulated sensors in, moods out. Rules pick the mood, outputs follow, operators steer over HTTP or Discord.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "moodstage.yaml", "Config file path")
	RootCmd.PersistentFlags().StringVarP(&statePath, "state", "s", "", "State file path (default: state.path from config)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

// loadConfig reads the config file and applies the --state override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if statePath != "" {
		cfg.State.Path = statePath
	}
	return cfg, nil
}

// getStatePath resolves the state file without requiring a valid config.
func getStatePath() string {
	if statePath != "" {
		return statePath
	}
	if env := os.Getenv("MOODSTAGE_STATE_PATH"); env != "" {
		return env
	}
	if cfg, err := config.Load(configPath); err == nil {
		return cfg.State.Path
	}
	return "moodstage.json"
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
