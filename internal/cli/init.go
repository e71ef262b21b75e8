package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moorebrett0/moodstage/internal/onboarding"
)

func init() {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Pick a venue preset and write a fresh state file",
		Run:   runInit,
	}

	cmd.Flags().Bool("force", false, "Overwrite an existing state file")

	RootCmd.AddCommand(cmd)
}

func runInit(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")
	path := getStatePath()

	res, err := onboarding.Run(os.Stdin, os.Stdout, path, force)
	if err != nil {
		if errors.Is(err, onboarding.ErrAlreadyInitialized) {
			exitErr("init", fmt.Errorf("%w (use --force to overwrite)", err))
		}
		exitErr("init", err)
	}
	fmt.Printf("  wrote %s (%s, %d rules)\n", path, res.Preset.ID, len(res.Rules))
}
