package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petal-labs/toolrun/core"
)

// NewValidateCmd creates the "validate" subcommand for tool manifests.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>...",
		Short: "Validate tool manifest files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		manifest, err := core.LoadManifest(path)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
			failed++
			continue
		}
		if err := manifest.Validate(); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s)\n", path, manifest.Name)
	}

	if failed > 0 {
		return exitError(exitValidation, "%d manifest(s) failed validation", failed)
	}
	return nil
}
