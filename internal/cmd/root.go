package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for bidscombine
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bidscombine",
		Short: "Combine multi-session BIDS data into a single synthetic session",
		Long: `bidscombine reorganizes multi-session BIDS neuroimaging data for one
subject into a single "combined" session.

Anatomical, functional, and field-map files are renumbered into
collision-free run sequences, copied into a fresh output tree next to
the dataset, and each copied file's JSON sidecar gains a SourceFile
field pointing back at the original. A README audit log in the output
subject directory records every decision and copy.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewCombineCommand())
	cmd.AddCommand(NewInspectCommand())
	cmd.AddCommand(NewReportCommand())

	return cmd
}
