package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meganc/bidscombine/internal/catalog"
)

// NewInspectCommand creates the inspect command
func NewInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <bids_dir> [participant_label]",
		Short: "List the subjects, sessions, and tasks of a dataset",
		Long: `List what the catalog knows about a dataset without writing anything.

With only a bids_dir, lists the subject labels. With a participant
label, lists that subject's sessions and the tasks found across them.
These are the same queries the combine command plans from, so inspect
answers "what would be combined" before running it.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runInspect,
	}
}

// runInspect implements the inspect command logic
func runInspect(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Open(args[0])
	if err != nil {
		return err
	}
	defer cat.Close()

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		subjects, err := cat.Subjects()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Subjects (%d):\n", len(subjects))
		for _, s := range subjects {
			fmt.Fprintf(out, "  sub-%s\n", s)
		}
		return nil
	}

	participant := args[1]
	sessions, err := cat.Sessions(participant)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return fmt.Errorf("subject %q has no sessions in %s", participant, cat.Root())
	}
	tasks, err := cat.Tasks(participant, sessions)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Subject sub-%s:\n", participant)
	fmt.Fprintf(out, "  Sessions: %s\n", strings.Join(sessions, ", "))
	if len(tasks) > 0 {
		fmt.Fprintf(out, "  Tasks:    %s\n", strings.Join(tasks, ", "))
	} else {
		fmt.Fprintf(out, "  Tasks:    (none, anatomical data only)\n")
	}
	return nil
}
