package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meganc/bidscombine/internal/catalog"
	"github.com/meganc/bidscombine/internal/combine"
	"github.com/meganc/bidscombine/internal/config"
	"github.com/meganc/bidscombine/internal/logger"
)

// NewCombineCommand creates the combine command
func NewCombineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "combine <bids_dir> <participant_label>",
		Short: "Combine one subject's sessions into a synthetic single session",
		Long: `Combine one subject's sessions into a synthetic single session.

bids_dir is the root of a BIDS-formatted dataset. participant_label is
the subject to process, without the "sub-" prefix. Output is written to
<bids_dir>/../niftis_desc-<dataset-name>/sub-<participant_label>/.

By default every session found for the subject is combined, ordered by
name. --session-list overrides both the selection and the order; the
order determines run numbering for every output category.

Configuration is loaded from .bidscombine.yaml if present.
CLI flags override configuration file settings.

Examples:
  # Combine all sessions, default output name
  bidscombine combine /data/study 1017

  # Explicit session order; T1w taken from one session only
  bidscombine combine /data/study 1017 --session-list baseline,followup --t1-session-label baseline

  # Plan without copying
  bidscombine combine /data/study 1017 --dry-run

  # Re-run over a previous output tree
  bidscombine combine /data/study 1017 --overwrite`,
		Args: cobra.ExactArgs(2),
		RunE: runCombine,
	}

	cmd.Flags().StringSlice("session-list", nil, "Ordered session labels to combine (without ses- prefix)")
	cmd.Flags().String("t1-session-label", "", "Session whose T1w data is used (default: all combined sessions)")
	cmd.Flags().String("t2-session-label", "", "Session whose T2w data is used (default: all combined sessions)")
	cmd.Flags().String("dataset-name", "", `Name for the desc- part of the output directory (default "combined")`)
	cmd.Flags().String("owner-group", "", "Group name or GID to own new paths and files")
	cmd.Flags().Bool("overwrite", false, "Replace destination files left by a previous run")
	cmd.Flags().Bool("dry-run", false, "Resolve and log the plan without copying files")
	cmd.Flags().String("config", "", "Path to config file (default: .bidscombine.yaml)")
	cmd.Flags().String("log-level", "", "Console verbosity (debug, info, warn, error)")

	return cmd
}

// runCombine implements the combine command logic
func runCombine(cmd *cobra.Command, args []string) error {
	bidsDir, participant := args[0], args[1]

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.DefaultPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Build flag pointers for merge (only values set on the command line)
	var datasetNamePtr, ownerGroupPtr, logLevelPtr *string
	var overwritePtr, dryRunPtr *bool

	if cmd.Flags().Changed("dataset-name") {
		v, _ := cmd.Flags().GetString("dataset-name")
		datasetNamePtr = &v
	}
	if cmd.Flags().Changed("owner-group") {
		v, _ := cmd.Flags().GetString("owner-group")
		ownerGroupPtr = &v
	}
	if cmd.Flags().Changed("log-level") {
		v, _ := cmd.Flags().GetString("log-level")
		logLevelPtr = &v
	}
	if cmd.Flags().Changed("overwrite") {
		v, _ := cmd.Flags().GetBool("overwrite")
		overwritePtr = &v
	}
	if cmd.Flags().Changed("dry-run") {
		v, _ := cmd.Flags().GetBool("dry-run")
		dryRunPtr = &v
	}

	cfg.MergeWithFlags(datasetNamePtr, ownerGroupPtr, logLevelPtr, overwritePtr, dryRunPtr)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sessionList, _ := cmd.Flags().GetStringSlice("session-list")
	t1Session, _ := cmd.Flags().GetString("t1-session-label")
	t2Session, _ := cmd.Flags().GetString("t2-session-label")

	cat, err := catalog.Open(bidsDir)
	if err != nil {
		return err
	}
	defer cat.Close()

	console := logger.NewConsole(os.Stdout, cfg.LogLevel)

	result, err := combine.Run(cat, combine.Options{
		Participant:    participant,
		SessionList:    sessionList,
		T1SessionLabel: t1Session,
		T2SessionLabel: t2Session,
		DatasetName:    cfg.DatasetName,
		OwnerGroup:     cfg.OwnerGroup,
		Overwrite:      cfg.Overwrite,
		DryRun:         cfg.DryRun,
	}, console)
	if err != nil {
		return err
	}

	if cfg.DryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Dry run complete; nothing copied. Plan logged to %s\n", result.SubjectDir)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Combined %d file(s) into %s\n", result.FilesCopied, result.SubjectDir)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d warning(s); see the README audit log for details\n", len(result.Warnings))
	}
	return nil
}
