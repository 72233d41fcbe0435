package combine

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/meganc/bidscombine/internal/catalog"
	"github.com/meganc/bidscombine/internal/filelock"
	"github.com/meganc/bidscombine/internal/logger"
)

// lockFileName is the invocation lock inside the output subject
// directory. One combine per subject per output tree at a time.
const lockFileName = ".bidscombine.lock"

// auditFileName is the durable run log, collocated with the output.
const auditFileName = "README"

// Options are the resolved inputs of one combine run.
type Options struct {
	Participant    string   // subject label without the sub- prefix
	SessionList    []string // explicit ordered session labels; empty = all, sorted
	T1SessionLabel string   // restrict T1w data to this session
	T2SessionLabel string   // restrict T2w data to this session
	DatasetName    string   // desc- value of the output directory name
	OwnerGroup     string   // group name or numeric GID for new files
	Overwrite      bool     // allow clobbering output from a previous run
	DryRun         bool     // plan and log, copy nothing
}

// Result summarizes a completed run.
type Result struct {
	OutputDir   string
	SubjectDir  string
	Sessions    []string // resolved combined-session order
	Warnings    []string
	FilesCopied int
}

// reporter accumulates warnings for the Result while forwarding every
// event to the injected logger.
type reporter struct {
	log      logger.Logger
	warnings []string
}

func (r *reporter) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.warnings = append(r.warnings, msg)
	r.log.Warnf("%s", msg)
}

// Run combines the subject's sessions into a single synthetic session:
// selector, collector, renumbering engine, and materializer execute
// strictly in sequence, fail-fast, with every decision recorded in the
// README audit log under the output subject directory. A fatal error
// aborts immediately and leaves partial output on disk.
func Run(cat *catalog.Catalog, opts Options, log logger.Logger) (*Result, error) {
	subjects, err := cat.Subjects()
	if err != nil {
		return nil, err
	}
	if !slices.Contains(subjects, opts.Participant) {
		return nil, fmt.Errorf("%w: subject %q is not in the dataset at %s", ErrConfiguration, opts.Participant, cat.Root())
	}

	subject := "sub-" + opts.Participant
	datasetName := opts.DatasetName
	if datasetName == "" {
		datasetName = "combined"
	}

	outputDir := filepath.Join(cat.Root(), "..", "niftis_desc-"+datasetName)
	subjectDir := filepath.Join(outputDir, subject)
	if err := os.MkdirAll(subjectDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create output directory %s: %v", ErrIO, subjectDir, err)
	}

	lock := filelock.New(filepath.Join(subjectDir, lockFileName))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: another invocation is already combining %s (lock %s is held)", ErrIO, subject, lock.Path())
	}
	defer lock.Unlock() //nolint:errcheck // release is best-effort on the way out

	audit, err := logger.NewAudit(filepath.Join(subjectDir, auditFileName))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer audit.Close()

	run := logger.NewMulti(log, audit)
	rep := &reporter{log: run}

	run.Infof("combine was run with these values:")
	run.Infof("BIDS directory: %s", cat.Root())
	run.Infof("Participant label: %s", opts.Participant)
	run.Infof("Session list: %v", opts.SessionList)
	run.Infof("T1w session label: %s", opts.T1SessionLabel)
	run.Infof("T2w session label: %s", opts.T2SessionLabel)
	run.Infof("Dataset name: %s", datasetName)
	run.Infof("Owner group: %s", opts.OwnerGroup)

	mat, err := NewMaterializer(subjectDir, opts.OwnerGroup, opts.Overwrite, rep)
	if err != nil {
		run.Errorf("%v", err)
		return nil, err
	}
	if err := mat.Chgrp(outputDir); err != nil {
		run.Errorf("%v", err)
		return nil, err
	}
	if err := mat.Chgrp(subjectDir); err != nil {
		run.Errorf("%v", err)
		return nil, err
	}

	available, err := cat.Sessions(opts.Participant)
	if err != nil {
		return nil, err
	}
	plan, err := ResolveSessions(available, opts.SessionList, opts.T1SessionLabel, opts.T2SessionLabel)
	if err != nil {
		run.Errorf("%v", err)
		return nil, err
	}
	run.Infof("Combined session order: %s", strings.Join(plan.Order, ", "))

	groups, err := Collect(cat, opts.Participant, plan, rep)
	if err != nil {
		run.Errorf("%v", err)
		return nil, err
	}

	assignments, err := Renumber(groups, rep)
	if err != nil {
		run.Errorf("%v", err)
		return nil, err
	}

	result := &Result{
		OutputDir:  outputDir,
		SubjectDir: subjectDir,
		Sessions:   plan.Order,
	}

	if opts.DryRun {
		run.Infof("dry run: %d file(s) would be copied", len(assignments))
		for _, a := range assignments {
			run.Infof("%s -> %s", a.Source.Path, filepath.Join(subjectDir, a.Subdir, a.Filename))
		}
		result.Warnings = rep.warnings
		return result, nil
	}

	for _, a := range assignments {
		if err := mat.Materialize(a); err != nil {
			run.Errorf("%v", err)
			return nil, err
		}
		result.FilesCopied++
	}

	run.Infof("combined %d file(s) into %s", result.FilesCopied, subjectDir)
	result.Warnings = rep.warnings
	return result, nil
}
