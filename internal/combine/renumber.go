package combine

import (
	"fmt"
	"strings"

	"github.com/meganc/bidscombine/internal/bids"
	"github.com/meganc/bidscombine/internal/catalog"
)

// anatRunWidth is the zero-padding width for anatomical and field-map
// run indices.
const anatRunWidth = 2

// funcWideThreshold is the per-task file count above which functional
// run indices widen from 2 to 3 digits.
const funcWideThreshold = 100

// Assignment maps one source file to its destination inside the
// combined subject tree.
type Assignment struct {
	Source   catalog.SourceFile
	Subdir   string // anat, func, fmap
	Filename string
}

// Renumber assigns every collected file a new run index and destination
// filename. Run assignment is a pure function of group membership and
// input order: indices are 1..N in collector order, restarting per
// group, with no re-sorting. Field-map files are classified by their
// "dir" entity into AP, PA, and generic sub-groups that number
// independently.
func Renumber(groups *Groups, rep *reporter) ([]Assignment, error) {
	var out []Assignment

	for run, f := range groups.T1w {
		filename, err := anatFilename(f, run+1)
		if err != nil {
			return nil, err
		}
		out = append(out, Assignment{Source: f, Subdir: "anat", Filename: filename})
	}
	for run, f := range groups.T2w {
		filename, err := anatFilename(f, run+1)
		if err != nil {
			return nil, err
		}
		out = append(out, Assignment{Source: f, Subdir: "anat", Filename: filename})
	}

	for _, task := range groups.Tasks {
		files := groups.Func[task]
		width := anatRunWidth
		if len(files) > funcWideThreshold {
			width = 3
		}
		for run, f := range files {
			filename, err := funcFilename(f, run+1, width)
			if err != nil {
				return nil, err
			}
			out = append(out, Assignment{Source: f, Subdir: "func", Filename: filename})
		}
	}

	fmapRuns := map[string]int{}
	for _, f := range groups.FieldMaps {
		group := classifyDirection(f, rep)
		fmapRuns[group]++
		filename, err := anatFilename(f, fmapRuns[group])
		if err != nil {
			return nil, err
		}
		out = append(out, Assignment{Source: f, Subdir: "fmap", Filename: filename})
	}

	if err := checkCollisions(out); err != nil {
		return nil, err
	}
	return out, nil
}

// formatRun renders a run index zero-padded to width. Padding never
// truncates: run 100 at width 2 renders "100".
func formatRun(run, width int) string {
	return fmt.Sprintf("%0*d", width, run)
}

// anatFilename rewrites an anatomical or field-map filename by
// replacing the session token with the run token, keeping the token's
// position so names stay unique.
func anatFilename(f catalog.SourceFile, run int) (string, error) {
	name, ok := f.Name.ReplaceEntity(bids.KeySession, bids.KeyRun, formatRun(run, anatRunWidth))
	if !ok {
		// No session token to replace; anchor the run token on the
		// subject token instead so numbering stays collision-free.
		name, ok = f.Name.InsertEntityAfter(bids.KeySubject, bids.KeyRun, formatRun(run, anatRunWidth))
		if !ok {
			return "", fmt.Errorf("cannot place run token in %q", f.Filename)
		}
	}
	return name.String(), nil
}

// funcFilename rewrites a functional filename: the session token is
// dropped (it carries no information once sessions merge), an existing
// run token is replaced in place, and a missing one is synthesized
// after the task token so every output carries an explicit run index.
func funcFilename(f catalog.SourceFile, run, width int) (string, error) {
	name := f.Name.WithoutEntity(bids.KeySession)
	runStr := formatRun(run, width)

	if updated, ok := name.SetEntity(bids.KeyRun, runStr); ok {
		return updated.String(), nil
	}
	// BIDS permits omitting the run token when a task has exactly one
	// run; downstream pipelines expect it, so synthesize one.
	if updated, ok := name.InsertEntityAfter(bids.KeyTask, bids.KeyRun, runStr); ok {
		return updated.String(), nil
	}
	return "", fmt.Errorf("functional file %q has no task token", f.Filename)
}

// classifyDirection buckets a field-map file by its phase-encoding
// direction entity: AP and PA are dedicated sub-groups; an absent
// direction is generic; any other value is generic with a warning.
func classifyDirection(f catalog.SourceFile, rep *reporter) string {
	dir, ok := f.Name.Get(bids.KeyDirection)
	if !ok {
		return "NODIR"
	}
	switch normalized := strings.ToUpper(dir); normalized {
	case "AP", "PA":
		return normalized
	default:
		rep.warnf("direction %q was not recognized", dir)
		return "NODIR"
	}
}

// checkCollisions verifies the uniqueness invariant: no two assignments
// may share a destination path.
func checkCollisions(assignments []Assignment) error {
	seen := make(map[string]string, len(assignments))
	for _, a := range assignments {
		dest := a.Subdir + "/" + a.Filename
		if prev, dup := seen[dest]; dup {
			return fmt.Errorf("destination collision: %s and %s both map to %s", prev, a.Source.Filename, dest)
		}
		seen[dest] = a.Source.Filename
	}
	return nil
}
