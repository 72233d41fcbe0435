package combine

import (
	"fmt"
	"slices"

	"github.com/meganc/bidscombine/internal/catalog"
)

// Groups holds the collected files of one subject, bucketed by output
// category. Order within each slice equals the traversal order:
// sessions in plan order, files in the catalog's intrinsic per-session
// order. The renumbering engine depends on that order and never
// re-sorts.
type Groups struct {
	T1w       []catalog.SourceFile
	T2w       []catalog.SourceFile
	Tasks     []string // distinct task names across the combined sessions
	Func      map[string][]catalog.SourceFile
	FieldMaps []catalog.SourceFile
}

// Collect walks the resolved session list in order and buckets the
// subject's files into run groups. Anatomical data is mandatory: an
// empty T1w or T2w group fails with ErrDataAbsent before anything is
// copied. Missing functional or field-map data is a warning only.
func Collect(cat *catalog.Catalog, subject string, plan *SessionPlan, rep *reporter) (*Groups, error) {
	tasks, err := cat.Tasks(subject, plan.Order)
	if err != nil {
		return nil, err
	}

	g := &Groups{
		Tasks: tasks,
		Func:  make(map[string][]catalog.SourceFile, len(tasks)),
	}
	for _, task := range tasks {
		g.Func[task] = nil
	}

	for _, session := range plan.Order {
		if slices.Contains(plan.T1Sessions, session) {
			files, err := cat.Files(catalog.Query{
				Subject: subject, Session: session,
				Datatype: "anat", Suffix: "T1w", Extension: catalog.DataExtension,
			})
			if err != nil {
				return nil, err
			}
			g.T1w = append(g.T1w, files...)
		}
		if slices.Contains(plan.T2Sessions, session) {
			files, err := cat.Files(catalog.Query{
				Subject: subject, Session: session,
				Datatype: "anat", Suffix: "T2w", Extension: catalog.DataExtension,
			})
			if err != nil {
				return nil, err
			}
			g.T2w = append(g.T2w, files...)
		}

		fmaps, err := cat.Files(catalog.Query{
			Subject: subject, Session: session,
			Datatype: "fmap", Extension: catalog.DataExtension,
		})
		if err != nil {
			return nil, err
		}
		g.FieldMaps = append(g.FieldMaps, fmaps...)

		for _, task := range tasks {
			funcs, err := cat.Files(catalog.Query{
				Subject: subject, Session: session,
				Datatype: "func", Task: task, Extension: catalog.DataExtension,
			})
			if err != nil {
				return nil, err
			}
			g.Func[task] = append(g.Func[task], funcs...)
		}
	}

	if len(g.T1w) == 0 {
		return nil, fmt.Errorf("%w: no T1w data found for subject %s in session(s) %v", ErrDataAbsent, subject, plan.T1Sessions)
	}
	if len(g.T2w) == 0 {
		return nil, fmt.Errorf("%w: no T2w data found for subject %s in session(s) %v", ErrDataAbsent, subject, plan.T2Sessions)
	}

	if len(g.Tasks) == 0 {
		rep.warnf("subject %s has only anatomical data", subject)
	}
	if len(g.FieldMaps) == 0 {
		rep.warnf("no fmap data found for subject %s", subject)
	}

	return g, nil
}
