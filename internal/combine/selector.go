// Package combine implements the session-combining pipeline: resolve
// the session order, collect files into run groups, renumber them into
// collision-free destination filenames, and materialize the copies with
// provenance metadata.
package combine

import (
	"fmt"
	"slices"
	"sort"
)

// SessionPlan is the resolved session ordering for one combine run.
// Order drives run numbering for every output category; T1Sessions and
// T2Sessions are the (possibly narrower) subsets contributing anatomical
// data.
type SessionPlan struct {
	Order      []string
	T1Sessions []string
	T2Sessions []string
}

// ResolveSessions resolves the combined-session order and the anatomical
// contributor sets.
//
// When requested is non-empty its order is preserved and every entry
// must be one of the available sessions. Otherwise the order is the
// lexicographic sort of all available sessions. A non-empty t1Label or
// t2Label restricts the corresponding anatomical group to that single
// session, which must be a member of the resolved order.
func ResolveSessions(available, requested []string, t1Label, t2Label string) (*SessionPlan, error) {
	var order []string
	if len(requested) > 0 {
		for _, ses := range requested {
			if !slices.Contains(available, ses) {
				return nil, fmt.Errorf("%w: unknown session requested: %q", ErrConfiguration, ses)
			}
		}
		order = slices.Clone(requested)
	} else {
		order = slices.Clone(available)
		sort.Strings(order)
	}

	plan := &SessionPlan{Order: order}

	plan.T1Sessions = order
	if t1Label != "" {
		if !slices.Contains(order, t1Label) {
			return nil, fmt.Errorf("%w: session for T1w data (%q) is not in the list of sessions to be combined", ErrConfiguration, t1Label)
		}
		plan.T1Sessions = []string{t1Label}
	}

	plan.T2Sessions = order
	if t2Label != "" {
		if !slices.Contains(order, t2Label) {
			return nil, fmt.Errorf("%w: session for T2w data (%q) is not in the list of sessions to be combined", ErrConfiguration, t2Label)
		}
		plan.T2Sessions = []string{t2Label}
	}

	return plan, nil
}
