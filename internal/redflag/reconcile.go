package redflag

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/drylogs/internal/model"
)

var (
	// ErrFlagNotFound is returned by Resolve for an unknown flag id.
	ErrFlagNotFound = eris.New("redflag: flag not found")
	// ErrAlreadyResolved is returned by Resolve for a flag already closed.
	ErrAlreadyResolved = eris.New("redflag: flag already resolved")
	// ErrResolutionNotes is returned by Resolve when no notes are given.
	ErrResolutionNotes = eris.New("redflag: resolution notes are required")
)

// Reconcile merges a fresh detection pass into the stored flag list.
//
// Resolved flags are history and always kept. A detected flag whose type
// was already resolved at the same or a higher severity stays suppressed;
// an escalation raises it again. An open flag that is detected again keeps
// its id and original detection time with the new severity and
// description. Open flags that were not detected again are dropped because
// their condition no longer holds.
func Reconcile(existing, detected []model.RedFlag) []model.RedFlag {
	out := make([]model.RedFlag, 0, len(existing)+len(detected))
	open := make(map[string]model.RedFlag)
	acknowledged := make(map[model.FlagType]int)

	for _, f := range existing {
		if f.Resolved {
			out = append(out, f)
			if r := f.Severity.Rank(); r > acknowledged[f.Type] {
				acknowledged[f.Type] = r
			}
			continue
		}
		open[f.ID] = f
	}

	for _, d := range detected {
		if prev, ok := open[d.ID]; ok {
			d.DetectedAt = prev.DetectedAt
			out = append(out, d)
			continue
		}
		if r, ok := acknowledged[d.Type]; ok && d.Severity.Rank() <= r {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Resolve closes the flag with the given id. flags is not modified.
func Resolve(flags []model.RedFlag, id, notes, by string, now time.Time) ([]model.RedFlag, error) {
	if strings.TrimSpace(notes) == "" {
		return flags, ErrResolutionNotes
	}
	out := append([]model.RedFlag(nil), flags...)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		if out[i].Resolved {
			return flags, eris.Wrapf(ErrAlreadyResolved, "flag %s", id)
		}
		out[i].Resolved = true
		out[i].Resolution = &model.Resolution{Notes: notes, ResolvedBy: by, ResolvedAt: now}
		return out, nil
	}
	return flags, eris.Wrapf(ErrFlagNotFound, "flag %s", id)
}

// SortBySeverity returns a copy of flags ordered critical first, then by
// detection time and id.
func SortBySeverity(flags []model.RedFlag) []model.RedFlag {
	out := append([]model.RedFlag(nil), flags...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if !a.DetectedAt.Equal(b.DetectedAt) {
			return a.DetectedAt.Before(b.DetectedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// Highest returns the most severe unresolved flag severity, or "" when
// nothing is open.
func Highest(flags []model.RedFlag) model.Severity {
	var best model.Severity
	for _, f := range flags {
		if !f.Resolved && f.Severity.Rank() > best.Rank() {
			best = f.Severity
		}
	}
	return best
}
