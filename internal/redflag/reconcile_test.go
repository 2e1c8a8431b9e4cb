package redflag

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/drylogs/internal/model"
)

func flag(id string, typ model.FlagType, sev model.Severity, at time.Time) model.RedFlag {
	return model.RedFlag{ID: id, Type: typ, Severity: sev, Description: string(typ), DetectedAt: at}
}

func TestReconcile(t *testing.T) {
	t.Parallel()
	earlier := now.Add(-48 * time.Hour)

	resolved := flag("a", model.FlagMissingPhotos, model.SeverityMedium, earlier)
	resolved.Resolved = true
	stillOpen := flag("b", model.FlagCostOverrun, model.SeverityHigh, earlier)
	cleared := flag("c", model.FlagTimelineDelay, model.SeverityMedium, earlier)

	detected := []model.RedFlag{
		flag("a2", model.FlagMissingPhotos, model.SeverityMedium, now),
		flag("b", model.FlagCostOverrun, model.SeverityCritical, now),
		flag("d", model.FlagDemoNoReason, model.SeverityMedium, now),
	}

	got := Reconcile([]model.RedFlag{resolved, stillOpen, cleared}, detected)
	require.Len(t, got, 3)

	assert.Equal(t, resolved, got[0])

	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, model.SeverityCritical, got[1].Severity)
	assert.Equal(t, earlier, got[1].DetectedAt)

	assert.Equal(t, "d", got[2].ID)
	assert.Equal(t, now, got[2].DetectedAt)
}

func TestReconcile_EscalationReopens(t *testing.T) {
	t.Parallel()
	resolved := flag("a", model.FlagMissingPhotos, model.SeverityMedium, now.Add(-time.Hour))
	resolved.Resolved = true

	got := Reconcile(
		[]model.RedFlag{resolved},
		[]model.RedFlag{flag("a2", model.FlagMissingPhotos, model.SeverityCritical, now)},
	)
	require.Len(t, got, 2)
	assert.True(t, got[0].Resolved)
	assert.Equal(t, "a2", got[1].ID)
	assert.False(t, got[1].Resolved)
}

func TestReconcile_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Reconcile(nil, nil))
}

func TestResolve(t *testing.T) {
	t.Parallel()
	flags := []model.RedFlag{
		flag("a", model.FlagCostOverrun, model.SeverityHigh, now),
		flag("b", model.FlagDemoNoReason, model.SeverityMedium, now),
	}

	out, err := Resolve(flags, "b", "customer approved demo in writing", "psm-1", now)
	require.NoError(t, err)
	assert.True(t, out[1].Resolved)
	require.NotNil(t, out[1].Resolution)
	assert.Equal(t, "psm-1", out[1].Resolution.ResolvedBy)
	assert.Equal(t, now, out[1].Resolution.ResolvedAt)
	assert.False(t, flags[1].Resolved, "input slice must not change")

	_, err = Resolve(out, "b", "again", "psm-1", now)
	assert.True(t, eris.Is(err, ErrAlreadyResolved))

	_, err = Resolve(flags, "zzz", "notes", "psm-1", now)
	assert.True(t, eris.Is(err, ErrFlagNotFound))

	_, err = Resolve(flags, "a", "   ", "psm-1", now)
	assert.True(t, eris.Is(err, ErrResolutionNotes))
}

func TestSortBySeverity(t *testing.T) {
	t.Parallel()
	flags := []model.RedFlag{
		flag("low", model.FlagMissingPhotos, model.SeverityLow, now),
		flag("crit-late", model.FlagCostOverrun, model.SeverityCritical, now),
		flag("med", model.FlagDemoNoReason, model.SeverityMedium, now),
		flag("crit-early", model.FlagNoAdjusterApproval, model.SeverityCritical, now.Add(-time.Hour)),
		flag("high", model.FlagTimelineDelay, model.SeverityHigh, now),
	}
	got := SortBySeverity(flags)

	ids := make([]string, len(got))
	for i, f := range got {
		ids[i] = f.ID
	}
	assert.Equal(t, []string{"crit-early", "crit-late", "high", "med", "low"}, ids)
	assert.Equal(t, "low", flags[0].ID)
}

func TestHighest(t *testing.T) {
	t.Parallel()
	resolvedCrit := flag("x", model.FlagCostOverrun, model.SeverityCritical, now)
	resolvedCrit.Resolved = true

	assert.Equal(t, model.SeverityHigh, Highest([]model.RedFlag{
		resolvedCrit,
		flag("y", model.FlagTimelineDelay, model.SeverityHigh, now),
		flag("z", model.FlagDemoNoReason, model.SeverityMedium, now),
	}))
	assert.Equal(t, model.Severity(""), Highest(nil))
}
