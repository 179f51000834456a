package scoring

import (
	"math"
	"sort"

	"dealflow/server/internal/models"
)

// Progress is the rounded percentage of completed milestones, 0 when there are none.
func Progress(ms []models.Milestone) int {
	if len(ms) == 0 {
		return 0
	}
	completed := 0
	for _, m := range ms {
		if m.Completed {
			completed++
		}
	}
	return percent(completed, len(ms))
}

// NextMilestone returns the name of the first incomplete milestone by order,
// or nil when all are complete.
func NextMilestone(ms []models.Milestone) *string {
	ordered := SortMilestones(ms)
	for _, m := range ordered {
		if !m.Completed {
			name := m.Name
			return &name
		}
	}
	return nil
}

// SortMilestones returns a copy of ms in ascending order.
func SortMilestones(ms []models.Milestone) []models.Milestone {
	ordered := make([]models.Milestone, len(ms))
	copy(ordered, ms)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})
	return ordered
}

// FlagsFromMilestones projects milestone rows onto the five-gate view.
func FlagsFromMilestones(ms []models.Milestone) models.MilestoneFlags {
	done := make(map[string]bool, len(ms))
	for _, m := range ms {
		if m.Completed {
			done[m.Name] = true
		}
	}
	return models.MilestoneFlags{
		OfferAccepted:      done[models.MilestoneOfferAccepted],
		InspectionComplete: done[models.MilestoneInspection],
		AppraisalComplete:  done[models.MilestoneAppraisal],
		LoanApproved:       done[models.MilestoneFinancingApproval],
		FinalWalkthrough:   done[models.MilestoneFinalWalkthrough],
	}
}

var flagGates = []struct {
	name string
	met  func(models.MilestoneFlags) bool
}{
	{models.MilestoneOfferAccepted, func(f models.MilestoneFlags) bool { return f.OfferAccepted }},
	{models.MilestoneInspection, func(f models.MilestoneFlags) bool { return f.InspectionComplete }},
	{models.MilestoneAppraisal, func(f models.MilestoneFlags) bool { return f.AppraisalComplete }},
	{models.MilestoneFinancingApproval, func(f models.MilestoneFlags) bool { return f.LoanApproved }},
	{models.MilestoneFinalWalkthrough, func(f models.MilestoneFlags) bool { return f.FinalWalkthrough }},
}

// FlagsProgress is the rounded percentage of the five gates that are met.
func FlagsProgress(f models.MilestoneFlags) int {
	met := 0
	for _, g := range flagGates {
		if g.met(f) {
			met++
		}
	}
	return percent(met, len(flagGates))
}

// FlagsNextMilestone names the first unmet gate in fixed order, nil when all are met.
func FlagsNextMilestone(f models.MilestoneFlags) *string {
	for _, g := range flagGates {
		if !g.met(f) {
			name := g.name
			return &name
		}
	}
	return nil
}

// Apply derives a transaction's progress fields from its loaded milestones.
func Apply(t *models.Transaction) {
	t.Milestones = SortMilestones(t.Milestones)
	t.Progress = Progress(t.Milestones)
	t.NextMilestone = NextMilestone(t.Milestones)
	t.Flags = FlagsFromMilestones(t.Milestones)
}

func percent(n, total int) int {
	return int(math.Round(float64(n) * 100 / float64(total)))
}
