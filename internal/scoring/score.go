// Package scoring holds the pure lead-score and transaction-progress functions.
package scoring

import (
	"time"

	"dealflow/server/internal/models"
)

const (
	MinScore = 0
	MaxScore = 100

	pointsEmailOpened    = 10
	pointsLinkClicked    = 20
	pointsRepliedToAgent = 30
	pointsPerViewed      = 5
	pointsRecentContact  = 20
	pointsMonthContact   = 10
	pointsStaleContact   = -10
	pointsBudget         = 15
	pointsTimeline       = 15
	pointsPreApproved    = 25
)

// Signals are the engagement and qualification inputs of a lead score.
type Signals struct {
	EmailOpened           bool
	LinkClicked           bool
	RepliedToAgent        bool
	LastContactDate       *time.Time
	BudgetProvided        bool
	TimelineProvided      bool
	PreApproved           bool
	ViewedPropertiesCount int
}

// SignalsFromLead derives score inputs from a lead's stored fields.
func SignalsFromLead(l *models.Lead) Signals {
	return Signals{
		EmailOpened:           l.EmailOpened,
		LinkClicked:           l.LinkClicked,
		RepliedToAgent:        l.RepliedToAgent,
		LastContactDate:       l.LastContactDate,
		BudgetProvided:        l.BudgetMin != nil || l.BudgetMax != nil,
		TimelineProvided:      l.Timeline != nil && *l.Timeline != "",
		PreApproved:           l.PreApproved,
		ViewedPropertiesCount: len(l.ViewedProperties),
	}
}

// Score returns the lead score in [MinScore, MaxScore] as of now.
func Score(s Signals, now time.Time) int {
	score := 0

	if s.EmailOpened {
		score += pointsEmailOpened
	}
	if s.LinkClicked {
		score += pointsLinkClicked
	}
	if s.RepliedToAgent {
		score += pointsRepliedToAgent
	}
	if s.ViewedPropertiesCount > 0 {
		score += pointsPerViewed * s.ViewedPropertiesCount
	}

	if s.LastContactDate != nil {
		switch days := DaysSince(*s.LastContactDate, now); {
		case days < 7:
			score += pointsRecentContact
		case days < 30:
			score += pointsMonthContact
		default:
			score += pointsStaleContact
		}
	}

	if s.BudgetProvided {
		score += pointsBudget
	}
	if s.TimelineProvided {
		score += pointsTimeline
	}
	if s.PreApproved {
		score += pointsPreApproved
	}

	return clamp(score)
}

// DaysSince is the number of whole days elapsed from then to now, rounded down.
func DaysSince(then, now time.Time) int {
	d := now.Sub(then)
	days := int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
