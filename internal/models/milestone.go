package models

import "time"

type Milestone struct {
	Base
	TransactionID string     `gorm:"type:varchar(36);index;not null" json:"transactionId"`
	Name          string     `gorm:"not null" json:"name"`
	Order         int        `gorm:"column:sort_order;not null" json:"order"`
	Completed     bool       `gorm:"not null;default:false" json:"completed"`
	DueDate       *time.Time `json:"dueDate"`
	CompletedAt   *time.Time `json:"completedAt"`
}

// Default milestone names, in order. Every new transaction gets one row each.
const (
	MilestoneOfferAccepted     = "Offer Accepted"
	MilestoneInspection        = "Inspection"
	MilestoneAppraisal         = "Appraisal"
	MilestoneFinancingApproval = "Financing Approval"
	MilestoneFinalWalkthrough  = "Final Walkthrough"
	MilestoneClosing           = "Closing"
)

var DefaultMilestoneNames = []string{
	MilestoneOfferAccepted,
	MilestoneInspection,
	MilestoneAppraisal,
	MilestoneFinancingApproval,
	MilestoneFinalWalkthrough,
	MilestoneClosing,
}

// DefaultMilestones builds the unsaved default rows for a transaction.
func DefaultMilestones(transactionID string) []Milestone {
	ms := make([]Milestone, len(DefaultMilestoneNames))
	for i, name := range DefaultMilestoneNames {
		ms[i] = Milestone{TransactionID: transactionID, Name: name, Order: i + 1}
	}
	return ms
}

// MilestoneFlags is the five-gate boolean view of a transaction's milestones.
type MilestoneFlags struct {
	OfferAccepted      bool `json:"offerAccepted"`
	InspectionComplete bool `json:"inspectionComplete"`
	AppraisalComplete  bool `json:"appraisalComplete"`
	LoanApproved       bool `json:"loanApproved"`
	FinalWalkthrough   bool `json:"finalWalkthrough"`
}

// FlagMilestones maps each flag's JSON name to the milestone row it projects.
var FlagMilestones = map[string]string{
	"offerAccepted":      MilestoneOfferAccepted,
	"inspectionComplete": MilestoneInspection,
	"appraisalComplete":  MilestoneAppraisal,
	"loanApproved":       MilestoneFinancingApproval,
	"finalWalkthrough":   MilestoneFinalWalkthrough,
}
