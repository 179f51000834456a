package models

import "time"

type TransactionType string

const (
	TransactionTypeBuyer  TransactionType = "BUYER"
	TransactionTypeSeller TransactionType = "SELLER"
	TransactionTypeBoth   TransactionType = "BOTH"
)

type TransactionStatus string

const (
	TransactionStatusPreListing     TransactionStatus = "PRE_LISTING"
	TransactionStatusListed         TransactionStatus = "LISTED"
	TransactionStatusUnderContract  TransactionStatus = "UNDER_CONTRACT"
	TransactionStatusPendingClosing TransactionStatus = "PENDING_CLOSING"
	TransactionStatusClosed         TransactionStatus = "CLOSED"
	TransactionStatusCancelled      TransactionStatus = "CANCELLED"
)

// ActiveTransactionStatuses are the statuses counted as deals in flight.
var ActiveTransactionStatuses = []TransactionStatus{
	TransactionStatusListed,
	TransactionStatusUnderContract,
	TransactionStatusPendingClosing,
}

type Transaction struct {
	Base
	AgentID  string            `gorm:"type:varchar(36);index;not null" json:"agentId"`
	ClientID string            `gorm:"type:varchar(36);index;not null" json:"clientId"`
	LeadID   *string           `gorm:"type:varchar(36);index" json:"leadId"`
	Type     TransactionType   `gorm:"type:varchar(16);not null" json:"type"`
	Status   TransactionStatus `gorm:"type:varchar(32);not null;default:PRE_LISTING;index" json:"status"`

	PropertyAddress string   `gorm:"not null" json:"propertyAddress"`
	PropertyCity    string   `gorm:"not null" json:"propertyCity"`
	PropertyState   string   `gorm:"type:varchar(2);not null" json:"propertyState"`
	PropertyZip     string   `gorm:"type:varchar(10);not null" json:"propertyZip"`
	PropertyType    *string  `json:"propertyType"`
	PropertyLat     *float64 `json:"propertyLat"`
	PropertyLng     *float64 `json:"propertyLng"`

	ListPrice *float64 `json:"listPrice"`
	SalePrice *float64 `json:"salePrice"`

	ListingDate        *time.Time `json:"listingDate"`
	OfferDate          *time.Time `json:"offerDate"`
	InspectionDeadline *time.Time `json:"inspectionDeadline"`
	AppraisalDeadline  *time.Time `json:"appraisalDeadline"`
	FinancingDeadline  *time.Time `json:"financingDeadline"`
	ClosingDate        *time.Time `gorm:"index" json:"closingDate"`
	ActualClosingDate  *time.Time `json:"actualClosingDate"`
	Notes              *string    `json:"notes"`

	Agent      *User       `gorm:"foreignKey:AgentID;references:ID" json:"agent,omitempty"`
	Client     *User       `gorm:"foreignKey:ClientID;references:ID" json:"client,omitempty"`
	Milestones []Milestone `gorm:"foreignKey:TransactionID" json:"milestones,omitempty"`
	Documents  []Document  `gorm:"foreignKey:TransactionID" json:"documents,omitempty"`
	Activities []Activity  `gorm:"foreignKey:TransactionID" json:"activities,omitempty"`

	// Derived from Milestones on read.
	Progress      int            `gorm:"-" json:"progress"`
	NextMilestone *string        `gorm:"-" json:"nextMilestone"`
	Flags         MilestoneFlags `gorm:"-" json:"milestoneFlags"`
}
