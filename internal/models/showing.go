package models

import "time"

type ShowingStatus string

const (
	ShowingStatusScheduled ShowingStatus = "SCHEDULED"
	ShowingStatusConfirmed ShowingStatus = "CONFIRMED"
	ShowingStatusCompleted ShowingStatus = "COMPLETED"
	ShowingStatusCancelled ShowingStatus = "CANCELLED"
	ShowingStatusNoShow    ShowingStatus = "NO_SHOW"
)

const DefaultShowingDuration = 30

type Showing struct {
	Base
	ClientID        string        `gorm:"type:varchar(36);index;not null" json:"clientId"`
	TransactionID   *string       `gorm:"type:varchar(36);index" json:"transactionId"`
	PropertyAddress string        `gorm:"not null" json:"propertyAddress"`
	ScheduledAt     time.Time     `gorm:"index;not null" json:"scheduledAt"`
	Duration        int           `gorm:"not null;default:30" json:"duration"`
	Status          ShowingStatus `gorm:"type:varchar(16);not null;default:SCHEDULED" json:"status"`
	ClientFeedback  *string       `json:"clientFeedback"`
	ClientRating    *int          `json:"clientRating"`
	AgentNotes      *string       `json:"agentNotes"`

	Client *User `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}
