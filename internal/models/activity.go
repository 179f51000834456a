package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivityType string

const (
	ActivityLeadCreated              ActivityType = "LEAD_CREATED"
	ActivityStatusChanged            ActivityType = "STATUS_CHANGED"
	ActivityTransactionCreated       ActivityType = "TRANSACTION_CREATED"
	ActivityTransactionStatusChanged ActivityType = "TRANSACTION_STATUS_CHANGED"
	ActivityMilestoneCompleted       ActivityType = "MILESTONE_COMPLETED"
	ActivityDocumentUploaded         ActivityType = "DOCUMENT_UPLOADED"
	ActivityDocumentStatusChanged    ActivityType = "DOCUMENT_STATUS_CHANGED"
	ActivityShowingScheduled         ActivityType = "SHOWING_SCHEDULED"
	ActivityShowingStatusChanged     ActivityType = "SHOWING_STATUS_CHANGED"
	ActivityEmailSent                ActivityType = "EMAIL_SENT"
)

// Activity is an append-only audit entry. It is never updated or deleted.
type Activity struct {
	ID            string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt     time.Time    `gorm:"index" json:"createdAt"`
	Type          ActivityType `gorm:"type:varchar(40);not null" json:"type"`
	Description   string       `gorm:"not null" json:"description"`
	PerformedBy   string       `gorm:"type:varchar(36);not null;index" json:"performedBy"`
	LeadID        *string      `gorm:"type:varchar(36);index" json:"leadId"`
	TransactionID *string      `gorm:"type:varchar(36);index" json:"transactionId"`
	ShowingID     *string      `gorm:"type:varchar(36);index" json:"showingId"`
	DocumentID    *string      `gorm:"type:varchar(36);index" json:"documentId"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
