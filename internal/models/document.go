package models

type DocumentType string

const (
	DocumentTypeOffer            DocumentType = "OFFER"
	DocumentTypeInspectionReport DocumentType = "INSPECTION_REPORT"
	DocumentTypeAppraisal        DocumentType = "APPRAISAL"
	DocumentTypeLoanApproval     DocumentType = "LOAN_APPROVAL"
	DocumentTypeTitleReport      DocumentType = "TITLE_REPORT"
	DocumentTypeDisclosure       DocumentType = "DISCLOSURE"
	DocumentTypeContract         DocumentType = "CONTRACT"
	DocumentTypeAddendum         DocumentType = "ADDENDUM"
	DocumentTypeOther            DocumentType = "OTHER"
)

type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "PENDING"
	DocumentStatusReceived DocumentStatus = "RECEIVED"
	DocumentStatusReviewed DocumentStatus = "REVIEWED"
	DocumentStatusApproved DocumentStatus = "APPROVED"
	DocumentStatusRejected DocumentStatus = "REJECTED"
)

type Document struct {
	Base
	TransactionID string         `gorm:"type:varchar(36);index;not null" json:"transactionId"`
	Name          string         `gorm:"not null" json:"name"`
	Type          DocumentType   `gorm:"type:varchar(32);not null" json:"type"`
	URL           string         `gorm:"not null" json:"url"`
	Size          *int64         `json:"size"`
	MimeType      *string        `json:"mimeType"`
	Status        DocumentStatus `gorm:"type:varchar(16);not null;default:PENDING" json:"status"`
	UploadedBy    string         `gorm:"type:varchar(36);not null" json:"uploadedBy"`
	Notes         *string        `json:"notes"`
}
