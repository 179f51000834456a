package models

import "time"

type LeadSource string

const (
	LeadSourceWebsite     LeadSource = "WEBSITE"
	LeadSourceZillow      LeadSource = "ZILLOW"
	LeadSourceRealtorCom  LeadSource = "REALTOR_COM"
	LeadSourceReferral    LeadSource = "REFERRAL"
	LeadSourceSocialMedia LeadSource = "SOCIAL_MEDIA"
	LeadSourceOpenHouse   LeadSource = "OPEN_HOUSE"
	LeadSourceManual      LeadSource = "MANUAL"
)

var LeadSources = []LeadSource{
	LeadSourceWebsite, LeadSourceZillow, LeadSourceRealtorCom, LeadSourceReferral,
	LeadSourceSocialMedia, LeadSourceOpenHouse, LeadSourceManual,
}

type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "NEW"
	LeadStatusContacted LeadStatus = "CONTACTED"
	LeadStatusQualified LeadStatus = "QUALIFIED"
	LeadStatusActive    LeadStatus = "ACTIVE"
	LeadStatusNurture   LeadStatus = "NURTURE"
	LeadStatusLost      LeadStatus = "LOST"
	LeadStatusConverted LeadStatus = "CONVERTED"
)

type Lead struct {
	Base
	AgentID      string     `gorm:"type:varchar(36);index;not null" json:"agentId"`
	FirstName    string     `gorm:"not null" json:"firstName"`
	LastName     string     `gorm:"not null" json:"lastName"`
	Email        string     `gorm:"not null;index" json:"email"`
	Phone        *string    `json:"phone"`
	Source       LeadSource `gorm:"type:varchar(32);not null;default:MANUAL;index" json:"source"`
	Status       LeadStatus `gorm:"type:varchar(32);not null;default:NEW;index" json:"status"`
	Score        int        `gorm:"not null;default:0;index" json:"score"`
	BudgetMin    *float64   `json:"budgetMin"`
	BudgetMax    *float64   `json:"budgetMax"`
	Timeline     *string    `json:"timeline"`
	PropertyType *string    `json:"propertyType"`
	Notes        *string    `json:"notes"`
	Tags         []string   `gorm:"serializer:json" json:"tags"`

	// Engagement signals feeding the score.
	EmailOpened      bool       `gorm:"not null;default:false" json:"emailOpened"`
	LinkClicked      bool       `gorm:"not null;default:false" json:"linkClicked"`
	RepliedToAgent   bool       `gorm:"not null;default:false" json:"repliedToAgent"`
	PreApproved      bool       `gorm:"not null;default:false" json:"preApproved"`
	ViewedProperties []string   `gorm:"serializer:json" json:"viewedProperties"`
	LastContactDate  *time.Time `json:"lastContactDate"`

	Activities  []Activity   `gorm:"foreignKey:LeadID" json:"activities,omitempty"`
	Transaction *Transaction `gorm:"foreignKey:LeadID" json:"transaction,omitempty"`
}

func (l Lead) FullName() string {
	return l.FirstName + " " + l.LastName
}
