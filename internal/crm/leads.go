package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dealflow/server/internal/access"
	"dealflow/server/internal/apperr"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/models"
	"dealflow/server/internal/scoring"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const recentLeadActivities = 5

type CreateLeadInput struct {
	FirstName        string            `json:"firstName" binding:"required,max=100"`
	LastName         string            `json:"lastName" binding:"required,max=100"`
	Email            string            `json:"email" binding:"required,email"`
	Phone            *string           `json:"phone"`
	Source           models.LeadSource `json:"source" binding:"omitempty,oneof=WEBSITE ZILLOW REALTOR_COM REFERRAL SOCIAL_MEDIA OPEN_HOUSE MANUAL"`
	BudgetMin        *float64          `json:"budgetMin" binding:"omitempty,gte=0"`
	BudgetMax        *float64          `json:"budgetMax" binding:"omitempty,gte=0"`
	Timeline         *string           `json:"timeline"`
	PropertyType     *string           `json:"propertyType"`
	Notes            *string           `json:"notes"`
	Tags             []string          `json:"tags"`
	PreApproved      bool              `json:"preApproved"`
	ViewedProperties []string          `json:"viewedProperties"`
	LastContactDate  *time.Time        `json:"lastContactDate"`
}

// UpdateLeadInput is a partial update; nil fields are left unchanged. Score is
// not settable and is recomputed after the patch is applied.
type UpdateLeadInput struct {
	FirstName        *string            `json:"firstName" binding:"omitempty,max=100"`
	LastName         *string            `json:"lastName" binding:"omitempty,max=100"`
	Email            *string            `json:"email" binding:"omitempty,email"`
	Phone            *string            `json:"phone"`
	Source           *models.LeadSource `json:"source" binding:"omitempty,oneof=WEBSITE ZILLOW REALTOR_COM REFERRAL SOCIAL_MEDIA OPEN_HOUSE MANUAL"`
	Status           *models.LeadStatus `json:"status" binding:"omitempty,oneof=NEW CONTACTED QUALIFIED ACTIVE NURTURE LOST"`
	BudgetMin        *float64           `json:"budgetMin" binding:"omitempty,gte=0"`
	BudgetMax        *float64           `json:"budgetMax" binding:"omitempty,gte=0"`
	Timeline         *string            `json:"timeline"`
	PropertyType     *string            `json:"propertyType"`
	Notes            *string            `json:"notes"`
	Tags             *[]string          `json:"tags"`
	EmailOpened      *bool              `json:"emailOpened"`
	LinkClicked      *bool              `json:"linkClicked"`
	RepliedToAgent   *bool              `json:"repliedToAgent"`
	PreApproved      *bool              `json:"preApproved"`
	ViewedProperties *[]string          `json:"viewedProperties"`
	LastContactDate  *time.Time         `json:"lastContactDate"`
}

type LeadFilter struct {
	Paging
	Status    []models.LeadStatus `form:"status"`
	Source    []models.LeadSource `form:"source"`
	MinScore  *int                `form:"minScore" binding:"omitempty,min=0,max=100"`
	MaxScore  *int                `form:"maxScore" binding:"omitempty,min=0,max=100"`
	Search    string              `form:"search"`
	SortBy    string              `form:"sortBy" binding:"omitempty,oneof=createdAt score lastContactDate"`
	SortOrder string              `form:"sortOrder" binding:"omitempty,oneof=asc desc"`
}

var leadSortColumns = map[string]string{
	"createdAt":       "created_at",
	"score":           "score",
	"lastContactDate": "last_contact_date",
}

func (s *Service) CreateLead(ctx context.Context, c auth.Caller, in CreateLeadInput) (*models.Lead, error) {
	if err := requireAgent(c); err != nil {
		return nil, err
	}
	v := violations{}
	v.required("firstName", in.FirstName)
	v.required("lastName", in.LastName)
	v.email("email", in.Email)
	v.budget(in.BudgetMin, in.BudgetMax)
	if err := v.err(); err != nil {
		return nil, err
	}

	source := in.Source
	if source == "" {
		source = models.LeadSourceManual
	}

	lead := &models.Lead{
		AgentID:          c.ID,
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		Email:            normalizeEmail(in.Email),
		Phone:            in.Phone,
		Source:           source,
		Status:           models.LeadStatusNew,
		BudgetMin:        in.BudgetMin,
		BudgetMax:        in.BudgetMax,
		Timeline:         in.Timeline,
		PropertyType:     in.PropertyType,
		Notes:            in.Notes,
		Tags:             in.Tags,
		PreApproved:      in.PreApproved,
		ViewedProperties: in.ViewedProperties,
		LastContactDate:  in.LastContactDate,
	}
	lead.Score = scoring.Score(scoring.SignalsFromLead(lead), s.now())

	if err := s.db.WithContext(ctx).Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	s.record(ctx, models.Activity{
		Type:        models.ActivityLeadCreated,
		Description: fmt.Sprintf("Lead %s created", lead.FullName()),
		PerformedBy: c.ID,
		LeadID:      &lead.ID,
	})
	return lead, nil
}

func (s *Service) ListLeads(ctx context.Context, c auth.Caller, f LeadFilter) (Page[models.Lead], error) {
	page, limit, offset := f.normalize()
	result := Page[models.Lead]{Page: page, Limit: limit}

	q := s.db.WithContext(ctx).Model(&models.Lead{}).Scopes(access.Leads(c))
	if statuses := splitList(f.Status); len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if sources := splitList(f.Source); len(sources) > 0 {
		q = q.Where("source IN ?", sources)
	}
	if f.MinScore != nil {
		q = q.Where("score >= ?", *f.MinScore)
	}
	if f.MaxScore != nil {
		q = q.Where("score <= ?", *f.MaxScore)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("(LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?)", like, like, like)
	}

	if err := q.Count(&result.Total).Error; err != nil {
		return result, fmt.Errorf("failed to count leads: %w", err)
	}

	column, ok := leadSortColumns[f.SortBy]
	if !ok {
		column = "created_at"
	}
	desc := f.SortOrder != "asc"

	err := q.
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc}).
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&result.Items).Error
	if err != nil {
		return result, fmt.Errorf("failed to list leads: %w", err)
	}

	if err := s.attachRecentActivities(ctx, result.Items); err != nil {
		return result, err
	}
	return result, nil
}

// attachRecentActivities loads the latest few activities of each lead.
func (s *Service) attachRecentActivities(ctx context.Context, leads []models.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	ids := make([]string, len(leads))
	index := make(map[string]int, len(leads))
	for i, l := range leads {
		ids[i] = l.ID
		index[l.ID] = i
	}

	var activities []models.Activity
	err := s.db.WithContext(ctx).
		Where("lead_id IN ?", ids).
		Order("created_at DESC").
		Find(&activities).Error
	if err != nil {
		return fmt.Errorf("failed to load lead activities: %w", err)
	}

	for _, a := range activities {
		i := index[*a.LeadID]
		if len(leads[i].Activities) < recentLeadActivities {
			leads[i].Activities = append(leads[i].Activities, a)
		}
	}
	return nil
}

func (s *Service) GetLead(ctx context.Context, c auth.Caller, id string) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).
		Scopes(access.Leads(c)).
		Preload("Activities", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Preload("Transaction").
		First(&lead, "leads.id = ?", id).Error
	if err := lookup(err, apperr.CodeLeadNotFound, "Lead not found"); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (s *Service) findLead(ctx context.Context, c auth.Caller, id string) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).Scopes(access.Leads(c)).First(&lead, "leads.id = ?", id).Error
	if err := lookup(err, apperr.CodeLeadNotFound, "Lead not found"); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (s *Service) UpdateLead(ctx context.Context, c auth.Caller, id string, in UpdateLeadInput) (*models.Lead, error) {
	lead, err := s.findLead(ctx, c, id)
	if err != nil {
		return nil, err
	}
	oldStatus := lead.Status

	if in.Status != nil && oldStatus == models.LeadStatusConverted {
		return nil, apperr.Conflict(apperr.CodeLeadConverted, "Lead has already been converted")
	}
	if in.Status != nil && *in.Status == models.LeadStatusConverted {
		return nil, apperr.Validation("Validation failed", map[string]string{
			"status": "leads are converted through the convert operation",
		})
	}

	in.apply(lead)

	v := violations{}
	v.required("firstName", lead.FirstName)
	v.required("lastName", lead.LastName)
	v.email("email", lead.Email)
	v.budget(lead.BudgetMin, lead.BudgetMax)
	if err := v.err(); err != nil {
		return nil, err
	}

	lead.Score = scoring.Score(scoring.SignalsFromLead(lead), s.now())
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}

	if lead.Status != oldStatus {
		s.record(ctx, models.Activity{
			Type:        models.ActivityStatusChanged,
			Description: fmt.Sprintf("Lead status changed from %s to %s", oldStatus, lead.Status),
			PerformedBy: c.ID,
			LeadID:      &lead.ID,
		})
	}
	return lead, nil
}

func (in UpdateLeadInput) apply(l *models.Lead) {
	if in.FirstName != nil {
		l.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		l.LastName = *in.LastName
	}
	if in.Email != nil {
		l.Email = normalizeEmail(*in.Email)
	}
	if in.Phone != nil {
		l.Phone = in.Phone
	}
	if in.Source != nil {
		l.Source = *in.Source
	}
	if in.Status != nil {
		l.Status = *in.Status
	}
	if in.BudgetMin != nil {
		l.BudgetMin = in.BudgetMin
	}
	if in.BudgetMax != nil {
		l.BudgetMax = in.BudgetMax
	}
	if in.Timeline != nil {
		l.Timeline = in.Timeline
	}
	if in.PropertyType != nil {
		l.PropertyType = in.PropertyType
	}
	if in.Notes != nil {
		l.Notes = in.Notes
	}
	if in.Tags != nil {
		l.Tags = *in.Tags
	}
	if in.EmailOpened != nil {
		l.EmailOpened = *in.EmailOpened
	}
	if in.LinkClicked != nil {
		l.LinkClicked = *in.LinkClicked
	}
	if in.RepliedToAgent != nil {
		l.RepliedToAgent = *in.RepliedToAgent
	}
	if in.PreApproved != nil {
		l.PreApproved = *in.PreApproved
	}
	if in.ViewedProperties != nil {
		l.ViewedProperties = *in.ViewedProperties
	}
	if in.LastContactDate != nil {
		l.LastContactDate = in.LastContactDate
	}
}

// RescoreLead recomputes and stores a lead's score as of now.
func (s *Service) RescoreLead(ctx context.Context, c auth.Caller, id string) (*models.Lead, error) {
	lead, err := s.findLead(ctx, c, id)
	if err != nil {
		return nil, err
	}

	lead.Score = scoring.Score(scoring.SignalsFromLead(lead), s.now())
	if err := s.db.WithContext(ctx).Model(lead).Update("score", lead.Score).Error; err != nil {
		return nil, fmt.Errorf("failed to update lead score: %w", err)
	}
	return lead, nil
}

const rescoreBatchSize = 200

// RescoreOpenLeads refreshes the stored score of every lead that is not yet
// converted, so that contact recency decays without a write to the lead. It
// returns the number of scores that changed.
func (s *Service) RescoreOpenLeads(ctx context.Context) (int, error) {
	now := s.now()
	changed := 0
	var batch []models.Lead
	res := s.db.WithContext(ctx).
		Where("status <> ?", models.LeadStatusConverted).
		FindInBatches(&batch, rescoreBatchSize, func(tx *gorm.DB, n int) error {
			for i := range batch {
				score := scoring.Score(scoring.SignalsFromLead(&batch[i]), now)
				if score == batch[i].Score {
					continue
				}
				if err := s.db.WithContext(ctx).Model(&models.Lead{}).
					Where("id = ?", batch[i].ID).
					UpdateColumn("score", score).Error; err != nil {
					return fmt.Errorf("failed to update score of lead %s: %w", batch[i].ID, err)
				}
				changed++
			}
			s.logger.WithFields(logrus.Fields{
				"batch":      n,
				"batch_size": len(batch),
			}).Debug("Rescored lead batch")
			return nil
		})
	if res.Error != nil {
		return changed, res.Error
	}
	return changed, nil
}

func (s *Service) DeleteLead(ctx context.Context, c auth.Caller, id string) error {
	res := s.db.WithContext(ctx).Scopes(access.Leads(c)).Where("leads.id = ?", id).Delete(&models.Lead{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete lead: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(apperr.CodeLeadNotFound, "Lead not found")
	}
	return nil
}
