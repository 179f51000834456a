package crm

import (
	"context"
	"errors"
	"fmt"

	"dealflow/server/internal/access"
	"dealflow/server/internal/apperr"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/database"
	"dealflow/server/internal/models"
	"dealflow/server/internal/scoring"
	"gorm.io/gorm"
)

type ConvertLeadInput struct {
	PropertyInput
	Type      models.TransactionType `json:"type" binding:"required,oneof=BUYER SELLER BOTH"`
	ListPrice *float64               `json:"listPrice" binding:"omitempty,gte=0"`
	Notes     *string                `json:"notes"`
}

// ConvertLead turns a lead into a client account and a transaction with its
// default milestones. Either every write lands or none does.
func (s *Service) ConvertLead(ctx context.Context, c auth.Caller, leadID string, in ConvertLeadInput) (*models.Transaction, error) {
	v := violations{}
	in.PropertyInput.validate(v)
	if err := v.err(); err != nil {
		return nil, err
	}

	var t *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lead models.Lead
		err := tx.Scopes(access.Leads(c)).First(&lead, "leads.id = ?", leadID).Error
		if err := lookup(err, apperr.CodeLeadNotFound, "Lead not found"); err != nil {
			return err
		}

		// Compare-and-set on status so two concurrent conversions cannot both win.
		res := tx.Model(&models.Lead{}).
			Where("id = ? AND status <> ?", lead.ID, models.LeadStatusConverted).
			Update("status", models.LeadStatusConverted)
		if res.Error != nil {
			return fmt.Errorf("failed to update lead status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict(apperr.CodeLeadConverted, "Lead has already been converted")
		}

		if err := ensureLeadUnlinked(tx, lead.ID); err != nil {
			return err
		}

		client, err := s.clientForLead(ctx, tx, c, &lead)
		if err != nil {
			return err
		}

		t = &models.Transaction{
			AgentID:         c.ID,
			ClientID:        client.ID,
			LeadID:          &lead.ID,
			Type:            in.Type,
			Status:          models.TransactionStatusPreListing,
			PropertyAddress: in.PropertyAddress,
			PropertyCity:    in.PropertyCity,
			PropertyState:   in.PropertyState,
			PropertyZip:     in.PropertyZip,
			PropertyType:    in.PropertyType,
			PropertyLat:     in.PropertyLat,
			PropertyLng:     in.PropertyLng,
			ListPrice:       in.ListPrice,
			Notes:           in.Notes,
		}
		if err := createTransactionWithMilestones(tx, t); err != nil {
			return err
		}

		activity := models.Activity{
			Type:          models.ActivityTransactionCreated,
			Description:   "Lead converted to transaction",
			PerformedBy:   c.ID,
			LeadID:        &lead.ID,
			TransactionID: &t.ID,
		}
		if err := tx.Create(&activity).Error; err != nil {
			return fmt.Errorf("failed to record conversion: %w", err)
		}
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if !errors.As(err, &appErr) {
			s.logger.WithError(err).WithField("lead_id", leadID).Error("Lead conversion rolled back")
		}
		return nil, err
	}

	scoring.Apply(t)
	return t, nil
}

// clientForLead creates the lead's CLIENT account without a password. An
// existing client of the same agent with the lead's email is reused.
func (s *Service) clientForLead(ctx context.Context, tx *gorm.DB, c auth.Caller, lead *models.Lead) (*models.User, error) {
	var existing models.User
	err := tx.Scopes(access.Clients(c)).Where("users.email = ?", lead.Email).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !database.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}

	client := &models.User{
		Email:        lead.Email,
		FirstName:    lead.FirstName,
		LastName:     lead.LastName,
		Phone:        lead.Phone,
		Role:         models.RoleClient,
		OwnerAgentID: &c.ID,
	}
	if err := s.createUser(ctx, tx, client); err != nil {
		return nil, err
	}
	return client, nil
}
