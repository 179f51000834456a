package crm

import (
	"context"
	"fmt"
	"time"

	"dealflow/server/internal/apperr"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/models"
	"gorm.io/gorm"
)

// MilestoneFlagsInput sets the five legacy gates. Each flag is written
// through to the milestone row it projects.
type MilestoneFlagsInput struct {
	OfferAccepted      *bool `json:"offerAccepted"`
	InspectionComplete *bool `json:"inspectionComplete"`
	AppraisalComplete  *bool `json:"appraisalComplete"`
	LoanApproved       *bool `json:"loanApproved"`
	FinalWalkthrough   *bool `json:"finalWalkthrough"`
}

func (in MilestoneFlagsInput) byName() map[string]bool {
	set := map[string]*bool{
		"offerAccepted":      in.OfferAccepted,
		"inspectionComplete": in.InspectionComplete,
		"appraisalComplete":  in.AppraisalComplete,
		"loanApproved":       in.LoanApproved,
		"finalWalkthrough":   in.FinalWalkthrough,
	}
	out := make(map[string]bool, len(set))
	for flag, v := range set {
		if v != nil {
			out[models.FlagMilestones[flag]] = *v
		}
	}
	return out
}

type UpdateMilestoneInput struct {
	Completed *bool      `json:"completed"`
	DueDate   *time.Time `json:"dueDate"`
}

// UpdateMilestoneFlags applies the legacy flag patch to a transaction's milestones.
func (s *Service) UpdateMilestoneFlags(ctx context.Context, c auth.Caller, transactionID string, in MilestoneFlagsInput) (*models.Transaction, error) {
	changes := in.byName()
	if len(changes) == 0 {
		return nil, apperr.Validation("At least one milestone flag is required", nil)
	}

	var completed []models.Milestone
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.findMutableTransaction(ctx, tx, c, transactionID)
		if err != nil {
			return err
		}

		var milestones []models.Milestone
		if err := tx.Where("transaction_id = ?", t.ID).Find(&milestones).Error; err != nil {
			return fmt.Errorf("failed to load milestones: %w", err)
		}

		for i := range milestones {
			want, ok := changes[milestones[i].Name]
			if !ok || milestones[i].Completed == want {
				continue
			}
			if err := s.setMilestoneCompleted(tx, &milestones[i], want); err != nil {
				return err
			}
			if want {
				completed = append(completed, milestones[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordCompleted(ctx, c, transactionID, completed)
	return s.GetTransaction(ctx, c, transactionID)
}

// UpdateMilestone changes one milestone row of a transaction.
func (s *Service) UpdateMilestone(ctx context.Context, c auth.Caller, transactionID, milestoneID string, in UpdateMilestoneInput) (*models.Milestone, error) {
	if _, err := s.findMutableTransaction(ctx, s.db, c, transactionID); err != nil {
		return nil, err
	}

	var m models.Milestone
	err := s.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&m, "id = ?", milestoneID).Error
	if err := lookup(err, apperr.CodeMilestoneNotFound, "Milestone not found"); err != nil {
		return nil, err
	}

	becameComplete := in.Completed != nil && *in.Completed && !m.Completed
	if in.Completed != nil && *in.Completed != m.Completed {
		if err := s.setMilestoneCompleted(s.db.WithContext(ctx), &m, *in.Completed); err != nil {
			return nil, err
		}
	}
	if in.DueDate != nil {
		if err := s.db.WithContext(ctx).Model(&m).Update("due_date", in.DueDate).Error; err != nil {
			return nil, fmt.Errorf("failed to update milestone: %w", err)
		}
	}

	if becameComplete {
		s.recordCompleted(ctx, c, transactionID, []models.Milestone{m})
	}
	return &m, nil
}

func (s *Service) setMilestoneCompleted(db *gorm.DB, m *models.Milestone, completed bool) error {
	var completedAt *time.Time
	if completed {
		now := s.now()
		completedAt = &now
	}
	err := db.Model(m).Updates(map[string]interface{}{
		"completed":    completed,
		"completed_at": completedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update milestone: %w", err)
	}
	m.Completed = completed
	m.CompletedAt = completedAt
	return nil
}

func (s *Service) recordCompleted(ctx context.Context, c auth.Caller, transactionID string, ms []models.Milestone) {
	for _, m := range ms {
		s.record(ctx, models.Activity{
			Type:          models.ActivityMilestoneCompleted,
			Description:   fmt.Sprintf("Milestone completed: %s", m.Name),
			PerformedBy:   c.ID,
			TransactionID: strPtr(transactionID),
		})
	}
}
