package crm

import (
	"context"
	"fmt"
	"time"

	"dealflow/server/internal/access"
	"dealflow/server/internal/apperr"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateShowingInput struct {
	ClientID        string    `json:"clientId" binding:"required"`
	TransactionID   *string   `json:"transactionId"`
	PropertyAddress string    `json:"propertyAddress" binding:"required"`
	ScheduledAt     time.Time `json:"scheduledAt" binding:"required"`
	Duration        int       `json:"duration" binding:"omitempty,min=5,max=480"`
	AgentNotes      *string   `json:"agentNotes"`
}

type UpdateShowingInput struct {
	PropertyAddress *string               `json:"propertyAddress"`
	ScheduledAt     *time.Time            `json:"scheduledAt"`
	Duration        *int                  `json:"duration" binding:"omitempty,min=5,max=480"`
	Status          *models.ShowingStatus `json:"status" binding:"omitempty,oneof=SCHEDULED CONFIRMED COMPLETED CANCELLED NO_SHOW"`
	AgentNotes      *string               `json:"agentNotes"`
}

type ShowingFeedbackInput struct {
	Feedback string `json:"feedback" binding:"required"`
	Rating   int    `json:"rating" binding:"required,min=1,max=5"`
}

type ShowingFilter struct {
	Status   []models.ShowingStatus `form:"status"`
	ClientID string                 `form:"clientId"`
	From     time.Time              `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       time.Time              `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

func (s *Service) ListShowings(ctx context.Context, c auth.Caller, f ShowingFilter) ([]models.Showing, error) {
	q := s.db.WithContext(ctx).Scopes(access.Showings(c))
	if statuses := splitList(f.Status); len(statuses) > 0 {
		q = q.Where("showings.status IN ?", statuses)
	}
	if f.ClientID != "" {
		q = q.Where("showings.client_id = ?", f.ClientID)
	}
	if !f.From.IsZero() {
		q = q.Where("showings.scheduled_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("showings.scheduled_at <= ?", f.To.UTC())
	}

	var showings []models.Showing
	if err := q.Preload("Client").Order("showings.scheduled_at ASC").Find(&showings).Error; err != nil {
		return nil, fmt.Errorf("failed to list showings: %w", err)
	}
	return showings, nil
}

func (s *Service) GetShowing(ctx context.Context, c auth.Caller, id string) (*models.Showing, error) {
	var showing models.Showing
	err := s.db.WithContext(ctx).
		Scopes(access.Showings(c)).
		Preload("Client").
		First(&showing, "showings.id = ?", id).Error
	if err := lookup(err, apperr.CodeShowingNotFound, "Showing not found"); err != nil {
		return nil, err
	}
	return &showing, nil
}

// CreateShowing schedules a showing for the caller or one of the caller's clients.
func (s *Service) CreateShowing(ctx context.Context, c auth.Caller, in CreateShowingInput) (*models.Showing, error) {
	v := violations{}
	v.required("propertyAddress", in.PropertyAddress)
	if in.ScheduledAt.IsZero() {
		v.add("scheduledAt", "is required")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	if in.ClientID != c.ID {
		var client models.User
		err := s.db.WithContext(ctx).Scopes(access.Clients(c)).First(&client, "users.id = ?", in.ClientID).Error
		if err := lookup(err, apperr.CodeClientNotFound, "Client not found"); err != nil {
			return nil, err
		}
	}
	if in.TransactionID != nil {
		if _, err := s.findVisibleTransaction(ctx, s.db, c, *in.TransactionID); err != nil {
			return nil, err
		}
	}

	duration := in.Duration
	if duration == 0 {
		duration = models.DefaultShowingDuration
	}
	showing := &models.Showing{
		ClientID:        in.ClientID,
		TransactionID:   in.TransactionID,
		PropertyAddress: in.PropertyAddress,
		ScheduledAt:     in.ScheduledAt.UTC(),
		Duration:        duration,
		Status:          models.ShowingStatusScheduled,
		AgentNotes:      in.AgentNotes,
	}
	if err := s.db.WithContext(ctx).Create(showing).Error; err != nil {
		return nil, fmt.Errorf("failed to create showing: %w", err)
	}

	s.record(ctx, models.Activity{
		Type:          models.ActivityShowingScheduled,
		Description:   fmt.Sprintf("Showing scheduled at %s for %s", showing.PropertyAddress, showing.ScheduledAt.Format(time.RFC3339)),
		PerformedBy:   c.ID,
		TransactionID: showing.TransactionID,
		ShowingID:     &showing.ID,
	})
	return showing, nil
}

func (s *Service) findShowing(ctx context.Context, c auth.Caller, id string) (*models.Showing, error) {
	var showing models.Showing
	err := s.db.WithContext(ctx).Scopes(access.Showings(c)).First(&showing, "showings.id = ?", id).Error
	if err := lookup(err, apperr.CodeShowingNotFound, "Showing not found"); err != nil {
		return nil, err
	}
	return &showing, nil
}

func (s *Service) UpdateShowing(ctx context.Context, c auth.Caller, id string, in UpdateShowingInput) (*models.Showing, error) {
	showing, err := s.findShowing(ctx, c, id)
	if err != nil {
		return nil, err
	}
	oldStatus := showing.Status

	if in.PropertyAddress != nil {
		showing.PropertyAddress = *in.PropertyAddress
	}
	if in.ScheduledAt != nil {
		showing.ScheduledAt = in.ScheduledAt.UTC()
	}
	if in.Duration != nil {
		showing.Duration = *in.Duration
	}
	if in.Status != nil {
		showing.Status = *in.Status
	}
	if in.AgentNotes != nil {
		showing.AgentNotes = in.AgentNotes
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(showing).Error; err != nil {
		return nil, fmt.Errorf("failed to update showing: %w", err)
	}
	s.recordShowingStatus(ctx, c, showing, oldStatus)
	return showing, nil
}

// CancelShowing marks a showing CANCELLED and soft-deletes it.
func (s *Service) CancelShowing(ctx context.Context, c auth.Caller, id string) error {
	showing, err := s.findShowing(ctx, c, id)
	if err != nil {
		return err
	}
	oldStatus := showing.Status

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(showing).Update("status", models.ShowingStatusCancelled).Error; err != nil {
			return err
		}
		return tx.Delete(showing).Error
	})
	if err != nil {
		return fmt.Errorf("failed to cancel showing: %w", err)
	}

	showing.Status = models.ShowingStatusCancelled
	s.recordShowingStatus(ctx, c, showing, oldStatus)
	return nil
}

// SubmitFeedback stores the client's feedback and completes the showing.
func (s *Service) SubmitFeedback(ctx context.Context, c auth.Caller, id string, in ShowingFeedbackInput) (*models.Showing, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Validation("Validation failed", map[string]string{"rating": "must be between 1 and 5"})
	}
	showing, err := s.findShowing(ctx, c, id)
	if err != nil {
		return nil, err
	}
	oldStatus := showing.Status

	rating := in.Rating
	feedback := in.Feedback
	err = s.db.WithContext(ctx).Model(showing).Updates(map[string]interface{}{
		"client_feedback": feedback,
		"client_rating":   rating,
		"status":          models.ShowingStatusCompleted,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}
	showing.ClientFeedback = &feedback
	showing.ClientRating = &rating
	showing.Status = models.ShowingStatusCompleted

	s.recordShowingStatus(ctx, c, showing, oldStatus)
	return showing, nil
}

func (s *Service) recordShowingStatus(ctx context.Context, c auth.Caller, showing *models.Showing, oldStatus models.ShowingStatus) {
	if showing.Status == oldStatus {
		return
	}
	s.record(ctx, models.Activity{
		Type:          models.ActivityShowingStatusChanged,
		Description:   fmt.Sprintf("Showing status changed from %s to %s", oldStatus, showing.Status),
		PerformedBy:   c.ID,
		TransactionID: showing.TransactionID,
		ShowingID:     &showing.ID,
	})
}
