package crm

import (
	"context"
	"fmt"
	"time"

	"dealflow/server/internal/access"
	"dealflow/server/internal/apperr"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/models"
	"dealflow/server/internal/scoring"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const transactionDetailActivities = 50

// PropertyInput describes the property of a transaction.
type PropertyInput struct {
	PropertyAddress string   `json:"propertyAddress" binding:"required"`
	PropertyCity    string   `json:"propertyCity" binding:"required"`
	PropertyState   string   `json:"propertyState" binding:"required,len=2"`
	PropertyZip     string   `json:"propertyZip" binding:"required"`
	PropertyType    *string  `json:"propertyType"`
	PropertyLat     *float64 `json:"propertyLat" binding:"omitempty,latitude"`
	PropertyLng     *float64 `json:"propertyLng" binding:"omitempty,longitude"`
}

func (p PropertyInput) validate(v violations) {
	v.required("propertyAddress", p.PropertyAddress)
	v.required("propertyCity", p.PropertyCity)
	v.address("property", p.PropertyState, p.PropertyZip)
	v.coordinates(p.PropertyLat, p.PropertyLng)
}

type CreateTransactionInput struct {
	PropertyInput
	ClientID           string                   `json:"clientId" binding:"required"`
	LeadID             *string                  `json:"leadId"`
	Type               models.TransactionType   `json:"type" binding:"required,oneof=BUYER SELLER BOTH"`
	Status             models.TransactionStatus `json:"status" binding:"omitempty,oneof=PRE_LISTING LISTED UNDER_CONTRACT PENDING_CLOSING CLOSED CANCELLED"`
	ListPrice          *float64                 `json:"listPrice" binding:"omitempty,gte=0"`
	SalePrice          *float64                 `json:"salePrice" binding:"omitempty,gte=0"`
	ListingDate        *time.Time               `json:"listingDate"`
	OfferDate          *time.Time               `json:"offerDate"`
	InspectionDeadline *time.Time               `json:"inspectionDeadline"`
	AppraisalDeadline  *time.Time               `json:"appraisalDeadline"`
	FinancingDeadline  *time.Time               `json:"financingDeadline"`
	ClosingDate        *time.Time               `json:"closingDate"`
	Notes              *string                  `json:"notes"`
}

type UpdateTransactionInput struct {
	Status             *models.TransactionStatus `json:"status" binding:"omitempty,oneof=PRE_LISTING LISTED UNDER_CONTRACT PENDING_CLOSING CLOSED CANCELLED"`
	Type               *models.TransactionType   `json:"type" binding:"omitempty,oneof=BUYER SELLER BOTH"`
	PropertyAddress    *string                   `json:"propertyAddress"`
	PropertyCity       *string                   `json:"propertyCity"`
	PropertyState      *string                   `json:"propertyState" binding:"omitempty,len=2"`
	PropertyZip        *string                   `json:"propertyZip"`
	PropertyType       *string                   `json:"propertyType"`
	PropertyLat        *float64                  `json:"propertyLat" binding:"omitempty,latitude"`
	PropertyLng        *float64                  `json:"propertyLng" binding:"omitempty,longitude"`
	ListPrice          *float64                  `json:"listPrice" binding:"omitempty,gte=0"`
	SalePrice          *float64                  `json:"salePrice" binding:"omitempty,gte=0"`
	ListingDate        *time.Time                `json:"listingDate"`
	OfferDate          *time.Time                `json:"offerDate"`
	InspectionDeadline *time.Time                `json:"inspectionDeadline"`
	AppraisalDeadline  *time.Time                `json:"appraisalDeadline"`
	FinancingDeadline  *time.Time                `json:"financingDeadline"`
	ClosingDate        *time.Time                `json:"closingDate"`
	ActualClosingDate  *time.Time                `json:"actualClosingDate"`
	Notes              *string                   `json:"notes"`
}

type TransactionFilter struct {
	Paging
	Status    []models.TransactionStatus `form:"status"`
	Type      []models.TransactionType   `form:"type"`
	ClientID  string                     `form:"clientId"`
	SortBy    string                     `form:"sortBy" binding:"omitempty,oneof=createdAt closingDate"`
	SortOrder string                     `form:"sortOrder" binding:"omitempty,oneof=asc desc"`
}

var transactionSortColumns = map[string]string{
	"createdAt":   "created_at",
	"closingDate": "closing_date",
}

// CreateTransaction opens a transaction for one of the caller's clients,
// together with its default milestones.
func (s *Service) CreateTransaction(ctx context.Context, c auth.Caller, in CreateTransactionInput) (*models.Transaction, error) {
	if err := requireAgent(c); err != nil {
		return nil, err
	}
	v := violations{}
	in.PropertyInput.validate(v)
	if err := v.err(); err != nil {
		return nil, err
	}

	var client models.User
	err := s.db.WithContext(ctx).Scopes(access.Clients(c)).First(&client, "users.id = ?", in.ClientID).Error
	if err := lookup(err, apperr.CodeClientNotFound, "Client not found"); err != nil {
		return nil, err
	}
	if in.LeadID != nil {
		lead, err := s.findLead(ctx, c, *in.LeadID)
		if err != nil {
			return nil, err
		}
		if lead.Status == models.LeadStatusConverted {
			return nil, apperr.Conflict(apperr.CodeLeadConverted, "Lead has already been converted")
		}
		if err := ensureLeadUnlinked(s.db.WithContext(ctx), lead.ID); err != nil {
			return nil, err
		}
	}

	status := in.Status
	if status == "" {
		status = models.TransactionStatusPreListing
	}
	t := &models.Transaction{
		AgentID:            c.ID,
		ClientID:           client.ID,
		LeadID:             in.LeadID,
		Type:               in.Type,
		Status:             status,
		PropertyAddress:    in.PropertyAddress,
		PropertyCity:       in.PropertyCity,
		PropertyState:      in.PropertyState,
		PropertyZip:        in.PropertyZip,
		PropertyType:       in.PropertyType,
		PropertyLat:        in.PropertyLat,
		PropertyLng:        in.PropertyLng,
		ListPrice:          in.ListPrice,
		SalePrice:          in.SalePrice,
		ListingDate:        in.ListingDate,
		OfferDate:          in.OfferDate,
		InspectionDeadline: in.InspectionDeadline,
		AppraisalDeadline:  in.AppraisalDeadline,
		FinancingDeadline:  in.FinancingDeadline,
		ClosingDate:        in.ClosingDate,
		Notes:              in.Notes,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createTransactionWithMilestones(tx, t)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, models.Activity{
		Type:          models.ActivityTransactionCreated,
		Description:   fmt.Sprintf("Transaction created for %s", t.PropertyAddress),
		PerformedBy:   c.ID,
		TransactionID: &t.ID,
		LeadID:        t.LeadID,
	})

	scoring.Apply(t)
	return t, nil
}

// ensureLeadUnlinked fails with a conflict when any transaction, deleted or
// not, already references the lead.
func ensureLeadUnlinked(db *gorm.DB, leadID string) error {
	var n int64
	if err := db.Unscoped().Model(&models.Transaction{}).Where("lead_id = ?", leadID).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check lead transactions: %w", err)
	}
	if n > 0 {
		return apperr.Conflict(apperr.CodeLeadConverted, "Lead already has a transaction")
	}
	return nil
}

func createTransactionWithMilestones(tx *gorm.DB, t *models.Transaction) error {
	t.Milestones = nil
	if err := tx.Omit(clause.Associations).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	milestones := models.DefaultMilestones(t.ID)
	if err := tx.Create(&milestones).Error; err != nil {
		return fmt.Errorf("failed to create milestones: %w", err)
	}
	t.Milestones = milestones
	return nil
}

func (s *Service) ListTransactions(ctx context.Context, c auth.Caller, f TransactionFilter) (Page[models.Transaction], error) {
	page, limit, offset := f.normalize()
	result := Page[models.Transaction]{Page: page, Limit: limit}

	q := s.db.WithContext(ctx).Model(&models.Transaction{}).Scopes(access.VisibleTransactions(c))
	if statuses := splitList(f.Status); len(statuses) > 0 {
		q = q.Where("transactions.status IN ?", statuses)
	}
	if types := splitList(f.Type); len(types) > 0 {
		q = q.Where("transactions.type IN ?", types)
	}
	if f.ClientID != "" {
		q = q.Where("transactions.client_id = ?", f.ClientID)
	}

	if err := q.Count(&result.Total).Error; err != nil {
		return result, fmt.Errorf("failed to count transactions: %w", err)
	}

	column, ok := transactionSortColumns[f.SortBy]
	if !ok {
		column = "created_at"
	}
	err := q.
		Preload("Client").
		Preload("Agent").
		Preload("Milestones").
		Preload("Documents", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Order(clause.OrderByColumn{Column: clause.Column{Table: "transactions", Name: column}, Desc: f.SortOrder != "asc"}).
		Order("transactions.id").
		Offset(offset).
		Limit(limit).
		Find(&result.Items).Error
	if err != nil {
		return result, fmt.Errorf("failed to list transactions: %w", err)
	}

	for i := range result.Items {
		scoring.Apply(&result.Items[i])
	}
	return result, nil
}

func (s *Service) GetTransaction(ctx context.Context, c auth.Caller, id string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.WithContext(ctx).
		Scopes(access.VisibleTransactions(c)).
		Preload("Client").
		Preload("Agent").
		Preload("Milestones").
		Preload("Documents", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Preload("Activities", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC").Limit(transactionDetailActivities)
		}).
		First(&t, "transactions.id = ?", id).Error
	if err := lookup(err, apperr.CodeTransactionNotFound, "Transaction not found"); err != nil {
		return nil, err
	}
	scoring.Apply(&t)
	return &t, nil
}

// findVisibleTransaction loads a transaction the caller may read, without associations.
func (s *Service) findVisibleTransaction(ctx context.Context, db *gorm.DB, c auth.Caller, id string) (*models.Transaction, error) {
	var t models.Transaction
	err := db.WithContext(ctx).Scopes(access.VisibleTransactions(c)).First(&t, "transactions.id = ?", id).Error
	if err := lookup(err, apperr.CodeTransactionNotFound, "Transaction not found"); err != nil {
		return nil, err
	}
	return &t, nil
}

// findMutableTransaction loads a transaction the caller is the agent of.
func (s *Service) findMutableTransaction(ctx context.Context, db *gorm.DB, c auth.Caller, id string) (*models.Transaction, error) {
	var t models.Transaction
	err := db.WithContext(ctx).Scopes(access.MutableTransactions(c)).First(&t, "transactions.id = ?", id).Error
	if err := lookup(err, apperr.CodeTransactionNotFound, "Transaction not found"); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) UpdateTransaction(ctx context.Context, c auth.Caller, id string, in UpdateTransactionInput) (*models.Transaction, error) {
	t, err := s.findMutableTransaction(ctx, s.db, c, id)
	if err != nil {
		return nil, err
	}
	oldStatus := t.Status

	in.apply(t)
	if t.Status == models.TransactionStatusClosed && oldStatus != models.TransactionStatusClosed && t.ActualClosingDate == nil {
		closed := s.now()
		t.ActualClosingDate = &closed
	}

	v := violations{}
	PropertyInput{
		PropertyAddress: t.PropertyAddress,
		PropertyCity:    t.PropertyCity,
		PropertyState:   t.PropertyState,
		PropertyZip:     t.PropertyZip,
		PropertyLat:     t.PropertyLat,
		PropertyLng:     t.PropertyLng,
	}.validate(v)
	if err := v.err(); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(t).Error; err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	if t.Status != oldStatus {
		s.record(ctx, models.Activity{
			Type:          models.ActivityTransactionStatusChanged,
			Description:   fmt.Sprintf("Transaction status changed from %s to %s", oldStatus, t.Status),
			PerformedBy:   c.ID,
			TransactionID: &t.ID,
		})
	}
	return s.GetTransaction(ctx, c, t.ID)
}

func (in UpdateTransactionInput) apply(t *models.Transaction) {
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Type != nil {
		t.Type = *in.Type
	}
	if in.PropertyAddress != nil {
		t.PropertyAddress = *in.PropertyAddress
	}
	if in.PropertyCity != nil {
		t.PropertyCity = *in.PropertyCity
	}
	if in.PropertyState != nil {
		t.PropertyState = *in.PropertyState
	}
	if in.PropertyZip != nil {
		t.PropertyZip = *in.PropertyZip
	}
	if in.PropertyType != nil {
		t.PropertyType = in.PropertyType
	}
	if in.PropertyLat != nil {
		t.PropertyLat = in.PropertyLat
	}
	if in.PropertyLng != nil {
		t.PropertyLng = in.PropertyLng
	}
	if in.ListPrice != nil {
		t.ListPrice = in.ListPrice
	}
	if in.SalePrice != nil {
		t.SalePrice = in.SalePrice
	}
	if in.ListingDate != nil {
		t.ListingDate = in.ListingDate
	}
	if in.OfferDate != nil {
		t.OfferDate = in.OfferDate
	}
	if in.InspectionDeadline != nil {
		t.InspectionDeadline = in.InspectionDeadline
	}
	if in.AppraisalDeadline != nil {
		t.AppraisalDeadline = in.AppraisalDeadline
	}
	if in.FinancingDeadline != nil {
		t.FinancingDeadline = in.FinancingDeadline
	}
	if in.ClosingDate != nil {
		t.ClosingDate = in.ClosingDate
	}
	if in.ActualClosingDate != nil {
		t.ActualClosingDate = in.ActualClosingDate
	}
	if in.Notes != nil {
		t.Notes = in.Notes
	}
}

func (s *Service) DeleteTransaction(ctx context.Context, c auth.Caller, id string) error {
	res := s.db.WithContext(ctx).
		Scopes(access.MutableTransactions(c)).
		Where("transactions.id = ?", id).
		Delete(&models.Transaction{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(apperr.CodeTransactionNotFound, "Transaction not found")
	}
	return nil
}
