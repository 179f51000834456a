package crm

import (
	"context"
	"fmt"

	"dealflow/server/internal/access"
	"dealflow/server/internal/apperr"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/models"
)

type CreateDocumentInput struct {
	Name     string              `json:"name" binding:"required,max=255"`
	Type     models.DocumentType `json:"type" binding:"required,oneof=OFFER INSPECTION_REPORT APPRAISAL LOAN_APPROVAL TITLE_REPORT DISCLOSURE CONTRACT ADDENDUM OTHER"`
	URL      string              `json:"url" binding:"required"`
	Size     *int64              `json:"size" binding:"omitempty,gte=0"`
	MimeType *string             `json:"mimeType"`
	Notes    *string             `json:"notes"`
}

type DocumentStatusInput struct {
	Status models.DocumentStatus `json:"status" binding:"required,oneof=PENDING RECEIVED REVIEWED APPROVED REJECTED"`
	Notes  *string               `json:"notes"`
}

func (s *Service) ListDocuments(ctx context.Context, c auth.Caller, transactionID string) ([]models.Document, error) {
	if _, err := s.findVisibleTransaction(ctx, s.db, c, transactionID); err != nil {
		return nil, err
	}

	var docs []models.Document
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// CreateDocument attaches a document to a transaction visible to the caller.
func (s *Service) CreateDocument(ctx context.Context, c auth.Caller, transactionID string, in CreateDocumentInput) (*models.Document, error) {
	t, err := s.findVisibleTransaction(ctx, s.db, c, transactionID)
	if err != nil {
		return nil, err
	}

	v := violations{}
	v.required("name", in.Name)
	v.url("url", in.URL)
	if err := v.err(); err != nil {
		return nil, err
	}

	doc := &models.Document{
		TransactionID: t.ID,
		Name:          in.Name,
		Type:          in.Type,
		URL:           in.URL,
		Size:          in.Size,
		MimeType:      in.MimeType,
		Status:        models.DocumentStatusPending,
		UploadedBy:    c.ID,
		Notes:         in.Notes,
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	s.record(ctx, models.Activity{
		Type:          models.ActivityDocumentUploaded,
		Description:   fmt.Sprintf("Document uploaded: %s", doc.Name),
		PerformedBy:   c.ID,
		TransactionID: &t.ID,
		DocumentID:    &doc.ID,
	})
	return doc, nil
}

// findDocument loads a visible document with its transaction.
func (s *Service) findDocument(ctx context.Context, c auth.Caller, id string) (*models.Document, *models.Transaction, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).Scopes(access.Documents(c)).First(&doc, "documents.id = ?", id).Error
	if err := lookup(err, apperr.CodeDocumentNotFound, "Document not found"); err != nil {
		return nil, nil, err
	}
	t, err := s.findVisibleTransaction(ctx, s.db, c, doc.TransactionID)
	if err != nil {
		return nil, nil, apperr.NotFound(apperr.CodeDocumentNotFound, "Document not found")
	}
	return &doc, t, nil
}

// UpdateDocumentStatus is reserved for the transaction's agent. Other callers
// who can see the document get Forbidden.
func (s *Service) UpdateDocumentStatus(ctx context.Context, c auth.Caller, id string, in DocumentStatusInput) (*models.Document, error) {
	doc, t, err := s.findDocument(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if !access.CanChangeDocumentStatus(c, t) {
		return nil, apperr.Forbidden(apperr.CodeDocumentForbidden, "Only the transaction agent can change document status")
	}

	oldStatus := doc.Status
	updates := map[string]interface{}{"status": in.Status}
	if in.Notes != nil {
		updates["notes"] = *in.Notes
	}
	if err := s.db.WithContext(ctx).Model(doc).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	doc.Status = in.Status
	if in.Notes != nil {
		doc.Notes = in.Notes
	}

	if oldStatus != doc.Status {
		s.record(ctx, models.Activity{
			Type:          models.ActivityDocumentStatusChanged,
			Description:   fmt.Sprintf("Document %s status changed from %s to %s", doc.Name, oldStatus, doc.Status),
			PerformedBy:   c.ID,
			TransactionID: &t.ID,
			DocumentID:    &doc.ID,
		})
	}
	return doc, nil
}

// DeleteDocument soft-deletes a document. Allowed for the transaction's agent
// and for the uploader.
func (s *Service) DeleteDocument(ctx context.Context, c auth.Caller, id string) error {
	doc, t, err := s.findDocument(ctx, c, id)
	if err != nil {
		return err
	}
	if !access.CanDeleteDocument(c, t, doc) {
		return apperr.Forbidden(apperr.CodeDocumentForbidden, "Only the transaction agent or the uploader can delete this document")
	}
	if err := s.db.WithContext(ctx).Delete(doc).Error; err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
