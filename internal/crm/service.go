// Package crm implements the agent and client operations on leads,
// transactions, documents, showings and accounts. Every method takes the
// authenticated caller explicitly and scopes its queries with package access.
package crm

import (
	"context"
	"fmt"
	"os"
	"time"

	"dealflow/server/internal/apperr"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/database"
	"dealflow/server/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Service struct {
	db     *gorm.DB
	hasher *auth.Hasher
	logger *logrus.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, hasher *auth.Hasher, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if hasher == nil {
		hasher = auth.NewHasher(0)
	}
	return &Service{
		db:     db,
		hasher: hasher,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T
	Total int64
	Page  int
	Limit int
}

func (p Page[T]) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Limit) - 1) / int64(p.Limit))
}

// Paging holds the common page/limit query parameters.
type Paging struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (p Paging) normalize() (page, limit, offset int) {
	page, limit = p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit, (page - 1) * limit
}

// record appends an activity. Failures are logged and never surface to the caller.
func (s *Service) record(ctx context.Context, a models.Activity) {
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"activity_type": a.Type,
			"performed_by":  a.PerformedBy,
		}).Warn("Failed to record activity")
	}
}

// lookup maps gorm's not-found to a NotFound error with the given code.
func lookup(err error, code, message string) error {
	if err == nil {
		return nil
	}
	if database.IsNotFound(err) {
		return apperr.NotFound(code, message)
	}
	return fmt.Errorf("failed to load record: %w", err)
}

func requireAgent(c auth.Caller) error {
	if !c.IsAgent() {
		return apperr.Forbidden(apperr.CodeInsufficientRole, "Agent access required")
	}
	return nil
}

func uniqueEmailConflict(err error) error {
	if database.IsUniqueViolation(err) {
		return apperr.Conflict(apperr.CodeUserExists, "A user with this email already exists")
	}
	return err
}

func strPtr(s string) *string {
	return &s
}
