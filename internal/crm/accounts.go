package crm

import (
	"context"
	"fmt"

	"dealflow/server/internal/access"
	"dealflow/server/internal/apperr"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/database"
	"dealflow/server/internal/models"
	"gorm.io/gorm"
)

type RegisterInput struct {
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required,min=8"`
	FirstName string  `json:"firstName" binding:"required,max=100"`
	LastName  string  `json:"lastName" binding:"required,max=100"`
	Phone     *string `json:"phone"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ClientInput struct {
	Email     string  `json:"email" binding:"required,email"`
	FirstName string  `json:"firstName" binding:"required,max=100"`
	LastName  string  `json:"lastName" binding:"required,max=100"`
	Phone     *string `json:"phone"`
}

// Register creates an AGENT account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	v := violations{}
	v.email("email", in.Email)
	v.required("firstName", in.FirstName)
	v.required("lastName", in.LastName)
	if len(in.Password) < auth.MinPasswordLength {
		v.add("password", fmt.Sprintf("must be at least %d characters", auth.MinPasswordLength))
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Role:         models.RoleAgent,
	}
	if err := s.createUser(ctx, s.db, user); err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("Agent registered")
	return user, nil
}

// Login verifies credentials. Unknown emails and wrong passwords are
// indistinguishable; soft-deleted accounts are reported as deactivated.
func (s *Service) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	invalid := apperr.Unauthorized(apperr.CodeInvalidCredentials, "Invalid email or password")

	var user models.User
	err := s.db.WithContext(ctx).Unscoped().Where("email = ?", normalizeEmail(in.Email)).First(&user).Error
	if database.IsNotFound(err) {
		return nil, invalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !s.hasher.Compare(user.PasswordHash, in.Password) {
		return nil, invalid
	}
	if user.DeletedAt.Valid {
		return nil, apperr.Unauthorized(apperr.CodeAccountDeactivated, "Account has been deactivated")
	}
	return &user, nil
}

func (s *Service) CurrentUser(ctx context.Context, c auth.Caller) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", c.ID).Error
	if err := lookup(err, apperr.CodeUserNotFound, "User not found"); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateClient opens a CLIENT account owned by the calling agent and returns
// it with a one-time temporary password.
func (s *Service) CreateClient(ctx context.Context, c auth.Caller, in ClientInput) (*models.User, string, error) {
	if err := requireAgent(c); err != nil {
		return nil, "", err
	}
	v := violations{}
	v.email("email", in.Email)
	v.required("firstName", in.FirstName)
	v.required("lastName", in.LastName)
	if err := v.err(); err != nil {
		return nil, "", err
	}

	password, hash, err := s.temporaryPassword()
	if err != nil {
		return nil, "", err
	}

	client := &models.User{
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Role:         models.RoleClient,
		OwnerAgentID: &c.ID,
	}
	if err := s.createUser(ctx, s.db, client); err != nil {
		return nil, "", err
	}
	return client, password, nil
}

func (s *Service) ListClients(ctx context.Context, c auth.Caller) ([]models.User, error) {
	var clients []models.User
	err := s.db.WithContext(ctx).
		Scopes(access.Clients(c)).
		Order("last_name ASC, first_name ASC").
		Find(&clients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// ResetClientPassword issues a new temporary password for one of the caller's clients.
func (s *Service) ResetClientPassword(ctx context.Context, c auth.Caller, clientID string) (string, error) {
	var client models.User
	err := s.db.WithContext(ctx).Scopes(access.Clients(c)).First(&client, "users.id = ?", clientID).Error
	if err := lookup(err, apperr.CodeClientNotFound, "Client not found"); err != nil {
		return "", err
	}

	password, hash, err := s.temporaryPassword()
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Model(&client).Update("password_hash", hash).Error; err != nil {
		return "", fmt.Errorf("failed to update password: %w", err)
	}
	return password, nil
}

func (s *Service) temporaryPassword() (password, hash string, err error) {
	password, err = auth.TemporaryPassword()
	if err != nil {
		return "", "", err
	}
	hash, err = s.hasher.Hash(password)
	if err != nil {
		return "", "", err
	}
	return password, hash, nil
}

// createUser inserts u, rejecting emails held by any account including deactivated ones.
func (s *Service) createUser(ctx context.Context, db *gorm.DB, u *models.User) error {
	var count int64
	if err := db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("email = ?", u.Email).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return apperr.Conflict(apperr.CodeUserExists, "A user with this email already exists")
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if err := uniqueEmailConflict(err); apperr.Is(err, apperr.KindConflict) {
			return err
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}
