// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import "dealflow/server/internal/models"

// Caller is the authenticated identity every service operation is scoped to.
type Caller struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
}

func CallerFromUser(u *models.User) Caller {
	return Caller{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func (c Caller) IsAgent() bool {
	return c.Role.IsAgent()
}

func (c Caller) FullName() string {
	return c.FirstName + " " + c.LastName
}
