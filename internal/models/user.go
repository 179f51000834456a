package models

type Role string

const (
	RoleAgent  Role = "AGENT"
	RoleClient Role = "CLIENT"
	RoleAdmin  Role = "ADMIN"
)

// IsAgent reports whether the role may manage leads and transactions.
func (r Role) IsAgent() bool {
	return r == RoleAgent || r == RoleAdmin
}

type User struct {
	Base
	Email        string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string  `gorm:"not null;default:''" json:"-"`
	FirstName    string  `gorm:"not null" json:"firstName"`
	LastName     string  `gorm:"not null" json:"lastName"`
	Phone        *string `json:"phone"`
	Avatar       *string `json:"avatar"`
	Role         Role    `gorm:"type:varchar(16);not null;default:AGENT;index" json:"role"`
	// OwnerAgentID is the owning agent of a CLIENT account.
	OwnerAgentID *string `gorm:"column:agent_id;type:varchar(36);index" json:"agentId"`
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}
