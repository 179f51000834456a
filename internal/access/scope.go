// Package access holds the per-entity visibility predicates. Every scoped
// query composes one of these as a gorm scope, so an out-of-scope row is
// indistinguishable from a missing one.
package access

import (
	"dealflow/server/internal/auth"
	"dealflow/server/internal/models"
	"gorm.io/gorm"
)

type Scope = func(*gorm.DB) *gorm.DB

func none(db *gorm.DB) *gorm.DB {
	return db.Where("1 = 0")
}

// Leads limits to leads owned by an agent caller.
func Leads(c auth.Caller) Scope {
	if !c.IsAgent() {
		return none
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("leads.agent_id = ?", c.ID)
	}
}

// VisibleTransactions limits to transactions where the caller is agent or client.
func VisibleTransactions(c auth.Caller) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(transactions.agent_id = ? OR transactions.client_id = ?)", c.ID, c.ID)
	}
}

// MutableTransactions limits to transactions the caller is the agent of.
func MutableTransactions(c auth.Caller) Scope {
	if !c.IsAgent() {
		return none
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("transactions.agent_id = ?", c.ID)
	}
}

// Clients limits users to CLIENT accounts owned by the caller.
func Clients(c auth.Caller) Scope {
	if !c.IsAgent() {
		return none
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("users.role = ? AND users.agent_id = ?", models.RoleClient, c.ID)
	}
}

// Showings limits to showings of the caller or of the caller's clients.
func Showings(c auth.Caller) Scope {
	return func(db *gorm.DB) *gorm.DB {
		owned := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.User{}).
			Select("id").
			Where("agent_id = ?", c.ID)
		return db.Where("(showings.client_id = ? OR showings.client_id IN (?))", c.ID, owned)
	}
}

// Documents limits to documents attached to a transaction visible to the caller.
func Documents(c auth.Caller) Scope {
	return func(db *gorm.DB) *gorm.DB {
		visible := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.Transaction{}).
			Select("id").
			Scopes(VisibleTransactions(c))
		return db.Where("documents.transaction_id IN (?)", visible)
	}
}

// CanChangeDocumentStatus reports whether the caller may change a visible document's status.
func CanChangeDocumentStatus(c auth.Caller, tx *models.Transaction) bool {
	return tx.AgentID == c.ID
}

// CanDeleteDocument reports whether the caller may delete a visible document.
func CanDeleteDocument(c auth.Caller, tx *models.Transaction, doc *models.Document) bool {
	return tx.AgentID == c.ID || doc.UploadedBy == c.ID
}
