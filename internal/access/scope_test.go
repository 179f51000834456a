package access

import (
	"testing"
	"time"

	"dealflow/server/internal/auth"
	"dealflow/server/internal/database/dbtest"
	"dealflow/server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type world struct {
	db                  *gorm.DB
	agent, other, admin auth.Caller
	client, otherClient auth.Caller
	tx, otherTx         *models.Transaction
	doc                 *models.Document
}

func newWorld(t *testing.T) *world {
	t.Helper()
	db := dbtest.New(t)
	w := &world{db: db}

	user := func(email string, role models.Role, agentID *string) auth.Caller {
		u := &models.User{Email: email, FirstName: "F", LastName: "L", Role: role, OwnerAgentID: agentID}
		require.NoError(t, db.Create(u).Error)
		return auth.CallerFromUser(u)
	}
	w.agent = user("agent@example.com", models.RoleAgent, nil)
	w.other = user("other@example.com", models.RoleAgent, nil)
	w.admin = user("admin@example.com", models.RoleAdmin, nil)
	w.client = user("client@example.com", models.RoleClient, &w.agent.ID)
	w.otherClient = user("other-client@example.com", models.RoleClient, &w.other.ID)

	for _, owner := range []auth.Caller{w.agent, w.agent, w.other} {
		require.NoError(t, db.Create(&models.Lead{AgentID: owner.ID, FirstName: "L", LastName: "L", Email: "l@example.com"}).Error)
	}

	transaction := func(agent, client auth.Caller) *models.Transaction {
		tx := &models.Transaction{
			AgentID: agent.ID, ClientID: client.ID, Type: models.TransactionTypeBuyer,
			PropertyAddress: "1 Main", PropertyCity: "Austin", PropertyState: "TX", PropertyZip: "78701",
		}
		require.NoError(t, db.Create(tx).Error)
		return tx
	}
	w.tx = transaction(w.agent, w.client)
	w.otherTx = transaction(w.other, w.otherClient)

	w.doc = &models.Document{TransactionID: w.tx.ID, Name: "offer.pdf", Type: models.DocumentTypeOffer, URL: "https://x.example.com/o.pdf", UploadedBy: w.client.ID}
	require.NoError(t, db.Create(w.doc).Error)
	require.NoError(t, db.Create(&models.Document{TransactionID: w.otherTx.ID, Name: "x.pdf", Type: models.DocumentTypeOther, URL: "https://x.example.com/x.pdf", UploadedBy: w.other.ID}).Error)

	for _, clientID := range []string{w.client.ID, w.client.ID, w.agent.ID, w.otherClient.ID} {
		require.NoError(t, db.Create(&models.Showing{ClientID: clientID, PropertyAddress: "1 Main", ScheduledAt: time.Now()}).Error)
	}
	return w
}

func (w *world) count(t *testing.T, model interface{}, scope Scope) int64 {
	t.Helper()
	var n int64
	require.NoError(t, w.db.Model(model).Scopes(scope).Count(&n).Error)
	return n
}

func TestLeads(t *testing.T) {
	w := newWorld(t)
	assert.Equal(t, int64(2), w.count(t, &models.Lead{}, Leads(w.agent)))
	assert.Equal(t, int64(1), w.count(t, &models.Lead{}, Leads(w.other)))
	assert.Zero(t, w.count(t, &models.Lead{}, Leads(w.admin)))
	assert.Zero(t, w.count(t, &models.Lead{}, Leads(w.client)))
}

func TestTransactions(t *testing.T) {
	w := newWorld(t)
	assert.Equal(t, int64(1), w.count(t, &models.Transaction{}, VisibleTransactions(w.agent)))
	assert.Equal(t, int64(1), w.count(t, &models.Transaction{}, VisibleTransactions(w.client)))
	assert.Zero(t, w.count(t, &models.Transaction{}, VisibleTransactions(w.admin)))

	assert.Equal(t, int64(1), w.count(t, &models.Transaction{}, MutableTransactions(w.agent)))
	assert.Zero(t, w.count(t, &models.Transaction{}, MutableTransactions(w.client)))
}

func TestClients(t *testing.T) {
	w := newWorld(t)
	var clients []models.User
	require.NoError(t, w.db.Scopes(Clients(w.agent)).Find(&clients).Error)
	require.Len(t, clients, 1)
	assert.Equal(t, w.client.ID, clients[0].ID)

	assert.Zero(t, w.count(t, &models.User{}, Clients(w.client)))
}

func TestShowings(t *testing.T) {
	w := newWorld(t)
	// The agent sees their clients' showings and their own.
	assert.Equal(t, int64(3), w.count(t, &models.Showing{}, Showings(w.agent)))
	assert.Equal(t, int64(2), w.count(t, &models.Showing{}, Showings(w.client)))
	assert.Equal(t, int64(1), w.count(t, &models.Showing{}, Showings(w.other)))
}

func TestDocuments(t *testing.T) {
	w := newWorld(t)
	assert.Equal(t, int64(1), w.count(t, &models.Document{}, Documents(w.agent)))
	assert.Equal(t, int64(1), w.count(t, &models.Document{}, Documents(w.client)))
	assert.Equal(t, int64(1), w.count(t, &models.Document{}, Documents(w.other)))
	assert.Zero(t, w.count(t, &models.Document{}, Documents(w.admin)))
}

func TestDocumentPermissions(t *testing.T) {
	w := newWorld(t)
	assert.True(t, CanChangeDocumentStatus(w.agent, w.tx))
	assert.False(t, CanChangeDocumentStatus(w.client, w.tx))

	assert.True(t, CanDeleteDocument(w.agent, w.tx, w.doc))
	assert.True(t, CanDeleteDocument(w.client, w.tx, w.doc))

	agentDoc := &models.Document{UploadedBy: w.agent.ID}
	assert.False(t, CanDeleteDocument(w.client, w.tx, agentDoc))
}
