package crm

import (
	"errors"
	"testing"

	"dealflow/server/internal/apperr"
	"dealflow/server/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func conversionInput() ConvertLeadInput {
	return ConvertLeadInput{PropertyInput: property(), Type: models.TransactionTypeBuyer}
}

func TestConvertLead(t *testing.T) {
	f := newFixture(t)
	agent := f.agent(t, "agent@example.com")
	lead := f.lead(t, agent, "Sam", "Lee")

	tx, err := f.svc.ConvertLead(f.ctx, agent, lead.ID, conversionInput())
	require.NoError(t, err)

	assert.Equal(t, agent.ID, tx.AgentID)
	require.NotNil(t, tx.LeadID)
	assert.Equal(t, lead.ID, *tx.LeadID)
	assert.Equal(t, models.TransactionStatusPreListing, tx.Status)
	require.Len(t, tx.Milestones, len(models.DefaultMilestoneNames))
	assert.Equal(t, 0, tx.Progress)
	require.NotNil(t, tx.NextMilestone)
	assert.Equal(t, models.MilestoneOfferAccepted, *tx.NextMilestone)

	var client models.User
	require.NoError(t, f.db.First(&client, "id = ?", tx.ClientID).Error)
	assert.Equal(t, models.RoleClient, client.Role)
	assert.Equal(t, "sam@example.com", client.Email)
	require.NotNil(t, client.OwnerAgentID)
	assert.Equal(t, agent.ID, *client.OwnerAgentID)
	assert.Empty(t, client.PasswordHash)

	stored, err := f.svc.GetLead(f.ctx, agent, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusConverted, stored.Status)
	require.NotNil(t, stored.Transaction)
	assert.Equal(t, tx.ID, stored.Transaction.ID)

	acts := f.activities(t, "transaction_id = ?", tx.ID)
	require.Len(t, acts, 1)
	assert.Equal(t, models.ActivityTransactionCreated, acts[0].Type)
	assert.Equal(t, "Lead converted to transaction", acts[0].Description)
	assert.Equal(t, lead.ID, *acts[0].LeadID)
}

func TestConvertLead_Twice(t *testing.T) {
	f := newFixture(t)
	agent := f.agent(t, "agent@example.com")
	lead := f.lead(t, agent, "Sam", "Lee")

	_, err := f.svc.ConvertLead(f.ctx, agent, lead.ID, conversionInput())
	require.NoError(t, err)

	users := f.count(t, &models.User{})
	transactions := f.count(t, &models.Transaction{})
	milestones := f.count(t, &models.Milestone{})
	activities := f.count(t, &models.Activity{})

	_, err = f.svc.ConvertLead(f.ctx, agent, lead.ID, conversionInput())
	assertKind(t, err, apperr.KindConflict)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeLeadConverted, appErr.Code)

	assert.Equal(t, users, f.count(t, &models.User{}))
	assert.Equal(t, transactions, f.count(t, &models.Transaction{}))
	assert.Equal(t, milestones, f.count(t, &models.Milestone{}))
	assert.Equal(t, activities, f.count(t, &models.Activity{}))
}

func TestConvertLead_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	agent := f.agent(t, "agent@example.com")
	lead := f.lead(t, agent, "Sam", "Lee")

	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_transactions", func(db *gorm.DB) {
		if db.Statement.Table == "transactions" {
			_ = db.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)

	users := f.count(t, &models.User{})
	activities := f.count(t, &models.Activity{})

	_, err = f.svc.ConvertLead(f.ctx, agent, lead.ID, conversionInput())
	assertKind(t, err, apperr.KindInternal)

	stored, err := f.svc.GetLead(f.ctx, agent, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusNew, stored.Status)
	assert.Nil(t, stored.Transaction)

	assert.Equal(t, users, f.count(t, &models.User{}))
	assert.Zero(t, f.count(t, &models.Transaction{}))
	assert.Zero(t, f.count(t, &models.Milestone{}))
	assert.Equal(t, activities, f.count(t, &models.Activity{}))

	require.NotNil(t, f.logs.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, f.logs.LastEntry().Level)
}

func TestConvertLead_ReusesExistingClient(t *testing.T) {
	f := newFixture(t)
	agent := f.agent(t, "agent@example.com")
	client := f.client(t, agent, "sam@example.com")
	lead := f.lead(t, agent, "Sam", "Lee")

	tx, err := f.svc.ConvertLead(f.ctx, agent, lead.ID, conversionInput())
	require.NoError(t, err)
	assert.Equal(t, client.ID, tx.ClientID)
}

func TestConvertLead_EmailTakenByAnotherAccount(t *testing.T) {
	f := newFixture(t)
	agent := f.agent(t, "agent@example.com")
	other := f.agent(t, "other@example.com")
	f.client(t, other, "sam@example.com")
	lead := f.lead(t, agent, "Sam", "Lee")

	_, err := f.svc.ConvertLead(f.ctx, agent, lead.ID, conversionInput())
	assertKind(t, err, apperr.KindConflict)

	stored, err := f.svc.GetLead(f.ctx, agent, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusNew, stored.Status)
}

func TestConvertLead_Scoping(t *testing.T) {
	f := newFixture(t)
	owner := f.agent(t, "owner@example.com")
	other := f.agent(t, "other@example.com")
	lead := f.lead(t, owner, "Sam", "Lee")

	_, err := f.svc.ConvertLead(f.ctx, other, lead.ID, conversionInput())
	assertKind(t, err, apperr.KindNotFound)

	_, err = f.svc.ConvertLead(f.ctx, owner, "missing", conversionInput())
	assertKind(t, err, apperr.KindNotFound)

	assert.Zero(t, f.count(t, &models.Transaction{}))
}

func TestConvertLead_ValidatesProperty(t *testing.T) {
	f := newFixture(t)
	agent := f.agent(t, "agent@example.com")
	lead := f.lead(t, agent, "Sam", "Lee")

	in := conversionInput()
	in.PropertyZip = "ABCDE"
	in.PropertyState = "Texas"
	_, err := f.svc.ConvertLead(f.ctx, agent, lead.ID, in)
	assertKind(t, err, apperr.KindValidation)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details, "propertyZip")
	assert.Contains(t, appErr.Details, "propertyState")
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func (f *fixture) leadTransactions(t *testing.T, leadID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Unscoped().Model(&models.Transaction{}).Where("lead_id = ?", leadID).Count(&n).Error)
	return n
}

func TestConvertLead_StatusLockedAfterConversion(t *testing.T) {
	f := newFixture(t)
	agent := f.agent(t, "agent@example.com")
	lead := f.lead(t, agent, "Sam", "Lee")

	_, err := f.svc.ConvertLead(f.ctx, agent, lead.ID, conversionInput())
	require.NoError(t, err)

	reopened := models.LeadStatusNew
	_, err = f.svc.UpdateLead(f.ctx, agent, lead.ID, UpdateLeadInput{Status: &reopened})
	assertKind(t, err, apperr.KindConflict)
	assertCode(t, err, apperr.CodeLeadConverted)

	notes := "closed happy"
	updated, err := f.svc.UpdateLead(f.ctx, agent, lead.ID, UpdateLeadInput{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusConverted, updated.Status)

	_, err = f.svc.ConvertLead(f.ctx, agent, lead.ID, conversionInput())
	assertKind(t, err, apperr.KindConflict)
	assert.Equal(t, int64(1), f.leadTransactions(t, lead.ID))
}

func TestCreateTransaction_RejectsLinkedLead(t *testing.T) {
	f := newFixture(t)
	agent := f.agent(t, "agent@example.com")
	client := f.client(t, agent, "client@example.com")

	converted := f.lead(t, agent, "Sam", "Lee")
	_, err := f.svc.ConvertLead(f.ctx, agent, converted.ID, conversionInput())
	require.NoError(t, err)

	_, err = f.svc.CreateTransaction(f.ctx, agent, CreateTransactionInput{
		PropertyInput: property(),
		ClientID:      client.ID,
		LeadID:        &converted.ID,
		Type:          models.TransactionTypeBuyer,
	})
	assertKind(t, err, apperr.KindConflict)
	assertCode(t, err, apperr.CodeLeadConverted)
	assert.Equal(t, int64(1), f.leadTransactions(t, converted.ID))

	linked := f.lead(t, agent, "Ana", "Ruiz")
	in := CreateTransactionInput{
		PropertyInput: property(),
		ClientID:      client.ID,
		LeadID:        &linked.ID,
		Type:          models.TransactionTypeSeller,
	}
	_, err = f.svc.CreateTransaction(f.ctx, agent, in)
	require.NoError(t, err)

	_, err = f.svc.CreateTransaction(f.ctx, agent, in)
	assertKind(t, err, apperr.KindConflict)

	_, err = f.svc.ConvertLead(f.ctx, agent, linked.ID, conversionInput())
	assertKind(t, err, apperr.KindConflict)
	assert.Equal(t, int64(1), f.leadTransactions(t, linked.ID))

	stored, err := f.svc.GetLead(f.ctx, agent, linked.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusNew, stored.Status)
}
