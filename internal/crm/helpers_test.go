package crm

import (
	"context"
	"testing"
	"time"

	"dealflow/server/internal/apperr"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/database/dbtest"
	"dealflow/server/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc  *Service
	db   *gorm.DB
	logs *test.Hook
	ctx  context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	svc := NewService(db, auth.NewHasher(bcrypt.MinCost), logger)
	return &fixture{svc: svc, db: db, logs: hook, ctx: context.Background()}
}

func (f *fixture) freezeClock() {
	f.svc.now = func() time.Time { return fixedNow }
}

func (f *fixture) agent(t *testing.T, email string) auth.Caller {
	t.Helper()
	u := &models.User{Email: email, FirstName: "Agent", LastName: email, Role: models.RoleAgent}
	require.NoError(t, f.db.Create(u).Error)
	return auth.CallerFromUser(u)
}

func (f *fixture) client(t *testing.T, agent auth.Caller, email string) auth.Caller {
	t.Helper()
	u := &models.User{Email: email, FirstName: "Client", LastName: email, Role: models.RoleClient, OwnerAgentID: &agent.ID}
	require.NoError(t, f.db.Create(u).Error)
	return auth.CallerFromUser(u)
}

func (f *fixture) lead(t *testing.T, agent auth.Caller, first, last string) *models.Lead {
	t.Helper()
	lead, err := f.svc.CreateLead(f.ctx, agent, CreateLeadInput{
		FirstName: first,
		LastName:  last,
		Email:     first + "@example.com",
	})
	require.NoError(t, err)
	return lead
}

func property() PropertyInput {
	return PropertyInput{
		PropertyAddress: "12 Oak St",
		PropertyCity:    "Austin",
		PropertyState:   "TX",
		PropertyZip:     "78701",
	}
}

func (f *fixture) transaction(t *testing.T, agent, client auth.Caller) *models.Transaction {
	t.Helper()
	tx, err := f.svc.CreateTransaction(f.ctx, agent, CreateTransactionInput{
		PropertyInput: property(),
		ClientID:      client.ID,
		Type:          models.TransactionTypeBuyer,
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) activities(t *testing.T, where string, args ...interface{}) []models.Activity {
	t.Helper()
	var out []models.Activity
	require.NoError(t, f.db.Where(where, args...).Order("created_at").Find(&out).Error)
	return out
}

func (f *fixture) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Unscoped().Model(model).Count(&n).Error)
	return n
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}
