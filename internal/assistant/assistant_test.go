package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dealflow/server/internal/apperr"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/database/dbtest"
	"dealflow/server/internal/llm"
	"dealflow/server/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type fixture struct {
	svc *Service
	db  *gorm.DB
	llm *mockCompleter
	ctx context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	logger, _ := test.NewNullLogger()
	completer := &mockCompleter{}
	t.Cleanup(func() { completer.AssertExpectations(t) })

	svc := NewService(db, completer, 512, logger)
	clock := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return &fixture{svc: svc, db: db, llm: completer, ctx: context.Background()}
}

func (f *fixture) user(t *testing.T, email string, role models.Role, agentID *string) auth.Caller {
	t.Helper()
	u := &models.User{Email: email, FirstName: strings.Split(email, "@")[0], LastName: "Test", Role: role, OwnerAgentID: agentID}
	require.NoError(t, f.db.Create(u).Error)
	return auth.CallerFromUser(u)
}

func (f *fixture) transaction(t *testing.T, agent, client auth.Caller, status models.TransactionStatus, lat, lng float64) *models.Transaction {
	t.Helper()
	price := 400000.0
	tx := &models.Transaction{
		AgentID:         agent.ID,
		ClientID:        client.ID,
		Type:            models.TransactionTypeBuyer,
		Status:          status,
		PropertyAddress: "12 Oak St",
		PropertyCity:    "Austin",
		PropertyState:   "TX",
		PropertyZip:     "78701",
		PropertyLat:     &lat,
		PropertyLng:     &lng,
		SalePrice:       &price,
		Milestones:      models.DefaultMilestones(""),
	}
	require.NoError(t, f.db.Create(tx).Error)
	return tx
}

func userTurn(req llm.Request) string {
	return req.Messages[len(req.Messages)-1].Content
}

func TestParseEmailDraft(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		subject string
		body    string
	}{
		{
			name:    "bare object",
			text:    `{"subject": "Welcome home", "body": "Hi Sam"}`,
			subject: "Welcome home",
			body:    "Hi Sam",
		},
		{
			name:    "fenced with prose",
			text:    "Here is your email:\n```json\n{\"subject\": \"Next steps\", \"body\": \"Line one\\nLine two\"}\n```\nGood luck!",
			subject: "Next steps",
			body:    "Line one\nLine two",
		},
		{
			name:    "plain text",
			text:    "  Hi Sam, just checking in.  ",
			subject: "Follow-up",
			body:    "Hi Sam, just checking in.",
		},
		{
			name:    "missing body",
			text:    `{"subject": "Only a subject"}`,
			subject: "Follow-up",
			body:    `{"subject": "Only a subject"}`,
		},
		{
			name:    "broken json",
			text:    `{"subject": "Oops", "body": }`,
			subject: "Follow-up",
			body:    `{"subject": "Oops", "body": }`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := ParseEmailDraft(tt.text)
			assert.Equal(t, tt.subject, draft.Subject)
			assert.Equal(t, tt.body, draft.Body)
		})
	}
}

func TestGenerateEmail_ForLead(t *testing.T) {
	f := newFixture(t)
	agent := f.user(t, "agent@example.com", models.RoleAgent, nil)
	budget := 450000.0
	lead := &models.Lead{AgentID: agent.ID, FirstName: "Sam", LastName: "Lee", Email: "sam@example.com", BudgetMax: &budget, Score: 40}
	require.NoError(t, f.db.Create(lead).Error)

	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		prompt := userTurn(req)
		return req.MaxTokens == 512 &&
			strings.Contains(prompt, "Generate a friendly email for a market update communication") &&
			strings.Contains(prompt, "- Name: Sam Lee") &&
			strings.Contains(prompt, "- Budget: Not specified - $450,000") &&
			strings.Contains(prompt, "Additional Context: Mention the new listings")
	})).Return(`{"subject": "New listings for you", "body": "Hi Sam"}`, nil).Once()

	draft, err := f.svc.GenerateEmail(f.ctx, agent, GenerateEmailInput{
		LeadID: &lead.ID,
		Context: EmailContext{
			Occasion:          "market_update",
			Tone:              "friendly",
			AdditionalContext: "Mention the new listings",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, &EmailDraft{Subject: "New listings for you", Body: "Hi Sam"}, draft)
}

func TestGenerateEmail_ScopedLookups(t *testing.T) {
	f := newFixture(t)
	agent := f.user(t, "agent@example.com", models.RoleAgent, nil)
	other := f.user(t, "other@example.com", models.RoleAgent, nil)
	client := f.user(t, "client@example.com", models.RoleClient, &agent.ID)
	tx := f.transaction(t, agent, client, models.TransactionStatusListed, 30.27, -97.74)

	lead := &models.Lead{AgentID: agent.ID, FirstName: "Sam", LastName: "Lee", Email: "sam@example.com"}
	require.NoError(t, f.db.Create(lead).Error)

	_, err := f.svc.GenerateEmail(f.ctx, other, GenerateEmailInput{LeadID: &lead.ID})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.GenerateEmail(f.ctx, other, GenerateEmailInput{TransactionID: &tx.ID})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	f.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestGenerateEmail_UpstreamFailure(t *testing.T) {
	f := newFixture(t)
	agent := f.user(t, "agent@example.com", models.RoleAgent, nil)
	f.llm.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("overloaded")).Once()

	_, err := f.svc.GenerateEmail(f.ctx, agent, GenerateEmailInput{})
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindUpstream, appErr.Kind)
	assert.Equal(t, apperr.CodeAI, appErr.Code)
}

func TestChat_PersistsConversation(t *testing.T) {
	f := newFixture(t)
	agent := f.user(t, "agent@example.com", models.RoleAgent, nil)
	client := f.user(t, "client@example.com", models.RoleClient, &agent.ID)
	f.transaction(t, agent, client, models.TransactionStatusUnderContract, 30.27, -97.74)

	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return len(req.Messages) == 1 &&
			strings.Contains(req.System, "with their buyer transaction for 12 Oak St") &&
			strings.Contains(req.System, "Their agent is agent Test (agent@example.com)") &&
			strings.Contains(req.System, "next milestone: Offer Accepted")
	})).Return("Your inspection is next.", nil).Once()

	reply, err := f.svc.Chat(f.ctx, client, ChatInput{Content: "What happens next?"})
	require.NoError(t, err)
	assert.Equal(t, "Your inspection is next.", reply.Message)
	assert.NotEmpty(t, reply.ConversationID)
	assert.Len(t, reply.Suggestions, 3)

	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return len(req.Messages) == 3 &&
			req.Messages[0].Role == llm.RoleUser && req.Messages[0].Content == "What happens next?" &&
			req.Messages[1].Role == llm.RoleAssistant && req.Messages[1].Content == "Your inspection is next." &&
			req.Messages[2].Content == "And after that?"
	})).Return("Then the appraisal.", nil).Once()

	second, err := f.svc.Chat(f.ctx, client, ChatInput{Content: "And after that?", ConversationID: reply.ConversationID})
	require.NoError(t, err)
	assert.Equal(t, reply.ConversationID, second.ConversationID)

	var stored []models.Message
	require.NoError(t, f.db.Where("conversation_id = ?", reply.ConversationID).Order("created_at").Find(&stored).Error)
	require.Len(t, stored, 4)
	assert.Equal(t, models.MessageRoleUser, stored[0].Role)
	assert.Equal(t, models.MessageRoleAssistant, stored[3].Role)
	assert.Equal(t, "Then the appraisal.", stored[3].Content)
}

func TestChat_WithoutTransaction(t *testing.T) {
	f := newFixture(t)
	agent := f.user(t, "agent@example.com", models.RoleAgent, nil)

	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.System, "with general real estate questions")
	})).Return("Sure.", nil).Once()

	_, err := f.svc.Chat(f.ctx, agent, ChatInput{Content: "How do escrows work?"})
	require.NoError(t, err)
}

func TestChat_FailureSavesNothing(t *testing.T) {
	f := newFixture(t)
	agent := f.user(t, "agent@example.com", models.RoleAgent, nil)
	f.llm.On("Complete", mock.Anything, mock.Anything).Return("", llm.ErrNotConfigured).Once()

	_, err := f.svc.Chat(f.ctx, agent, ChatInput{Content: "Hello"})
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.ErrorIs(t, err, llm.ErrNotConfigured)

	var n int64
	require.NoError(t, f.db.Model(&models.Message{}).Count(&n).Error)
	assert.Zero(t, n)

	_, err = f.svc.Chat(f.ctx, agent, ChatInput{Content: "   "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestMarketReport_WithComparables(t *testing.T) {
	f := newFixture(t)
	f.svc.now = func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) }
	agent := f.user(t, "agent@example.com", models.RoleAgent, nil)
	other := f.user(t, "other@example.com", models.RoleAgent, nil)
	client := f.user(t, "client@example.com", models.RoleClient, &agent.ID)

	near := f.transaction(t, agent, client, models.TransactionStatusClosed, 30.2700, -97.7400)
	nearer := f.transaction(t, agent, client, models.TransactionStatusClosed, 30.2673, -97.7432)
	f.transaction(t, agent, client, models.TransactionStatusListed, 30.2672, -97.7431)
	f.transaction(t, agent, client, models.TransactionStatusClosed, 32.7767, -96.7970) // Dallas
	f.transaction(t, other, client, models.TransactionStatusClosed, 30.2672, -97.7431)

	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		prompt := userTurn(req)
		return req.MaxTokens == 1024 &&
			strings.Contains(prompt, "market report for Austin, TX 78701") &&
			strings.Contains(prompt, "Price Range: $300,000 - $500,000") &&
			strings.Contains(prompt, "within 5 km") &&
			strings.Count(prompt, "sold $400,000") == 2
	})).Return("Austin is balanced.", nil).Once()

	report, err := f.svc.MarketReport(f.ctx, agent, MarketReportInput{
		Location:   Location{City: "Austin", State: "TX", Zip: "78701"},
		PriceRange: &PriceRange{Min: 300000, Max: 500000},
		Center:     &GeoPoint{Lat: 30.2672, Lng: -97.7431},
	})
	require.NoError(t, err)
	assert.Equal(t, "Austin is balanced.", report.Report)
	assert.Equal(t, "Austin", report.Location.City)
	require.Len(t, report.Comparables, 2)
	assert.Equal(t, nearer.ID, report.Comparables[0].TransactionID)
	assert.Equal(t, near.ID, report.Comparables[1].TransactionID)
	assert.Less(t, report.Comparables[0].DistanceKm, 0.1)
	assert.Less(t, report.Comparables[1].DistanceKm, 1.0)
}

func TestMarketReport_WithoutCenter(t *testing.T) {
	f := newFixture(t)
	agent := f.user(t, "agent@example.com", models.RoleAgent, nil)

	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return !strings.Contains(userTurn(req), "Recent closed sales")
	})).Return("Report", nil).Once()

	report, err := f.svc.MarketReport(f.ctx, agent, MarketReportInput{Location: Location{City: "Austin", State: "TX"}})
	require.NoError(t, err)
	assert.Empty(t, report.Comparables)
}

func TestAnalyzeLead(t *testing.T) {
	f := newFixture(t)
	agent := f.user(t, "agent@example.com", models.RoleAgent, nil)
	lead := &models.Lead{
		AgentID:          agent.ID,
		FirstName:        "Sam",
		LastName:         "Lee",
		Email:            "sam@example.com",
		Score:            72,
		PreApproved:      true,
		ViewedProperties: []string{"a", "b", "c"},
	}
	require.NoError(t, f.db.Create(lead).Error)
	require.NoError(t, f.db.Create(&models.Activity{
		Type: models.ActivityLeadCreated, Description: "Lead Sam Lee created", PerformedBy: agent.ID, LeadID: &lead.ID,
	}).Error)

	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		prompt := userTurn(req)
		return strings.Contains(prompt, "- Score: 72/100") &&
			strings.Contains(prompt, "Pre-approved: Yes") &&
			strings.Contains(prompt, "Properties Viewed: 3") &&
			strings.Contains(prompt, "- LEAD_CREATED: Lead Sam Lee created")
	})).Return("Hot lead.", nil).Once()

	analysis, err := f.svc.AnalyzeLead(f.ctx, agent, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hot lead.", analysis.Analysis)
	assert.Equal(t, 72, analysis.LeadScore)

	client := f.user(t, "client@example.com", models.RoleClient, &agent.ID)
	_, err = f.svc.AnalyzeLead(f.ctx, client, lead.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$0", formatMoney(0))
	assert.Equal(t, "$999", formatMoney(999))
	assert.Equal(t, "$1,000", formatMoney(1000))
	assert.Equal(t, "$1,234,568", formatMoney(1234567.5))
}
