// Package assistant drafts emails, answers client chat, and writes market
// reports and lead analyses through an llm.Completer.
package assistant

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"dealflow/server/internal/access"
	"dealflow/server/internal/apperr"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/database"
	"dealflow/server/internal/llm"
	"dealflow/server/internal/models"
	"dealflow/server/internal/scoring"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

const (
	chatHistoryLimit     = 10
	analysisActivities   = 10
	emailLeadActivities  = 5
	defaultEmailSubject  = "Follow-up"
	marketReportTokenMul = 2
)

var chatSuggestions = []string{
	"What are the next steps in my transaction?",
	"When is my closing date?",
	"How can I contact my agent?",
}

type Service struct {
	db        *gorm.DB
	llm       llm.Completer
	logger    *logrus.Logger
	maxTokens int64
	now       func() time.Time
}

func NewService(db *gorm.DB, completer llm.Completer, maxTokens int64, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Service{
		db:        db,
		llm:       completer,
		logger:    logger,
		maxTokens: maxTokens,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type EmailContext struct {
	Occasion          string `json:"occasion" binding:"omitempty,oneof=follow_up market_update showing_confirmation milestone_update custom"`
	Tone              string `json:"tone" binding:"omitempty,oneof=professional friendly urgent"`
	AdditionalContext string `json:"additionalContext" binding:"max=2000"`
}

type GenerateEmailInput struct {
	LeadID        *string      `json:"leadId"`
	TransactionID *string      `json:"transactionId"`
	Context       EmailContext `json:"context"`
}

type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type ChatInput struct {
	Content        string `json:"content" binding:"required,max=4000"`
	ConversationID string `json:"conversationId"`
}

type ChatReply struct {
	Message        string   `json:"message"`
	ConversationID string   `json:"conversationId"`
	Suggestions    []string `json:"suggestions"`
}

type Location struct {
	City  string `json:"city" binding:"required"`
	State string `json:"state" binding:"required,len=2"`
	Zip   string `json:"zip"`
}

type PriceRange struct {
	Min float64 `json:"min" binding:"gte=0"`
	Max float64 `json:"max" binding:"gtefield=Min"`
}

type GeoPoint struct {
	Lat float64 `json:"lat" binding:"latitude"`
	Lng float64 `json:"lng" binding:"longitude"`
}

type MarketReportInput struct {
	Location     Location    `json:"location" binding:"required"`
	PropertyType *string     `json:"propertyType"`
	PriceRange   *PriceRange `json:"priceRange"`
	// Center enables closed-sale comparables within RadiusKm.
	Center   *GeoPoint `json:"center"`
	RadiusKm float64   `json:"radiusKm" binding:"omitempty,gt=0,lte=100"`
}

type MarketReport struct {
	Report      string       `json:"report"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Location    Location     `json:"location"`
	Comparables []Comparable `json:"comparables,omitempty"`
}

type LeadAnalysis struct {
	Analysis   string    `json:"analysis"`
	LeadScore  int       `json:"leadScore"`
	AnalyzedAt time.Time `json:"analyzedAt"`
}

func (s *Service) GenerateEmail(ctx context.Context, c auth.Caller, in GenerateEmailInput) (*EmailDraft, error) {
	var background string
	if in.LeadID != nil {
		var lead models.Lead
		err := s.db.WithContext(ctx).
			Scopes(access.Leads(c)).
			Preload("Activities", func(db *gorm.DB) *gorm.DB {
				return db.Order("created_at DESC").Limit(emailLeadActivities)
			}).
			First(&lead, "leads.id = ?", *in.LeadID).Error
		if err := notFound(err, apperr.CodeLeadNotFound, "Lead not found"); err != nil {
			return nil, err
		}
		if background, err = leadContext(&lead); err != nil {
			return nil, err
		}
	}
	if in.TransactionID != nil {
		var t models.Transaction
		err := s.db.WithContext(ctx).
			Scopes(access.MutableTransactions(c)).
			Preload("Client").
			Preload("Milestones").
			First(&t, "transactions.id = ?", *in.TransactionID).Error
		if err := notFound(err, apperr.CodeTransactionNotFound, "Transaction not found"); err != nil {
			return nil, err
		}
		scoring.Apply(&t)
		if background, err = transactionContext(&t); err != nil {
			return nil, err
		}
	}

	occasion := in.Context.Occasion
	if occasion == "" {
		occasion = "follow_up"
	}
	tone := in.Context.Tone
	if tone == "" {
		tone = "professional"
	}

	prompt, err := render(emailTmpl, map[string]string{
		"Tone":       tone,
		"Occasion":   strings.ReplaceAll(occasion, "_", " "),
		"Context":    background,
		"Additional": in.Context.AdditionalContext,
	})
	if err != nil {
		return nil, err
	}

	text, err := s.complete(ctx, "Failed to generate email", llm.Request{
		Messages:  []llm.Turn{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return nil, err
	}
	return ParseEmailDraft(text), nil
}

// ParseEmailDraft reads a {"subject", "body"} object from the completion,
// tolerating surrounding prose or code fences. Anything else becomes the body
// of a draft with a default subject.
func ParseEmailDraft(text string) *EmailDraft {
	candidate := strings.TrimSpace(text)
	if start, end := strings.Index(candidate, "{"), strings.LastIndex(candidate, "}"); start >= 0 && end > start {
		candidate = candidate[start : end+1]
	}
	if gjson.Valid(candidate) {
		subject := gjson.Get(candidate, "subject")
		body := gjson.Get(candidate, "body")
		if subject.Type == gjson.String && body.Type == gjson.String {
			return &EmailDraft{Subject: subject.String(), Body: body.String()}
		}
	}
	return &EmailDraft{Subject: defaultEmailSubject, Body: strings.TrimSpace(text)}
}

// Chat answers a portal message with the caller's latest transaction as
// context and persists both turns of the exchange.
func (s *Service) Chat(ctx context.Context, c auth.Caller, in ChatInput) (*ChatReply, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Validation("Validation failed", map[string]string{"content": "is required"})
	}
	db := s.db.WithContext(ctx)

	var user models.User
	if err := notFound(db.First(&user, "id = ?", c.ID).Error, apperr.CodeUserNotFound, "User not found"); err != nil {
		return nil, err
	}

	system, err := s.chatSystemPrompt(ctx, &user)
	if err != nil {
		return nil, err
	}

	conversationID := in.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	var history []models.Message
	err = db.Where("user_id = ? AND conversation_id = ?", c.ID, conversationID).
		Order("created_at DESC").
		Limit(chatHistoryLimit).
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	turns := make([]llm.Turn, 0, len(history)+1)
	for i := len(history) - 1; i >= 0; i-- {
		role := llm.RoleUser
		if history[i].Role == models.MessageRoleAssistant {
			role = llm.RoleAssistant
		}
		turns = append(turns, llm.Turn{Role: role, Content: history[i].Content})
	}
	turns = append(turns, llm.Turn{Role: llm.RoleUser, Content: in.Content})

	asked := s.now()
	answer, err := s.complete(ctx, "Failed to get a response", llm.Request{
		System:    system,
		Messages:  turns,
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	answered := s.now()
	if !answered.After(asked) {
		answered = asked.Add(time.Millisecond)
	}
	messages := []models.Message{
		{UserID: c.ID, ConversationID: conversationID, Role: models.MessageRoleUser, Content: in.Content, CreatedAt: asked},
		{UserID: c.ID, ConversationID: conversationID, Role: models.MessageRoleAssistant, Content: answer, CreatedAt: answered},
	}
	if err := db.Create(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}

	return &ChatReply{
		Message:        answer,
		ConversationID: conversationID,
		Suggestions:    append([]string(nil), chatSuggestions...),
	}, nil
}

func (s *Service) chatSystemPrompt(ctx context.Context, user *models.User) (string, error) {
	var t models.Transaction
	err := s.db.WithContext(ctx).
		Where("client_id = ?", user.ID).
		Preload("Agent").
		Preload("Milestones").
		Order("created_at DESC").
		First(&t).Error
	if database.IsNotFound(err) {
		return render(chatGeneralTmpl, map[string]interface{}{"User": user})
	}
	if err != nil {
		return "", fmt.Errorf("failed to load transaction: %w", err)
	}
	scoring.Apply(&t)
	return render(chatWithTransactionTmpl, map[string]interface{}{"User": user, "Transaction": &t})
}

func (s *Service) MarketReport(ctx context.Context, c auth.Caller, in MarketReportInput) (*MarketReport, error) {
	var comps []Comparable
	radius := in.RadiusKm
	if radius <= 0 {
		radius = defaultRadiusKm
	}
	if in.Center != nil {
		var err error
		comps, err = findComparables(ctx, s.db, c, orb.Point{in.Center.Lng, in.Center.Lat}, radius)
		if err != nil {
			return nil, err
		}
	}

	prompt, err := render(marketReportTmpl, map[string]interface{}{
		"Location":     in.Location,
		"PropertyType": in.PropertyType,
		"PriceRange":   in.PriceRange,
		"Comparables":  comps,
		"RadiusKm":     radius,
	})
	if err != nil {
		return nil, err
	}

	report, err := s.complete(ctx, "Failed to generate market report", llm.Request{
		Messages:  []llm.Turn{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: s.maxTokens * marketReportTokenMul,
	})
	if err != nil {
		return nil, err
	}
	return &MarketReport{
		Report:      report,
		GeneratedAt: s.now(),
		Location:    in.Location,
		Comparables: comps,
	}, nil
}

func (s *Service) AnalyzeLead(ctx context.Context, c auth.Caller, leadID string) (*LeadAnalysis, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).
		Scopes(access.Leads(c)).
		Preload("Activities", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC").Limit(analysisActivities)
		}).
		First(&lead, "leads.id = ?", leadID).Error
	if err := notFound(err, apperr.CodeLeadNotFound, "Lead not found"); err != nil {
		return nil, err
	}

	prompt, err := render(leadAnalysisTmpl, &lead)
	if err != nil {
		return nil, err
	}
	analysis, err := s.complete(ctx, "Failed to analyze lead", llm.Request{
		Messages:  []llm.Turn{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return nil, err
	}
	return &LeadAnalysis{
		Analysis:   analysis,
		LeadScore:  lead.Score,
		AnalyzedAt: s.now(),
	}, nil
}

func (s *Service) complete(ctx context.Context, message string, req llm.Request) (string, error) {
	text, err := s.llm.Complete(ctx, req)
	if err != nil {
		return "", apperr.Upstream(apperr.CodeAI, message, err)
	}
	return text, nil
}

func notFound(err error, code, message string) error {
	if err == nil {
		return nil
	}
	if database.IsNotFound(err) {
		return apperr.NotFound(code, message)
	}
	return fmt.Errorf("failed to load record: %w", err)
}
