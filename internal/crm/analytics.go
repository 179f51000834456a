package crm

import (
	"context"
	"fmt"
	"math"
	"time"

	"dealflow/server/internal/access"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/models"
	"gorm.io/gorm"
)

const (
	upcomingShowingsLimit = 5
	closingWindow         = 30 * 24 * time.Hour
)

type Dashboard struct {
	Leads            LeadSummary        `json:"leads"`
	Transactions     TransactionSummary `json:"transactions"`
	Activity         ActivitySummary    `json:"activity"`
	UpcomingShowings []models.Showing   `json:"upcomingShowings"`
}

type LeadSummary struct {
	Total          int64   `json:"total"`
	New            int64   `json:"new"`
	Qualified      int64   `json:"qualified"`
	Converted      int64   `json:"converted"`
	ConversionRate float64 `json:"conversionRate"`
}

type TransactionSummary struct {
	Total      int64   `json:"total"`
	Active     int64   `json:"active"`
	Closed     int64   `json:"closed"`
	TotalValue float64 `json:"totalValue"`
}

type ActivitySummary struct {
	Today    int64 `json:"today"`
	ThisWeek int64 `json:"thisWeek"`
}

type SourceMetric struct {
	Source         models.LeadSource `json:"source"`
	Count          int64             `json:"count"`
	Converted      int64             `json:"converted"`
	ConversionRate float64           `json:"conversionRate"`
}

type MonthMetric struct {
	Month     string `json:"month"`
	Count     int64  `json:"count"`
	Converted int64  `json:"converted"`
}

type LeadMetrics struct {
	BySource []SourceMetric `json:"bySource"`
	ByMonth  []MonthMetric  `json:"byMonth"`
}

type StatusMetric struct {
	Status         models.TransactionStatus `json:"status"`
	Count          int64                    `json:"count"`
	TotalListValue float64                  `json:"totalListValue"`
	TotalSaleValue float64                  `json:"totalSaleValue"`
}

type TransactionMetrics struct {
	ByStatus         []StatusMetric       `json:"byStatus"`
	AvgDaysToClose   float64              `json:"avgDaysToClose"`
	UpcomingClosings []models.Transaction `json:"upcomingClosings"`
}

func (s *Service) Dashboard(ctx context.Context, c auth.Caller) (*Dashboard, error) {
	if err := requireAgent(c); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	now := s.now()
	d := &Dashboard{}

	leads := func() *gorm.DB { return db.Model(&models.Lead{}).Scopes(access.Leads(c)) }
	if err := leads().Count(&d.Leads.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}
	if err := leads().Where("status = ?", models.LeadStatusNew).Count(&d.Leads.New).Error; err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}
	if err := leads().Where("status = ?", models.LeadStatusQualified).Count(&d.Leads.Qualified).Error; err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}
	if err := leads().Where("status = ?", models.LeadStatusConverted).Count(&d.Leads.Converted).Error; err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}
	d.Leads.ConversionRate = rate(d.Leads.Converted, d.Leads.Total)

	txs := func() *gorm.DB { return db.Model(&models.Transaction{}).Scopes(access.MutableTransactions(c)) }
	if err := txs().Count(&d.Transactions.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	if err := txs().Where("status IN ?", models.ActiveTransactionStatuses).Count(&d.Transactions.Active).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	if err := txs().Where("status = ?", models.TransactionStatusClosed).Count(&d.Transactions.Closed).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	err := txs().
		Where("status = ?", models.TransactionStatusClosed).
		Select("COALESCE(SUM(sale_price), 0)").
		Scan(&d.Transactions.TotalValue).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum closed value: %w", err)
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	activities := func() *gorm.DB { return db.Model(&models.Activity{}).Scopes(agentActivities(c)) }
	if err := activities().Where("created_at >= ?", startOfDay).Count(&d.Activity.Today).Error; err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}
	if err := activities().Where("created_at >= ?", now.AddDate(0, 0, -7)).Count(&d.Activity.ThisWeek).Error; err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}

	err = db.Scopes(access.Showings(c)).
		Preload("Client").
		Where("showings.scheduled_at >= ?", now).
		Where("showings.status IN ?", []models.ShowingStatus{models.ShowingStatusScheduled, models.ShowingStatusConfirmed}).
		Order("showings.scheduled_at ASC").
		Limit(upcomingShowingsLimit).
		Find(&d.UpcomingShowings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load upcoming showings: %w", err)
	}
	return d, nil
}

// agentActivities limits activities to those the agent performed or that
// concern the agent's leads or transactions.
func agentActivities(c auth.Caller) access.Scope {
	return func(db *gorm.DB) *gorm.DB {
		fresh := func() *gorm.DB { return db.Session(&gorm.Session{NewDB: true}) }
		leads := fresh().Model(&models.Lead{}).Select("id").Scopes(access.Leads(c))
		txs := fresh().Model(&models.Transaction{}).Select("id").Scopes(access.MutableTransactions(c))
		return db.Where("(performed_by = ? OR lead_id IN (?) OR transaction_id IN (?))", c.ID, leads, txs)
	}
}

func (s *Service) LeadMetrics(ctx context.Context, c auth.Caller) (*LeadMetrics, error) {
	if err := requireAgent(c); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var rows []struct {
		Source    models.LeadSource
		Count     int64
		Converted int64
	}
	err := db.Model(&models.Lead{}).
		Scopes(access.Leads(c)).
		Select("source, COUNT(*) AS count, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS converted", models.LeadStatusConverted).
		Group("source").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate leads by source: %w", err)
	}

	m := &LeadMetrics{BySource: make([]SourceMetric, 0, len(rows))}
	for _, r := range rows {
		m.BySource = append(m.BySource, SourceMetric{
			Source:         r.Source,
			Count:          r.Count,
			Converted:      r.Converted,
			ConversionRate: rate(r.Converted, r.Count),
		})
	}

	// Month bucketing happens here so the query stays portable across drivers.
	now := s.now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)
	var recent []models.Lead
	err = db.Scopes(access.Leads(c)).
		Select("id", "created_at", "status").
		Where("created_at >= ?", start).
		Find(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent leads: %w", err)
	}

	buckets := make(map[string]*MonthMetric, 12)
	for i := 0; i < 12; i++ {
		key := start.AddDate(0, i, 0).Format("2006-01")
		m.ByMonth = append(m.ByMonth, MonthMetric{Month: key})
	}
	for i := range m.ByMonth {
		buckets[m.ByMonth[i].Month] = &m.ByMonth[i]
	}
	for _, l := range recent {
		b, ok := buckets[l.CreatedAt.UTC().Format("2006-01")]
		if !ok {
			continue
		}
		b.Count++
		if l.Status == models.LeadStatusConverted {
			b.Converted++
		}
	}
	return m, nil
}

func (s *Service) TransactionMetrics(ctx context.Context, c auth.Caller) (*TransactionMetrics, error) {
	if err := requireAgent(c); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	m := &TransactionMetrics{}

	err := db.Model(&models.Transaction{}).
		Scopes(access.MutableTransactions(c)).
		Select("status, COUNT(*) AS count, COALESCE(SUM(list_price), 0) AS total_list_value, COALESCE(SUM(sale_price), 0) AS total_sale_value").
		Group("status").
		Scan(&m.ByStatus).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate transactions by status: %w", err)
	}

	var closed []models.Transaction
	err = db.Scopes(access.MutableTransactions(c)).
		Where("status = ? AND actual_closing_date IS NOT NULL", models.TransactionStatusClosed).
		Find(&closed).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load closed transactions: %w", err)
	}
	m.AvgDaysToClose = averageDaysToClose(closed)

	now := s.now()
	err = db.Scopes(access.MutableTransactions(c)).
		Preload("Client").
		Where("closing_date >= ? AND closing_date <= ?", now, now.Add(closingWindow)).
		Where("status NOT IN ?", []models.TransactionStatus{models.TransactionStatusClosed, models.TransactionStatusCancelled}).
		Order("closing_date ASC").
		Find(&m.UpcomingClosings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load upcoming closings: %w", err)
	}
	return m, nil
}

// averageDaysToClose measures from listing date, or creation when unlisted, to actual closing.
func averageDaysToClose(closed []models.Transaction) float64 {
	var total float64
	var n int
	for _, t := range closed {
		if t.ActualClosingDate == nil {
			continue
		}
		start := t.CreatedAt
		if t.ListingDate != nil {
			start = *t.ListingDate
		}
		total += t.ActualClosingDate.Sub(start).Hours() / 24
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Round(total/float64(n)*10) / 10
}

// rate is a percentage rounded to one decimal place.
func rate(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
