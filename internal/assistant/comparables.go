package assistant

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dealflow/server/internal/access"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"gorm.io/gorm"
)

const (
	defaultRadiusKm = 5.0
	maxComparables  = 10
)

// Comparable is a closed sale near the report's center point.
type Comparable struct {
	TransactionID string     `json:"transactionId"`
	Address       string     `json:"address"`
	City          string     `json:"city"`
	SalePrice     *float64   `json:"salePrice"`
	ClosedAt      *time.Time `json:"closedAt"`
	DistanceKm    float64    `json:"distanceKm"`
}

// findComparables returns the caller's closed transactions within radiusKm of
// center, nearest first.
func findComparables(ctx context.Context, db *gorm.DB, c auth.Caller, center orb.Point, radiusKm float64) ([]Comparable, error) {
	if radiusKm <= 0 {
		radiusKm = defaultRadiusKm
	}
	radius := radiusKm * 1000
	bound := geo.NewBoundAroundPoint(center, radius)

	var closed []models.Transaction
	err := db.WithContext(ctx).
		Scopes(access.MutableTransactions(c)).
		Where("status = ?", models.TransactionStatusClosed).
		Where("property_lat BETWEEN ? AND ?", bound.Min.Lat(), bound.Max.Lat()).
		Where("property_lng BETWEEN ? AND ?", bound.Min.Lon(), bound.Max.Lon()).
		Find(&closed).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load closed transactions: %w", err)
	}

	comps := make([]Comparable, 0, len(closed))
	for _, t := range closed {
		if t.PropertyLat == nil || t.PropertyLng == nil {
			continue
		}
		d := geo.Distance(center, orb.Point{*t.PropertyLng, *t.PropertyLat})
		if d > radius {
			continue
		}
		closedAt := t.ActualClosingDate
		if closedAt == nil {
			closedAt = t.ClosingDate
		}
		comps = append(comps, Comparable{
			TransactionID: t.ID,
			Address:       t.PropertyAddress,
			City:          t.PropertyCity,
			SalePrice:     t.SalePrice,
			ClosedAt:      closedAt,
			DistanceKm:    d / 1000,
		})
	}

	sort.Slice(comps, func(i, j int) bool {
		return comps[i].DistanceKm < comps[j].DistanceKm
	})
	if len(comps) > maxComparables {
		comps = comps[:maxComparables]
	}
	return comps, nil
}
