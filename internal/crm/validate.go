package crm

import (
	"strings"

	"dealflow/server/internal/apperr"
	"github.com/asaskevich/govalidator"
)

const (
	zipPattern   = `^\d{5}(-\d{4})?$`
	statePattern = `^[A-Z]{2}$`
)

// violations collects field-level validation messages.
type violations map[string]string

func (v violations) add(field, message string) {
	if _, ok := v[field]; !ok {
		v[field] = message
	}
}

func (v violations) err() error {
	if len(v) == 0 {
		return nil
	}
	return apperr.Validation("Validation failed", v)
}

func (v violations) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "is required")
	}
}

func (v violations) email(field, value string) {
	if !govalidator.IsEmail(value) {
		v.add(field, "must be a valid email address")
	}
}

func (v violations) address(prefix string, state, zip string) {
	if !govalidator.Matches(state, statePattern) {
		v.add(prefix+"State", "must be a two-letter state code")
	}
	if !govalidator.Matches(zip, zipPattern) {
		v.add(prefix+"Zip", "must be a 5-digit ZIP or ZIP+4")
	}
}

func (v violations) url(field, value string) {
	if !govalidator.IsURL(value) {
		v.add(field, "must be a valid URL")
	}
}

func (v violations) budget(min, max *float64) {
	if min != nil && *min < 0 {
		v.add("budgetMin", "must not be negative")
	}
	if max != nil && *max < 0 {
		v.add("budgetMax", "must not be negative")
	}
	if min != nil && max != nil && *min > *max {
		v.add("budgetMax", "must be greater than or equal to budgetMin")
	}
}

func (v violations) coordinates(lat, lng *float64) {
	if (lat == nil) != (lng == nil) {
		v.add("propertyLat", "latitude and longitude must be given together")
		return
	}
	if lat != nil && !govalidator.InRangeFloat64(*lat, -90, 90) {
		v.add("propertyLat", "must be between -90 and 90")
	}
	if lng != nil && !govalidator.InRangeFloat64(*lng, -180, 180) {
		v.add("propertyLng", "must be between -180 and 180")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// splitList expands comma-separated query values.
func splitList[T ~string](values []T) []T {
	var out []T
	for _, v := range values {
		for _, part := range strings.Split(string(v), ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, T(part))
			}
		}
	}
	return out
}
