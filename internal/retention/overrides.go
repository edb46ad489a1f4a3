package retention

import (
	"fmt"
	"math"
	"time"
)

// Overrides adjusts a base Policy for a single ad-hoc sweep. Nil fields keep
// the base value.
type Overrides struct {
	DryRun        *bool    `json:"dryRun,omitempty"`
	RetentionDays *float64 `json:"retentionDays,omitempty"`
	MaxFiles      *int     `json:"maxFiles,omitempty"`
}

// PolicyError names the override field that was rejected.
type PolicyError struct {
	Field   string
	Message string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Apply returns base with the overrides applied.
func (o Overrides) Apply(base Policy) (Policy, error) {
	p := base
	if o.DryRun != nil {
		p.DryRun = *o.DryRun
	}
	if o.RetentionDays != nil {
		days := *o.RetentionDays
		if math.IsNaN(days) || math.IsInf(days, 0) || days <= 0 {
			return Policy{}, &PolicyError{Field: "retentionDays", Message: fmt.Sprintf("must be a positive number of days, got %v", days)}
		}
		if days > 36500 {
			return Policy{}, &PolicyError{Field: "retentionDays", Message: fmt.Sprintf("must be at most 36500 days, got %v", days)}
		}
		p.Retention = time.Duration(days * float64(24*time.Hour))
	}
	if o.MaxFiles != nil {
		if *o.MaxFiles < 0 {
			return Policy{}, &PolicyError{Field: "maxFiles", Message: fmt.Sprintf("must not be negative, got %d", *o.MaxFiles)}
		}
		p.MaxFiles = *o.MaxFiles
	}
	return p, nil
}
