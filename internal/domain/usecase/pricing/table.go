package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// Rule holds the unit rates of one service, in credits
type Rule struct {
	Base       decimal.Decimal
	PerPage    decimal.Decimal
	PerPost    decimal.Decimal
	PerProfile decimal.Decimal
	PerComment decimal.Decimal
	PerItem    decimal.Decimal
	AIDriven   bool // apply the model multiplier
}

// Table is the injected pricing matrix
type Table struct {
	Rules            map[entity.ServiceType]Rule
	Default          Rule
	ModelMultipliers map[string]decimal.Decimal
}

// Validate rejects negative rates, non-positive multipliers and unknown service types
func (t Table) Validate() error {
	if err := t.Default.validate("default"); err != nil {
		return err
	}
	for st, rule := range t.Rules {
		if !st.IsValid() {
			return fmt.Errorf("pricing rule for unknown service type %q", st)
		}
		if err := rule.validate(string(st)); err != nil {
			return err
		}
	}
	for model, m := range t.ModelMultipliers {
		if !m.IsPositive() {
			return fmt.Errorf("model multiplier for %q must be positive, got %s", model, m)
		}
	}
	return nil
}

func (r Rule) validate(name string) error {
	rates := map[string]decimal.Decimal{
		"base":       r.Base,
		"perPage":    r.PerPage,
		"perPost":    r.PerPost,
		"perProfile": r.PerProfile,
		"perComment": r.PerComment,
		"perItem":    r.PerItem,
	}
	for field, v := range rates {
		if v.IsNegative() {
			return fmt.Errorf("pricing rule %s: %s cannot be negative", name, field)
		}
	}
	return nil
}

// multiplier looks up a model multiplier case-insensitively
func (t Table) multiplier(model string) (decimal.Decimal, bool) {
	m, ok := t.ModelMultipliers[strings.ToLower(strings.TrimSpace(model))]
	return m, ok
}
