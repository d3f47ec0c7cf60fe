package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
)

var (
	hundred = decimal.NewFromInt(100)
	maxCost = decimal.NewFromInt(math.MaxInt64)
)

// Calculator prices requests from a fixed table. It never touches ledger state.
type Calculator struct {
	table  Table
	logger coreport.Logger
}

// NewCalculator validates the table and returns a calculator
func NewCalculator(table Table, logger coreport.Logger) (*Calculator, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	// Normalise model keys once so lookups stay case-insensitive
	multipliers := make(map[string]decimal.Decimal, len(table.ModelMultipliers))
	for model, m := range table.ModelMultipliers {
		multipliers[strings.ToLower(strings.TrimSpace(model))] = m
	}
	table.ModelMultipliers = multipliers

	return &Calculator{table: table, logger: logger}, nil
}

// ComputeCost returns the cost in hundredths of a credit:
// base + pages*perPage + posts*perPost + profiles*perProfile + comments*perComment + items*perItem,
// times the model multiplier for AI-driven services, rounded up to the nearest 0.01.
func (c *Calculator) ComputeCost(serviceType entity.ServiceType, shape usecase.RequestShape) (int64, error) {
	if !serviceType.IsValid() {
		return 0, fmt.Errorf("%w: %q", errs.ErrInvalidServiceType, serviceType)
	}
	if err := validateShape(shape); err != nil {
		return 0, err
	}

	rule, ok := c.table.Rules[serviceType]
	if !ok {
		c.logger.Warn("No pricing rule for service type, using default rate", map[string]any{
			"service_type": serviceType,
		})
		rule = c.table.Default
	}

	total := rule.Base.
		Add(rule.PerPage.Mul(decimal.NewFromInt(int64(shape.Pages)))).
		Add(rule.PerPost.Mul(decimal.NewFromInt(int64(shape.Posts)))).
		Add(rule.PerProfile.Mul(decimal.NewFromInt(int64(shape.Profiles)))).
		Add(rule.PerComment.Mul(decimal.NewFromInt(int64(shape.Comments)))).
		Add(rule.PerItem.Mul(decimal.NewFromInt(int64(shape.Items))))

	if rule.AIDriven {
		total = total.Mul(c.modelMultiplier(serviceType, shape.Model))
	}

	cost := total.Mul(hundred).Ceil()
	if cost.GreaterThan(maxCost) {
		return 0, fmt.Errorf("%w: cost of %s credits is out of range", errs.ErrInvalidRequestShape, total.StringFixed(2))
	}
	return cost.IntPart(), nil
}

func (c *Calculator) modelMultiplier(serviceType entity.ServiceType, model string) decimal.Decimal {
	if strings.TrimSpace(model) == "" {
		return decimal.NewFromInt(1)
	}
	m, ok := c.table.multiplier(model)
	if !ok {
		c.logger.Warn("Unknown model, using multiplier 1", map[string]any{
			"service_type": serviceType,
			"model":        model,
		})
		return decimal.NewFromInt(1)
	}
	return m
}

func validateShape(shape usecase.RequestShape) error {
	quantities := []struct {
		name  string
		value int
	}{
		{"pages", shape.Pages},
		{"posts", shape.Posts},
		{"profiles", shape.Profiles},
		{"comments", shape.Comments},
		{"items", shape.Items},
	}
	for _, q := range quantities {
		if q.value < 0 {
			return fmt.Errorf("%w: %s cannot be negative", errs.ErrInvalidRequestShape, q.name)
		}
	}
	return nil
}
