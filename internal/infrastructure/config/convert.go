package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/shopspring/decimal"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/usecase/ledger"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/usecase/pricing"
)

// ServiceConfig converts the ledger section into the ledger service settings
func (l LedgerConfig) ServiceConfig() (ledger.Config, error) {
	trialAmount, err := entity.ParseCredits(l.TrialAmount)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("ledger.trialAmount: %w", err)
	}

	cfg := ledger.DefaultConfig()
	cfg.TrialAmount = trialAmount
	cfg.TrialDuration = time.Duration(l.TrialDurationDays) * 24 * time.Hour
	cfg.ReservationTTL = l.ReservationTTL
	cfg.PublishEvents = l.PublishEvents
	cfg.PlaceholderFingerprints = l.PlaceholderFingerprints
	cfg.MaxTxAttempts = l.MaxTxAttempts
	cfg.RetryBackoff = l.RetryBackoff
	return cfg, nil
}

// Table converts the pricing section into the calculator's table.
// Service types and model names are matched case-insensitively.
func (p PricingConfig) Table() (pricing.Table, error) {
	def, err := p.Default.rule()
	if err != nil {
		return pricing.Table{}, fmt.Errorf("default rule: %w", err)
	}

	table := pricing.Table{
		Rules:            make(map[entity.ServiceType]pricing.Rule, len(p.Rules)),
		Default:          def,
		ModelMultipliers: make(map[string]decimal.Decimal, len(p.ModelMultipliers)),
	}

	for name, rc := range p.Rules {
		st, err := entity.ParseServiceType(name)
		if err != nil {
			return pricing.Table{}, fmt.Errorf("rule %q: %w", name, err)
		}
		rule, err := rc.rule()
		if err != nil {
			return pricing.Table{}, fmt.Errorf("rule %q: %w", name, err)
		}
		table.Rules[st] = rule
	}

	for model, raw := range p.ModelMultipliers {
		m, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return pricing.Table{}, fmt.Errorf("model multiplier %q: %w", model, err)
		}
		table.ModelMultipliers[strings.ToLower(strings.TrimSpace(model))] = m
	}

	return table, table.Validate()
}

func (r RuleConfig) rule() (pricing.Rule, error) {
	var rule pricing.Rule
	rates := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"base", r.Base, &rule.Base},
		{"perPage", r.PerPage, &rule.PerPage},
		{"perPost", r.PerPost, &rule.PerPost},
		{"perProfile", r.PerProfile, &rule.PerProfile},
		{"perComment", r.PerComment, &rule.PerComment},
		{"perItem", r.PerItem, &rule.PerItem},
	}
	for _, rate := range rates {
		raw := strings.TrimSpace(rate.raw)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return pricing.Rule{}, fmt.Errorf("%s: %w", rate.name, err)
		}
		*rate.dst = v
	}
	rule.AIDriven = r.AIDriven
	return rule, nil
}

// Acks maps the requiredAcks setting to the sarama constant
func (k KafkaConfig) Acks() (sarama.RequiredAcks, error) {
	switch strings.ToLower(k.RequiredAcks) {
	case "", "all":
		return sarama.WaitForAll, nil
	case "local":
		return sarama.WaitForLocal, nil
	case "none":
		return sarama.NoResponse, nil
	}
	return 0, fmt.Errorf("invalid kafka.requiredAcks: %s", k.RequiredAcks)
}
