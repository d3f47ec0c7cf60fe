package entity

import (
	"fmt"
	"strconv"
	"strings"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
)

// Credit amounts are stored as hundredths of a credit to avoid floating point drift.

// MaxDecimalPlaces defines the maximum number of decimal places allowed for credit amounts
const MaxDecimalPlaces = 2

// ParseCredits validates a non-negative decimal string and converts it to hundredths.
// "10" -> 1000, "0.5" -> 50, "1.25" -> 125. More than two decimal places is rejected.
func ParseCredits(amount string) (int64, error) {
	amount = strings.TrimSpace(amount)
	if len(amount) == 0 {
		return 0, fmt.Errorf("%w: empty value", errs.ErrInvalidAmount)
	}

	if strings.HasPrefix(amount, "-") {
		return 0, errs.ErrNegativeAmount
	}

	return parseUnsigned(amount)
}

// ParseSignedCredits is ParseCredits for amounts that may carry a leading minus sign,
// such as admin adjustments.
func ParseSignedCredits(amount string) (int64, error) {
	amount = strings.TrimSpace(amount)
	if strings.HasPrefix(amount, "-") {
		value, err := parseUnsigned(strings.TrimPrefix(amount, "-"))
		if err != nil {
			return 0, err
		}
		return -value, nil
	}
	return ParseCredits(amount)
}

func parseUnsigned(amount string) (int64, error) {
	if len(amount) == 0 || strings.HasPrefix(amount, "+") || strings.HasPrefix(amount, "-") {
		return 0, fmt.Errorf("%w: invalid number format", errs.ErrInvalidAmount)
	}

	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("%w: invalid number format", errs.ErrInvalidAmount)
	}

	var digits string
	if len(parts) == 1 {
		digits = parts[0] + "00"
	} else {
		if parts[0] == "" {
			parts[0] = "0"
		}
		switch len(parts[1]) {
		case 0:
			digits = parts[0] + "00"
		case 1:
			digits = parts[0] + parts[1] + "0"
		case 2:
			digits = parts[0] + parts[1]
		default:
			return 0, fmt.Errorf("%w: maximum %d decimal places allowed", errs.ErrInvalidAmount, MaxDecimalPlaces)
		}
	}

	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: invalid number format", errs.ErrInvalidAmount)
		}
	}

	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", errs.ErrInvalidAmount, err.Error())
	}

	return value, nil
}

// FormatCredits converts hundredths of a credit to a decimal string with two places.
// 1015 -> "10.15", -400 -> "-4.00", 5 -> "0.05".
func FormatCredits(hundredths int64) string {
	sign := ""
	if hundredths < 0 {
		sign = "-"
		hundredths = -hundredths
	}
	return fmt.Sprintf("%s%d.%02d", sign, hundredths/100, hundredths%100)
}

// Credits converts a whole number of credits to hundredths
func Credits(whole int64) int64 {
	return whole * 100
}
