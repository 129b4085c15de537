package finance

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned by Parse for input that is not a well-formed
// non-negative rupiah amount.
var ErrInvalidAmount = errors.New("invalid rupiah amount")

var (
	groupedAmount = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	plainAmount   = regexp.MustCompile(`^\d+$`)
	zeroFraction  = regexp.MustCompile(`,0+$`)
)

// Parse reads an amount written with "." thousands separators or none at all.
// An optional "Rp" prefix and an all-zero ",00" fraction are accepted.
func Parse(s string) (decimal.Decimal, error) {
	digits, err := digitsOf(s)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// ParseOptional is Parse that treats blank input as zero.
func ParseOptional(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return Parse(s)
}

// Format renders a whole rupiah amount with "." thousands separators.
// Fractions are truncated; negative amounts keep their sign.
func Format(d decimal.Decimal) string {
	neg := d.IsNegative()
	digits := d.Abs().Truncate(0).String()

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte('.')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Plain renders the separator-free form persisted at the domain boundary.
func Plain(d decimal.Decimal) string {
	return d.Truncate(0).String()
}

// Normalize returns the canonical display form of a well-formed amount, so
// that Format(Parse(s)) == Normalize(s).
func Normalize(s string) (string, error) {
	d, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(d), nil
}

func digitsOf(s string) (string, error) {
	v := strings.TrimSpace(s)
	v = strings.TrimSpace(strings.TrimPrefix(v, "Rp"))
	v = zeroFraction.ReplaceAllString(v, "")

	switch {
	case plainAmount.MatchString(v):
		return v, nil
	case groupedAmount.MatchString(v):
		return strings.ReplaceAll(v, ".", ""), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
}
