// Package finance computes BAST payable totals and converts rupiah amounts
// between their display form ("1.500.000") and the plain decimal form stored
// at the domain boundary ("1500000").
package finance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Conformance is the kesesuaian spesifikasi flag of a BAST.
type Conformance string

const (
	ConformanceSesuai      Conformance = "Sesuai"
	ConformanceTidakSesuai Conformance = "TidakSesuai"
)

// Valid reports whether c is one of the two known values.
func (c Conformance) Valid() bool {
	return c == ConformanceSesuai || c == ConformanceTidakSesuai
}

// Totals is the outcome of ComputeTotals. Total is clamped at zero; when the
// unclamped value is negative Underflow is set and Warning explains it.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Deduction decimal.Decimal `json:"deduction"`
	Total     decimal.Decimal `json:"total"`
	RawTotal  decimal.Decimal `json:"raw_total"`
	Underflow bool            `json:"underflow"`
	Warning   string          `json:"warning,omitempty"`
}

// ComputeTotals sums the line amounts and subtracts the late penalty when the
// work does not conform to specification.
func ComputeTotals(amounts []decimal.Decimal, conformance Conformance, denda decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, a := range amounts {
		subtotal = subtotal.Add(a)
	}

	deduction := decimal.Zero
	if conformance == ConformanceTidakSesuai {
		deduction = denda
	}

	raw := subtotal.Sub(deduction)
	t := Totals{
		Subtotal:  subtotal,
		Deduction: deduction,
		Total:     raw,
		RawTotal:  raw,
	}
	if raw.IsNegative() {
		t.Total = decimal.Zero
		t.Underflow = true
		t.Warning = fmt.Sprintf("denda keterlambatan %s exceeds subtotal %s", Format(deduction), Format(subtotal))
	}
	return t
}
