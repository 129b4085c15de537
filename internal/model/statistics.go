package model

import "time"

// BastSummary counts BASTs per lifecycle status. Every status is present,
// zero when no document is in it.
type BastSummary struct {
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

// InvoiceSummary counts invoices per status plus the unpaid invoices that
// are already past their due date or due today.
type InvoiceSummary struct {
	Counts      map[string]int64 `json:"counts"`
	Total       int64            `json:"total"`
	Overdue     int64            `json:"overdue"`
	DueToday    int64            `json:"due_today"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// StatusCount is one row of a GROUP BY status query.
type StatusCount struct {
	Status string
	Count  int64
}
