package model

import (
	"fmt"

	"bastportal/internal/apperror"
)

// Resequence sets No to the 1-based position of every item.
func Resequence(items []BastItem) {
	for i := range items {
		items[i].No = i + 1
	}
}

// InsertItem puts it at position at (0-based) and resequences. An at outside
// [0, len(items)] appends.
func InsertItem(items []BastItem, at int, it BastItem) []BastItem {
	if at < 0 || at > len(items) {
		at = len(items)
	}
	out := make([]BastItem, 0, len(items)+1)
	out = append(out, items[:at]...)
	out = append(out, it)
	out = append(out, items[at:]...)
	Resequence(out)
	return out
}

// RemoveItem drops the item at position at (0-based) and resequences.
func RemoveItem(items []BastItem, at int) ([]BastItem, error) {
	if at < 0 || at >= len(items) {
		return items, fmt.Errorf("item %d: %w", at+1, apperror.ErrNotFound)
	}
	out := make([]BastItem, 0, len(items)-1)
	out = append(out, items[:at]...)
	out = append(out, items[at+1:]...)
	Resequence(out)
	return out, nil
}
