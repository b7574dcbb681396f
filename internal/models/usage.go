package models

import (
	"fmt"
	"time"
)

// MonthlyUsage counts discoveries started by a subject (guest session or
// user) within one calendar month. Monotonic within a month; the counter
// resets implicitly when a new MonthKey is first written.
type MonthlyUsage struct {
	Subject        string    `json:"subject"` // guest session id or user id
	MonthKey       string    `json:"month_key"`
	DiscoveryCount int       `json:"discovery_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MonthKeyFor formats the usage bucket for a point in time (UTC).
// The reset boundary is the first day of the next calendar month.
func MonthKeyFor(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// UsageKey builds the storage key for a (subject, monthKey) pair.
func UsageKey(subject, monthKey string) string {
	return subject + "|" + monthKey
}
