// Package tab models a customer's running bar tab at an event.
package tab

import "time"

// Status describes whether a tab is still accepting purchases.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Tab is one customer's tab within an event. Purchases between OpenedAt and
// ClosedAt count toward its balance.
type Tab struct {
	ID         string     `json:"id"`
	EventID    string     `json:"event_id"`
	CustomerID string     `json:"customer_id"`
	Status     Status     `json:"status"`
	Note       string     `json:"note,omitempty"`
	OpenedAt   time.Time  `json:"opened_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}
