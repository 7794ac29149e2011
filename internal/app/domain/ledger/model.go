// Package ledger holds the append-only records the exchange produces:
// purchase transactions and price-change entries. Rows are immutable once
// written; in particular a Transaction's unit price is a snapshot of the
// price actually charged and is never touched by later rebalancing.
package ledger

import "time"

// Transaction records one purchase.
type Transaction struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	EventItemID string    `json:"event_item_id"`
	CustomerID  string    `json:"customer_id,omitempty"`
	Qty         int       `json:"qty"`
	VolumeML    int       `json:"volume_ml"`
	UnitPrice   float64   `json:"unit_price"`
	CreatedAt   time.Time `json:"created_at"`
}

// PriceUpdate records one price change produced by the pricing engine.
type PriceUpdate struct {
	ID          string    `json:"id"`
	EventItemID string    `json:"event_item_id"`
	OldPrice    float64   `json:"old_price"`
	NewPrice    float64   `json:"new_price"`
	UpdatedAt   time.Time `json:"updated_at"`
}
