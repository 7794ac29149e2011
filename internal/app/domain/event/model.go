package event

import "time"

// Status describes the lifecycle stage of an event.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusLive   Status = "live"
	StatusClosed Status = "closed"
)

// Event is one tasting or bar night with its own item set and price board.
type Event struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Currency  string     `json:"currency"`
	Status    Status     `json:"status"`
	ImageURL  string     `json:"image_url,omitempty"`
	StartsAt  *time.Time `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// Item attaches a catalog beer to an event with its price band. CurrentPrice
// is owned by the pricing engine; the bounds are administrative.
type Item struct {
	ID           string    `json:"id"`
	EventID      string    `json:"event_id"`
	BeerID       string    `json:"beer_id"`
	Name         string    `json:"name"`
	BasePrice    float64   `json:"base_price"`
	MinPrice     float64   `json:"min_price"`
	MaxPrice     float64   `json:"max_price"`
	CurrentPrice float64   `json:"current_price"`
	VolumeML     int       `json:"volume_ml"`
	Position     int       `json:"position"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}
