package beer

import "time"

// Beer is a catalog entry that can be attached to events.
type Beer struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Brewery     string    `json:"brewery,omitempty"`
	Style       string    `json:"style,omitempty"`
	ABV         float64   `json:"abv,omitempty"`
	IBU         int       `json:"ibu,omitempty"`
	VolumeML    int       `json:"volume_ml,omitempty"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
