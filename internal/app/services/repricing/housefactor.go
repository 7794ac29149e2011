package repricing

import (
	"context"
	"fmt"
)

// House factor damping and clamp. A bar running 20% over fair income sells at
// factor 1.02; the factor never leaves [0.8, 1.2].
const (
	houseFactorDamping = 0.1
	houseFactorMin     = 0.8
	houseFactorMax     = 1.2
)

// HouseFactor derives the multiplier applied to new purchase prices from how
// far the event's recorded income sits from its fair income. An event with no
// sales yet (or free beer) trades at factor 1.
func (s *Service) HouseFactor(ctx context.Context, eventID string) (float64, error) {
	total, fair, err := s.store.HouseFactorInputs(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("repricing: house factor inputs: %w", err)
	}
	return houseFactor(total, fair), nil
}

func houseFactor(total, fair float64) float64 {
	if fair <= 0 {
		return 1.0
	}
	ratio := (total - fair) / fair
	factor := 1.0 + ratio*houseFactorDamping
	if factor < houseFactorMin {
		return houseFactorMin
	}
	if factor > houseFactorMax {
		return houseFactorMax
	}
	return factor
}
