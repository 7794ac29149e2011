// Package analytics answers the read-side questions the event screens ask:
// price history curves, per-beer trade stats and how far each price sits from
// its fair value.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/openbar/beerexchange/internal/app/pricing"
	"github.com/openbar/beerexchange/internal/app/storage"
	"github.com/openbar/beerexchange/pkg/logger"
)

// anonymousName is reported when a trade has no registered customer.
const anonymousName = "Anonymous"

// mispriceTolerance is the relative band around fair value still labelled
// fair.
const mispriceTolerance = 0.01

// Service computes analytics over the ledger.
type Service struct {
	store storage.Store
	log   *logger.Logger
	now   func() time.Time
}

// New creates an analytics service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("analytics")
	}
	return &Service{store: store, log: log, now: time.Now}
}

// SinceFromRange maps a history range keyword to its cutoff. Unknown ranges
// and "all" mean no cutoff.
func (s *Service) SinceFromRange(rng string) *time.Time {
	now := s.now()
	switch rng {
	case "1h":
		t := now.Add(-time.Hour)
		return &t
	case "3h":
		t := now.Add(-3 * time.Hour)
		return &t
	case "day":
		t := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return &t
	default:
		return nil
	}
}

// PricePoint is one sample on a price history curve.
type PricePoint struct {
	TS    time.Time `json:"ts"`
	Price float64   `json:"price"`
}

// PriceHistory returns an item's price curve from the price change ledger,
// oldest first, closed with a synthetic point at the current price so the
// curve always reaches "now".
func (s *Service) PriceHistory(ctx context.Context, eventID, itemID, rng string) ([]PricePoint, error) {
	it, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.EventID != eventID {
		return nil, storage.ErrNotFound
	}

	updates, err := s.store.ListPriceUpdates(ctx, itemID, s.SinceFromRange(rng))
	if err != nil {
		return nil, fmt.Errorf("analytics: price history: %w", err)
	}

	points := make([]PricePoint, 0, len(updates)+1)
	for _, u := range updates {
		points = append(points, PricePoint{TS: u.UpdatedAt, Price: u.NewPrice})
	}
	points = append(points, PricePoint{TS: s.now().UTC(), Price: it.CurrentPrice})
	return points, nil
}

// Trade identifies one purchase in the stats summary.
type Trade struct {
	CustomerName string  `json:"customer_name"`
	UnitPrice    float64 `json:"unit_price"`
	Qty          int     `json:"qty"`
}

// ItemStats summarises an item's trading so far.
type ItemStats struct {
	ItemID    string     `json:"item_id"`
	BeerID    string     `json:"beer_id,omitempty"`
	Name      string     `json:"name"`
	LastPrice float64    `json:"last_price"`
	ATH       float64    `json:"ath"`
	ATL       float64    `json:"atl"`
	FirstTS   *time.Time `json:"first_ts,omitempty"`
	LastTS    *time.Time `json:"last_ts,omitempty"`
	Cheapest  *Trade     `json:"cheapest,omitempty"`
	Priciest  *Trade     `json:"priciest,omitempty"`
}

// Stats returns an item's trade summary. The current price counts toward the
// all-time high and low even before the first sale.
func (s *Service) Stats(ctx context.Context, eventID, itemID string) (ItemStats, error) {
	it, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return ItemStats{}, err
	}
	if it.EventID != eventID {
		return ItemStats{}, storage.ErrNotFound
	}

	txs, err := s.store.ListItemTransactions(ctx, eventID, itemID, nil)
	if err != nil {
		return ItemStats{}, fmt.Errorf("analytics: stats: %w", err)
	}

	stats := ItemStats{
		ItemID:    it.ID,
		BeerID:    it.BeerID,
		Name:      it.Name,
		LastPrice: it.CurrentPrice,
		ATH:       it.CurrentPrice,
		ATL:       it.CurrentPrice,
	}
	for i := range txs {
		tx := &txs[i]
		if tx.UnitPrice > stats.ATH {
			stats.ATH = tx.UnitPrice
		}
		if tx.UnitPrice < stats.ATL {
			stats.ATL = tx.UnitPrice
		}
		if stats.Cheapest == nil || tx.UnitPrice < stats.Cheapest.UnitPrice {
			stats.Cheapest = tradeOf(tx)
		}
		if stats.Priciest == nil || tx.UnitPrice > stats.Priciest.UnitPrice {
			stats.Priciest = tradeOf(tx)
		}
	}
	if len(txs) > 0 {
		first := txs[0].CreatedAt
		last := txs[len(txs)-1].CreatedAt
		stats.FirstTS = &first
		stats.LastTS = &last
	}
	return stats, nil
}

func tradeOf(tx *storage.TransactionDetail) *Trade {
	name := tx.CustomerName
	if name == "" {
		name = anonymousName
	}
	return &Trade{CustomerName: name, UnitPrice: tx.UnitPrice, Qty: tx.Qty}
}

// Misprice reports how far one item's current price sits from its fair value.
type Misprice struct {
	ItemID  string  `json:"id"`
	Name    string  `json:"name"`
	Current float64 `json:"current"`
	Fair    float64 `json:"fair"`
	Diff    float64 `json:"diff"`
	Pct     float64 `json:"pct"`
	Label   string  `json:"label"`
}

// Mispricing compares every item of an event against its fair price. Items
// within one percent of fair are labelled "fair".
func (s *Service) Mispricing(ctx context.Context, eventID string) ([]Misprice, error) {
	items, err := s.store.ListItems(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("analytics: mispricing: %w", err)
	}

	pctx := pricing.BuildContext(items)
	out := make([]Misprice, len(items))
	for i := range items {
		current := pctx.Prices[i]
		fair := pctx.Fair[i]
		diff := current - fair
		var pct float64
		if fair != 0 {
			pct = diff / fair
		}
		label := "fair"
		if pct > mispriceTolerance {
			label = "overpriced"
		} else if pct < -mispriceTolerance {
			label = "underpriced"
		}
		out[i] = Misprice{
			ItemID:  items[i].ID,
			Name:    items[i].Name,
			Current: current,
			Fair:    fair,
			Diff:    diff,
			Pct:     pct,
			Label:   label,
		}
	}
	return out, nil
}

// HourChange reports an item's price movement over the last hour.
type HourChange struct {
	ItemID   string  `json:"item_id"`
	Name     string  `json:"name"`
	OldPrice float64 `json:"old_price"`
	NewPrice float64 `json:"new_price"`
	Change   float64 `json:"change"`
}

// LastHourChanges returns, for each active item, the price an hour ago
// against the price now. Items without changes in the window report zero
// movement.
func (s *Service) LastHourChanges(ctx context.Context, eventID string) ([]HourChange, error) {
	items, err := s.store.ListActiveItems(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("analytics: hour changes: %w", err)
	}

	cutoff := s.now().Add(-time.Hour)
	out := make([]HourChange, len(items))
	for i, it := range items {
		updates, err := s.store.ListPriceUpdates(ctx, it.ID, &cutoff)
		if err != nil {
			return nil, fmt.Errorf("analytics: hour changes: %w", err)
		}
		old := it.CurrentPrice
		if len(updates) > 0 {
			old = updates[0].OldPrice
		}
		out[i] = HourChange{
			ItemID:   it.ID,
			Name:     it.Name,
			OldPrice: old,
			NewPrice: it.CurrentPrice,
			Change:   it.CurrentPrice - old,
		}
	}
	return out, nil
}
