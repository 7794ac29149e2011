// Package repricing runs the price recalculation that follows every purchase:
// it loads the event's active items, bumps the bought beer, redistributes the
// bump across the rest and persists the new price vector atomically.
package repricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/openbar/beerexchange/internal/app/domain/event"
	"github.com/openbar/beerexchange/internal/app/domain/ledger"
	"github.com/openbar/beerexchange/internal/app/metrics"
	"github.com/openbar/beerexchange/internal/app/pricing"
	"github.com/openbar/beerexchange/internal/app/pubsub"
	"github.com/openbar/beerexchange/internal/app/storage"
	"github.com/openbar/beerexchange/pkg/logger"
)

// ErrItemNotActive is returned when the bought item is not among the event's
// active items.
var ErrItemNotActive = errors.New("repricing: item not active in event")

// Config carries the tunables of the price engine.
type Config struct {
	// StepPerUnit is the price bump applied per unit bought.
	StepPerUnit float64
	// MinStep is the smallest bump a purchase can cause.
	MinStep float64
	// RoundTo is the currency tick. Zero disables rounding.
	RoundTo float64
}

// Service serializes recalculations per event and owns the persist/notify
// pipeline around the rebalancer.
type Service struct {
	store  storage.Store
	broker *pubsub.Broker
	cfg    Config
	log    *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a repricing service.
func New(store storage.Store, broker *pubsub.Broker, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("repricing")
	}
	return &Service{
		store:  store,
		broker: broker,
		cfg:    cfg,
		log:    log,
		locks:  make(map[string]*sync.Mutex),
	}
}

// eventLock returns the mutex guarding one event's price vector. Locks are
// never removed; an event's lock lives as long as the process.
func (s *Service) eventLock(eventID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[eventID] = l
	}
	return l
}

// OnPurchase recalculates the event's prices after qty units of the item were
// bought. It returns the items with their new current prices. The whole
// operation runs under the event's lock so concurrent purchases for the same
// event are applied one at a time.
func (s *Service) OnPurchase(ctx context.Context, eventID, itemID string, qty int) ([]event.Item, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("repricing: qty must be positive, got %d", qty)
	}
	delta := s.cfg.StepPerUnit * float64(qty)
	if delta < s.cfg.MinStep {
		delta = s.cfg.MinStep
	}
	return s.Recalculate(ctx, eventID, itemID, delta)
}

// Recalculate applies one bump of delta to the item and rebalances the rest of
// the event. A failure before persistence leaves the stored prices untouched;
// there are no partial writes and no internal retries.
func (s *Service) Recalculate(ctx context.Context, eventID, itemID string, delta float64) ([]event.Item, error) {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	items, err := s.recalculateLocked(ctx, eventID, itemID, delta)
	metrics.RecordRecalculation(time.Since(start), err)
	return items, err
}

func (s *Service) recalculateLocked(ctx context.Context, eventID, itemID string, delta float64) ([]event.Item, error) {
	items, err := s.store.ListActiveItems(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("repricing: load items: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("repricing: event %s has no active items", eventID)
	}

	pctx := pricing.BuildContext(items)
	bought := pctx.IndexOf(itemID)
	if bought < 0 {
		return nil, fmt.Errorf("%w: %s", ErrItemNotActive, itemID)
	}

	next, err := pricing.Rebalance(pricing.Params{
		Prices:      pctx.Prices,
		BoughtIndex: bought,
		Delta:       delta,
		Min:         pctx.Min,
		Max:         pctx.Max,
		Fair:        pctx.Fair,
		TargetSum:   pctx.TargetSum,
		RoundTo:     s.cfg.RoundTo,
	})
	if err != nil {
		return nil, fmt.Errorf("repricing: rebalance: %w", err)
	}

	s.checkConvergence(eventID, next, pctx.TargetSum)

	patches := make([]storage.PricePatch, 0, len(items))
	changed := make([]int, 0, len(items))
	for i := range items {
		if next[i] == items[i].CurrentPrice {
			continue
		}
		patches = append(patches, storage.PricePatch{ItemID: items[i].ID, NewPrice: next[i]})
		changed = append(changed, i)
	}
	if len(patches) == 0 {
		return items, nil
	}

	if err := s.store.PersistPrices(ctx, eventID, patches); err != nil {
		return nil, fmt.Errorf("repricing: persist: %w", err)
	}

	now := time.Now().UTC()
	for _, i := range changed {
		_, err := s.store.AppendPriceUpdate(ctx, ledger.PriceUpdate{
			EventItemID: items[i].ID,
			OldPrice:    items[i].CurrentPrice,
			NewPrice:    next[i],
			UpdatedAt:   now,
		})
		if err != nil {
			s.log.WithError(err).WithField("item_id", items[i].ID).Error("append price history")
		}
		items[i].CurrentPrice = next[i]
	}

	s.broker.Publish(eventID, pubsub.Note{
		Type:    pubsub.NotePriceUpdate,
		Payload: items,
	})
	return items, nil
}

// checkConvergence logs and counts recalculations whose final sum drifted from
// the target by more than half a tick. The new vector is still used; the
// drift is the price of keeping every item inside its band.
func (s *Service) checkConvergence(eventID string, prices []float64, target float64) {
	tolerance := s.cfg.RoundTo / 2
	if tolerance <= 0 {
		tolerance = 1e-6
	}
	var sum float64
	for _, p := range prices {
		sum += p
	}
	if math.Abs(sum-target) > tolerance+1e-9 {
		metrics.RecordConvergenceShortfall()
		s.log.WithField("event_id", eventID).
			WithField("sum", sum).
			WithField("target", target).
			Warn("price sum drifted from target, bands too tight to converge")
	}
}
