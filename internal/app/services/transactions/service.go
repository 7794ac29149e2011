// Package transactions records purchases and kicks off the price
// recalculation each purchase triggers. A transaction's unit price is frozen
// at write time; later repricing never touches it.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/openbar/beerexchange/internal/app/domain/event"
	"github.com/openbar/beerexchange/internal/app/domain/ledger"
	"github.com/openbar/beerexchange/internal/app/metrics"
	"github.com/openbar/beerexchange/internal/app/pubsub"
	"github.com/openbar/beerexchange/internal/app/services/repricing"
	"github.com/openbar/beerexchange/internal/app/storage"
	"github.com/openbar/beerexchange/pkg/logger"
)

// ErrInvalidInput marks validation failures.
var ErrInvalidInput = errors.New("transactions: invalid input")

// ErrEventNotLive is returned when buying from a draft or closed event.
var ErrEventNotLive = errors.New("transactions: event is not live")

// ErrItemInactive is returned when buying an item taken off the board.
var ErrItemInactive = errors.New("transactions: item is not active")

const (
	defaultQty      = 1
	defaultVolumeML = 500
	maxListLimit    = 500
	defaultLimit    = 100
)

// Service records purchases.
type Service struct {
	store    storage.Store
	repricer *repricing.Service
	broker   *pubsub.Broker
	roundTo  float64
	log      *logger.Logger
}

// New creates a transactions service. roundTo is the currency tick unit
// prices are rounded to; zero disables rounding.
func New(store storage.Store, repricer *repricing.Service, broker *pubsub.Broker, roundTo float64, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("transactions")
	}
	return &Service{
		store:    store,
		repricer: repricer,
		broker:   broker,
		roundTo:  roundTo,
		log:      log,
	}
}

// PurchaseParams describe one sale. CustomerID may be empty (anonymous).
// ClientPrice, when set, overrides the computed unit price; point-of-sale
// clients send the price they displayed so the ledger matches the receipt.
type PurchaseParams struct {
	EventID     string
	ItemID      string
	CustomerID  string
	Qty         int
	ClientPrice *float64
}

// Purchase writes the transaction and triggers the price recalculation for
// the event. A recalculation failure is logged but does not undo the
// transaction; the next purchase will rebalance from the stored prices.
func (s *Service) Purchase(ctx context.Context, p PurchaseParams) (storage.TransactionDetail, error) {
	if p.EventID == "" || p.ItemID == "" {
		return storage.TransactionDetail{}, fmt.Errorf("%w: event id and item id required", ErrInvalidInput)
	}
	if p.Qty <= 0 {
		p.Qty = defaultQty
	}

	ev, err := s.store.GetEvent(ctx, p.EventID)
	if err != nil {
		return storage.TransactionDetail{}, err
	}
	if ev.Status != event.StatusLive {
		return storage.TransactionDetail{}, fmt.Errorf("%w: %s", ErrEventNotLive, ev.ID)
	}

	it, err := s.store.GetItem(ctx, p.ItemID)
	if err != nil {
		return storage.TransactionDetail{}, err
	}
	if it.EventID != p.EventID {
		return storage.TransactionDetail{}, fmt.Errorf("%w: item %s belongs to another event", ErrInvalidInput, it.ID)
	}
	if !it.Active {
		return storage.TransactionDetail{}, fmt.Errorf("%w: %s", ErrItemInactive, it.ID)
	}

	unitPrice, err := s.unitPrice(ctx, p, it.CurrentPrice)
	if err != nil {
		return storage.TransactionDetail{}, err
	}

	volume := it.VolumeML
	if volume <= 0 {
		volume = defaultVolumeML
	}

	tx, err := s.store.CreateTransaction(ctx, ledger.Transaction{
		EventID:     p.EventID,
		EventItemID: p.ItemID,
		CustomerID:  p.CustomerID,
		Qty:         p.Qty,
		VolumeML:    volume,
		UnitPrice:   unitPrice,
	})
	if err != nil {
		return storage.TransactionDetail{}, fmt.Errorf("transactions: create: %w", err)
	}
	metrics.RecordPurchase(p.Qty)

	detail := storage.TransactionDetail{Transaction: tx, BeerName: it.Name}
	if p.CustomerID != "" {
		if c, err := s.store.GetCustomer(ctx, p.CustomerID); err == nil {
			detail.CustomerName = c.Name
		}
	}

	s.broker.Publish(p.EventID, pubsub.Note{
		Type:    pubsub.NoteTransaction,
		Payload: detail,
	})

	if _, err := s.repricer.OnPurchase(ctx, p.EventID, p.ItemID, p.Qty); err != nil {
		s.log.WithError(err).
			WithField("event_id", p.EventID).
			WithField("item_id", p.ItemID).
			Error("recalculation after purchase failed")
	}
	return detail, nil
}

// unitPrice freezes the price per unit for the ledger row: the client's
// displayed price when one was sent, otherwise the current board price scaled
// by the house factor and rounded to the tick.
func (s *Service) unitPrice(ctx context.Context, p PurchaseParams, current float64) (float64, error) {
	if p.ClientPrice != nil {
		if *p.ClientPrice < 0 {
			return 0, fmt.Errorf("%w: negative client price", ErrInvalidInput)
		}
		if *p.ClientPrice > 0 {
			return *p.ClientPrice, nil
		}
	}
	factor, err := s.repricer.HouseFactor(ctx, p.EventID)
	if err != nil {
		return 0, err
	}
	price := current * factor
	if s.roundTo > 0 {
		price = math.Round(price/s.roundTo) * s.roundTo
	}
	return price, nil
}

// List returns an event's transactions, newest first, joined with customer
// and beer names. limit is clamped to [1, 500]; zero means 100.
func (s *Service) List(ctx context.Context, eventID string, limit int) ([]storage.TransactionDetail, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.store.ListTransactions(ctx, eventID, limit)
}
