// Package events manages the event lifecycle and the beers attached to an
// event. Attached items carry the price band the rebalancer operates in, so
// all band validation lives here.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openbar/beerexchange/internal/app/domain/event"
	"github.com/openbar/beerexchange/internal/app/storage"
	"github.com/openbar/beerexchange/pkg/logger"
)

// ErrInvalidInput marks validation failures callers should map to a client
// error.
var ErrInvalidInput = errors.New("events: invalid input")

const (
	defaultName     = "Beer Exchange"
	defaultCurrency = "NOK"
)

// Service exposes event and event-item operations.
type Service struct {
	store storage.Store
	log   *logger.Logger
}

// New creates an events service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &Service{store: store, log: log}
}

// CreateParams are the inputs for a new event. Zero values fall back to the
// house defaults.
type CreateParams struct {
	Name      string
	Currency  string
	ImageURL  string
	StartLive bool
}

// Create registers a new event, optionally already live.
func (s *Service) Create(ctx context.Context, p CreateParams) (event.Event, error) {
	ev := event.Event{
		Name:     strings.TrimSpace(p.Name),
		Currency: strings.TrimSpace(p.Currency),
		ImageURL: p.ImageURL,
		Status:   event.StatusDraft,
	}
	if ev.Name == "" {
		ev.Name = defaultName
	}
	if ev.Currency == "" {
		ev.Currency = defaultCurrency
	}
	if p.StartLive {
		now := time.Now().UTC()
		ev.Status = event.StatusLive
		ev.StartsAt = &now
	}
	created, err := s.store.CreateEvent(ctx, ev)
	if err != nil {
		return event.Event{}, fmt.Errorf("events: create: %w", err)
	}
	s.log.WithField("event_id", created.ID).WithField("status", string(created.Status)).Info("event created")
	return created, nil
}

// UpdateParams carries the mutable event fields; nil means keep.
type UpdateParams struct {
	Name     *string
	Currency *string
	ImageURL *string
}

// Update patches an event's name, currency or image.
func (s *Service) Update(ctx context.Context, id string, p UpdateParams) (event.Event, error) {
	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return event.Event{}, err
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) != "" {
		ev.Name = strings.TrimSpace(*p.Name)
	}
	if p.Currency != nil && strings.TrimSpace(*p.Currency) != "" {
		ev.Currency = strings.TrimSpace(*p.Currency)
	}
	if p.ImageURL != nil {
		ev.ImageURL = *p.ImageURL
	}
	return s.store.UpdateEvent(ctx, ev)
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id string) (event.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// List returns all events, live first, then drafts, then closed.
func (s *Service) List(ctx context.Context) ([]event.Event, error) {
	return s.store.ListEvents(ctx)
}

// Start moves an event to live. Starting a live event is a no-op.
func (s *Service) Start(ctx context.Context, id string) (event.Event, error) {
	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return event.Event{}, err
	}
	if ev.Status == event.StatusLive {
		return ev, nil
	}
	now := time.Now().UTC()
	ev.Status = event.StatusLive
	ev.StartsAt = &now
	ev.EndsAt = nil
	return s.store.UpdateEvent(ctx, ev)
}

// Close ends an event. Closing a closed event is a no-op.
func (s *Service) Close(ctx context.Context, id string) (event.Event, error) {
	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return event.Event{}, err
	}
	if ev.Status == event.StatusClosed {
		return ev, nil
	}
	now := time.Now().UTC()
	ev.Status = event.StatusClosed
	ev.EndsAt = &now
	return s.store.UpdateEvent(ctx, ev)
}

// AttachItemParams describes a beer being put on an event's board.
type AttachItemParams struct {
	BeerID    string
	Name      string
	BasePrice float64
	MinPrice  float64
	MaxPrice  float64
	Position  int
	Active    bool
}

// AttachItem adds a catalog beer to an event with its price band. The current
// price starts at the base price.
func (s *Service) AttachItem(ctx context.Context, eventID string, p AttachItemParams) (event.Item, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return event.Item{}, err
	}
	if err := validateBand(p.BasePrice, p.MinPrice, p.MaxPrice); err != nil {
		return event.Item{}, err
	}

	it := event.Item{
		EventID:      eventID,
		BeerID:       p.BeerID,
		Name:         strings.TrimSpace(p.Name),
		BasePrice:    p.BasePrice,
		MinPrice:     p.MinPrice,
		MaxPrice:     p.MaxPrice,
		CurrentPrice: p.BasePrice,
		Position:     p.Position,
		Active:       p.Active,
	}
	if p.BeerID != "" {
		b, err := s.store.GetBeer(ctx, p.BeerID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return event.Item{}, err
			}
		} else {
			if it.Name == "" {
				it.Name = b.Name
			}
			it.VolumeML = b.VolumeML
		}
	}
	if it.Name == "" {
		return event.Item{}, fmt.Errorf("%w: item needs a name or a catalog beer", ErrInvalidInput)
	}
	return s.store.CreateItem(ctx, it)
}

// UpdateItemBand changes an item's base, min and max price. The current price
// is clamped into the new band.
func (s *Service) UpdateItemBand(ctx context.Context, itemID string, base, min, max float64) (event.Item, error) {
	if err := validateBand(base, min, max); err != nil {
		return event.Item{}, err
	}
	it, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return event.Item{}, err
	}
	it.BasePrice = base
	it.MinPrice = min
	it.MaxPrice = max
	if it.CurrentPrice < min {
		it.CurrentPrice = min
	}
	if it.CurrentPrice > max {
		it.CurrentPrice = max
	}
	return s.store.UpdateItem(ctx, it)
}

// SetItemActive toggles whether an item takes part in sales and rebalancing.
func (s *Service) SetItemActive(ctx context.Context, itemID string, active bool) (event.Item, error) {
	it, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return event.Item{}, err
	}
	it.Active = active
	return s.store.UpdateItem(ctx, it)
}

// ListItems returns all items of an event in board order.
func (s *Service) ListItems(ctx context.Context, eventID string) ([]event.Item, error) {
	return s.store.ListItems(ctx, eventID)
}

func validateBand(base, min, max float64) error {
	if min < 0 {
		return fmt.Errorf("%w: min price %v is negative", ErrInvalidInput, min)
	}
	if max < min {
		return fmt.Errorf("%w: max price %v below min %v", ErrInvalidInput, max, min)
	}
	if base < min || base > max {
		return fmt.Errorf("%w: base price %v outside [%v, %v]", ErrInvalidInput, base, min, max)
	}
	return nil
}
