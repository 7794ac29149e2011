// Package tabs manages customer tabs: open a tab when a guest arrives, run
// purchases against it, and settle it with a balance at the end of the night.
package tabs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openbar/beerexchange/internal/app/domain/tab"
	"github.com/openbar/beerexchange/internal/app/storage"
	"github.com/openbar/beerexchange/pkg/logger"
)

// ErrInvalidInput marks validation failures.
var ErrInvalidInput = errors.New("tabs: invalid input")

// ErrTabAlreadyOpen is returned when the customer already has an open tab for
// the event.
var ErrTabAlreadyOpen = errors.New("tabs: tab already open")

// ErrTabClosed is returned when closing a tab that is already settled.
var ErrTabClosed = errors.New("tabs: tab already closed")

// Service exposes tab lifecycle and per-event balances.
type Service struct {
	store storage.Store
	log   *logger.Logger
}

// New creates a tabs service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tabs")
	}
	return &Service{store: store, log: log}
}

// Open starts a tab for a customer at an event. A customer can hold at most
// one open tab per event.
func (s *Service) Open(ctx context.Context, eventID, customerID, note string) (tab.Tab, error) {
	if eventID == "" || customerID == "" {
		return tab.Tab{}, fmt.Errorf("%w: event id and customer id required", ErrInvalidInput)
	}
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return tab.Tab{}, err
	}
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return tab.Tab{}, err
	}
	if c.EventID != eventID {
		return tab.Tab{}, fmt.Errorf("%w: customer %s does not belong to event %s", ErrInvalidInput, customerID, eventID)
	}

	if existing, err := s.store.GetOpenTab(ctx, eventID, customerID); err == nil {
		return tab.Tab{}, fmt.Errorf("%w: tab %s", ErrTabAlreadyOpen, existing.ID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return tab.Tab{}, err
	}

	opened, err := s.store.CreateTab(ctx, tab.Tab{
		EventID:    eventID,
		CustomerID: customerID,
		Status:     tab.StatusOpen,
		Note:       strings.TrimSpace(note),
	})
	if err != nil {
		return tab.Tab{}, err
	}
	s.log.WithField("tab_id", opened.ID).WithField("customer", c.Name).Info("tab opened")
	return opened, nil
}

// Close settles a tab. Closing is final; purchases after the close no longer
// count toward the tab's balance.
func (s *Service) Close(ctx context.Context, id string) (tab.Tab, error) {
	t, err := s.store.GetTab(ctx, id)
	if err != nil {
		return tab.Tab{}, err
	}
	if t.Status == tab.StatusClosed {
		return tab.Tab{}, fmt.Errorf("%w: tab %s", ErrTabClosed, id)
	}
	now := time.Now().UTC()
	t.Status = tab.StatusClosed
	t.ClosedAt = &now

	closed, err := s.store.UpdateTab(ctx, t)
	if err != nil {
		return tab.Tab{}, err
	}
	s.log.WithField("tab_id", closed.ID).Info("tab closed")
	return closed, nil
}

// Get returns one tab.
func (s *Service) Get(ctx context.Context, id string) (tab.Tab, error) {
	return s.store.GetTab(ctx, id)
}

// Balances returns every tab of an event with its purchase totals, highest
// balance first.
func (s *Service) Balances(ctx context.Context, eventID string) ([]storage.TabBalance, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListTabBalances(ctx, eventID)
}
