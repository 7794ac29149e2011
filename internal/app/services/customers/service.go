// Package customers tracks the guests buying beer at an event.
package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openbar/beerexchange/internal/app/domain/customer"
	"github.com/openbar/beerexchange/internal/app/storage"
	"github.com/openbar/beerexchange/pkg/logger"
)

// ErrInvalidInput marks validation failures.
var ErrInvalidInput = errors.New("customers: invalid input")

// Service exposes guest registration and lookup.
type Service struct {
	store storage.Store
	log   *logger.Logger
}

// New creates a customers service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("customers")
	}
	return &Service{store: store, log: log}
}

// Create registers a guest for an event.
func (s *Service) Create(ctx context.Context, eventID, name, phone string) (customer.Customer, error) {
	name = strings.TrimSpace(name)
	if eventID == "" || name == "" {
		return customer.Customer{}, fmt.Errorf("%w: event id and name required", ErrInvalidInput)
	}
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return customer.Customer{}, err
	}
	return s.store.CreateCustomer(ctx, customer.Customer{
		EventID: eventID,
		Name:    name,
		Phone:   strings.TrimSpace(phone),
	})
}

// Get returns one guest.
func (s *Service) Get(ctx context.Context, id string) (customer.Customer, error) {
	return s.store.GetCustomer(ctx, id)
}

// List returns an event's guests ordered by name.
func (s *Service) List(ctx context.Context, eventID string) ([]customer.Customer, error) {
	return s.store.ListCustomers(ctx, eventID)
}
