// Package beers manages the beer catalog events pick from.
package beers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openbar/beerexchange/internal/app/domain/beer"
	"github.com/openbar/beerexchange/internal/app/storage"
	"github.com/openbar/beerexchange/pkg/logger"
)

// ErrInvalidInput marks validation failures.
var ErrInvalidInput = errors.New("beers: invalid input")

// defaultVolumeML is used when a catalog entry does not state a pour size.
const defaultVolumeML = 500

// Service exposes catalog operations.
type Service struct {
	store storage.BeerStore
	log   *logger.Logger
}

// New creates a beers service.
func New(store storage.BeerStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("beers")
	}
	return &Service{store: store, log: log}
}

// Create adds a beer to the catalog.
func (s *Service) Create(ctx context.Context, b beer.Beer) (beer.Beer, error) {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return beer.Beer{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if b.ABV < 0 || b.ABV > 100 {
		return beer.Beer{}, fmt.Errorf("%w: abv %v out of range", ErrInvalidInput, b.ABV)
	}
	if b.VolumeML <= 0 {
		b.VolumeML = defaultVolumeML
	}
	return s.store.CreateBeer(ctx, b)
}

// Get returns one catalog beer.
func (s *Service) Get(ctx context.Context, id string) (beer.Beer, error) {
	return s.store.GetBeer(ctx, id)
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]beer.Beer, error) {
	return s.store.ListBeers(ctx)
}
