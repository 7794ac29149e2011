// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openbar/beerexchange/internal/app/domain/beer"
	"github.com/openbar/beerexchange/internal/app/domain/customer"
	"github.com/openbar/beerexchange/internal/app/domain/event"
	"github.com/openbar/beerexchange/internal/app/domain/ledger"
	"github.com/openbar/beerexchange/internal/app/domain/tab"
	"github.com/openbar/beerexchange/internal/app/storage"
)

// Store is the in-memory backend.
type Store struct {
	mu           sync.RWMutex
	events       map[string]event.Event
	items        map[string]event.Item
	beers        map[string]beer.Beer
	customers    map[string]customer.Customer
	transactions []ledger.Transaction
	priceUpdates map[string][]ledger.PriceUpdate
	tabs         map[string]tab.Tab
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		events:       make(map[string]event.Event),
		items:        make(map[string]event.Item),
		beers:        make(map[string]beer.Beer),
		customers:    make(map[string]customer.Customer),
		priceUpdates: make(map[string][]ledger.PriceUpdate),
		tabs:         make(map[string]tab.Tab),
	}
}

// EventStore implementation ---------------------------------------------------

func (s *Store) CreateEvent(_ context.Context, ev event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	} else if _, exists := s.events[ev.ID]; exists {
		return event.Event{}, fmt.Errorf("event %s already exists", ev.ID)
	}
	if ev.Status == "" {
		ev.Status = event.StatusDraft
	}
	ev.CreatedAt = time.Now().UTC()

	s.events[ev.ID] = ev
	return ev, nil
}

func (s *Store) UpdateEvent(_ context.Context, ev event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.events[ev.ID]
	if !ok {
		return event.Event{}, fmt.Errorf("event %s: %w", ev.ID, storage.ErrNotFound)
	}
	ev.CreatedAt = original.CreatedAt

	s.events[ev.ID] = ev
	return ev, nil
}

func (s *Store) GetEvent(_ context.Context, id string) (event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return event.Event{}, fmt.Errorf("event %s: %w", id, storage.ErrNotFound)
	}
	return ev, nil
}

func (s *Store) ListEvents(_ context.Context) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]event.Event, 0, len(s.events))
	for _, ev := range s.events {
		result = append(result, ev)
	}
	sort.Slice(result, func(i, j int) bool {
		wi, wj := statusWeight(result[i].Status), statusWeight(result[j].Status)
		if wi != wj {
			return wi < wj
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func statusWeight(st event.Status) int {
	switch st {
	case event.StatusLive:
		return 0
	case event.StatusDraft:
		return 1
	default:
		return 2
	}
}

func (s *Store) CreateItem(_ context.Context, it event.Item) (event.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[it.EventID]; !ok {
		return event.Item{}, fmt.Errorf("event %s: %w", it.EventID, storage.ErrNotFound)
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	} else if _, exists := s.items[it.ID]; exists {
		return event.Item{}, fmt.Errorf("item %s already exists", it.ID)
	}
	it.CreatedAt = time.Now().UTC()

	s.items[it.ID] = it
	return it, nil
}

func (s *Store) UpdateItem(_ context.Context, it event.Item) (event.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.items[it.ID]
	if !ok {
		return event.Item{}, fmt.Errorf("item %s: %w", it.ID, storage.ErrNotFound)
	}
	it.EventID = original.EventID
	it.CreatedAt = original.CreatedAt

	s.items[it.ID] = it
	return it, nil
}

func (s *Store) GetItem(_ context.Context, id string) (event.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return event.Item{}, fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	return it, nil
}

func (s *Store) ListItems(_ context.Context, eventID string) ([]event.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listItemsLocked(eventID, false), nil
}

func (s *Store) ListActiveItems(_ context.Context, eventID string) ([]event.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listItemsLocked(eventID, true), nil
}

func (s *Store) listItemsLocked(eventID string, activeOnly bool) []event.Item {
	result := make([]event.Item, 0)
	for _, it := range s.items {
		if it.EventID != eventID {
			continue
		}
		if activeOnly && !it.Active {
			continue
		}
		result = append(result, it)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Position != result[j].Position {
			return result[i].Position < result[j].Position
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (s *Store) PersistPrices(_ context.Context, eventID string, patches []storage.PricePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before touching any row so the write is all or
	// nothing.
	for _, patch := range patches {
		it, ok := s.items[patch.ItemID]
		if !ok || it.EventID != eventID {
			return fmt.Errorf("item %s in event %s: %w", patch.ItemID, eventID, storage.ErrNotFound)
		}
	}
	for _, patch := range patches {
		it := s.items[patch.ItemID]
		it.CurrentPrice = patch.NewPrice
		s.items[patch.ItemID] = it
	}
	return nil
}

// BeerStore implementation ----------------------------------------------------

func (s *Store) CreateBeer(_ context.Context, b beer.Beer) (beer.Beer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	} else if _, exists := s.beers[b.ID]; exists {
		return beer.Beer{}, fmt.Errorf("beer %s already exists", b.ID)
	}
	b.CreatedAt = time.Now().UTC()

	s.beers[b.ID] = b
	return b, nil
}

func (s *Store) GetBeer(_ context.Context, id string) (beer.Beer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.beers[id]
	if !ok {
		return beer.Beer{}, fmt.Errorf("beer %s: %w", id, storage.ErrNotFound)
	}
	return b, nil
}

func (s *Store) ListBeers(_ context.Context) ([]beer.Beer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]beer.Beer, 0, len(s.beers))
	for _, b := range s.beers {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// CustomerStore implementation ------------------------------------------------

func (s *Store) CreateCustomer(_ context.Context, c customer.Customer) (customer.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if _, exists := s.customers[c.ID]; exists {
		return customer.Customer{}, fmt.Errorf("customer %s already exists", c.ID)
	}
	c.CreatedAt = time.Now().UTC()

	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return customer.Customer{}, fmt.Errorf("customer %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListCustomers(_ context.Context, eventID string) ([]customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]customer.Customer, 0)
	for _, c := range s.customers {
		if c.EventID == eventID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// TabStore implementation -----------------------------------------------------

func (s *Store) CreateTab(_ context.Context, t tab.Tab) (tab.Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	} else if _, exists := s.tabs[t.ID]; exists {
		return tab.Tab{}, fmt.Errorf("tab %s already exists", t.ID)
	}
	if t.Status == "" {
		t.Status = tab.StatusOpen
	}
	if t.OpenedAt.IsZero() {
		t.OpenedAt = time.Now().UTC()
	}

	s.tabs[t.ID] = t
	return t, nil
}

func (s *Store) GetTab(_ context.Context, id string) (tab.Tab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tabs[id]
	if !ok {
		return tab.Tab{}, fmt.Errorf("tab %s: %w", id, storage.ErrNotFound)
	}
	return t, nil
}

func (s *Store) UpdateTab(_ context.Context, t tab.Tab) (tab.Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.tabs[t.ID]
	if !ok {
		return tab.Tab{}, fmt.Errorf("tab %s: %w", t.ID, storage.ErrNotFound)
	}
	t.EventID = original.EventID
	t.CustomerID = original.CustomerID
	t.OpenedAt = original.OpenedAt

	s.tabs[t.ID] = t
	return t, nil
}

func (s *Store) GetOpenTab(_ context.Context, eventID, customerID string) (tab.Tab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tabs {
		if t.EventID == eventID && t.CustomerID == customerID && t.Status == tab.StatusOpen {
			return t, nil
		}
	}
	return tab.Tab{}, fmt.Errorf("open tab for customer %s: %w", customerID, storage.ErrNotFound)
}

func (s *Store) ListTabBalances(_ context.Context, eventID string) ([]storage.TabBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.TabBalance, 0)
	for _, t := range s.tabs {
		if t.EventID != eventID {
			continue
		}
		bal := storage.TabBalance{
			TabID:      t.ID,
			CustomerID: t.CustomerID,
			Status:     t.Status,
			OpenedAt:   t.OpenedAt,
			ClosedAt:   t.ClosedAt,
		}
		if c, ok := s.customers[t.CustomerID]; ok {
			bal.CustomerName = c.Name
		}
		for _, tx := range s.transactions {
			if tx.EventID != eventID || tx.CustomerID != t.CustomerID {
				continue
			}
			if tx.CreatedAt.Before(t.OpenedAt) {
				continue
			}
			if t.ClosedAt != nil && tx.CreatedAt.After(*t.ClosedAt) {
				continue
			}
			bal.Beers += tx.Qty
			bal.Balance += float64(tx.Qty) * tx.UnitPrice
		}
		result = append(result, bal)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Balance != result[j].Balance {
			return result[i].Balance > result[j].Balance
		}
		return result[i].CustomerName < result[j].CustomerName
	})
	return result, nil
}

// LedgerStore implementation --------------------------------------------------

func (s *Store) CreateTransaction(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	s.transactions = append(s.transactions, tx)
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, eventID string, limit int) ([]storage.TransactionDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []storage.TransactionDetail
	for _, tx := range s.transactions {
		if tx.EventID == eventID {
			result = append(result, s.detailLocked(tx))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListItemTransactions(_ context.Context, eventID, itemID string, since *time.Time) ([]storage.TransactionDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []storage.TransactionDetail
	for _, tx := range s.transactions {
		if tx.EventID != eventID || tx.EventItemID != itemID {
			continue
		}
		if since != nil && tx.CreatedAt.Before(*since) {
			continue
		}
		result = append(result, s.detailLocked(tx))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) detailLocked(tx ledger.Transaction) storage.TransactionDetail {
	detail := storage.TransactionDetail{Transaction: tx}
	if c, ok := s.customers[tx.CustomerID]; ok {
		detail.CustomerName = c.Name
	}
	if it, ok := s.items[tx.EventItemID]; ok {
		detail.BeerName = it.Name
	}
	return detail
}

func (s *Store) AppendPriceUpdate(_ context.Context, upd ledger.PriceUpdate) (ledger.PriceUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if upd.ID == "" {
		upd.ID = uuid.NewString()
	}
	if upd.UpdatedAt.IsZero() {
		upd.UpdatedAt = time.Now().UTC()
	}

	s.priceUpdates[upd.EventItemID] = append(s.priceUpdates[upd.EventItemID], upd)
	return upd, nil
}

func (s *Store) ListPriceUpdates(_ context.Context, itemID string, since *time.Time) ([]ledger.PriceUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ledger.PriceUpdate
	for _, upd := range s.priceUpdates[itemID] {
		if since != nil && upd.UpdatedAt.Before(*since) {
			continue
		}
		result = append(result, upd)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	return result, nil
}

func (s *Store) HouseFactorInputs(_ context.Context, eventID string) (float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total, fair float64
	for _, tx := range s.transactions {
		if tx.EventID != eventID {
			continue
		}
		total += float64(tx.Qty) * tx.UnitPrice
		if it, ok := s.items[tx.EventItemID]; ok {
			volume := float64(it.VolumeML)
			if volume <= 0 {
				volume = 1000
			}
			fair += float64(tx.Qty) * it.BasePrice * (volume / 1000.0)
		}
	}
	return total, fair, nil
}
