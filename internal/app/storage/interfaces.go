// Package storage defines the persistence interfaces the application depends
// on. The pricing engine only ever sees these interfaces, never a concrete
// backend.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/openbar/beerexchange/internal/app/domain/beer"
	"github.com/openbar/beerexchange/internal/app/domain/customer"
	"github.com/openbar/beerexchange/internal/app/domain/event"
	"github.com/openbar/beerexchange/internal/app/domain/ledger"
	"github.com/openbar/beerexchange/internal/app/domain/tab"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// PricePatch carries one item's new price for an atomic persist.
type PricePatch struct {
	ItemID   string
	NewPrice float64
}

// EventStore persists events and their attached items.
type EventStore interface {
	CreateEvent(ctx context.Context, ev event.Event) (event.Event, error)
	UpdateEvent(ctx context.Context, ev event.Event) (event.Event, error)
	GetEvent(ctx context.Context, id string) (event.Event, error)
	// ListEvents orders live events first, then drafts, then closed, newest
	// first within each group.
	ListEvents(ctx context.Context) ([]event.Event, error)

	CreateItem(ctx context.Context, it event.Item) (event.Item, error)
	UpdateItem(ctx context.Context, it event.Item) (event.Item, error)
	GetItem(ctx context.Context, id string) (event.Item, error)
	// ListItems returns every item of an event ordered by position, then id.
	ListItems(ctx context.Context, eventID string) ([]event.Item, error)
	// ListActiveItems returns the active items of an event in the canonical
	// stable order (position, then id) the pricing engine relies on.
	ListActiveItems(ctx context.Context, eventID string) ([]event.Item, error)
	// PersistPrices applies the patches as a single atomic unit: either every
	// current price is updated or none is.
	PersistPrices(ctx context.Context, eventID string, patches []PricePatch) error
}

// BeerStore persists the beer catalog.
type BeerStore interface {
	CreateBeer(ctx context.Context, b beer.Beer) (beer.Beer, error)
	GetBeer(ctx context.Context, id string) (beer.Beer, error)
	ListBeers(ctx context.Context) ([]beer.Beer, error)
}

// CustomerStore persists event guests.
type CustomerStore interface {
	CreateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error)
	GetCustomer(ctx context.Context, id string) (customer.Customer, error)
	// ListCustomers returns an event's customers ordered by name.
	ListCustomers(ctx context.Context, eventID string) ([]customer.Customer, error)
}

// LedgerStore persists the append-only purchase and price-change records and
// answers the aggregate queries the pricing engine and analytics need.
type LedgerStore interface {
	CreateTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error)
	// ListTransactions returns an event's transactions newest first, joined
	// with customer and item names, capped at limit.
	ListTransactions(ctx context.Context, eventID string, limit int) ([]TransactionDetail, error)
	// ListItemTransactions returns an item's transactions oldest first,
	// optionally restricted to those at or after since.
	ListItemTransactions(ctx context.Context, eventID, itemID string, since *time.Time) ([]TransactionDetail, error)

	AppendPriceUpdate(ctx context.Context, upd ledger.PriceUpdate) (ledger.PriceUpdate, error)
	// ListPriceUpdates returns an item's price changes oldest first,
	// optionally restricted to those at or after since.
	ListPriceUpdates(ctx context.Context, itemID string, since *time.Time) ([]ledger.PriceUpdate, error)

	// HouseFactorInputs aggregates, over all transactions of the event, the
	// recorded income and the fair income (qty x base price x volume factor).
	HouseFactorInputs(ctx context.Context, eventID string) (totalIncome, fairIncome float64, err error)
}

// TabStore persists customer tabs and answers the per-event balance query.
type TabStore interface {
	CreateTab(ctx context.Context, t tab.Tab) (tab.Tab, error)
	GetTab(ctx context.Context, id string) (tab.Tab, error)
	UpdateTab(ctx context.Context, t tab.Tab) (tab.Tab, error)
	// GetOpenTab returns the customer's open tab for the event, or ErrNotFound
	// when none is open.
	GetOpenTab(ctx context.Context, eventID, customerID string) (tab.Tab, error)
	// ListTabBalances returns every tab of an event with its purchase totals,
	// highest balance first, then customer name.
	ListTabBalances(ctx context.Context, eventID string) ([]TabBalance, error)
}

// TabBalance is a tab joined with the customer name and the totals of the
// purchases made while it was open.
type TabBalance struct {
	TabID        string     `json:"tab_id"`
	CustomerID   string     `json:"customer_id"`
	CustomerName string     `json:"customer_name"`
	Status       tab.Status `json:"status"`
	Beers        int        `json:"beers"`
	Balance      float64    `json:"balance"`
	OpenedAt     time.Time  `json:"opened_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

// TransactionDetail is a transaction joined with display names for listings.
type TransactionDetail struct {
	ledger.Transaction
	CustomerName string `json:"customer_name,omitempty"`
	BeerName     string `json:"beer_name,omitempty"`
}

// Store is the full persistence surface a backend provides.
type Store interface {
	EventStore
	BeerStore
	CustomerStore
	LedgerStore
	TabStore
}
