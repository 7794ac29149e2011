package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openbar/beerexchange/internal/app/domain/event"
	"github.com/openbar/beerexchange/internal/app/domain/ledger"
	"github.com/openbar/beerexchange/internal/app/storage"
)

func seedEventWithItems(t *testing.T, s *Store) (event.Event, []event.Item) {
	t.Helper()
	ctx := context.Background()

	ev, err := s.CreateEvent(ctx, event.Event{Name: "Taproom Night", Currency: "NOK", Status: event.StatusLive})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	seeds := []event.Item{
		{Name: "IPA", BasePrice: 10, MinPrice: 8, MaxPrice: 14, CurrentPrice: 10, Position: 2, VolumeML: 500, Active: true},
		{Name: "Lager", BasePrice: 10, MinPrice: 8, MaxPrice: 14, CurrentPrice: 10, Position: 1, VolumeML: 500, Active: true},
		{Name: "Stout", BasePrice: 10, MinPrice: 8, MaxPrice: 14, CurrentPrice: 10, Position: 3, VolumeML: 500, Active: false},
	}
	items := make([]event.Item, 0, len(seeds))
	for _, seed := range seeds {
		seed.EventID = ev.ID
		it, err := s.CreateItem(ctx, seed)
		if err != nil {
			t.Fatalf("create item: %v", err)
		}
		items = append(items, it)
	}
	return ev, items
}

func TestStore_ActiveItemsStableOrder(t *testing.T) {
	s := New()
	ev, _ := seedEventWithItems(t, s)

	items, err := s.ListActiveItems(context.Background(), ev.ID)
	if err != nil {
		t.Fatalf("list active items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 active items, got %d", len(items))
	}
	if items[0].Name != "Lager" || items[1].Name != "IPA" {
		t.Fatalf("wrong order: %s, %s", items[0].Name, items[1].Name)
	}
}

func TestStore_PersistPricesAtomic(t *testing.T) {
	s := New()
	ev, items := seedEventWithItems(t, s)
	ctx := context.Background()

	patches := []storage.PricePatch{
		{ItemID: items[0].ID, NewPrice: 11},
		{ItemID: "bogus", NewPrice: 9},
	}
	if err := s.PersistPrices(ctx, ev.ID, patches); err == nil {
		t.Fatalf("expected error for unknown item")
	}

	// The failed batch must not have written anything.
	it, err := s.GetItem(ctx, items[0].ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if it.CurrentPrice != 10 {
		t.Fatalf("partial write detected: price %v", it.CurrentPrice)
	}

	good := []storage.PricePatch{
		{ItemID: items[0].ID, NewPrice: 11},
		{ItemID: items[1].ID, NewPrice: 9},
	}
	if err := s.PersistPrices(ctx, ev.ID, good); err != nil {
		t.Fatalf("persist prices: %v", err)
	}
	it, _ = s.GetItem(ctx, items[0].ID)
	if it.CurrentPrice != 11 {
		t.Fatalf("price not written: %v", it.CurrentPrice)
	}
}

func TestStore_NotFoundErrors(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.GetEvent(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetItem(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.CreateItem(ctx, event.Item{EventID: "nope"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for orphan item, got %v", err)
	}
}

func TestStore_EventOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateEvent(ctx, event.Event{Name: "closed", Status: event.StatusClosed}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateEvent(ctx, event.Event{Name: "draft", Status: event.StatusDraft}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateEvent(ctx, event.Event{Name: "live", Status: event.StatusLive}); err != nil {
		t.Fatalf("create: %v", err)
	}

	events, err := s.ListEvents(ctx)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if events[0].Name != "live" || events[1].Name != "draft" || events[2].Name != "closed" {
		t.Fatalf("wrong ordering: %s, %s, %s", events[0].Name, events[1].Name, events[2].Name)
	}
}

func TestStore_HouseFactorInputs(t *testing.T) {
	s := New()
	ev, items := seedEventWithItems(t, s)
	ctx := context.Background()

	_, err := s.CreateTransaction(ctx, ledger.Transaction{
		EventID:     ev.ID,
		EventItemID: items[0].ID,
		Qty:         2,
		UnitPrice:   12,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	total, fair, err := s.HouseFactorInputs(ctx, ev.ID)
	if err != nil {
		t.Fatalf("house factor inputs: %v", err)
	}
	if total != 24 {
		t.Fatalf("total = %v, want 24", total)
	}
	// qty 2 x base 10 x (500ml/1000)
	if fair != 10 {
		t.Fatalf("fair = %v, want 10", fair)
	}
}

func TestStore_PriceUpdateLedger(t *testing.T) {
	s := New()
	_, items := seedEventWithItems(t, s)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour).UTC()
	if _, err := s.AppendPriceUpdate(ctx, ledger.PriceUpdate{EventItemID: items[0].ID, OldPrice: 10, NewPrice: 11, UpdatedAt: old}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendPriceUpdate(ctx, ledger.PriceUpdate{EventItemID: items[0].ID, OldPrice: 11, NewPrice: 12}); err != nil {
		t.Fatalf("append: %v", err)
	}

	all, err := s.ListPriceUpdates(ctx, items[0].ID, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].NewPrice != 11 {
		t.Fatalf("expected oldest first, got %#v", all)
	}

	cutoff := time.Now().Add(-time.Hour)
	recent, err := s.ListPriceUpdates(ctx, items[0].ID, &cutoff)
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(recent) != 1 || recent[0].NewPrice != 12 {
		t.Fatalf("since filter failed: %#v", recent)
	}
}
