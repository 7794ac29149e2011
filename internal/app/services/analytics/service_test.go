package analytics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/openbar/beerexchange/internal/app/domain/customer"
	"github.com/openbar/beerexchange/internal/app/domain/event"
	"github.com/openbar/beerexchange/internal/app/domain/ledger"
	"github.com/openbar/beerexchange/internal/app/storage"
	"github.com/openbar/beerexchange/internal/app/storage/memory"
)

var fixedNow = time.Date(2026, 8, 29, 20, 0, 0, 0, time.UTC)

func newService(store *memory.Store) *Service {
	svc := New(store, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func seedItem(t *testing.T, store *memory.Store, current float64) (string, string) {
	t.Helper()
	ctx := context.Background()

	ev, err := store.CreateEvent(ctx, event.Event{Name: "analytics night", Status: event.StatusLive})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	it, err := store.CreateItem(ctx, event.Item{
		EventID:      ev.ID,
		Name:         "amber ale",
		BasePrice:    10,
		CurrentPrice: current,
		MinPrice:     5,
		MaxPrice:     20,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return ev.ID, it.ID
}

func TestSinceFromRange(t *testing.T) {
	svc := newService(memory.New())

	if got := svc.SinceFromRange("1h"); got == nil || !got.Equal(fixedNow.Add(-time.Hour)) {
		t.Fatalf("1h cutoff = %v", got)
	}
	if got := svc.SinceFromRange("3h"); got == nil || !got.Equal(fixedNow.Add(-3*time.Hour)) {
		t.Fatalf("3h cutoff = %v", got)
	}
	if got := svc.SinceFromRange("day"); got == nil || got.Hour() != 0 || got.Day() != fixedNow.Day() {
		t.Fatalf("day cutoff = %v", got)
	}
	if got := svc.SinceFromRange("all"); got != nil {
		t.Fatalf("all cutoff = %v, want nil", got)
	}
	if got := svc.SinceFromRange("bogus"); got != nil {
		t.Fatalf("unknown range cutoff = %v, want nil", got)
	}
}

func TestPriceHistoryRangeAndSyntheticPoint(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	eventID, itemID := seedItem(t, store, 11)

	for _, upd := range []ledger.PriceUpdate{
		{EventItemID: itemID, OldPrice: 10, NewPrice: 10.5, UpdatedAt: fixedNow.Add(-2 * time.Hour)},
		{EventItemID: itemID, OldPrice: 10.5, NewPrice: 11, UpdatedAt: fixedNow.Add(-30 * time.Minute)},
	} {
		if _, err := store.AppendPriceUpdate(ctx, upd); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	points, err := svc.PriceHistory(ctx, eventID, itemID, "1h")
	if err != nil {
		t.Fatalf("price history: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2 (one in range + now)", len(points))
	}
	if points[0].Price != 11 {
		t.Fatalf("first point price = %v, want 11", points[0].Price)
	}
	if points[1].Price != 11 || !points[1].TS.Equal(fixedNow) {
		t.Fatalf("synthetic point = %+v", points[1])
	}

	all, err := svc.PriceHistory(ctx, eventID, itemID, "all")
	if err != nil {
		t.Fatalf("price history all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d points, want 3", len(all))
	}
}

func TestPriceHistoryWrongEvent(t *testing.T) {
	store := memory.New()
	svc := newService(store)

	_, itemID := seedItem(t, store, 10)
	_, err := svc.PriceHistory(context.Background(), "other-event", itemID, "all")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	eventID, itemID := seedItem(t, store, 11)

	c, err := store.CreateCustomer(ctx, customer.Customer{EventID: eventID, Name: "Kari"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	txs := []ledger.Transaction{
		{EventID: eventID, EventItemID: itemID, CustomerID: c.ID, Qty: 1, UnitPrice: 9, CreatedAt: fixedNow.Add(-3 * time.Hour)},
		{EventID: eventID, EventItemID: itemID, Qty: 2, UnitPrice: 14, CreatedAt: fixedNow.Add(-1 * time.Hour)},
	}
	for _, tx := range txs {
		if _, err := store.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	stats, err := svc.Stats(ctx, eventID, itemID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.LastPrice != 11 {
		t.Fatalf("last price = %v, want 11", stats.LastPrice)
	}
	if stats.ATH != 14 || stats.ATL != 9 {
		t.Fatalf("ath/atl = %v/%v, want 14/9", stats.ATH, stats.ATL)
	}
	if stats.Cheapest == nil || stats.Cheapest.CustomerName != "Kari" || stats.Cheapest.UnitPrice != 9 {
		t.Fatalf("cheapest = %+v", stats.Cheapest)
	}
	if stats.Priciest == nil || stats.Priciest.CustomerName != "Anonymous" || stats.Priciest.UnitPrice != 14 {
		t.Fatalf("priciest = %+v", stats.Priciest)
	}
	if stats.FirstTS == nil || !stats.FirstTS.Equal(txs[0].CreatedAt) {
		t.Fatalf("first ts = %v", stats.FirstTS)
	}
	if stats.LastTS == nil || !stats.LastTS.Equal(txs[1].CreatedAt) {
		t.Fatalf("last ts = %v", stats.LastTS)
	}
}

func TestStatsNoSales(t *testing.T) {
	store := memory.New()
	svc := newService(store)

	eventID, itemID := seedItem(t, store, 12)
	stats, err := svc.Stats(context.Background(), eventID, itemID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ATH != 12 || stats.ATL != 12 {
		t.Fatalf("ath/atl = %v/%v, want current price", stats.ATH, stats.ATL)
	}
	if stats.Cheapest != nil || stats.Priciest != nil || stats.FirstTS != nil {
		t.Fatal("no-sales stats should carry no trades")
	}
}

func TestMispricing(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	ev, err := store.CreateEvent(ctx, event.Event{Name: "misprice", Status: event.StatusLive})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	seed := []struct {
		name    string
		current float64
		want    string
	}{
		{"spot on", 10, "fair"},
		{"barely over", 10.05, "fair"},
		{"expensive", 12, "overpriced"},
		{"cheap", 8, "underpriced"},
	}
	for i, s := range seed {
		if _, err := store.CreateItem(ctx, event.Item{
			EventID:      ev.ID,
			Name:         s.name,
			BasePrice:    10,
			CurrentPrice: s.current,
			MinPrice:     5,
			MaxPrice:     20,
			Position:     i,
			Active:       true,
		}); err != nil {
			t.Fatalf("create item: %v", err)
		}
	}

	out, err := svc.Mispricing(ctx, ev.ID)
	if err != nil {
		t.Fatalf("mispricing: %v", err)
	}
	if len(out) != len(seed) {
		t.Fatalf("got %d rows, want %d", len(out), len(seed))
	}
	for i, s := range seed {
		if out[i].Label != s.want {
			t.Fatalf("%s: label = %q, want %q", s.name, out[i].Label, s.want)
		}
		if math.Abs(out[i].Diff-(s.current-10)) > 1e-9 {
			t.Fatalf("%s: diff = %v", s.name, out[i].Diff)
		}
		if out[i].Fair != 10 {
			t.Fatalf("%s: fair = %v, want base price", s.name, out[i].Fair)
		}
	}
}

func TestLastHourChanges(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	eventID, movedID := seedItem(t, store, 11)
	still, err := store.CreateItem(ctx, event.Item{
		EventID:      eventID,
		Name:         "steady stout",
		BasePrice:    10,
		CurrentPrice: 10,
		MinPrice:     5,
		MaxPrice:     20,
		Position:     1,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	updates := []ledger.PriceUpdate{
		// outside the window, must be ignored
		{EventItemID: movedID, OldPrice: 8, NewPrice: 9, UpdatedAt: fixedNow.Add(-2 * time.Hour)},
		{EventItemID: movedID, OldPrice: 9, NewPrice: 10, UpdatedAt: fixedNow.Add(-40 * time.Minute)},
		{EventItemID: movedID, OldPrice: 10, NewPrice: 11, UpdatedAt: fixedNow.Add(-10 * time.Minute)},
	}
	for _, u := range updates {
		if _, err := store.AppendPriceUpdate(ctx, u); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	out, err := svc.LastHourChanges(ctx, eventID)
	if err != nil {
		t.Fatalf("hour changes: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d rows, want 2", len(out))
	}
	if out[0].OldPrice != 9 || out[0].NewPrice != 11 || out[0].Change != 2 {
		t.Fatalf("moved item change = %+v", out[0])
	}
	if out[1].ItemID != still.ID || out[1].Change != 0 {
		t.Fatalf("steady item change = %+v", out[1])
	}
}
