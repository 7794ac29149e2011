// Package sqlstore implements the storage interfaces on top of a SQL
// database. The same store serves PostgreSQL (lib/pq) and embedded SQLite
// (modernc.org/sqlite); queries are written once with ? placeholders and
// rebound per dialect through sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/openbar/beerexchange/internal/app/domain/beer"
	"github.com/openbar/beerexchange/internal/app/domain/customer"
	"github.com/openbar/beerexchange/internal/app/domain/event"
	"github.com/openbar/beerexchange/internal/app/domain/ledger"
	"github.com/openbar/beerexchange/internal/app/domain/tab"
	"github.com/openbar/beerexchange/internal/app/storage"
)

// Store is the SQL-backed persistence layer.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// Options configures the database pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the database. driver is "postgres" or "sqlite".
func Open(driver, dsn string, opts Options) (*Store, error) {
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, primarily for tests.
func NewWithDB(db *sql.DB, driver string) *Store {
	return &Store{db: sqlx.NewDb(db, driver)}
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// Driver reports the dialect in use.
func (s *Store) Driver() string { return s.db.DriverName() }

func (s *Store) rebind(query string) string { return s.db.Rebind(query) }

func wrapNotFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
	}
	return err
}

// EventStore implementation ---------------------------------------------------

func (s *Store) CreateEvent(ctx context.Context, ev event.Event) (event.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Status == "" {
		ev.Status = event.StatusDraft
	}
	ev.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO events (id, name, currency, status, image_url, starts_at, ends_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), ev.ID, ev.Name, ev.Currency, ev.Status, ev.ImageURL, ev.StartsAt, ev.EndsAt, ev.CreatedAt)
	if err != nil {
		return event.Event{}, err
	}
	return ev, nil
}

func (s *Store) UpdateEvent(ctx context.Context, ev event.Event) (event.Event, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE events
		SET name = ?, currency = ?, status = ?, image_url = ?, starts_at = ?, ends_at = ?
		WHERE id = ?
	`), ev.Name, ev.Currency, ev.Status, ev.ImageURL, ev.StartsAt, ev.EndsAt, ev.ID)
	if err != nil {
		return event.Event{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return event.Event{}, fmt.Errorf("event %s: %w", ev.ID, storage.ErrNotFound)
	}
	return s.GetEvent(ctx, ev.ID)
}

func (s *Store) GetEvent(ctx context.Context, id string) (event.Event, error) {
	var ev event.Event
	err := s.db.QueryRowxContext(ctx, s.rebind(`
		SELECT id, name, currency, status, image_url, starts_at, ends_at, created_at
		FROM events WHERE id = ?
	`), id).Scan(&ev.ID, &ev.Name, &ev.Currency, &ev.Status, &ev.ImageURL, &ev.StartsAt, &ev.EndsAt, &ev.CreatedAt)
	if err != nil {
		return event.Event{}, wrapNotFound(err, "event", id)
	}
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]event.Event, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, name, currency, status, image_url, starts_at, ends_at, created_at
		FROM events
		ORDER BY CASE status WHEN 'live' THEN 0 WHEN 'draft' THEN 1 ELSE 2 END, created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []event.Event
	for rows.Next() {
		var ev event.Event
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.Currency, &ev.Status, &ev.ImageURL, &ev.StartsAt, &ev.EndsAt, &ev.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

func (s *Store) CreateItem(ctx context.Context, it event.Item) (event.Item, error) {
	if _, err := s.GetEvent(ctx, it.EventID); err != nil {
		return event.Item{}, err
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	it.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO event_items
			(id, event_id, beer_id, name, base_price, min_price, max_price, current_price, volume_ml, position, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), it.ID, it.EventID, it.BeerID, it.Name, it.BasePrice, it.MinPrice, it.MaxPrice,
		it.CurrentPrice, it.VolumeML, it.Position, it.Active, it.CreatedAt)
	if err != nil {
		return event.Item{}, err
	}
	return it, nil
}

func (s *Store) UpdateItem(ctx context.Context, it event.Item) (event.Item, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE event_items
		SET name = ?, base_price = ?, min_price = ?, max_price = ?, current_price = ?,
		    volume_ml = ?, position = ?, active = ?
		WHERE id = ?
	`), it.Name, it.BasePrice, it.MinPrice, it.MaxPrice, it.CurrentPrice,
		it.VolumeML, it.Position, it.Active, it.ID)
	if err != nil {
		return event.Item{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return event.Item{}, fmt.Errorf("item %s: %w", it.ID, storage.ErrNotFound)
	}
	return s.GetItem(ctx, it.ID)
}

func (s *Store) GetItem(ctx context.Context, id string) (event.Item, error) {
	var it event.Item
	err := s.db.QueryRowxContext(ctx, s.rebind(`
		SELECT id, event_id, beer_id, name, base_price, min_price, max_price, current_price,
		       volume_ml, position, active, created_at
		FROM event_items WHERE id = ?
	`), id).Scan(&it.ID, &it.EventID, &it.BeerID, &it.Name, &it.BasePrice, &it.MinPrice,
		&it.MaxPrice, &it.CurrentPrice, &it.VolumeML, &it.Position, &it.Active, &it.CreatedAt)
	if err != nil {
		return event.Item{}, wrapNotFound(err, "item", id)
	}
	return it, nil
}

func (s *Store) ListItems(ctx context.Context, eventID string) ([]event.Item, error) {
	return s.queryItems(ctx, `
		SELECT id, event_id, beer_id, name, base_price, min_price, max_price, current_price,
		       volume_ml, position, active, created_at
		FROM event_items
		WHERE event_id = ?
		ORDER BY position, id
	`, eventID)
}

func (s *Store) ListActiveItems(ctx context.Context, eventID string) ([]event.Item, error) {
	// Stable order (position, id): the pricing engine relies on it for
	// deterministic tie-breaks.
	return s.queryItems(ctx, `
		SELECT id, event_id, beer_id, name, base_price, min_price, max_price, current_price,
		       volume_ml, position, active, created_at
		FROM event_items
		WHERE event_id = ? AND active
		ORDER BY position, id
	`, eventID)
}

func (s *Store) queryItems(ctx context.Context, query, eventID string) ([]event.Item, error) {
	rows, err := s.db.QueryxContext(ctx, s.rebind(query), eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []event.Item
	for rows.Next() {
		var it event.Item
		if err := rows.Scan(&it.ID, &it.EventID, &it.BeerID, &it.Name, &it.BasePrice, &it.MinPrice,
			&it.MaxPrice, &it.CurrentPrice, &it.VolumeML, &it.Position, &it.Active, &it.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

func (s *Store) PersistPrices(ctx context.Context, eventID string, patches []storage.PricePatch) error {
	if len(patches) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	query := s.rebind(`UPDATE event_items SET current_price = ? WHERE id = ? AND event_id = ?`)
	for _, patch := range patches {
		res, err := tx.ExecContext(ctx, query, patch.NewPrice, patch.ItemID, eventID)
		if err != nil {
			tx.Rollback()
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			tx.Rollback()
			return fmt.Errorf("item %s in event %s: %w", patch.ItemID, eventID, storage.ErrNotFound)
		}
	}
	return tx.Commit()
}

// BeerStore implementation ----------------------------------------------------

func (s *Store) CreateBeer(ctx context.Context, b beer.Beer) (beer.Beer, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO beers (id, name, brewery, style, abv, ibu, volume_ml, description, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), b.ID, b.Name, b.Brewery, b.Style, b.ABV, b.IBU, b.VolumeML, b.Description, b.ImageURL, b.CreatedAt)
	if err != nil {
		return beer.Beer{}, err
	}
	return b, nil
}

func (s *Store) GetBeer(ctx context.Context, id string) (beer.Beer, error) {
	var b beer.Beer
	err := s.db.QueryRowxContext(ctx, s.rebind(`
		SELECT id, name, brewery, style, abv, ibu, volume_ml, description, image_url, created_at
		FROM beers WHERE id = ?
	`), id).Scan(&b.ID, &b.Name, &b.Brewery, &b.Style, &b.ABV, &b.IBU, &b.VolumeML, &b.Description, &b.ImageURL, &b.CreatedAt)
	if err != nil {
		return beer.Beer{}, wrapNotFound(err, "beer", id)
	}
	return b, nil
}

func (s *Store) ListBeers(ctx context.Context) ([]beer.Beer, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, name, brewery, style, abv, ibu, volume_ml, description, image_url, created_at
		FROM beers ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []beer.Beer
	for rows.Next() {
		var b beer.Beer
		if err := rows.Scan(&b.ID, &b.Name, &b.Brewery, &b.Style, &b.ABV, &b.IBU, &b.VolumeML, &b.Description, &b.ImageURL, &b.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// CustomerStore implementation ------------------------------------------------

func (s *Store) CreateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO customers (id, event_id, name, phone, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), c.ID, c.EventID, c.Name, c.Phone, c.CreatedAt)
	if err != nil {
		return customer.Customer{}, err
	}
	return c, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (customer.Customer, error) {
	var c customer.Customer
	err := s.db.QueryRowxContext(ctx, s.rebind(`
		SELECT id, event_id, name, phone, created_at FROM customers WHERE id = ?
	`), id).Scan(&c.ID, &c.EventID, &c.Name, &c.Phone, &c.CreatedAt)
	if err != nil {
		return customer.Customer{}, wrapNotFound(err, "customer", id)
	}
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context, eventID string) ([]customer.Customer, error) {
	rows, err := s.db.QueryxContext(ctx, s.rebind(`
		SELECT id, event_id, name, phone, created_at
		FROM customers WHERE event_id = ? ORDER BY name
	`), eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []customer.Customer
	for rows.Next() {
		var c customer.Customer
		if err := rows.Scan(&c.ID, &c.EventID, &c.Name, &c.Phone, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// TabStore implementation -----------------------------------------------------

func (s *Store) CreateTab(ctx context.Context, t tab.Tab) (tab.Tab, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = tab.StatusOpen
	}
	if t.OpenedAt.IsZero() {
		t.OpenedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO tabs (id, event_id, customer_id, status, note, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), t.ID, t.EventID, t.CustomerID, t.Status, t.Note, t.OpenedAt, t.ClosedAt)
	if err != nil {
		return tab.Tab{}, err
	}
	return t, nil
}

func (s *Store) GetTab(ctx context.Context, id string) (tab.Tab, error) {
	var t tab.Tab
	err := s.db.QueryRowxContext(ctx, s.rebind(`
		SELECT id, event_id, customer_id, status, note, opened_at, closed_at
		FROM tabs WHERE id = ?
	`), id).Scan(&t.ID, &t.EventID, &t.CustomerID, &t.Status, &t.Note, &t.OpenedAt, &t.ClosedAt)
	if err != nil {
		return tab.Tab{}, wrapNotFound(err, "tab", id)
	}
	return t, nil
}

func (s *Store) UpdateTab(ctx context.Context, t tab.Tab) (tab.Tab, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE tabs SET status = ?, note = ?, closed_at = ? WHERE id = ?
	`), t.Status, t.Note, t.ClosedAt, t.ID)
	if err != nil {
		return tab.Tab{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return tab.Tab{}, fmt.Errorf("tab %s: %w", t.ID, storage.ErrNotFound)
	}
	return s.GetTab(ctx, t.ID)
}

func (s *Store) GetOpenTab(ctx context.Context, eventID, customerID string) (tab.Tab, error) {
	var t tab.Tab
	err := s.db.QueryRowxContext(ctx, s.rebind(`
		SELECT id, event_id, customer_id, status, note, opened_at, closed_at
		FROM tabs WHERE event_id = ? AND customer_id = ? AND status = 'open'
	`), eventID, customerID).Scan(&t.ID, &t.EventID, &t.CustomerID, &t.Status, &t.Note, &t.OpenedAt, &t.ClosedAt)
	if err != nil {
		return tab.Tab{}, wrapNotFound(err, "open tab for customer", customerID)
	}
	return t, nil
}

func (s *Store) ListTabBalances(ctx context.Context, eventID string) ([]storage.TabBalance, error) {
	// Only purchases made while the tab was open count toward its balance.
	rows, err := s.db.QueryxContext(ctx, s.rebind(`
		SELECT tb.id, tb.customer_id, COALESCE(c.name, '') AS customer_name, tb.status,
		       COALESCE(SUM(t.qty), 0) AS beers,
		       COALESCE(SUM(t.qty * t.unit_price), 0) AS balance,
		       tb.opened_at, tb.closed_at
		FROM tabs tb
		LEFT JOIN customers c ON c.id = tb.customer_id
		LEFT JOIN transactions t ON t.event_id = tb.event_id AND t.customer_id = tb.customer_id
			AND t.created_at >= tb.opened_at
			AND (tb.closed_at IS NULL OR t.created_at <= tb.closed_at)
		WHERE tb.event_id = ?
		GROUP BY tb.id, tb.customer_id, c.name, tb.status, tb.opened_at, tb.closed_at
		ORDER BY balance DESC, customer_name
	`), eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []storage.TabBalance
	for rows.Next() {
		var bal storage.TabBalance
		if err := rows.Scan(&bal.TabID, &bal.CustomerID, &bal.CustomerName, &bal.Status,
			&bal.Beers, &bal.Balance, &bal.OpenedAt, &bal.ClosedAt); err != nil {
			return nil, err
		}
		result = append(result, bal)
	}
	return result, rows.Err()
}

// LedgerStore implementation --------------------------------------------------

func (s *Store) CreateTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	var customerID sql.NullString
	if tx.CustomerID != "" {
		customerID = sql.NullString{String: tx.CustomerID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO transactions (id, event_id, event_item_id, customer_id, qty, volume_ml, unit_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), tx.ID, tx.EventID, tx.EventItemID, customerID, tx.Qty, tx.VolumeML, tx.UnitPrice, tx.CreatedAt)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

const transactionDetailQuery = `
	SELECT t.id, t.event_id, t.event_item_id, COALESCE(t.customer_id, ''), t.qty, t.volume_ml,
	       t.unit_price, t.created_at, COALESCE(c.name, ''), COALESCE(ei.name, '')
	FROM transactions t
	LEFT JOIN customers c ON c.id = t.customer_id
	LEFT JOIN event_items ei ON ei.id = t.event_item_id`

func (s *Store) ListTransactions(ctx context.Context, eventID string, limit int) ([]storage.TransactionDetail, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryTransactionDetails(ctx, s.rebind(
		transactionDetailQuery+` WHERE t.event_id = ? ORDER BY t.created_at DESC LIMIT ?`),
		eventID, limit)
}

func (s *Store) ListItemTransactions(ctx context.Context, eventID, itemID string, since *time.Time) ([]storage.TransactionDetail, error) {
	if since != nil {
		return s.queryTransactionDetails(ctx, s.rebind(
			transactionDetailQuery+` WHERE t.event_id = ? AND t.event_item_id = ? AND t.created_at >= ? ORDER BY t.created_at`),
			eventID, itemID, since.UTC())
	}
	return s.queryTransactionDetails(ctx, s.rebind(
		transactionDetailQuery+` WHERE t.event_id = ? AND t.event_item_id = ? ORDER BY t.created_at`),
		eventID, itemID)
}

func (s *Store) queryTransactionDetails(ctx context.Context, query string, args ...interface{}) ([]storage.TransactionDetail, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []storage.TransactionDetail
	for rows.Next() {
		var d storage.TransactionDetail
		if err := rows.Scan(&d.ID, &d.EventID, &d.EventItemID, &d.CustomerID, &d.Qty, &d.VolumeML,
			&d.UnitPrice, &d.CreatedAt, &d.CustomerName, &d.BeerName); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) AppendPriceUpdate(ctx context.Context, upd ledger.PriceUpdate) (ledger.PriceUpdate, error) {
	if upd.ID == "" {
		upd.ID = uuid.NewString()
	}
	if upd.UpdatedAt.IsZero() {
		upd.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO price_updates (id, event_item_id, old_price, new_price, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`), upd.ID, upd.EventItemID, upd.OldPrice, upd.NewPrice, upd.UpdatedAt)
	if err != nil {
		return ledger.PriceUpdate{}, err
	}
	return upd, nil
}

func (s *Store) ListPriceUpdates(ctx context.Context, itemID string, since *time.Time) ([]ledger.PriceUpdate, error) {
	query := `
		SELECT id, event_item_id, old_price, new_price, updated_at
		FROM price_updates WHERE event_item_id = ?`
	args := []interface{}{itemID}
	if since != nil {
		query += ` AND updated_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY updated_at`

	rows, err := s.db.QueryxContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.PriceUpdate
	for rows.Next() {
		var upd ledger.PriceUpdate
		if err := rows.Scan(&upd.ID, &upd.EventItemID, &upd.OldPrice, &upd.NewPrice, &upd.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, upd)
	}
	return result, rows.Err()
}

func (s *Store) HouseFactorInputs(ctx context.Context, eventID string) (float64, float64, error) {
	var total, fair float64
	err := s.db.QueryRowxContext(ctx, s.rebind(`
		SELECT
			COALESCE(SUM(t.qty * t.unit_price), 0),
			COALESCE(SUM(t.qty * ei.base_price * (ei.volume_ml / 1000.0)), 0)
		FROM transactions t
		JOIN event_items ei ON ei.id = t.event_item_id
		WHERE t.event_id = ?
	`), eventID).Scan(&total, &fair)
	if err != nil {
		return 0, 0, err
	}
	return total, fair, nil
}
