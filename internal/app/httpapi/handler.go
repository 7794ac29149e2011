// Package httpapi exposes the REST and websocket surface of the beer
// exchange.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/openbar/beerexchange/internal/app"
	"github.com/openbar/beerexchange/internal/app/domain/beer"
	eventssvc "github.com/openbar/beerexchange/internal/app/services/events"
	transactionssvc "github.com/openbar/beerexchange/internal/app/services/transactions"
	"github.com/openbar/beerexchange/pkg/logger"
)

type handler struct {
	app  *app.Application
	auth *authenticator
	log  *logger.Logger
}

// NewHandler returns the API router.
func NewHandler(application *app.Application, authCfg AuthConfig, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{
		app:  application,
		auth: newAuthenticator(authCfg, log),
		log:  log,
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", h.health).Methods(http.MethodGet)
	api.HandleFunc("/admin/login", h.auth.login).Methods(http.MethodPost)

	api.HandleFunc("/events", h.listEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}", h.getEvent).Methods(http.MethodGet)
	api.HandleFunc("/beers/catalog", h.listCatalog).Methods(http.MethodGet)
	api.HandleFunc("/beers/event/{eventID}", h.listItems).Methods(http.MethodGet)
	api.HandleFunc("/customers/event/{eventID}", h.listCustomers).Methods(http.MethodGet)
	api.HandleFunc("/customers", h.createCustomer).Methods(http.MethodPost)
	api.HandleFunc("/transactions/event/{eventID}", h.listTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", h.createTransaction).Methods(http.MethodPost)
	api.HandleFunc("/tabs/open", h.openTab).Methods(http.MethodPost)
	api.HandleFunc("/tabs/event/{eventID}/balances", h.tabBalances).Methods(http.MethodGet)
	api.HandleFunc("/tabs/{id}/close", h.closeTab).Methods(http.MethodPost)
	api.HandleFunc("/analytics/event/{eventID}/beer/{itemID}/price-history", h.priceHistory).Methods(http.MethodGet)
	api.HandleFunc("/analytics/event/{eventID}/beer/{itemID}/stats", h.itemStats).Methods(http.MethodGet)
	api.HandleFunc("/analytics/event/{eventID}/changes", h.hourChanges).Methods(http.MethodGet)
	api.HandleFunc("/pricing/event/{eventID}/mispricing", h.mispricing).Methods(http.MethodGet)
	api.HandleFunc("/live/{eventID}", h.live).Methods(http.MethodGet)

	admin := api.NewRoute().Subrouter()
	admin.Use(h.auth.requireAdmin)
	admin.HandleFunc("/events", h.createEvent).Methods(http.MethodPost)
	admin.HandleFunc("/events/{id}", h.updateEvent).Methods(http.MethodPatch)
	admin.HandleFunc("/events/{id}/start", h.startEvent).Methods(http.MethodPost)
	admin.HandleFunc("/events/{id}/close", h.closeEvent).Methods(http.MethodPost)
	admin.HandleFunc("/beers/catalog", h.createBeer).Methods(http.MethodPost)
	admin.HandleFunc("/beers/event/{eventID}", h.attachItem).Methods(http.MethodPost)
	admin.HandleFunc("/beers/item/{itemID}", h.updateItemBand).Methods(http.MethodPatch)
	admin.HandleFunc("/beers/item/{itemID}/active", h.setItemActive).Methods(http.MethodPost)

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Events ---------------------------------------------------------------------

func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := h.app.Events.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

func (h *handler) getEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.app.Events.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name      string `json:"name"`
		Currency  string `json:"currency"`
		ImageURL  string `json:"image_url"`
		StartLive bool   `json:"start_live"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ev, err := h.app.Events.Create(r.Context(), eventssvc.CreateParams{
		Name:      payload.Name,
		Currency:  payload.Currency,
		ImageURL:  payload.ImageURL,
		StartLive: payload.StartLive,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (h *handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     *string `json:"name"`
		Currency *string `json:"currency"`
		ImageURL *string `json:"image_url"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ev, err := h.app.Events.Update(r.Context(), mux.Vars(r)["id"], eventssvc.UpdateParams{
		Name:     payload.Name,
		Currency: payload.Currency,
		ImageURL: payload.ImageURL,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *handler) startEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.app.Events.Start(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *handler) closeEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.app.Events.Close(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Beers ----------------------------------------------------------------------

func (h *handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Beers.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) createBeer(w http.ResponseWriter, r *http.Request) {
	var payload beer.Beer
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := h.app.Beers.Create(r.Context(), payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Events.ListItems(r.Context(), mux.Vars(r)["eventID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) attachItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		BeerID    string  `json:"beer_id"`
		Name      string  `json:"name"`
		BasePrice float64 `json:"base_price"`
		MinPrice  float64 `json:"min_price"`
		MaxPrice  float64 `json:"max_price"`
		Position  int     `json:"position"`
		Active    *bool   `json:"active"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	it, err := h.app.Events.AttachItem(r.Context(), mux.Vars(r)["eventID"], eventssvc.AttachItemParams{
		BeerID:    payload.BeerID,
		Name:      payload.Name,
		BasePrice: payload.BasePrice,
		MinPrice:  payload.MinPrice,
		MaxPrice:  payload.MaxPrice,
		Position:  payload.Position,
		Active:    active,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (h *handler) updateItemBand(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		BasePrice float64 `json:"base_price"`
		MinPrice  float64 `json:"min_price"`
		MaxPrice  float64 `json:"max_price"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	it, err := h.app.Events.UpdateItemBand(r.Context(), mux.Vars(r)["itemID"], payload.BasePrice, payload.MinPrice, payload.MaxPrice)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *handler) setItemActive(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	it, err := h.app.Events.SetItemActive(r.Context(), mux.Vars(r)["itemID"], payload.Active)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// Customers ------------------------------------------------------------------

func (h *handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Customers.List(r.Context(), mux.Vars(r)["eventID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		EventID string `json:"event_id"`
		Name    string `json:"name"`
		Phone   string `json:"phone"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.app.Customers.Create(r.Context(), payload.EventID, payload.Name, payload.Phone)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Transactions ---------------------------------------------------------------

func (h *handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("limit must be an integer"))
			return
		}
		limit = parsed
	}
	rows, err := h.app.Transactions.List(r.Context(), mux.Vars(r)["eventID"], limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		EventID     string   `json:"event_id"`
		ItemID      string   `json:"event_item_id"`
		CustomerID  string   `json:"customer_id"`
		Qty         int      `json:"qty"`
		ClientPrice *float64 `json:"price_client"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	detail, err := h.app.Transactions.Purchase(r.Context(), transactionssvc.PurchaseParams{
		EventID:     payload.EventID,
		ItemID:      payload.ItemID,
		CustomerID:  payload.CustomerID,
		Qty:         payload.Qty,
		ClientPrice: payload.ClientPrice,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// Tabs -----------------------------------------------------------------------

func (h *handler) openTab(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		EventID    string `json:"event_id"`
		CustomerID string `json:"customer_id"`
		Note       string `json:"note"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t, err := h.app.Tabs.Open(r.Context(), payload.EventID, payload.CustomerID, payload.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *handler) closeTab(w http.ResponseWriter, r *http.Request) {
	t, err := h.app.Tabs.Close(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) tabBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.app.Tabs.Balances(r.Context(), mux.Vars(r)["eventID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

// Analytics ------------------------------------------------------------------

func (h *handler) priceHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = "day"
	}
	points, err := h.app.Analytics.PriceHistory(r.Context(), vars["eventID"], vars["itemID"], rng)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *handler) itemStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	stats, err := h.app.Analytics.Stats(r.Context(), vars["eventID"], vars["itemID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) hourChanges(w http.ResponseWriter, r *http.Request) {
	changes, err := h.app.Analytics.LastHourChanges(r.Context(), mux.Vars(r)["eventID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

func (h *handler) mispricing(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Analytics.Mispricing(r.Context(), mux.Vars(r)["eventID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
