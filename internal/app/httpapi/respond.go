package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/openbar/beerexchange/internal/app/services/beers"
	"github.com/openbar/beerexchange/internal/app/services/customers"
	"github.com/openbar/beerexchange/internal/app/services/events"
	"github.com/openbar/beerexchange/internal/app/services/tabs"
	"github.com/openbar/beerexchange/internal/app/services/transactions"
	"github.com/openbar/beerexchange/internal/app/storage"
)

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, events.ErrInvalidInput),
		errors.Is(err, beers.ErrInvalidInput),
		errors.Is(err, customers.ErrInvalidInput),
		errors.Is(err, transactions.ErrInvalidInput),
		errors.Is(err, tabs.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, transactions.ErrEventNotLive),
		errors.Is(err, transactions.ErrItemInactive),
		errors.Is(err, tabs.ErrTabAlreadyOpen),
		errors.Is(err, tabs.ErrTabClosed):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
