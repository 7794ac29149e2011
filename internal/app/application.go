// Package app ties the domain services together over one storage backend and
// one notification broker.
package app

import (
	"context"
	"io"

	"github.com/openbar/beerexchange/internal/app/pubsub"
	analyticssvc "github.com/openbar/beerexchange/internal/app/services/analytics"
	beerssvc "github.com/openbar/beerexchange/internal/app/services/beers"
	customerssvc "github.com/openbar/beerexchange/internal/app/services/customers"
	eventssvc "github.com/openbar/beerexchange/internal/app/services/events"
	"github.com/openbar/beerexchange/internal/app/services/repricing"
	tabssvc "github.com/openbar/beerexchange/internal/app/services/tabs"
	transactionssvc "github.com/openbar/beerexchange/internal/app/services/transactions"
	"github.com/openbar/beerexchange/internal/app/storage"
	"github.com/openbar/beerexchange/internal/app/storage/memory"
	"github.com/openbar/beerexchange/pkg/logger"
)

// Options configure the application. A nil Store falls back to the in-memory
// backend; zero pricing tunables fall back to the house defaults.
type Options struct {
	Store   storage.Store
	Broker  *pubsub.Broker
	Pricing repricing.Config
	Log     *logger.Logger
}

// Application bundles the wired services.
type Application struct {
	log    *logger.Logger
	store  storage.Store
	Broker *pubsub.Broker

	Events       *eventssvc.Service
	Beers        *beerssvc.Service
	Customers    *customerssvc.Service
	Transactions *transactionssvc.Service
	Analytics    *analyticssvc.Service
	Tabs         *tabssvc.Service
	Repricer     *repricing.Service
}

// New builds a fully initialised application.
func New(opts Options) *Application {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("app")
	}
	store := opts.Store
	if store == nil {
		store = memory.New()
	}
	broker := opts.Broker
	if broker == nil {
		broker = pubsub.NewBroker()
	}

	pricing := opts.Pricing
	if pricing.StepPerUnit <= 0 {
		pricing.StepPerUnit = 1.0
	}
	if pricing.MinStep <= 0 {
		pricing.MinStep = 0.5
	}

	repricer := repricing.New(store, broker, pricing, log.WithField("component", "repricing"))

	return &Application{
		log:          log,
		store:        store,
		Broker:       broker,
		Events:       eventssvc.New(store, log.WithField("component", "events")),
		Beers:        beerssvc.New(store, log.WithField("component", "beers")),
		Customers:    customerssvc.New(store, log.WithField("component", "customers")),
		Transactions: transactionssvc.New(store, repricer, broker, pricing.RoundTo, log.WithField("component", "transactions")),
		Analytics:    analyticssvc.New(store, log.WithField("component", "analytics")),
		Tabs:         tabssvc.New(store, log.WithField("component", "tabs")),
		Repricer:     repricer,
	}
}

// Store exposes the storage backend, mainly for health checks.
func (a *Application) Store() storage.Store {
	return a.store
}

// Close releases the storage backend if it holds external resources.
func (a *Application) Close(_ context.Context) error {
	if closer, ok := a.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
