package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openbar/beerexchange/internal/config"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Port = 0
	return cfg
}

func TestNewWithConfigServesAPI(t *testing.T) {
	app, err := NewWithConfig(memoryConfig())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	rec := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	app.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rec.Code)
	}
}

func TestUnknownDriverFails(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Driver = "oracle"
	if _, err := NewWithConfig(cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	app, err := NewWithConfig(memoryConfig())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	// pick an ephemeral port so parallel test runs do not collide
	app.server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
