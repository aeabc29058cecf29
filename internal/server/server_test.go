package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lazypower/strategist/internal/catalog"
	"github.com/lazypower/strategist/internal/config"
	"github.com/lazypower/strategist/internal/dedup"
	"github.com/lazypower/strategist/internal/engine"
	"github.com/lazypower/strategist/internal/entitlement"
	"github.com/lazypower/strategist/internal/learned"
	"github.com/lazypower/strategist/internal/selector"
	"github.com/lazypower/strategist/internal/store"
)

// Monday noon.
var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testServer wires every subsystem against the embedded catalog.
func testServer(t *testing.T, plan string) (*Server, *store.DB) {
	t.Helper()
	db := testDB(t)
	cfg := config.Default()
	clock := func() time.Time { return testNow }

	apps, err := catalog.Apps()
	if err != nil {
		t.Fatalf("catalog.Apps: %v", err)
	}
	systems, err := catalog.Systems()
	if err != nil {
		t.Fatalf("catalog.Systems: %v", err)
	}
	ent, err := entitlement.NewStatic(plan)
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}

	eng := engine.New(cfg.Engine, apps, learned.Nop{}, db,
		engine.WithClock(clock), engine.WithLearnedCache(db))
	eng.Initialize(context.Background())

	srv := New(db, "test-version",
		WithEngine(eng),
		WithSelector(selector.New(systems, ent, cfg.Selector, selector.WithClock(clock))),
		WithFilter(dedup.New(cfg.Dedup, dedup.WithClock(clock))),
		WithClock(clock),
	)
	return srv, db
}

func TestHealthEndpoint(t *testing.T) {
	srv := New(testDB(t), "test-version")

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
}

func TestUnconfiguredSubsystems(t *testing.T) {
	srv := New(testDB(t), "test-version")

	routes := []struct {
		method string
		path   string
	}{
		{"GET", "/api/strategies"},
		{"GET", "/api/strategies/com.google.Chrome"},
		{"POST", "/api/refresh/learned"},
		{"POST", "/api/select"},
		{"POST", "/api/levels"},
		{"POST", "/api/records"},
	}

	for _, rt := range routes {
		req := httptest.NewRequest(rt.method, rt.path, nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: status = %d, want %d", rt.method, rt.path, w.Code, http.StatusServiceUnavailable)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Errorf("%s %s: decode body: %v", rt.method, rt.path, err)
			continue
		}
		if body["error"] == "" {
			t.Errorf("%s %s: expected error message in body", rt.method, rt.path)
		}
	}
}
