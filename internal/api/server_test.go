package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/flower-core/internal/bus"
	"github.com/nerrad567/flower-core/internal/command"
	"github.com/nerrad567/flower-core/internal/dispatch"
	"github.com/nerrad567/flower-core/internal/flower"
	"github.com/nerrad567/flower-core/internal/infrastructure/config"
	"github.com/nerrad567/flower-core/internal/infrastructure/logging"
	"github.com/nerrad567/flower-core/internal/show"
)

// memFlowerRepo is an in-memory flower.Repository.
type memFlowerRepo struct {
	mu    sync.Mutex
	units map[int]flower.Unit
}

func newMemFlowerRepo() *memFlowerRepo {
	return &memFlowerRepo{units: make(map[int]flower.Unit)}
}

func (m *memFlowerRepo) List(_ context.Context) ([]flower.Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]flower.Unit, 0, len(m.units))
	for _, u := range m.units {
		out = append(out, u)
	}
	return out, nil
}

func (m *memFlowerRepo) GetByID(_ context.Context, id int) (*flower.Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	if !ok {
		return nil, flower.ErrNotFound
	}
	return &u, nil
}

func (m *memFlowerRepo) Create(_ context.Context, u *flower.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[u.ID]; ok {
		return flower.ErrExists
	}
	m.units[u.ID] = *u
	return nil
}

func (m *memFlowerRepo) Update(_ context.Context, u *flower.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[u.ID]; !ok {
		return flower.ErrNotFound
	}
	m.units[u.ID] = *u
	return nil
}

func (m *memFlowerRepo) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[id]; !ok {
		return flower.ErrNotFound
	}
	delete(m.units, id)
	return nil
}

// memShowStore is an in-memory show.Store.
type memShowStore struct {
	mu    sync.Mutex
	shows map[string]show.Project
}

func newMemShowStore() *memShowStore {
	return &memShowStore{shows: make(map[string]show.Project)}
}

func (m *memShowStore) List(_ context.Context) ([]show.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]show.Project, 0, len(m.shows))
	for _, p := range m.shows {
		out = append(out, p)
	}
	return out, nil
}

func (m *memShowStore) Get(_ context.Context, id string) (*show.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.shows[id]
	if !ok {
		return nil, show.ErrNotFound
	}
	return &p, nil
}

func (m *memShowStore) Save(_ context.Context, p show.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shows[p.ID] = p
	return nil
}

func (m *memShowStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shows[id]; !ok {
		return show.ErrNotFound
	}
	delete(m.shows, id)
	return nil
}

// testServer wires a server over in-memory stores and a live dispatcher.
type testServer struct {
	srv      *Server
	registry *flower.Registry
	http     *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	registry := flower.NewRegistry(newMemFlowerRepo())
	buses := bus.NewDirectory(func(bus.Config, bus.Logger) (bus.Client, error) {
		return nil, fmt.Errorf("no buses in tests")
	}, nil)
	dispatcher := dispatch.New(registry, buses, nil)
	t.Cleanup(dispatcher.Close)

	builder := command.NewBuilder(50 * time.Millisecond)
	player := show.NewPlayer(registry, dispatcher, builder, 5*time.Millisecond, nil)
	t.Cleanup(func() {
		player.Stop() //nolint:errcheck // Nothing may be playing
	})

	srv, err := New(Deps{
		Config:     config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:         config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30},
		Logger:     logging.Default(),
		Registry:   registry,
		Builder:    builder,
		Dispatcher: dispatcher,
		Buses:      buses,
		BusRepo:    bus.NewSQLiteRepository(nil),
		ShowStore:  newMemShowStore(),
		Player:     player,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	hts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(hts.Close)

	return &testServer{srv: srv, registry: registry, http: hts}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.http.URL+path, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := ts.http.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck // Test cleanup
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/v1/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestFlowerCRUD(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/flowers", flowerRequest{
		ID: 7, Category: flower.CategorySmallTulip, BusID: "field-a", Priority: 1,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decode[flower.Unit](t, resp)
	if created.ConnectionStatus != flower.StatusDisconnected {
		t.Errorf("new flower status = %q", created.ConnectionStatus)
	}

	resp = ts.do(t, http.MethodGet, "/api/v1/flowers/7", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPatch, "/api/v1/flowers/7", map[string]any{"priority": 5})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}
	patched := decode[flower.Unit](t, resp)
	if patched.Priority != 5 || patched.BusID != "field-a" {
		t.Errorf("patched = %+v", patched)
	}

	resp = ts.do(t, http.MethodGet, "/api/v1/flowers", nil)
	units := decode[[]flower.Unit](t, resp)
	if len(units) != 1 {
		t.Fatalf("list length = %d", len(units))
	}

	resp = ts.do(t, http.MethodDelete, "/api/v1/flowers/7", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodGet, "/api/v1/flowers/7", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", resp.StatusCode)
	}
}

func TestCreateFlowerValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   flowerRequest
		status int
	}{
		{"bad id", flowerRequest{ID: 0, Category: flower.CategorySmallTulip}, http.StatusBadRequest},
		{"bad category", flowerRequest{ID: 1, Category: "rose"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/api/v1/flowers", tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}

	ts.do(t, http.MethodPost, "/api/v1/flowers", flowerRequest{ID: 3, Category: flower.CategorySmallTulip})
	resp := ts.do(t, http.MethodPost, "/api/v1/flowers", flowerRequest{ID: 3, Category: flower.CategorySmallTulip})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate status = %d", resp.StatusCode)
	}
}

func TestCommandCatalog(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/v1/commands", nil)
	all := decode[[]catalogEntry](t, resp)
	if len(all) == 0 {
		t.Fatal("empty command catalog")
	}

	resp = ts.do(t, http.MethodGet, "/api/v1/commands?category=small_tulip", nil)
	small := decode[[]catalogEntry](t, resp)
	for _, e := range small {
		if e.ID == command.RGBOuter {
			t.Error("big tulip command listed for small_tulip")
		}
	}

	resp = ts.do(t, http.MethodGet, "/api/v1/commands?category=rose", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown category status = %d", resp.StatusCode)
	}
}

func TestDispatchCommandDeadBus(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/api/v1/flowers", flowerRequest{
		ID: 7, Category: flower.CategorySmallTulip, BusID: "field-a", Priority: 1,
	})

	// No bus is connected, so the dispatch settles on the bus verdict.
	resp := ts.do(t, http.MethodPost, "/api/v1/flowers/7/commands", commandRequest{
		CommandID: command.LEDSet,
		Args:      command.Args{"intensity": 120},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	result := decode[commandResult](t, resp)
	if result.Outcome != command.BusNotConnected {
		t.Errorf("outcome = %q, want %q", result.Outcome, command.BusNotConnected)
	}
}

func TestDispatchCommandErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/flowers", flowerRequest{
		ID: 7, Category: flower.CategorySmallTulip, BusID: "field-a", Priority: 1,
	})

	tests := []struct {
		name   string
		path   string
		body   commandRequest
		status int
	}{
		{"unknown flower", "/api/v1/flowers/99/commands", commandRequest{CommandID: command.Ping}, http.StatusNotFound},
		{"unknown command", "/api/v1/flowers/7/commands", commandRequest{CommandID: "led.blink"}, http.StatusNotFound},
		{"unsupported category", "/api/v1/flowers/7/commands", commandRequest{CommandID: command.RGBOuter, Args: command.Args{"r": 1, "g": 2, "b": 3}}, http.StatusBadRequest},
		{"bad args", "/api/v1/flowers/7/commands", commandRequest{CommandID: command.LEDSet, Args: command.Args{"intensity": 9000}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestBroadcastRequiresBusID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/commands/broadcast", commandRequest{CommandID: command.Ping})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPost, "/api/v1/commands/broadcast", commandRequest{
		CommandID: command.MotorStop, BusID: "field-a",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestShowLifecycle(t *testing.T) {
	ts := newTestServer(t)

	project := show.Project{
		ID:     "sunrise",
		Title:  "Sunrise",
		Repeat: true,
		Tracks: []show.Track{{
			Name:   "all",
			LoopMs: 60_000,
			Events: []show.TimedEvent{
				{AtMs: 0, Event: show.Event{Priority: 1, CommandID: command.Ping}},
			},
		}},
	}

	resp := ts.do(t, http.MethodPost, "/api/v1/shows", project)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/api/v1/shows", nil)
	list := decode[[]show.Project](t, resp)
	if len(list) != 1 || list[0].ID != "sunrise" {
		t.Fatalf("list = %+v", list)
	}

	resp = ts.do(t, http.MethodPost, "/api/v1/shows/sunrise/play", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("play status = %d", resp.StatusCode)
	}
	status := decode[show.Status](t, resp)
	if !status.Playing || status.ShowID != "sunrise" {
		t.Errorf("status after play = %+v", status)
	}

	resp = ts.do(t, http.MethodGet, "/api/v1/shows/status", nil)
	status = decode[show.Status](t, resp)
	if !status.Playing {
		t.Error("status endpoint reports not playing")
	}

	resp = ts.do(t, http.MethodPost, "/api/v1/shows/stop", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPost, "/api/v1/shows/stop", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second stop status = %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodDelete, "/api/v1/shows/sunrise", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodGet, "/api/v1/shows/sunrise", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
}

func TestSaveInvalidShow(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/shows", show.Project{ID: ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
