package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/flower-core/internal/bus"
	"github.com/nerrad567/flower-core/internal/command"
	"github.com/nerrad567/flower-core/internal/flower"
)

// mockState is an in-memory StateService.
type mockState struct {
	mu    sync.Mutex
	units map[int]*flower.Unit
}

func newMockState(units ...flower.Unit) *mockState {
	m := &mockState{units: make(map[int]*flower.Unit)}
	for i := range units {
		u := units[i]
		m.units[u.ID] = &u
	}
	return m
}

func (m *mockState) Get(id int) (flower.Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	if !ok {
		return flower.Unit{}, flower.ErrNotFound
	}
	return *u, nil
}

func (m *mockState) Apply(id int, mutate flower.Mutator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.units[id]; ok {
		mutate(u)
	}
}

func (m *mockState) TouchConnection(id int, status flower.ConnectionStatus) {
	m.Apply(id, func(u *flower.Unit) { u.ConnectionStatus = status })
}

// scriptedBus is a bus.Client returning a fixed outcome and recording
// the commands it saw.
type scriptedBus struct {
	id      string
	open    bool
	outcome command.Outcome

	mu   sync.Mutex
	seen []string
}

func (s *scriptedBus) ID() string     { return s.id }
func (s *scriptedBus) Type() bus.Type { return bus.TypeSerial }
func (s *scriptedBus) IsOpen() bool   { return s.open }
func (s *scriptedBus) Close() error   { return nil }

func (s *scriptedBus) Send(_ context.Context, req *command.Request) command.Outcome {
	s.mu.Lock()
	s.seen = append(s.seen, req.CommandID)
	s.mu.Unlock()
	return s.outcome
}

func (s *scriptedBus) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

// mapProvider is a BusProvider over a fixed map.
type mapProvider map[string]bus.Client

func (m mapProvider) Get(id string) (bus.Client, error) {
	c, ok := m[id]
	if !ok {
		return nil, bus.ErrBusNotFound
	}
	return c, nil
}

func connectedUnit(id int) flower.Unit {
	return flower.Unit{
		ID:               id,
		Category:         flower.CategorySmallTulip,
		BusID:            "field-a",
		ConnectionStatus: flower.StatusConnected,
		FlowerStatus:     flower.FlowerClosed,
	}
}

func buildReq(t *testing.T, u flower.Unit, commandID string, args command.Args) *command.Request {
	t.Helper()
	req, err := command.NewBuilder(200 * time.Millisecond).Build(u, commandID, args)
	if err != nil {
		t.Fatalf("Build(%s) error = %v", commandID, err)
	}
	return req
}

func settle(t *testing.T, ch <-chan command.Outcome) command.Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("command never settled")
		return ""
	}
}

func TestDispatcherAckedAppliesEffect(t *testing.T) {
	state := newMockState(connectedUnit(3))
	field := &scriptedBus{id: "field-a", open: true, outcome: command.Acked}
	d := New(state, mapProvider{"field-a": field}, nil)
	defer d.Close()

	req := buildReq(t, mustGet(t, state, 3), command.LEDSet, command.Args{"intensity": 90})
	ch, err := d.Enqueue(req)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if got := settle(t, ch); got != command.Acked {
		t.Fatalf("outcome = %q, want %q", got, command.Acked)
	}

	u, _ := state.Get(3)
	if u.CurrentBrightness != 90 {
		t.Errorf("brightness = %d, want 90", u.CurrentBrightness)
	}
	if u.ConnectionStatus != flower.StatusConnected {
		t.Errorf("status = %q, want connected", u.ConnectionStatus)
	}
}

func TestDispatcherGateBlocksNonProbe(t *testing.T) {
	u := connectedUnit(3)
	u.ConnectionStatus = flower.StatusDegraded
	state := newMockState(u)
	field := &scriptedBus{id: "field-a", open: true, outcome: command.Acked}
	d := New(state, mapProvider{"field-a": field}, nil)
	defer d.Close()

	req := buildReq(t, u, command.LEDSet, command.Args{"intensity": 10})
	ch, _ := d.Enqueue(req)
	if got := settle(t, ch); got != command.SkippedNotConnected {
		t.Fatalf("outcome = %q, want %q", got, command.SkippedNotConnected)
	}
	if len(field.sent()) != 0 {
		t.Error("gated command reached the bus")
	}

	got, _ := state.Get(3)
	if got.ConnectionStatus != flower.StatusDisconnected {
		t.Errorf("status = %q, want disconnected", got.ConnectionStatus)
	}
}

func TestDispatcherProbePassesGateAndRevives(t *testing.T) {
	u := connectedUnit(3)
	u.ConnectionStatus = flower.StatusDegraded
	state := newMockState(u)
	field := &scriptedBus{id: "field-a", open: true, outcome: command.Acked}
	d := New(state, mapProvider{"field-a": field}, nil)
	defer d.Close()

	req := buildReq(t, u, command.Ping, nil)
	ch, _ := d.Enqueue(req)
	if got := settle(t, ch); got != command.Acked {
		t.Fatalf("outcome = %q, want %q", got, command.Acked)
	}

	got, _ := state.Get(3)
	if got.ConnectionStatus != flower.StatusConnected {
		t.Errorf("status = %q, want connected after probe ack", got.ConnectionStatus)
	}
}

func TestDispatcherNoOpSkip(t *testing.T) {
	u := connectedUnit(3)
	state := newMockState(u)
	field := &scriptedBus{id: "field-a", open: true, outcome: command.Acked}
	d := New(state, mapProvider{"field-a": field}, nil)
	defer d.Close()

	// The unit is already closed; a queued close is redundant.
	req := buildReq(t, u, command.MotorClose, nil)
	ch, _ := d.Enqueue(req)
	if got := settle(t, ch); got != command.SkippedNoOp {
		t.Fatalf("outcome = %q, want %q", got, command.SkippedNoOp)
	}
	if len(field.sent()) != 0 {
		t.Error("redundant command reached the bus")
	}

	got, _ := state.Get(3)
	if got.ConnectionStatus != flower.StatusConnected {
		t.Errorf("status = %q, want connected", got.ConnectionStatus)
	}
}

func TestDispatcherNackedDegrades(t *testing.T) {
	state := newMockState(connectedUnit(3))
	field := &scriptedBus{id: "field-a", open: true, outcome: command.Nacked}
	d := New(state, mapProvider{"field-a": field}, nil)
	defer d.Close()

	req := buildReq(t, mustGet(t, state, 3), command.MotorOpen, nil)
	ch, _ := d.Enqueue(req)
	if got := settle(t, ch); got != command.Nacked {
		t.Fatalf("outcome = %q, want %q", got, command.Nacked)
	}

	u, _ := state.Get(3)
	if u.ConnectionStatus != flower.StatusDegraded {
		t.Errorf("status = %q, want degraded", u.ConnectionStatus)
	}
	if u.FlowerStatus != flower.FlowerClosed {
		t.Errorf("position changed on nack: %q", u.FlowerStatus)
	}
}

func TestDispatcherTimeoutDegrades(t *testing.T) {
	state := newMockState(connectedUnit(3))
	field := &scriptedBus{id: "field-a", open: true, outcome: command.Timeout}
	d := New(state, mapProvider{"field-a": field}, nil)
	defer d.Close()

	req := buildReq(t, mustGet(t, state, 3), command.Ping, nil)
	ch, _ := d.Enqueue(req)
	if got := settle(t, ch); got != command.Timeout {
		t.Fatalf("outcome = %q, want %q", got, command.Timeout)
	}

	u, _ := state.Get(3)
	if u.ConnectionStatus != flower.StatusDegraded {
		t.Errorf("status = %q, want degraded", u.ConnectionStatus)
	}
}

func TestDispatcherBusNotConnected(t *testing.T) {
	state := newMockState(connectedUnit(3))
	d := New(state, mapProvider{}, nil)
	defer d.Close()

	req := buildReq(t, mustGet(t, state, 3), command.Ping, nil)
	ch, _ := d.Enqueue(req)
	if got := settle(t, ch); got != command.BusNotConnected {
		t.Fatalf("outcome = %q, want %q", got, command.BusNotConnected)
	}

	u, _ := state.Get(3)
	if u.ConnectionStatus != flower.StatusDisconnected {
		t.Errorf("status = %q, want disconnected", u.ConnectionStatus)
	}
}

func TestDispatcherBusCheckPrecedesNoOpSkip(t *testing.T) {
	u := connectedUnit(3)
	u.FlowerStatus = flower.FlowerOpen
	state := newMockState(u)
	d := New(state, mapProvider{}, nil)
	defer d.Close()

	// motor.open against an already-open unit is a no-op, but with the
	// bus absent the bus verdict wins over the skip.
	req := buildReq(t, u, command.MotorOpen, nil)
	ch, _ := d.Enqueue(req)
	if got := settle(t, ch); got != command.BusNotConnected {
		t.Fatalf("outcome = %q, want %q", got, command.BusNotConnected)
	}

	got, _ := state.Get(3)
	if got.ConnectionStatus != flower.StatusDisconnected {
		t.Errorf("status = %q, want disconnected", got.ConnectionStatus)
	}
}

func TestDispatcherBusCheckPrecedesGate(t *testing.T) {
	u := connectedUnit(3)
	u.ConnectionStatus = flower.StatusDegraded
	state := newMockState(u)
	d := New(state, mapProvider{}, nil)
	defer d.Close()

	req := buildReq(t, u, command.LEDSet, command.Args{"intensity": 10})
	ch, _ := d.Enqueue(req)
	if got := settle(t, ch); got != command.BusNotConnected {
		t.Fatalf("outcome = %q, want %q", got, command.BusNotConnected)
	}
}

func TestDispatcherClosedBusWinsOverGate(t *testing.T) {
	u := connectedUnit(3)
	state := newMockState(u)
	field := &scriptedBus{id: "field-a", open: false, outcome: command.Acked}
	d := New(state, mapProvider{"field-a": field}, nil)
	defer d.Close()

	ch, _ := d.Enqueue(buildReq(t, u, command.MotorClose, nil))
	if got := settle(t, ch); got != command.BusNotConnected {
		t.Fatalf("outcome = %q, want %q", got, command.BusNotConnected)
	}
	if len(field.sent()) != 0 {
		t.Error("command reached a closed bus")
	}
}

func TestDispatcherLaneOrderIsFIFO(t *testing.T) {
	state := newMockState(connectedUnit(3))
	field := &scriptedBus{id: "field-a", open: true, outcome: command.Acked}
	d := New(state, mapProvider{"field-a": field}, nil)
	defer d.Close()

	u := mustGet(t, state, 3)
	var chans []<-chan command.Outcome
	wantOrder := []string{command.Ping, command.LEDSet, command.LEDRamp, command.Init}

	for _, id := range wantOrder {
		var args command.Args
		switch id {
		case command.LEDSet:
			args = command.Args{"intensity": 10}
		case command.LEDRamp:
			args = command.Args{"endIntensity": 20}
		}
		ch, err := d.Enqueue(buildReq(t, u, id, args))
		if err != nil {
			t.Fatalf("Enqueue(%s) error = %v", id, err)
		}
		chans = append(chans, ch)
	}
	for _, ch := range chans {
		settle(t, ch)
	}

	got := field.sent()
	if len(got) != len(wantOrder) {
		t.Fatalf("bus saw %v, want %v", got, wantOrder)
	}
	for i := range got {
		if got[i] != wantOrder[i] {
			t.Fatalf("bus saw %v, want %v", got, wantOrder)
		}
	}
}

func TestDispatcherOnSettledHook(t *testing.T) {
	state := newMockState(connectedUnit(3))
	field := &scriptedBus{id: "field-a", open: true, outcome: command.Acked}
	d := New(state, mapProvider{"field-a": field}, nil)
	defer d.Close()

	events := make(chan Settled, 1)
	d.SetOnSettled(func(s Settled) { events <- s })

	ch, _ := d.Enqueue(buildReq(t, mustGet(t, state, 3), command.Ping, nil))
	settle(t, ch)

	select {
	case s := <-events:
		if s.CommandID != command.Ping || s.Outcome != command.Acked || s.FlowerID != 3 {
			t.Errorf("settled event = %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("settled hook never fired")
	}
}

func TestDispatcherBroadcastSkipsStateTransitions(t *testing.T) {
	state := newMockState(connectedUnit(3))
	field := &scriptedBus{id: "field-a", open: true, outcome: command.Timeout}
	d := New(state, mapProvider{"field-a": field}, nil)
	defer d.Close()

	req, err := command.NewBuilder(200 * time.Millisecond).BuildBroadcast("field-a", command.Ping, nil)
	if err != nil {
		t.Fatalf("BuildBroadcast() error = %v", err)
	}
	ch, _ := d.Enqueue(req)
	if got := settle(t, ch); got != command.Timeout {
		t.Fatalf("outcome = %q, want %q", got, command.Timeout)
	}

	u, _ := state.Get(3)
	if u.ConnectionStatus != flower.StatusConnected {
		t.Errorf("broadcast changed unit state: %q", u.ConnectionStatus)
	}
}

func TestDispatcherEnqueueAfterClose(t *testing.T) {
	state := newMockState(connectedUnit(3))
	d := New(state, mapProvider{}, nil)
	d.Close()

	_, err := d.Enqueue(buildReq(t, connectedUnit(3), command.Ping, nil))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue() error = %v, want ErrClosed", err)
	}
}

func mustGet(t *testing.T, state *mockState, id int) flower.Unit {
	t.Helper()
	u, err := state.Get(id)
	if err != nil {
		t.Fatalf("Get(%d) error = %v", id, err)
	}
	return u
}
