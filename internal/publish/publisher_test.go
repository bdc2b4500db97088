package publish

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/flower-core/internal/command"
	"github.com/nerrad567/flower-core/internal/dispatch"
	"github.com/nerrad567/flower-core/internal/flower"
	"github.com/nerrad567/flower-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/flower-core/internal/show"
)

// mockBroker records published messages and registered handlers.
type mockBroker struct {
	mu        sync.Mutex
	published []publishedMsg
	handlers  map[string]mqtt.MessageHandler
}

type publishedMsg struct {
	topic    string
	payload  []byte
	retained bool
}

func newMockBroker() *mockBroker {
	return &mockBroker{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockBroker) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMsg{topic: topic, payload: payload, retained: retained})
	return nil
}

func (m *mockBroker) PublishRetained(topic string, payload []byte) error {
	return m.Publish(topic, payload, 1, true)
}

func (m *mockBroker) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockBroker) last() publishedMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published[len(m.published)-1]
}

// mockFleet resolves one fixed unit.
type mockFleet struct{ unit flower.Unit }

func (m mockFleet) Get(id int) (flower.Unit, error) {
	if id != m.unit.ID {
		return flower.Unit{}, flower.ErrNotFound
	}
	return m.unit, nil
}

// mockQueue records enqueued requests.
type mockQueue struct {
	mu   sync.Mutex
	reqs []*command.Request
}

func (m *mockQueue) Enqueue(req *command.Request) (<-chan command.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	ch := make(chan command.Outcome, 1)
	ch <- command.Acked
	return ch, nil
}

func TestPublishStateRetained(t *testing.T) {
	broker := newMockBroker()
	p := New(broker, 1, nil)

	p.PublishState(flower.Unit{
		ID:               7,
		Category:         flower.CategorySmallTulip,
		ConnectionStatus: flower.StatusConnected,
	})

	msg := broker.last()
	if msg.topic != "flowercore/state/flower/7" {
		t.Errorf("topic = %q", msg.topic)
	}
	if !msg.retained {
		t.Error("state message not retained")
	}

	var u flower.Unit
	if err := json.Unmarshal(msg.payload, &u); err != nil {
		t.Fatalf("payload decode error = %v", err)
	}
	if u.ID != 7 || u.ConnectionStatus != flower.StatusConnected {
		t.Errorf("payload = %+v", u)
	}
}

func TestPublishOutcomeNotRetained(t *testing.T) {
	broker := newMockBroker()
	p := New(broker, 1, nil)

	p.PublishOutcome(dispatch.Settled{
		BusID:     "field-a",
		FlowerID:  3,
		CommandID: command.Ping,
		Outcome:   command.Acked,
		At:        time.Now(),
	})

	msg := broker.last()
	if msg.topic != "flowercore/outcome/field-a/3" {
		t.Errorf("topic = %q", msg.topic)
	}
	if msg.retained {
		t.Error("outcome message retained")
	}
}

func TestPublishShowStatusRetained(t *testing.T) {
	broker := newMockBroker()
	p := New(broker, 1, nil)

	p.PublishShowStatus(show.Status{Playing: true, ShowID: "sunrise"})

	msg := broker.last()
	if msg.topic != "flowercore/show/status" {
		t.Errorf("topic = %q", msg.topic)
	}
	if !msg.retained {
		t.Error("show status message not retained")
	}

	var st show.Status
	if err := json.Unmarshal(msg.payload, &st); err != nil {
		t.Fatalf("payload decode error = %v", err)
	}
	if !st.Playing || st.ShowID != "sunrise" {
		t.Errorf("payload = %+v", st)
	}
}

func TestSubscribeCommandsDispatches(t *testing.T) {
	broker := newMockBroker()
	p := New(broker, 1, nil)

	fleet := mockFleet{unit: flower.Unit{
		ID:       7,
		Category: flower.CategorySmallTulip,
		BusID:    "field-a",
	}}
	queue := &mockQueue{}
	builder := command.NewBuilder(100 * time.Millisecond)

	if err := p.SubscribeCommands(fleet, builder, queue); err != nil {
		t.Fatalf("SubscribeCommands() error = %v", err)
	}

	handler := broker.handlers["flowercore/command/flower/+"]
	if handler == nil {
		t.Fatal("no handler registered for command pattern")
	}

	payload := []byte(`{"command_id":"led.set","args":{"intensity":120}}`)
	if err := handler("flowercore/command/flower/7", payload); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if len(queue.reqs) != 1 {
		t.Fatalf("enqueued %d requests, want 1", len(queue.reqs))
	}
	req := queue.reqs[0]
	if req.FlowerID != 7 || req.CommandID != command.LEDSet {
		t.Errorf("request = %+v", req)
	}
	if got := string(req.Frames[0]); got != "7/LED:120\n" {
		t.Errorf("frame = %q", got)
	}
}

func TestSubscribeCommandsRejectsBadInput(t *testing.T) {
	broker := newMockBroker()
	p := New(broker, 1, nil)

	fleet := mockFleet{unit: flower.Unit{ID: 7, Category: flower.CategorySmallTulip}}
	queue := &mockQueue{}
	builder := command.NewBuilder(100 * time.Millisecond)

	if err := p.SubscribeCommands(fleet, builder, queue); err != nil {
		t.Fatalf("SubscribeCommands() error = %v", err)
	}
	handler := broker.handlers["flowercore/command/flower/+"]

	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"bad topic id", "flowercore/command/flower/abc", `{"command_id":"ping"}`},
		{"unknown unit", "flowercore/command/flower/99", `{"command_id":"ping"}`},
		{"bad json", "flowercore/command/flower/7", `{`},
		{"unknown command", "flowercore/command/flower/7", `{"command_id":"led.blink"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := handler(tt.topic, []byte(tt.payload)); err == nil {
				t.Error("handler error = nil, want error")
			}
		})
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if len(queue.reqs) != 0 {
		t.Errorf("enqueued %d requests from bad input", len(queue.reqs))
	}
}
