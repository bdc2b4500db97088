package publish

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/flower-core/internal/command"
	"github.com/nerrad567/flower-core/internal/dispatch"
	"github.com/nerrad567/flower-core/internal/flower"
	"github.com/nerrad567/flower-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/flower-core/internal/show"
)

// Broker is the slice of the MQTT client the publisher needs.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Fleet resolves unit IDs for inbound commands.
type Fleet interface {
	Get(id int) (flower.Unit, error)
}

// Enqueuer accepts built requests for dispatch.
type Enqueuer interface {
	Enqueue(req *command.Request) (<-chan command.Outcome, error)
}

// Logger is the minimal logging interface the publisher needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Publisher mirrors engine events onto the MQTT broker and accepts
// inbound unit commands from it.
//
// Unit state is published retained so late subscribers see the current
// fleet; outcome and show events are fire-and-forget. Publish failures
// are logged and dropped, never propagated back into the engine.
type Publisher struct {
	broker Broker
	topics mqtt.Topics
	qos    byte
	logger Logger
}

// New creates a publisher over a connected broker client.
func New(broker Broker, qos byte, logger Logger) *Publisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Publisher{broker: broker, qos: qos, logger: logger}
}

// PublishState mirrors one unit's state. Wire as the fleet registry's
// change hook.
func (p *Publisher) PublishState(u flower.Unit) {
	payload, err := json.Marshal(u)
	if err != nil {
		p.logger.Warn("encoding unit state", "flower_id", u.ID, "error", err)
		return
	}
	if err := p.broker.PublishRetained(p.topics.FlowerState(u.ID), payload); err != nil {
		p.logger.Debug("publishing unit state", "flower_id", u.ID, "error", err)
	}
}

// PublishOutcome mirrors one settled exchange. Wire as the
// dispatcher's settled hook.
func (p *Publisher) PublishOutcome(s dispatch.Settled) {
	payload, err := json.Marshal(s)
	if err != nil {
		p.logger.Warn("encoding outcome", "flower_id", s.FlowerID, "error", err)
		return
	}
	topic := p.topics.CommandOutcome(s.BusID, s.FlowerID)
	if err := p.broker.Publish(topic, payload, p.qos, false); err != nil {
		p.logger.Debug("publishing outcome", "flower_id", s.FlowerID, "error", err)
	}
}

// PublishShowStatus mirrors playback state, retained. Wire as the
// player's status hook.
func (p *Publisher) PublishShowStatus(st show.Status) {
	payload, err := json.Marshal(st)
	if err != nil {
		p.logger.Warn("encoding show status", "error", err)
		return
	}
	if err := p.broker.PublishRetained(p.topics.ShowStatus(), payload); err != nil {
		p.logger.Debug("publishing show status", "error", err)
	}
}

// inboundCommand is the payload accepted on the per-unit command topic.
type inboundCommand struct {
	CommandID string       `json:"command_id"`
	Args      command.Args `json:"args,omitempty"`
}

// SubscribeCommands accepts unit commands from the broker and feeds
// them to the dispatcher fire-and-forget. Malformed messages are
// logged and dropped.
func (p *Publisher) SubscribeCommands(fleet Fleet, builder *command.Builder, queue Enqueuer) error {
	return p.broker.Subscribe(p.topics.AllFlowerCommands(), p.qos,
		func(topic string, payload []byte) error {
			flowerID, err := flowerIDFromTopic(topic)
			if err != nil {
				return err
			}

			var in inboundCommand
			if err := json.Unmarshal(payload, &in); err != nil {
				return fmt.Errorf("decoding command payload: %w", err)
			}

			unit, err := fleet.Get(flowerID)
			if err != nil {
				return fmt.Errorf("resolving flower %d: %w", flowerID, err)
			}

			req, err := builder.Build(unit, in.CommandID, in.Args)
			if err != nil {
				return fmt.Errorf("building %q for flower %d: %w", in.CommandID, flowerID, err)
			}

			if _, err := queue.Enqueue(req); err != nil {
				return fmt.Errorf("enqueueing %q for flower %d: %w", in.CommandID, flowerID, err)
			}
			return nil
		})
}

// flowerIDFromTopic extracts the unit ID from a per-unit command topic.
func flowerIDFromTopic(topic string) (int, error) {
	idx := strings.LastIndexByte(topic, '/')
	if idx < 0 || idx == len(topic)-1 {
		return 0, fmt.Errorf("malformed command topic %q", topic)
	}
	id, err := strconv.Atoi(topic[idx+1:])
	if err != nil || id < 1 {
		return 0, fmt.Errorf("malformed unit id in topic %q", topic)
	}
	return id, nil
}
