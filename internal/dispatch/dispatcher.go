package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/flower-core/internal/bus"
	"github.com/nerrad567/flower-core/internal/command"
	"github.com/nerrad567/flower-core/internal/flower"
)

// ErrClosed is returned when enqueueing on a closed dispatcher.
var ErrClosed = errors.New("dispatch: closed")

// StateService is the slice of the fleet registry the dispatcher needs.
type StateService interface {
	Get(id int) (flower.Unit, error)
	Apply(id int, m flower.Mutator)
	TouchConnection(id int, status flower.ConnectionStatus)
}

// BusProvider resolves bus IDs to live clients.
type BusProvider interface {
	Get(id string) (bus.Client, error)
}

// Logger is the minimal logging interface the dispatcher needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Settled describes one finished exchange, for observers.
type Settled struct {
	BusID     string          `json:"bus_id"`
	FlowerID  int             `json:"flower_id"`
	CommandID string          `json:"command_id"`
	Outcome   command.Outcome `json:"outcome"`
	Duration  time.Duration   `json:"duration_ns"`
	At        time.Time       `json:"at"`
}

// key identifies one serialization lane.
type key struct {
	busID    string
	flowerID int
}

// work is one queued request and its settlement channel.
type work struct {
	req    *command.Request
	result chan command.Outcome
}

// Dispatcher serializes command exchanges per (bus, unit) lane.
//
// Each lane has an unbounded FIFO queue and one worker goroutine,
// created lazily on first use. Within a lane, exchanges run strictly
// one at a time, which is what makes the protocol layer's
// reply-to-latest-exchange resolution unambiguous. Lanes never block
// each other.
//
// Every dequeued request settles exactly once and its outcome drives
// one state transition through the StateService:
//
//	Acked               -> connected, plus the request's ack effect
//	Nacked              -> degraded
//	Timeout             -> degraded (or the request's timeout effect)
//	BusNotConnected     -> disconnected
//	SkippedNotConnected -> disconnected
//	SkippedNoOp         -> connected
//
// Units that are not connected are gated: only the reachability probe
// reaches the wire, everything else settles SkippedNotConnected.
type Dispatcher struct {
	state  StateService
	buses  BusProvider
	logger Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers map[key]*worker
	closed  bool
	wg      sync.WaitGroup

	hookMu    sync.RWMutex
	onSettled func(Settled)
}

// New creates a dispatcher.
func New(state StateService, buses BusProvider, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		state:   state,
		buses:   buses,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		workers: make(map[key]*worker),
	}
}

// SetOnSettled registers a callback invoked after every settled
// exchange. Used to feed telemetry and the event publishers.
func (d *Dispatcher) SetOnSettled(fn func(Settled)) {
	d.hookMu.Lock()
	d.onSettled = fn
	d.hookMu.Unlock()
}

// Enqueue appends a request to its lane and returns a channel that
// delivers the settled outcome. The channel is buffered; callers may
// discard it for fire-and-forget dispatch.
func (d *Dispatcher) Enqueue(req *command.Request) (<-chan command.Outcome, error) {
	k := key{busID: req.BusID, flowerID: req.FlowerID}
	w := work{req: req, result: make(chan command.Outcome, 1)}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	lane, ok := d.workers[k]
	if !ok {
		lane = newWorker()
		d.workers[k] = lane
		d.wg.Add(1)
		go d.run(lane)
	}
	d.mu.Unlock()

	lane.push(w)
	return w.result, nil
}

// Close stops all lanes. Queued requests that never reached the wire
// settle Timeout. Blocks until every worker has exited.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	workers := d.workers
	d.mu.Unlock()

	d.cancel()
	for _, w := range workers {
		w.close()
	}
	d.wg.Wait()
}

// run is one lane's worker loop.
func (d *Dispatcher) run(lane *worker) {
	defer d.wg.Done()
	for {
		w, ok := lane.pop()
		if !ok {
			return
		}
		if d.ctx.Err() != nil {
			w.result <- command.Timeout
			continue
		}
		outcome := d.process(w.req)
		w.result <- outcome
	}
}

// process executes one dequeued request and applies its transition.
func (d *Dispatcher) process(req *command.Request) command.Outcome {
	start := time.Now()
	outcome := d.exchange(req)
	d.transition(req, outcome)

	d.logger.Debug("command settled",
		"bus", req.BusID, "flower_id", req.FlowerID,
		"command", req.CommandID, "outcome", outcome,
		"duration", time.Since(start))

	d.hookMu.RLock()
	fn := d.onSettled
	d.hookMu.RUnlock()
	if fn != nil {
		fn(Settled{
			BusID:     req.BusID,
			FlowerID:  req.FlowerID,
			CommandID: req.CommandID,
			Outcome:   outcome,
			Duration:  time.Since(start),
			At:        start,
		})
	}
	return outcome
}

// exchange resolves the bus, then runs the gate, the no-op check and
// the wire I/O. The bus check runs first; a dead bus settles
// BusNotConnected even for requests the gate or the skip predicate
// would otherwise absorb.
func (d *Dispatcher) exchange(req *command.Request) command.Outcome {
	client, err := d.buses.Get(req.BusID)
	if err != nil || !client.IsOpen() {
		return command.BusNotConnected
	}

	if req.FlowerID != command.BroadcastID {
		unit, err := d.state.Get(req.FlowerID)
		if err != nil {
			// Unit deleted while queued.
			return command.SkippedNotConnected
		}
		if unit.ConnectionStatus != flower.StatusConnected && !req.Probe() {
			return command.SkippedNotConnected
		}
		if req.ShouldSkip != nil && req.ShouldSkip(unit) {
			return command.SkippedNoOp
		}
	}

	return client.Send(d.ctx, req)
}

// transition maps the outcome to a state change. Broadcast exchanges
// target no single unit and change nothing.
func (d *Dispatcher) transition(req *command.Request, outcome command.Outcome) {
	if req.FlowerID == command.BroadcastID {
		return
	}
	switch outcome {
	case command.Acked:
		onAck := req.OnAck
		d.state.Apply(req.FlowerID, func(u *flower.Unit) {
			u.ConnectionStatus = flower.StatusConnected
			if onAck != nil {
				onAck(u)
			}
		})
	case command.Nacked:
		d.state.TouchConnection(req.FlowerID, flower.StatusDegraded)
	case command.Timeout:
		if req.OnTimeout != nil {
			d.state.Apply(req.FlowerID, req.OnTimeout)
		} else {
			d.state.TouchConnection(req.FlowerID, flower.StatusDegraded)
		}
	case command.BusNotConnected, command.SkippedNotConnected:
		d.state.TouchConnection(req.FlowerID, flower.StatusDisconnected)
	case command.SkippedNoOp:
		d.state.TouchConnection(req.FlowerID, flower.StatusConnected)
	}
}

// worker is one lane's unbounded FIFO queue.
type worker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []work
	closed bool
}

func newWorker() *worker {
	w := &worker{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *worker) push(item work) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		item.result <- command.Timeout
		return
	}
	w.queue = append(w.queue, item)
	w.mu.Unlock()
	w.cond.Signal()
}

// pop blocks until work arrives or the lane closes. On close, any
// remaining queued items settle Timeout before ok=false is returned.
func (w *worker) pop() (work, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for len(w.queue) == 0 && !w.closed {
		w.cond.Wait()
	}
	if w.closed {
		for _, item := range w.queue {
			item.result <- command.Timeout
		}
		w.queue = nil
		return work{}, false
	}
	item := w.queue[0]
	w.queue = w.queue[1:]
	return item, true
}

func (w *worker) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cond.Broadcast()
}
