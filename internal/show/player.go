package show

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/flower-core/internal/command"
	"github.com/nerrad567/flower-core/internal/flower"
)

// Fleet resolves priority keys to units at fire time.
type Fleet interface {
	GetByPriority(priority int) (flower.Unit, error)
}

// Enqueuer accepts built requests for dispatch.
type Enqueuer interface {
	Enqueue(req *command.Request) (<-chan command.Outcome, error)
}

// Logger is the minimal logging interface the player needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Drift describes one fired event's lateness relative to its slot.
type Drift struct {
	ShowID   string
	AtMs     int
	Priority int
	Late     time.Duration
}

// Status is a snapshot of playback state.
type Status struct {
	Playing bool   `json:"playing"`
	ShowID  string `json:"show_id,omitempty"`
}

// Player runs one show at a time against the dispatcher.
//
// Event slots are absolute offsets from the loop anchor, so lateness
// never accumulates across a loop: each wait targets anchor+AtMs, not
// "previous event plus delta". Waits advance in coarse ticks to stay
// responsive to Stop. Dispatch is fire-and-forget; a slow or silent
// unit delays nothing.
type Player struct {
	fleet   Fleet
	queue   Enqueuer
	builder *command.Builder
	tick    time.Duration
	logger  Logger

	// playMu serializes Play and Stop, so a replaced run is always
	// cancelled and awaited before its successor registers.
	playMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	current string

	hookMu   sync.RWMutex
	onDrift  func(Drift)
	onStatus func(Status)
}

// NewPlayer creates a player. tick is the wait granularity.
func NewPlayer(fleet Fleet, queue Enqueuer, builder *command.Builder, tick time.Duration, logger Logger) *Player {
	if tick <= 0 {
		tick = 25 * time.Millisecond
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Player{
		fleet:   fleet,
		queue:   queue,
		builder: builder,
		tick:    tick,
		logger:  logger,
	}
}

// SetOnDrift registers a callback invoked with each fired event's
// lateness. Used to feed the telemetry recorder.
func (p *Player) SetOnDrift(fn func(Drift)) {
	p.hookMu.Lock()
	p.onDrift = fn
	p.hookMu.Unlock()
}

// SetOnStatus registers a callback invoked whenever playback starts or
// ends, including natural completion. Used to feed the event
// publishers.
func (p *Player) SetOnStatus(fn func(Status)) {
	p.hookMu.Lock()
	p.onStatus = fn
	p.hookMu.Unlock()
}

// Play starts a project, stopping any playback already running.
func (p *Player) Play(project Project) error {
	if err := project.Validate(); err != nil {
		return err
	}
	events, loopMs := project.flatten()

	p.playMu.Lock()
	defer p.playMu.Unlock()

	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	ctx, newCancel := context.WithCancel(context.Background())
	newDone := make(chan struct{})

	p.mu.Lock()
	p.cancel = newCancel
	p.done = newDone
	p.current = project.ID
	p.mu.Unlock()

	p.logger.Info("show started",
		"show", project.ID, "events", len(events), "loop_ms", loopMs, "repeat", project.Repeat)
	p.notifyStatus(Status{Playing: true, ShowID: project.ID})

	go p.run(ctx, newDone, project, events, loopMs)
	return nil
}

// Stop halts playback.
func (p *Player) Stop() error {
	p.playMu.Lock()
	defer p.playMu.Unlock()

	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return ErrNotPlaying
	}
	cancel()
	<-done
	return nil
}

func (p *Player) notifyStatus(st Status) {
	p.hookMu.RLock()
	fn := p.onStatus
	p.hookMu.RUnlock()
	if fn != nil {
		fn(st)
	}
}

// Status reports whether something is playing and what.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return Status{}
	}
	return Status{Playing: true, ShowID: p.current}
}

func (p *Player) run(ctx context.Context, done chan struct{}, project Project, events []TimedEvent, loopMs int) {
	defer func() {
		p.mu.Lock()
		last := p.done == done
		if last {
			p.cancel = nil
			p.done = nil
			p.current = ""
		}
		p.mu.Unlock()
		close(done)
		p.logger.Info("show finished", "show", project.ID)
		// A run replaced by a newer Play does not report idle over the
		// successor's status.
		if last {
			p.notifyStatus(Status{})
		}
	}()

	for {
		// Each iteration re-anchors, so one loop's lateness does not
		// leak into the next.
		anchor := time.Now()

		for _, ev := range events {
			target := anchor.Add(time.Duration(ev.AtMs) * time.Millisecond)
			if !p.waitUntil(ctx, target) {
				return
			}
			p.fire(project.ID, ev, time.Since(target))
		}

		if !project.Repeat {
			return
		}
		if !p.waitUntil(ctx, anchor.Add(time.Duration(loopMs)*time.Millisecond)) {
			return
		}
	}
}

// waitUntil sleeps toward target in coarse ticks, returning false on
// cancellation.
func (p *Player) waitUntil(ctx context.Context, target time.Time) bool {
	for {
		remaining := time.Until(target)
		if remaining <= 0 {
			return true
		}
		step := remaining
		if step > p.tick {
			step = p.tick
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(step):
		}
	}
}

// fire resolves and dispatches one event. Failures are logged and
// skipped; the timeline never stalls on a single event.
func (p *Player) fire(showID string, ev TimedEvent, late time.Duration) {
	p.hookMu.RLock()
	onDrift := p.onDrift
	p.hookMu.RUnlock()
	if onDrift != nil {
		onDrift(Drift{ShowID: showID, AtMs: ev.AtMs, Priority: ev.Event.Priority, Late: late})
	}

	unit, err := p.fleet.GetByPriority(ev.Event.Priority)
	if err != nil {
		p.logger.Warn("show event references unknown priority",
			"show", showID, "priority", ev.Event.Priority, "at_ms", ev.AtMs)
		return
	}

	req, err := p.builder.Build(unit, ev.Event.CommandID, ev.Event.Args)
	if err != nil {
		p.logger.Warn("show event failed to build",
			"show", showID, "priority", ev.Event.Priority, "command", ev.Event.CommandID, "error", err)
		return
	}

	if _, err := p.queue.Enqueue(req); err != nil {
		p.logger.Warn("show event failed to enqueue",
			"show", showID, "priority", ev.Event.Priority, "command", ev.Event.CommandID, "error", err)
	}
}

// sortEvents orders a flattened timeline by offset, stably so events
// at the same slot keep their track order.
func sortEvents(events []TimedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].AtMs < events[j].AtMs
	})
}
