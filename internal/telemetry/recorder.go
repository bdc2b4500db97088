package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/flower-core/internal/dispatch"
	"github.com/nerrad567/flower-core/internal/infrastructure/config"
	"github.com/nerrad567/flower-core/internal/show"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	millisecondsPerSecond = 1000
)

// Recorder writes show drift and command outcome measurements to
// InfluxDB.
//
// Writes are non-blocking and batched; a slow or absent time-series
// store never back-pressures the dispatcher or the show player.
// All methods are safe for concurrent use.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected bool
	mu        sync.RWMutex

	// onError is called when async write errors occur.
	onError func(err error)
}

// Connect establishes a connection to the InfluxDB server and verifies
// it with a ping.
func Connect(cfg config.InfluxDBConfig) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	r := &Recorder{
		client:    client,
		writeAPI:  writeAPI,
		cfg:       cfg,
		connected: true,
	}

	errorsCh := writeAPI.Errors()
	go r.handleWriteErrors(errorsCh)

	return r, nil
}

// RecordDrift writes one show event's lateness.
func (r *Recorder) RecordDrift(d show.Drift) {
	if !r.IsConnected() {
		return
	}

	point := write.NewPoint(
		"show_drift",
		map[string]string{
			"show_id": d.ShowID,
		},
		map[string]interface{}{
			"late_ms":  float64(d.Late.Microseconds()) / 1000,
			"at_ms":    d.AtMs,
			"priority": d.Priority,
		},
		time.Now(),
	)

	r.writeAPI.WritePoint(point)
}

// RecordOutcome writes one settled command exchange.
func (r *Recorder) RecordOutcome(s dispatch.Settled) {
	if !r.IsConnected() {
		return
	}

	point := write.NewPoint(
		"command_outcomes",
		map[string]string{
			"bus_id":  s.BusID,
			"command": s.CommandID,
			"outcome": string(s.Outcome),
		},
		map[string]interface{}{
			"flower_id":   s.FlowerID,
			"duration_ms": float64(s.Duration.Microseconds()) / 1000,
		},
		s.At,
	)

	r.writeAPI.WritePoint(point)
}

// handleWriteErrors processes async write errors from the WriteAPI.
func (r *Recorder) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		r.mu.RLock()
		callback := r.onError
		r.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError sets a callback invoked when async write errors occur.
func (r *Recorder) SetOnError(callback func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = callback
}

// HealthCheck verifies the InfluxDB connection with an active ping.
func (r *Recorder) HealthCheck(ctx context.Context) error {
	if !r.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := r.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// IsConnected returns the last known connection state.
func (r *Recorder) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// Flush forces all pending writes out. Blocks until the buffer drains.
func (r *Recorder) Flush() {
	if r.writeAPI == nil {
		return
	}
	if !r.IsConnected() {
		return
	}
	r.writeAPI.Flush()
}

// Close flushes pending writes and shuts the client down.
func (r *Recorder) Close() error {
	if r.client == nil {
		return nil
	}

	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()

	r.writeAPI.Flush()
	r.client.Close()
	return nil
}
