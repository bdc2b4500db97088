// Package telemetry records operational measurements to InfluxDB:
// show playback drift and settled command outcomes. Recording is
// optional and fire-and-forget; the engine runs unchanged without a
// time-series store.
package telemetry
