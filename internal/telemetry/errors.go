package telemetry

import "errors"

var (
	// ErrDisabled is returned when telemetry is disabled in configuration.
	ErrDisabled = errors.New("telemetry: disabled in configuration")

	// ErrConnectionFailed is returned when the InfluxDB server is unreachable.
	ErrConnectionFailed = errors.New("telemetry: connection failed")

	// ErrNotConnected is returned when recording without a connection.
	ErrNotConnected = errors.New("telemetry: not connected")
)
