package bus

import (
	"fmt"
	"time"
)

// Type discriminates the transport a bus speaks.
type Type string

// Supported bus types.
const (
	TypeSerial    Type = "serial"
	TypeModbusTCP Type = "modbus_tcp"
)

// SerialParams configures a serial bus. Framing is fixed at 8-N-1.
type SerialParams struct {
	// Port is the device path, e.g. /dev/ttyUSB0.
	Port string `json:"port" yaml:"port"`

	// Baud is the line rate. Defaults to 115200.
	Baud int `json:"baud" yaml:"baud"`
}

// ModbusParams configures a Modbus TCP bus.
type ModbusParams struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`

	// UnitID is the Modbus slave address behind the gateway.
	UnitID uint8 `json:"unit_id" yaml:"unit_id"`

	// ConnectTimeoutMS bounds dialing and each register exchange.
	ConnectTimeoutMS int `json:"connect_timeout_ms" yaml:"connect_timeout_ms"`
}

// ConnectTimeout returns the dial timeout as a duration.
func (p ModbusParams) ConnectTimeout() time.Duration {
	if p.ConnectTimeoutMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(p.ConnectTimeoutMS) * time.Millisecond
}

// Config is the operator-supplied description of one bus.
type Config struct {
	// ID is the stable bus identifier units reference in their BusID.
	ID string `json:"id" yaml:"id"`

	Type Type `json:"type" yaml:"type"`

	Serial SerialParams `json:"serial" yaml:"serial"`
	Modbus ModbusParams `json:"modbus" yaml:"modbus"`
}

// Validate checks the config for the declared type.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty bus id", ErrInvalidConfig)
	}
	switch c.Type {
	case TypeSerial:
		if c.Serial.Port == "" {
			return fmt.Errorf("%w: serial bus %q has no port", ErrInvalidConfig, c.ID)
		}
		if c.Serial.Baud < 0 {
			return fmt.Errorf("%w: serial bus %q has negative baud", ErrInvalidConfig, c.ID)
		}
	case TypeModbusTCP:
		if c.Modbus.Host == "" {
			return fmt.Errorf("%w: modbus bus %q has no host", ErrInvalidConfig, c.ID)
		}
		if c.Modbus.Port <= 0 || c.Modbus.Port > 65535 {
			return fmt.Errorf("%w: modbus bus %q has bad port %d", ErrInvalidConfig, c.ID, c.Modbus.Port)
		}
	default:
		return fmt.Errorf("%w: unknown bus type %q", ErrInvalidConfig, c.Type)
	}
	return nil
}
