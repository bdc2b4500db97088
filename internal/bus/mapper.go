package bus

import (
	"fmt"
	"math"

	"github.com/nerrad567/flower-core/internal/command"
)

// OpKind discriminates register operations.
type OpKind int

// Register operation kinds.
const (
	OpWriteCoil OpKind = iota
	OpWriteRegister
	OpReadProbe
)

// Operation is one register-level action derived from a command.
// Multi-action commands map to a sequence of single operations; the
// gateway firmware treats each write independently.
type Operation struct {
	Kind    OpKind
	Address uint16

	// Bit is the value for coil writes.
	Bit bool

	// Value is the value for register writes.
	Value uint16
}

// Mapper translates catalog commands into register operations for a
// specific gateway's address layout.
type Mapper interface {
	Map(flowerID int, commandID string, args command.Args) ([]Operation, error)
}

// Register layout of the standard field gateway. Each unit occupies one
// channel at flowerID-1 in every block.
const (
	coilMotorBase = 0    // true opens, false closes
	coilStopBase  = 1000 // pulse true to halt the motor
	coilInitBase  = 2000 // pulse true to re-initialise

	regLEDBase        = 0    // direct intensity
	regRampTargetBase = 1000 // ramp target intensity
	regRampDurBase    = 2000 // ramp duration, 10 ms units
)

// DefaultMapper implements the standard gateway layout. Ring commands
// (rgb.outer, led.ramp.in) have no register representation; big tulips
// are serial-attached fixtures.
type DefaultMapper struct{}

// NewDefaultMapper returns the standard layout mapper.
func NewDefaultMapper() *DefaultMapper {
	return &DefaultMapper{}
}

// Map translates one command into its register operation sequence.
func (m *DefaultMapper) Map(flowerID int, commandID string, args command.Args) ([]Operation, error) {
	if flowerID < 1 {
		return nil, fmt.Errorf("%w: address %d", ErrNotMappable, flowerID)
	}
	ch := uint16(flowerID - 1)

	switch commandID {
	case command.LEDSet:
		n, err := args.Int("intensity")
		if err != nil {
			return nil, err
		}
		return []Operation{
			{Kind: OpWriteRegister, Address: regLEDBase + ch, Value: uint16(n)},
		}, nil

	case command.LEDRamp:
		return rampOps(ch, args)

	case command.MotorOpen:
		return []Operation{
			{Kind: OpWriteCoil, Address: coilMotorBase + ch, Bit: true},
		}, nil

	case command.MotorClose:
		return []Operation{
			{Kind: OpWriteCoil, Address: coilMotorBase + ch, Bit: false},
		}, nil

	case command.MotorStop:
		return []Operation{
			{Kind: OpWriteCoil, Address: coilStopBase + ch, Bit: true},
		}, nil

	case command.MotorOpenLEDRamp:
		ramp, err := rampOps(ch, args)
		if err != nil {
			return nil, err
		}
		return append([]Operation{
			{Kind: OpWriteCoil, Address: coilMotorBase + ch, Bit: true},
		}, ramp...), nil

	case command.MotorCloseLEDRamp:
		ramp, err := rampOps(ch, args)
		if err != nil {
			return nil, err
		}
		return append([]Operation{
			{Kind: OpWriteCoil, Address: coilMotorBase + ch, Bit: false},
		}, ramp...), nil

	case command.Ping:
		return []Operation{
			{Kind: OpReadProbe, Address: regLEDBase + ch},
		}, nil

	case command.Init:
		return []Operation{
			{Kind: OpWriteCoil, Address: coilInitBase + ch, Bit: true},
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrNotMappable, commandID)
	}
}

// rampOps renders the shared target/duration register pair.
// Durations are carried in 10 ms units and saturate at the register
// width.
func rampOps(ch uint16, args command.Args) ([]Operation, error) {
	e, err := args.Int("endIntensity")
	if err != nil {
		return nil, err
	}
	d, err := args.Int("durationMs")
	if err != nil {
		return nil, err
	}
	ticks := d / 10
	if ticks > math.MaxUint16 {
		ticks = math.MaxUint16
	}
	return []Operation{
		{Kind: OpWriteRegister, Address: regRampTargetBase + ch, Value: uint16(e)},
		{Kind: OpWriteRegister, Address: regRampDurBase + ch, Value: uint16(ticks)},
	}, nil
}
