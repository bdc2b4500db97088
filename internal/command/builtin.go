package command

import (
	"fmt"

	"github.com/nerrad567/flower-core/internal/flower"
)

// Catalog command IDs.
const (
	LEDSet            = "led.set"
	LEDRamp           = "led.ramp"
	LEDRampIn         = "led.ramp.in"
	RGBOuter          = "rgb.outer"
	MotorOpen         = "motor.open"
	MotorClose        = "motor.close"
	MotorStop         = "motor.stop"
	MotorOpenLEDRamp  = "motor.open.led.ramp"
	MotorCloseLEDRamp = "motor.close.led.ramp"
	Ping              = "ping"
	Init              = "init"
)

// Argument bounds.
const (
	maxIntensity         = 255
	maxCombinedIntensity = 120
	maxDurationMS        = 600_000
)

func frame(format string, args ...any) [][]byte {
	return [][]byte{[]byte(fmt.Sprintf(format, args...))}
}

// builtins is the command catalog. Each entry binds a wire frame
// template to its validation rules and acknowledge-time state effect.
//
// Frame grammar: "<id>/<VERB>[:<args>]\n". The firmware echoes
// "<id>/ACK" or "<id>/NACK", which the protocol layer correlates.
var builtins = []Definition{
	{
		ID:          LEDSet,
		DisplayName: "Set LED intensity",
		Validate: func(a Args) error {
			_, err := a.IntInRange("intensity", 0, maxIntensity)
			return err
		},
		Frames: func(id int, a Args) [][]byte {
			n, _ := a.Int("intensity")
			return frame("%d/LED:%d\n", id, n)
		},
		OnAck: func(a Args) flower.Mutator {
			n, _ := a.Int("intensity")
			return func(u *flower.Unit) { u.CurrentBrightness = n }
		},
	},
	{
		ID:          LEDRamp,
		DisplayName: "Ramp LED intensity",
		Defaults:    Args{"durationMs": 1000},
		Validate:    validateRamp(maxIntensity),
		Frames: func(id int, a Args) [][]byte {
			e, _ := a.Int("endIntensity")
			d, _ := a.Int("durationMs")
			return frame("%d/LEDRAMP:%d,%d\n", id, e, d)
		},
		OnAck: rampOnAck,
	},
	{
		ID:          LEDRampIn,
		DisplayName: "Ramp inner LED intensity",
		Categories:  []flower.Category{flower.CategoryBigTulip},
		Defaults:    Args{"durationMs": 1000},
		Validate:    validateRamp(maxIntensity),
		Frames: func(id int, a Args) [][]byte {
			e, _ := a.Int("endIntensity")
			d, _ := a.Int("durationMs")
			return frame("%d/LEDRAMPIN:%d,%d\n", id, e, d)
		},
		// Inner ring brightness is not tracked; only the outer ring
		// drives CurrentBrightness.
	},
	{
		ID:          RGBOuter,
		DisplayName: "Set outer RGB colour",
		Categories:  []flower.Category{flower.CategoryBigTulip},
		Validate: func(a Args) error {
			for _, k := range []string{"r", "g", "b"} {
				if _, err := a.IntInRange(k, 0, 255); err != nil {
					return err
				}
			}
			return nil
		},
		Frames: func(id int, a Args) [][]byte {
			r, _ := a.Int("r")
			g, _ := a.Int("g")
			b, _ := a.Int("b")
			return frame("%d/RGBOUT:%d,%d,%d\n", id, r, g, b)
		},
	},
	{
		ID:          MotorOpen,
		DisplayName: "Open flower",
		Frames: func(id int, _ Args) [][]byte {
			return frame("%d/OPEN\n", id)
		},
		OnAck: func(Args) flower.Mutator {
			return func(u *flower.Unit) { u.FlowerStatus = flower.FlowerOpen }
		},
	},
	{
		ID:          MotorClose,
		DisplayName: "Close flower",
		Frames: func(id int, _ Args) [][]byte {
			return frame("%d/CLOSE\n", id)
		},
		OnAck: func(Args) flower.Mutator {
			return func(u *flower.Unit) { u.FlowerStatus = flower.FlowerClosed }
		},
	},
	{
		ID:          MotorStop,
		DisplayName: "Stop motor",
		Frames: func(id int, _ Args) [][]byte {
			return frame("%d/STOP\n", id)
		},
	},
	{
		ID:          MotorOpenLEDRamp,
		DisplayName: "Open flower with LED ramp",
		Defaults:    Args{"durationMs": 1000},
		Validate:    validateRamp(maxCombinedIntensity),
		Frames: func(id int, a Args) [][]byte {
			e, _ := a.Int("endIntensity")
			d, _ := a.Int("durationMs")
			return frame("%d/OPENLEDRAMP:%d,%d\n", id, e, d)
		},
		OnAck: func(a Args) flower.Mutator {
			e, _ := a.Int("endIntensity")
			return func(u *flower.Unit) {
				u.FlowerStatus = flower.FlowerOpen
				u.CurrentBrightness = e
			}
		},
	},
	{
		ID:          MotorCloseLEDRamp,
		DisplayName: "Close flower with LED ramp",
		Defaults:    Args{"durationMs": 1000},
		Validate:    validateRamp(maxCombinedIntensity),
		Frames: func(id int, a Args) [][]byte {
			e, _ := a.Int("endIntensity")
			d, _ := a.Int("durationMs")
			return frame("%d/CLOSELEDRAMP:%d,%d\n", id, e, d)
		},
		OnAck: func(a Args) flower.Mutator {
			e, _ := a.Int("endIntensity")
			return func(u *flower.Unit) {
				u.FlowerStatus = flower.FlowerClosed
				u.CurrentBrightness = e
			}
		},
	},
	{
		ID:          Ping,
		DisplayName: "Reachability probe",
		Frames: func(id int, _ Args) [][]byte {
			return frame("%d/PING\n", id)
		},
	},
	{
		ID:          Init,
		DisplayName: "Re-initialise unit",
		Frames: func(id int, _ Args) [][]byte {
			return frame("%d/INIT\n", id)
		},
		OnAck: func(Args) flower.Mutator {
			return func(u *flower.Unit) {
				u.FlowerStatus = flower.FlowerClosed
				u.CurrentBrightness = 0
			}
		},
	},
}

// validateRamp checks the shared endIntensity/durationMs argument pair.
func validateRamp(maxEnd int) func(Args) error {
	return func(a Args) error {
		if _, err := a.IntInRange("endIntensity", 0, maxEnd); err != nil {
			return err
		}
		_, err := a.IntInRange("durationMs", 0, maxDurationMS)
		return err
	}
}

// rampOnAck records the target intensity as the unit's brightness.
// It never touches the mechanical position.
func rampOnAck(a Args) flower.Mutator {
	e, _ := a.Int("endIntensity")
	return func(u *flower.Unit) { u.CurrentBrightness = e }
}
