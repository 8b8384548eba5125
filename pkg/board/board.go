// Package board defines the pin assignments of the simulated development
// board. The layout follows the nRF52-DK: four LEDs with their cathodes on
// the GPIOs (drive low to light) and four buttons shorting to ground through
// a pull-up (a press reads as a high-to-low transition).
package board

import "github.com/ravasco/go-devboard/pkg/pin"

const (
	LED1 pin.Pin = 17
	LED2 pin.Pin = 18
	LED3 pin.Pin = 19
	LED4 pin.Pin = 20

	Button1 pin.Pin = 13
	Button2 pin.Pin = 14
	Button3 pin.Pin = 15
	Button4 pin.Pin = 16
)

// LEDs are active low.
const (
	LEDOn  = pin.Low
	LEDOff = pin.High
)

// LEDIsOn reports whether a LED driven at the given level is lit.
func LEDIsOn(l pin.Level) bool {
	return l == LEDOn
}
