package pin

// Pin identifies a GPIO pin by its port number.
type Pin uint8

// Level is the logic level of a pin.
type Level uint8

const (
	Low Level = iota
	High
)

func (l Level) String() string {
	if l == Low {
		return "low"
	}
	return "high"
}

// Toggled returns the opposite logic level.
func (l Level) Toggled() Level {
	if l == Low {
		return High
	}
	return Low
}

// Pull is the pull resistor configuration of an input pin.
type Pull uint8

const (
	NoPull Pull = iota
	PullDown
	PullUp
)

// Sense selects which logic transitions on an input pin generate events.
type Sense uint8

const (
	SenseLoToHi Sense = iota
	SenseHiToLo
	SenseToggle
)

// Polarity is the direction of a detected transition.
type Polarity uint8

const (
	PolarityLoToHi Polarity = iota
	PolarityHiToLo
)

func (p Polarity) String() string {
	if p == PolarityHiToLo {
		return "high-to-low"
	}
	return "low-to-high"
}

// Matches reports whether a transition of the given polarity satisfies the
// configured sense.
func (s Sense) Matches(p Polarity) bool {
	switch s {
	case SenseLoToHi:
		return p == PolarityLoToHi
	case SenseHiToLo:
		return p == PolarityHiToLo
	default:
		return true
	}
}
