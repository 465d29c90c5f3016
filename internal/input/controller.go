// Package input implements the NES's standard controller shift-register
// protocol on $4016/$4017.
package input

// Button identifies one of the 8 standard controller buttons.
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Controller models one standard NES gamepad: a latch that snapshots
// button state on strobe, shifted out one bit per read thereafter.
type Controller struct {
	buttons uint8

	strobe        bool
	shiftRegister uint8
	bitPosition   uint8
}

// New creates a Controller with no buttons pressed.
func New() *Controller { return &Controller{} }

// SetButtons replaces all 8 button states at once, in A,B,Select,Start,
// Up,Down,Left,Right order.
func (c *Controller) SetButtons(pressed [8]bool) {
	c.buttons = 0
	order := [8]Button{ButtonA, ButtonB, ButtonSelect, ButtonStart, ButtonUp, ButtonDown, ButtonLeft, ButtonRight}
	for i, btn := range order {
		if pressed[i] {
			c.buttons |= uint8(btn)
		}
	}
}

// SetButton sets or clears a single button.
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// IsPressed reports whether button is currently held.
func (c *Controller) IsPressed(button Button) bool { return c.buttons&uint8(button) != 0 }

// Write handles a $4016 strobe write. While strobe is held high the
// shift register continuously reloads from the live button state;
// the falling edge latches it for serial reads.
func (c *Controller) Write(value uint8) {
	wasStrobe := c.strobe
	c.strobe = value&1 != 0
	if c.strobe || wasStrobe {
		c.shiftRegister = c.buttons
		c.bitPosition = 0
	}
}

// Read shifts out one button bit. Past the 8th read, hardware returns
// a fixed 1, matching the real shift register's serial exhaustion
// behavior.
func (c *Controller) Read() uint8 {
	if c.strobe {
		return c.buttons & 1
	}
	if c.bitPosition >= 8 {
		return 1
	}
	bit := c.shiftRegister & 1
	c.shiftRegister >>= 1
	c.bitPosition++
	return bit
}

// Reset clears all latched and button state.
func (c *Controller) Reset() {
	c.buttons = 0
	c.strobe = false
	c.shiftRegister = 0
	c.bitPosition = 0
}

// InputState owns both controller ports and routes CPU accesses to them.
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState creates an InputState with two fresh controllers.
func NewInputState() *InputState {
	return &InputState{Controller1: New(), Controller2: New()}
}

func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// Read routes $4016/$4017. Bit 6 of both ports is forced high, matching
// the NES's expansion-port open-bus convention.
func (is *InputState) Read(addr uint16) uint8 {
	switch addr {
	case 0x4016:
		return is.Controller1.Read() | 0x40
	case 0x4017:
		return is.Controller2.Read() | 0x40
	default:
		return 0
	}
}

// Write routes the $4016 strobe to both controller ports; they share
// a single strobe line on real hardware.
func (is *InputState) Write(addr uint16, value uint8) {
	if addr == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}
