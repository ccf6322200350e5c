// Package gpio reads the front-panel buttons and the power-fail sense line.  The real
// implementation uses the Linux GPIO character device; the fake allows testing without hardware.
package gpio

// Reader reads the button inputs.
type Reader interface {
	// Read returns the logical (true = pressed) states of the set and adv buttons.  The buttons
	// pull the line low when pressed.
	Read() (set, adv bool, err error)

	// Close releases GPIO resources.
	Close() error
}

// Default line offsets on gpiochip0.
const (
	DefaultChip     = "gpiochip0"
	DefaultPinSet   = 17
	DefaultPinAdv   = 27
	DefaultPinPower = 22
)
