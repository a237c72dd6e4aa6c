package hardware

import (
	"fmt"

	"github.com/reef-pi/rpi/i2c"
)

// OpenI2C opens the board's I2C bus. On failure it still returns a usable,
// unavailable SharedBus together with the error so callers can degrade
// instead of aborting.
func OpenI2C() (*SharedBus, error) {
	b, err := i2c.New()
	if err != nil {
		return NewSharedBus(nil), fmt.Errorf("open i2c bus: %w", err)
	}
	return NewSharedBus(b), nil
}
