package driver

import "time"

type TickDriverOpt func(*TickDriver)

// WithInterval sets the fixed step between ticks.
func WithInterval(interval time.Duration) TickDriverOpt {
	return func(d *TickDriver) {
		if interval > 0 {
			d.interval = interval
		}
	}
}
