package driver

import (
	"context"
	"time"

	"github.com/pixil98/go-log"
)

const (
	DefaultTickInterval = 50 * time.Millisecond
)

type Manager interface {
	Tick(context.Context) error
}

// TickDriver calls every manager once per fixed interval.
type TickDriver struct {
	interval time.Duration
	managers []Manager
	ticks    uint64
}

func NewTickDriver(managers []Manager, opts ...TickDriverOpt) *TickDriver {
	d := &TickDriver{
		interval: DefaultTickInterval,
		managers: managers,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *TickDriver) Start(ctx context.Context) error {
	log.GetLogger(ctx).WithField("interval", d.interval).Info("tick driver started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := d.Tick(ctx)
			if err != nil {
				return err
			}
		}
	}
}

// Tick runs one step of every manager in order, stopping at the first error.
func (d *TickDriver) Tick(ctx context.Context) error {
	d.ticks++
	for _, m := range d.managers {
		if err := m.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Ticks reports how many steps have run.
func (d *TickDriver) Ticks() uint64 {
	return d.ticks
}
