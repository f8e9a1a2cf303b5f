package driver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

type countingManager struct {
	name  string
	calls *[]string
	err   error
}

func (m *countingManager) Tick(context.Context) error {
	*m.calls = append(*m.calls, m.name)
	return m.err
}

func TestTickDriver_Tick(t *testing.T) {
	tests := map[string]struct {
		errOn    string
		expCalls []string
		expErr   string
	}{
		"all managers in order": {
			expCalls: []string{"world", "audit"},
		},
		"stops at first error": {
			errOn:    "world",
			expCalls: []string{"world"},
			expErr:   "world failed",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var calls []string
			var managers []Manager
			for _, n := range []string{"world", "audit"} {
				m := &countingManager{name: n, calls: &calls}
				if n == tt.errOn {
					m.err = fmt.Errorf("%s failed", n)
				}
				managers = append(managers, m)
			}

			d := NewTickDriver(managers)
			err := d.Tick(context.Background())
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "calls", calls, tt.expCalls)
			testutil.AssertEqual(t, "ticks", d.Ticks(), uint64(1))
		})
	}
}

func TestTickDriver_Options(t *testing.T) {
	tests := map[string]struct {
		opts        []TickDriverOpt
		expInterval time.Duration
	}{
		"default":         {expInterval: DefaultTickInterval},
		"custom":          {opts: []TickDriverOpt{WithInterval(100 * time.Millisecond)}, expInterval: 100 * time.Millisecond},
		"zero is ignored": {opts: []TickDriverOpt{WithInterval(0)}, expInterval: DefaultTickInterval},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d := NewTickDriver(nil, tt.opts...)
			testutil.AssertEqual(t, "interval", d.interval, tt.expInterval)
		})
	}
}

func TestTickDriver_StartStopsOnCancel(t *testing.T) {
	var calls []string
	d := NewTickDriver([]Manager{&countingManager{name: "world", calls: &calls}}, WithInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Ticks() == 0 {
		t.Fatalf("expected at least one tick")
	}
}

func TestTickDriver_StartReturnsManagerError(t *testing.T) {
	var calls []string
	d := NewTickDriver([]Manager{&countingManager{name: "world", calls: &calls, err: fmt.Errorf("boom")}}, WithInterval(time.Millisecond))

	err := d.Start(context.Background())
	testutil.AssertErrorContains(t, err, "boom")
}
