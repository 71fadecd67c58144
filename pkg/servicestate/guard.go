// Keeps an OS service running for the duration of an operation, then puts it back the
// way it was
package servicestate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/function61/gokit/logex"
)

var (
	ErrServiceUnavailable  = errors.New("service unavailable")
	ErrUnsupportedPlatform = errors.New("service control is only supported on Windows")
)

const (
	DefaultSettleDelay = 2 * time.Second
	// the Volume Shadow Copy service
	DefaultServiceName = "VSS"
)

// the service manager surface we need
type Control interface {
	IsRunning(ctx context.Context, name string) (bool, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
}

// captured once by Ensure(), consumed once by Restore(). compensation is driven by this
// value instead of re-querying the live service state, which may have changed meanwhile.
type PriorState struct {
	ServiceName string
	WasRunning  bool
}

type Guard struct {
	control     Control
	serviceName string
	settleDelay time.Duration
	sleep       func(context.Context, time.Duration) error
	log         *logex.Leveled
}

func NewGuard(control Control, serviceName string, settleDelay time.Duration, logger *log.Logger) *Guard {
	return &Guard{
		control:     control,
		serviceName: serviceName,
		settleDelay: settleDelay,
		sleep:       sleepCtx,
		log:         logex.Levels(logex.NonNil(logger)),
	}
}

func (g *Guard) ServiceName() string {
	return g.serviceName
}

// on error, a PriorState with non-empty ServiceName means the service did get started
// and still needs Restore()
func (g *Guard) Ensure(ctx context.Context) (PriorState, error) {
	running, err := g.control.IsRunning(ctx, g.serviceName)
	if err != nil {
		return PriorState{}, fmt.Errorf("%w: query %s: %v", ErrServiceUnavailable, g.serviceName, err)
	}

	if running {
		g.log.Debug.Printf("%s already running", g.serviceName)

		return PriorState{ServiceName: g.serviceName, WasRunning: true}, nil
	}

	g.log.Info.Printf("starting %s", g.serviceName)

	if err := g.control.Start(ctx, g.serviceName); err != nil {
		return PriorState{}, fmt.Errorf("%w: start %s: %v", ErrServiceUnavailable, g.serviceName, err)
	}

	// from here on the caller owns a started service, so it must get the marker even if
	// the settle wait gets interrupted
	prior := PriorState{ServiceName: g.serviceName, WasRunning: false}

	if err := g.sleep(ctx, g.settleDelay); err != nil {
		return prior, fmt.Errorf("%w: waiting for %s to settle: %v", ErrServiceUnavailable, g.serviceName, err)
	}

	return prior, nil
}

// no-op if the service was running before Ensure()
func (g *Guard) Restore(ctx context.Context, prior PriorState) error {
	if prior.WasRunning {
		return nil
	}

	g.log.Info.Printf("stopping %s (was not running before)", prior.ServiceName)

	if err := g.control.Stop(ctx, prior.ServiceName); err != nil {
		return fmt.Errorf("stop %s: %w", prior.ServiceName, err)
	}

	return nil
}

func sleepCtx(ctx context.Context, dur time.Duration) error {
	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
