package loadgen

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type CPUOptions struct {
	Workers        int           // 0 = one per logical CPU
	Duration       time.Duration // 0 = until ctx is canceled
	ReportInterval time.Duration // 0 = every second
}

type CPUStatus struct {
	Workers  int
	Elapsed  time.Duration
	Duration time.Duration
	Rounds   uint64 // busy-loop rounds completed by all workers
	Finished bool
}

// keeps "Workers" goroutines busy. returns nil when Duration elapses and ctx.Err() if
// canceled before that.
func CPU(ctx context.Context, opts CPUOptions, report func(CPUStatus)) error {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = time.Second
	}

	started := time.Now()

	runCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	rounds := uint64(0)

	status := func(finished bool) CPUStatus {
		return CPUStatus{
			Workers:  opts.Workers,
			Elapsed:  time.Since(started),
			Duration: opts.Duration,
			Rounds:   atomic.LoadUint64(&rounds),
			Finished: finished,
		}
	}

	workers, workersCtx := errgroup.WithContext(runCtx)

	for i := 0; i < opts.Workers; i++ {
		workers.Go(func() error {
			burn(workersCtx, &rounds)
			return nil
		})
	}

	workers.Go(func() error {
		ticker := time.NewTicker(opts.ReportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-workersCtx.Done():
				return nil
			case <-ticker.C:
				report(status(false))
			}
		}
	})

	if err := workers.Wait(); err != nil {
		return err
	}

	report(status(true))

	if err := ctx.Err(); err != nil {
		return err
	}

	// duration elapsing is the normal way to finish
	if err := runCtx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return nil
}

// ctx is checked once per round so cancellation is noticed within microseconds
func burn(ctx context.Context, rounds *uint64) {
	x := 1.0

	for ctx.Err() == nil {
		for i := 0; i < 10000; i++ {
			x = math.Sqrt(x*x + float64(i))
		}

		if math.IsNaN(x) { // keeps the loop from being optimized away
			return
		}

		atomic.AddUint64(rounds, 1)
	}
}
