// Synthetic resource load (memory, CPU) for testing monitoring and capacity alarms
package loadgen

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/function61/hostkit/pkg/byteshuman"
)

const (
	DefaultChunkBytes = 64 * byteshuman.MiB

	pageSize = 4096
)

type MemoryOptions struct {
	TotalBytes uint64
	ChunkBytes uint64        // allocation granularity (progress is reported per chunk)
	Hold       time.Duration // 0 = until ctx is canceled
}

type MemoryPhase int

const (
	MemoryAllocating MemoryPhase = iota
	MemoryHolding
	MemoryReleased
)

type MemoryStatus struct {
	Phase     MemoryPhase
	Allocated uint64
	Total     uint64
	HoldLeft  time.Duration // only for MemoryHolding with a bounded hold
}

// allocates and touches TotalBytes so it is actually resident, holds it, then releases
// it back to the OS. returns ctx.Err() if canceled before the hold ran out.
func Memory(ctx context.Context, opts MemoryOptions, report func(MemoryStatus)) error {
	if opts.TotalBytes == 0 {
		return errors.New("memory: total must be > 0")
	}
	if opts.ChunkBytes == 0 {
		opts.ChunkBytes = DefaultChunkBytes
	}

	chunks := [][]byte{}
	defer func() {
		chunks = nil
		debug.FreeOSMemory()

		report(MemoryStatus{Phase: MemoryReleased, Total: opts.TotalBytes})
	}()

	allocated := uint64(0)
	for allocated < opts.TotalBytes {
		if err := ctx.Err(); err != nil {
			return err
		}

		size := opts.ChunkBytes
		if remaining := opts.TotalBytes - allocated; remaining < size {
			size = remaining
		}

		chunks = append(chunks, touchedChunk(size))
		allocated += size

		report(MemoryStatus{Phase: MemoryAllocating, Allocated: allocated, Total: opts.TotalBytes})
	}

	return hold(ctx, opts.Hold, func(left time.Duration) {
		report(MemoryStatus{
			Phase:     MemoryHolding,
			Allocated: allocated,
			Total:     opts.TotalBytes,
			HoldLeft:  left,
		})
	})
}

// fresh allocations are usually backed by zero pages that aren't resident until written
func touchedChunk(size uint64) []byte {
	chunk := make([]byte, size)
	for i := uint64(0); i < size; i += pageSize {
		chunk[i] = 1
	}

	return chunk
}

func hold(ctx context.Context, dur time.Duration, tick func(left time.Duration)) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if dur > 0 {
		timer := time.NewTimer(dur)
		defer timer.Stop()
		deadline = timer.C
	}

	started := time.Now()

	tick(dur)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return nil
		case <-ticker.C:
			if dur > 0 {
				tick(dur - time.Since(started))
			} else {
				tick(0)
			}
		}
	}
}
