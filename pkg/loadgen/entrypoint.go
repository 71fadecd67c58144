package loadgen

import (
	"context"
	"errors"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/function61/hostkit/pkg/byteshuman"
	"github.com/spf13/cobra"
)

func Entrypoint() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Generate synthetic memory or CPU load",
	}

	cmd.AddCommand(memoryEntrypoint())
	cmd.AddCommand(cpuEntrypoint())

	return cmd
}

func memoryEntrypoint() *cobra.Command {
	size := "1GiB"
	chunk := byteshuman.Humanize(DefaultChunkBytes)
	holdFor := time.Duration(0)

	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Allocates memory, holds it, then releases it",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			totalBytes, err := byteshuman.Parse(size)
			osutil.ExitIfError(err)

			chunkBytes, err := byteshuman.Parse(chunk)
			osutil.ExitIfError(err)

			renderer := NewStdoutRenderer()

			osutil.ExitIfError(ignoreInterrupt(Memory(
				osutil.CancelOnInterruptOrTerminate(logex.StandardLogger()),
				MemoryOptions{
					TotalBytes: totalBytes,
					ChunkBytes: chunkBytes,
					Hold:       holdFor,
				},
				renderer.Memory)))
		},
	}

	cmd.Flags().StringVarP(&size, "size", "s", size, "How much to allocate (e.g. 512MiB, 4GiB)")
	cmd.Flags().StringVarP(&chunk, "chunk", "", chunk, "Allocation granularity")
	cmd.Flags().DurationVarP(&holdFor, "hold", "", holdFor, "How long to hold the memory (0 = until interrupted)")

	return cmd
}

func cpuEntrypoint() *cobra.Command {
	opts := CPUOptions{}

	cmd := &cobra.Command{
		Use:   "cpu",
		Short: "Keeps CPU cores busy",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			renderer := NewStdoutRenderer()

			osutil.ExitIfError(ignoreInterrupt(CPU(
				osutil.CancelOnInterruptOrTerminate(logex.StandardLogger()),
				opts,
				renderer.CPU)))
		},
	}

	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Busy workers (0 = one per logical CPU)")
	cmd.Flags().DurationVarP(&opts.Duration, "duration", "d", 0, "How long to run (0 = until interrupted)")

	return cmd
}

// ctrl+c is how an open-ended load is meant to be stopped
func ignoreInterrupt(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
