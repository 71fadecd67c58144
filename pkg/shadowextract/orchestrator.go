// Extracts OS-locked files (registry hives, directory service database) through a
// temporary volume snapshot, leaving the system as it was found
package shadowextract

import (
	"context"
	"log"
	"time"

	"github.com/function61/gokit/cryptorandombytes"
	"github.com/function61/gokit/logex"
	"github.com/function61/hostkit/pkg/fssnapshot"
	"github.com/function61/hostkit/pkg/hiveextract"
	"github.com/function61/hostkit/pkg/mutexmap"
	"github.com/function61/hostkit/pkg/servicestate"
)

// releases get their own deadline, since they must run even if the run's ctx is canceled
const releaseTimeout = 2 * time.Minute

// one run per volume at a time within this process
var volumesInUse = mutexmap.New()

type Orchestrator struct {
	guard     *servicestate.Guard
	provider  fssnapshot.Provider
	extractor *hiveextract.Extractor
	metrics   *Metrics // optional
	log       *logex.Leveled
	now       func() time.Time
}

func New(
	guard *servicestate.Guard,
	provider fssnapshot.Provider,
	extractor *hiveextract.Extractor,
	metrics *Metrics,
	logger *log.Logger,
) *Orchestrator {
	return &Orchestrator{
		guard:     guard,
		provider:  provider,
		extractor: extractor,
		metrics:   metrics,
		log:       logex.Levels(logex.NonNil(logger)),
		now:       time.Now,
	}
}

// Run never returns an error: the outcome, including the failed stage and any
// compensation warnings, is in the result. service state and the snapshot are always
// released before Run returns.
func (o *Orchestrator) Run(ctx context.Context, req Request) *RunResult {
	return o.lifecycle(ctx, req.Volume, req.Destination, func(ctx context.Context, res *RunResult) error {
		results, err := o.extractor.CopyAll(ctx, res.DevicePath, req.Targets, req.Destination)
		if err != nil {
			return err
		}

		res.Results = results

		manifest := hiveextract.NewManifest(
			res.RunID,
			res.Volume,
			res.SnapshotID,
			res.DevicePath,
			res.Started,
			results)

		if err := hiveextract.WriteManifest(req.Destination, manifest); err != nil {
			// the copies themselves are fine, so this is not worth failing the run for
			o.log.Error.Printf("[%s] writing manifest: %v", res.RunID, err)
		}

		return nil
	})
}

// WithSnapshot gives "work" read access to the volume's snapshot root, with the same
// lifecycle guarantees as Run(). an error from "work" fails the run at the copy stage.
func (o *Orchestrator) WithSnapshot(
	ctx context.Context,
	volume string,
	work func(ctx context.Context, root string) error,
) *RunResult {
	return o.lifecycle(ctx, volume, "", func(ctx context.Context, res *RunResult) error {
		return work(ctx, res.DevicePath)
	})
}

func (o *Orchestrator) lifecycle(
	ctx context.Context,
	volume string,
	destination string,
	work func(context.Context, *RunResult) error,
) *RunResult {
	res := &RunResult{
		RunID:       cryptorandombytes.Base64Url(6),
		Volume:      volume,
		Destination: destination,
		Started:     o.now(),
		State:       StateIdle,
		Reached:     []State{StateIdle},
	}

	o.run(ctx, res, work)

	res.Finished = o.now()

	if o.metrics != nil {
		o.metrics.Observe(res)
	}

	return res
}

func (o *Orchestrator) run(ctx context.Context, res *RunResult, work func(context.Context, *RunResult) error) {
	volume, err := fssnapshot.NormalizeVolume(res.Volume)
	if err != nil {
		res.fail(StateSnapshotCreated, err)
		return
	}
	res.Volume = volume

	release, acquired := volumesInUse.TryLock(volume)
	if !acquired {
		res.fail(StateServiceEnsured, ErrRunInProgress)
		return
	}
	defer release()

	undo := &undoStack{}

	// on any exit path, release what was acquired (last acquired, first released)
	defer o.releaseAll(undo, res)

	step := func(next State, fn func() error) bool {
		o.log.Info.Printf("[%s] %s", res.RunID, next.stepDescription())

		// an interrupted run counts as a failure of the step it was about to take
		if err := ctx.Err(); err != nil {
			res.fail(next, err)
			return false
		}

		if err := fn(); err != nil {
			res.fail(next, err)
			return false
		}

		res.enter(next)

		return true
	}

	if !step(StateServiceEnsured, func() error {
		prior, err := o.guard.Ensure(ctx)
		if prior.ServiceName != "" { // also on error: service may have been started
			undo.push(StateServiceRestored, func(ctx context.Context) error {
				return o.guard.Restore(ctx, prior)
			})
		}

		return err
	}) {
		return
	}

	var handle fssnapshot.Handle

	if !step(StateSnapshotCreated, func() error {
		var err error
		handle, err = o.provider.Create(ctx, volume)
		if err != nil {
			return err
		}

		res.SnapshotID = handle.ID

		undo.push(StateSnapshotDeleted, func(ctx context.Context) error {
			return o.provider.Delete(ctx, handle)
		})

		return nil
	}) {
		return
	}

	if !step(StatePathResolved, func() error {
		var err error
		res.DevicePath, err = o.provider.ResolveDevicePath(ctx, handle)
		return err
	}) {
		return
	}

	_ = step(StateFilesCopied, func() error {
		return work(ctx, res)
	})
}

// runs the release half of every acquired resource. after a failure this is the
// compensation, otherwise the normal teardown. release failures become warnings.
func (o *Orchestrator) releaseAll(undo *undoStack, res *RunResult) {
	if undo.len() == 0 {
		if res.State != StateFailed {
			res.enter(StateDone)
		}
		return
	}

	failed := res.State == StateFailed
	if failed {
		o.log.Error.Printf("[%s] %v; compensating", res.RunID, res.Err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	undo.unwind(ctx, func(action undoAction, err error) {
		if err != nil {
			warning := Warning{Stage: action.reaches, Err: err}

			if action.reaches == StateSnapshotDeleted {
				warning.Hint = fssnapshot.LeakHint(fssnapshot.Handle{ID: res.SnapshotID, Volume: res.Volume})
			}

			o.log.Error.Printf("[%s] %s", res.RunID, warning.String())

			res.Warnings = append(res.Warnings, warning)
		} else {
			o.log.Info.Printf("[%s] %s: ok", res.RunID, action.reaches.stepDescription())
		}

		if !failed {
			// Done requires release to have been attempted, not to have succeeded
			if err == nil {
				res.enter(action.reaches)
			}
		}
	})

	if !failed {
		res.enter(StateDone)
	}
}
