package shadowextract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/function61/hostkit/pkg/fssnapshot"
	"github.com/function61/hostkit/pkg/hiveextract"
	"github.com/function61/hostkit/pkg/servicestate"
)

// snapshot provider whose "snapshot" is a plain directory
type testProvider struct {
	root       string
	createErr  error
	deleteErr  error
	resolveErr error

	creates int
	deletes int
	// lets a test park a run inside Create()
	createHook func()

	mu sync.Mutex
}

func (p *testProvider) Create(_ context.Context, volume string) (fssnapshot.Handle, error) {
	if p.createHook != nil {
		p.createHook()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.creates++

	if p.createErr != nil {
		return fssnapshot.Handle{}, p.createErr
	}

	return fssnapshot.Handle{ID: "{f2bd1cd9-fe7c-4b3a-a0c8-5c2d1a8d8b4e}", Volume: volume}, nil
}

func (p *testProvider) ResolveDevicePath(context.Context, fssnapshot.Handle) (string, error) {
	if p.resolveErr != nil {
		return "", p.resolveErr
	}

	return p.root, nil
}

func (p *testProvider) Delete(context.Context, fssnapshot.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deletes++

	return p.deleteErr
}

type testRig struct {
	control  *servicestate.FakeControl
	provider *testProvider
	orch     *Orchestrator
	dest     string
}

func newRig(t *testing.T, serviceRunning bool) *testRig {
	t.Helper()

	root := t.TempDir()
	for _, relativePath := range []string{"Windows/System32/config/SYSTEM", "Windows/System32/config/SAM"} {
		full := filepath.Join(root, filepath.FromSlash(relativePath))
		assert.Assert(t, os.MkdirAll(filepath.Dir(full), 0700) == nil)
		assert.Assert(t, os.WriteFile(full, []byte("hive "+filepath.Base(full)), 0600) == nil)
	}

	control := servicestate.NewFakeControl(map[string]bool{"VSS": serviceRunning})
	provider := &testProvider{root: root}

	return &testRig{
		control:  control,
		provider: provider,
		orch: New(
			servicestate.NewGuard(control, "VSS", 0, nil),
			provider,
			hiveextract.New(nil),
			NewMetrics(),
			nil),
		dest: filepath.Join(t.TempDir(), "out"),
	}
}

func (r *testRig) run(ctx context.Context, volume string) *RunResult {
	return r.orch.Run(ctx, Request{
		Volume:      volume,
		Destination: r.dest,
		Targets:     hiveextract.DefaultTargets(false),
	})
}

func stateNames(states []State) string {
	names := []string{}
	for _, state := range states {
		names = append(names, state.String())
	}

	return strings.Join(names, " -> ")
}

func TestHappyPathServiceAlreadyRunning(t *testing.T) {
	rig := newRig(t, true)

	res := rig.run(context.Background(), "c")

	assert.Assert(t, res.Failure() == nil)
	assert.EqualString(t, res.Volume, "C:")
	assert.EqualString(t, res.State.String(), "Done")
	assert.EqualString(t, stateNames(res.Reached), "Idle -> ServiceEnsured -> SnapshotCreated -> PathResolved -> FilesCopied -> SnapshotDeleted -> ServiceRestored -> Done")
	assert.Assert(t, res.Counts() == Counts{Copied: 2, Skipped: 1})
	assert.Assert(t, res.Succeeded())
	assert.Assert(t, res.ExitCode() == 0)
	assert.Assert(t, len(res.Warnings) == 0)

	assert.Assert(t, rig.provider.creates == 1)
	assert.Assert(t, rig.provider.deletes == 1)
	// was running, so we must not have touched it
	assert.Assert(t, len(rig.control.Calls) == 0)

	system, err := os.ReadFile(filepath.Join(rig.dest, "SYSTEM"))
	assert.Assert(t, err == nil)
	assert.EqualString(t, string(system), "hive SYSTEM")

	_, err = os.Stat(filepath.Join(rig.dest, "ntds.dit"))
	assert.Assert(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(rig.dest, hiveextract.ManifestFilename))
	assert.Assert(t, err == nil)
}

func TestServiceStartedIsStoppedAfterwards(t *testing.T) {
	rig := newRig(t, false)

	res := rig.run(context.Background(), "C:")

	assert.Assert(t, res.ExitCode() == 0)
	assert.EqualString(t, strings.Join(rig.control.Calls, ", "), "start VSS, stop VSS")
	assert.Assert(t, !rig.control.Running["VSS"])
}

func TestCreateFailureCompensatesService(t *testing.T) {
	rig := newRig(t, false)
	rig.provider.createErr = &fssnapshot.CreationFailedError{ReturnCode: 3}

	res := rig.run(context.Background(), "C:")

	assert.EqualString(t, res.State.String(), "Failed")
	assert.Assert(t, res.Err.Stage == StateSnapshotCreated)
	assert.Assert(t, errors.Is(res.Failure(), fssnapshot.ErrSnapshotCreationFailed))
	assert.EqualString(t, res.Failure().Error(), "create snapshot: snapshot creation failed: return code 3 (specified volume not found)")
	assert.Assert(t, res.ExitCode() == 1)

	// nothing to delete, but the service we started must be stopped again
	assert.Assert(t, rig.provider.deletes == 0)
	assert.EqualString(t, strings.Join(rig.control.Calls, ", "), "start VSS, stop VSS")

	_, err := os.Stat(rig.dest)
	assert.Assert(t, os.IsNotExist(err))
}

func TestDestinationUnavailableCompensatesEverything(t *testing.T) {
	rig := newRig(t, false)

	// a regular file where the destination's parent directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	assert.Assert(t, os.WriteFile(blocker, []byte("x"), 0600) == nil)
	rig.dest = filepath.Join(blocker, "out")

	res := rig.run(context.Background(), "C:")

	assert.EqualString(t, res.State.String(), "Failed")
	assert.Assert(t, res.Err.Stage == StateFilesCopied)
	assert.Assert(t, errors.Is(res.Failure(), hiveextract.ErrDestinationUnavailable))
	assert.EqualString(t, stateNames(res.Reached), "Idle -> ServiceEnsured -> SnapshotCreated -> PathResolved")

	assert.Assert(t, rig.provider.deletes == 1)
	assert.EqualString(t, strings.Join(rig.control.Calls, ", "), "start VSS, stop VSS")
}

func TestResolveFailureDeletesSnapshot(t *testing.T) {
	rig := newRig(t, true)
	rig.provider.resolveErr = fssnapshot.ErrSnapshotNotFound

	res := rig.run(context.Background(), "C:")

	assert.Assert(t, res.Err.Stage == StatePathResolved)
	assert.Assert(t, errors.Is(res.Failure(), fssnapshot.ErrSnapshotNotFound))
	assert.Assert(t, rig.provider.deletes == 1)
	assert.Assert(t, len(rig.control.Calls) == 0)
}

func TestServiceUnavailable(t *testing.T) {
	rig := newRig(t, false)
	rig.control.StartErr = errors.New("access denied")

	res := rig.run(context.Background(), "C:")

	assert.Assert(t, res.Err.Stage == StateServiceEnsured)
	assert.Assert(t, errors.Is(res.Failure(), servicestate.ErrServiceUnavailable))
	assert.Assert(t, rig.provider.creates == 0)
	// start failed, so there is nothing to stop
	assert.EqualString(t, strings.Join(rig.control.Calls, ", "), "start VSS")
}

func TestDeleteFailureIsWarningOnly(t *testing.T) {
	rig := newRig(t, false)
	rig.provider.deleteErr = errors.New("provider busy")

	res := rig.run(context.Background(), "C:")

	assert.EqualString(t, res.State.String(), "Done")
	assert.Assert(t, res.ExitCode() == 0)
	// exactly one attempt
	assert.Assert(t, rig.provider.deletes == 1)
	assert.Assert(t, !res.HasReached(StateSnapshotDeleted))
	assert.Assert(t, res.HasReached(StateServiceRestored))

	assert.Assert(t, len(res.Warnings) == 1)
	assert.Assert(t, res.Warnings[0].Stage == StateSnapshotDeleted)
	assert.Assert(t, strings.Contains(res.Warnings[0].String(), `vssadmin delete shadows /Shadow={f2bd1cd9-fe7c-4b3a-a0c8-5c2d1a8d8b4e}`))

	// deletion failing must not stop the service from being restored
	assert.EqualString(t, strings.Join(rig.control.Calls, ", "), "start VSS, stop VSS")
}

func TestCompensationFailureKeepsPrimaryError(t *testing.T) {
	rig := newRig(t, false)
	rig.provider.resolveErr = fssnapshot.ErrSnapshotNotFound
	rig.provider.deleteErr = errors.New("provider busy")
	rig.control.StopErr = errors.New("access denied")

	res := rig.run(context.Background(), "C:")

	assert.Assert(t, errors.Is(res.Failure(), fssnapshot.ErrSnapshotNotFound))
	assert.Assert(t, len(res.Warnings) == 2)
	// reverse order of acquisition
	assert.Assert(t, res.Warnings[0].Stage == StateSnapshotDeleted)
	assert.Assert(t, res.Warnings[1].Stage == StateServiceRestored)
}

func TestPartialSuccess(t *testing.T) {
	rig := newRig(t, true)
	assert.Assert(t, os.Remove(filepath.Join(rig.provider.root, "Windows", "System32", "config", "SAM")) == nil)

	res := rig.run(context.Background(), "C:")

	assert.EqualString(t, res.State.String(), "Done")
	assert.Assert(t, res.Counts() == Counts{Copied: 1, Skipped: 2})
	assert.Assert(t, !res.Succeeded())
	assert.Assert(t, res.Partial())
	assert.Assert(t, res.ExitCode() == 2)
}

func TestInvalidVolumeHasNoSideEffects(t *testing.T) {
	rig := newRig(t, false)

	res := rig.run(context.Background(), "not a volume")

	assert.Assert(t, res.Err.Stage == StateSnapshotCreated)
	assert.Assert(t, rig.provider.creates == 0)
	assert.Assert(t, len(rig.control.Calls) == 0)
}

func TestCanceledBeforeStart(t *testing.T) {
	rig := newRig(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := rig.run(ctx, "C:")

	assert.Assert(t, res.Err.Stage == StateServiceEnsured)
	assert.Assert(t, errors.Is(res.Failure(), context.Canceled))
	assert.Assert(t, len(rig.control.Calls) == 0)
}

func TestCanceledMidRunStillReleases(t *testing.T) {
	rig := newRig(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := rig.orch.WithSnapshot(ctx, "C:", func(ctx context.Context, root string) error {
		cancel()
		return ctx.Err()
	})

	assert.Assert(t, res.Err.Stage == StateFilesCopied)
	assert.Assert(t, rig.provider.deletes == 1)
	assert.EqualString(t, strings.Join(rig.control.Calls, ", "), "start VSS, stop VSS")
}

func TestWithSnapshotSeesSnapshotRoot(t *testing.T) {
	rig := newRig(t, true)

	seenRoot := ""
	res := rig.orch.WithSnapshot(context.Background(), "C:", func(_ context.Context, root string) error {
		seenRoot = root
		return nil
	})

	assert.EqualString(t, res.State.String(), "Done")
	assert.EqualString(t, seenRoot, rig.provider.root)
	assert.Assert(t, rig.provider.deletes == 1)
}

func TestConcurrentRunOnSameVolumeIsRejected(t *testing.T) {
	rig := newRig(t, true)

	inCreate := make(chan struct{})
	proceed := make(chan struct{})
	rig.provider.createHook = func() {
		close(inCreate)
		<-proceed
	}

	firstDone := make(chan *RunResult)
	go func() {
		firstDone <- rig.run(context.Background(), "E:")
	}()

	<-inCreate

	second := newRig(t, true)
	secondRes := second.run(context.Background(), "e")

	assert.Assert(t, errors.Is(secondRes.Failure(), ErrRunInProgress))
	assert.Assert(t, second.provider.creates == 0)

	close(proceed)

	firstRes := <-firstDone
	assert.EqualString(t, firstRes.State.String(), "Done")

	// lock is released afterwards
	third := newRig(t, true)
	assert.EqualString(t, third.run(context.Background(), "E:").State.String(), "Done")
}
