package servicestate

import (
	"context"
	"sync"
)

// FakeControl is an in-memory service manager for tests
type FakeControl struct {
	Running  map[string]bool
	QueryErr error
	StartErr error
	StopErr  error
	Calls    []string // "start VSS", "stop VSS"

	mu sync.Mutex
}

func NewFakeControl(running map[string]bool) *FakeControl {
	if running == nil {
		running = map[string]bool{}
	}

	return &FakeControl{Running: running}
}

func (f *FakeControl) IsRunning(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.QueryErr != nil {
		return false, f.QueryErr
	}

	return f.Running[name], nil
}

func (f *FakeControl) Start(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, "start "+name)

	if f.StartErr != nil {
		return f.StartErr
	}

	f.Running[name] = true

	return nil
}

func (f *FakeControl) Stop(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, "stop "+name)

	if f.StopErr != nil {
		return f.StopErr
	}

	f.Running[name] = false

	return nil
}
