//go:build windows

package servicestate

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

func PlatformControl() Control {
	return &scmControl{}
}

// talks to the Service Control Manager
type scmControl struct{}

func (s *scmControl) IsRunning(_ context.Context, name string) (bool, error) {
	var running bool

	err := withService(name, func(service *mgr.Service) error {
		status, err := service.Query()
		if err != nil {
			return err
		}

		running = status.State == svc.Running

		return nil
	})

	return running, err
}

func (s *scmControl) Start(_ context.Context, name string) error {
	return withService(name, func(service *mgr.Service) error {
		return service.Start()
	})
}

func (s *scmControl) Stop(ctx context.Context, name string) error {
	return withService(name, func(service *mgr.Service) error {
		status, err := service.Control(svc.Stop)
		if err != nil {
			return err
		}

		// stopping is asynchronous. wait a bit so callers can trust the state afterwards.
		deadline := time.Now().Add(10 * time.Second)

		for status.State != svc.Stopped {
			if time.Now().After(deadline) {
				return fmt.Errorf("timed out waiting for %s to stop (state %d)", name, status.State)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(250 * time.Millisecond):
			}

			status, err = service.Query()
			if err != nil {
				return err
			}
		}

		return nil
	})
}

func withService(name string, fn func(*mgr.Service) error) error {
	manager, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect to service manager: %w", err)
	}
	defer func() { _ = manager.Disconnect() }()

	service, err := manager.OpenService(name)
	if err != nil {
		return fmt.Errorf("open service %s: %w", name, err)
	}
	defer service.Close()

	return fn(service)
}
