//go:build windows

package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/eventlog"
)

type windowsService struct {
	cfg *AppConfig
}

func (m *windowsService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (ssec bool, errno uint32) {
	const cmdsAccepted = svc.AcceptStop | svc.AcceptShutdown

	changes <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- runApplication(ctx, m.cfg)
	}()

	changes <- svc.Status{State: svc.Running, Accepts: cmdsAccepted}
	slog.Info("windows service running")

loop:
	for {
		select {
		case c := <-r:
			switch c.Cmd {
			case svc.Interrogate:
				changes <- c.CurrentStatus
			case svc.Stop, svc.Shutdown:
				slog.Info("service stop requested")
				changes <- svc.Status{State: svc.StopPending}
				cancel()
				// Let the round in flight commit before reporting stopped.
				if err := <-errChan; err != nil {
					slog.Error("application stopped with error", "error", err)
				}
				break loop
			default:
				slog.Warn("unexpected service control request", "cmd", c.Cmd)
			}
		case err := <-errChan:
			if err != nil {
				slog.Error("application stopped with error", "error", err)
				changes <- svc.Status{State: svc.Stopped}
				return true, 1
			}
			break loop
		}
	}

	changes <- svc.Status{State: svc.Stopped}
	return false, 0
}

func runAsService(name string, cfg *AppConfig) error {
	elog, err := eventlog.Open(name)
	if err != nil {
		return err
	}
	defer elog.Close()

	elog.Info(1, fmt.Sprintf("starting service %s", name))

	if err := svc.Run(name, &windowsService{cfg: cfg}); err != nil {
		elog.Error(1, fmt.Sprintf("service %s failed: %v", name, err))
		return err
	}

	elog.Info(1, fmt.Sprintf("service %s stopped", name))
	return nil
}

func isWindowsService() (bool, error) {
	return svc.IsWindowsService()
}
