// Package server starts and stops the long-running pieces of the space
// server as one unit: services start in registration order and stop in
// reverse on the first signal, service failure, or context cancellation.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component of the server. Start blocks until the
// service finishes or fails; Stop asks a running service to finish.
type Service interface {
	Start() error
	Stop()
}

// Lifecycle owns the registered services. Register everything with Add
// before calling Run; Add must not be called once Run has started.
type Lifecycle struct {
	logger   *zap.Logger
	names    []string
	services []Service
}

// NewLifecycle creates an empty Lifecycle.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a named service. Services start in the order they are added
// and stop in the reverse order.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.names = append(l.names, name)
	l.services = append(l.services, svc)
}

// Run starts every registered service and blocks until SIGINT or SIGTERM
// arrives, ctx is cancelled, or a service fails. It then stops the services
// in reverse registration order.
//
// Postcondition: Every service has been stopped; returns the first service
// failure, or nil on a clean shutdown.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	failed := make(chan error, len(l.services))
	for i, svc := range l.services {
		name := l.names[i]
		svc := svc
		go func() {
			l.logger.Info("starting service", zap.String("service", name))
			if err := svc.Start(); err != nil {
				failed <- fmt.Errorf("service %s: %w", name, err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		l.logger.Info("received signal, shutting down",
			zap.String("signal", sig.String()),
		)
	case runErr = <-failed:
		l.logger.Error("service failed, shutting down", zap.Error(runErr))
	case <-ctx.Done():
		l.logger.Info("context cancelled, shutting down")
	}

	for i := len(l.services) - 1; i >= 0; i-- {
		l.logger.Info("stopping service", zap.String("service", l.names[i]))
		l.services[i].Stop()
	}

	l.logger.Info("shutdown complete",
		zap.Int("services", len(l.services)),
		zap.Duration("uptime", time.Since(start)),
	)
	return runErr
}
