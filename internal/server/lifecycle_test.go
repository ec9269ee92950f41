package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

// blockingService records start/stop order and blocks until stopped.
type blockingService struct {
	name    string
	order   *[]string
	mu      *sync.Mutex
	started chan struct{}
	quit    chan struct{}
	once    sync.Once
}

func newBlockingService(name string, order *[]string, mu *sync.Mutex) *blockingService {
	return &blockingService{
		name:    name,
		order:   order,
		mu:      mu,
		started: make(chan struct{}),
		quit:    make(chan struct{}),
	}
}

func (s *blockingService) Start() error {
	s.mu.Lock()
	*s.order = append(*s.order, "start:"+s.name)
	s.mu.Unlock()
	close(s.started)
	<-s.quit
	return nil
}

func (s *blockingService) Stop() {
	s.mu.Lock()
	*s.order = append(*s.order, "stop:"+s.name)
	s.mu.Unlock()
	s.once.Do(func() { close(s.quit) })
}

// failingService fails on start and records whether it was stopped.
type failingService struct {
	mu      sync.Mutex
	stopped bool
}

func (s *failingService) Start() error { return assert.AnError }

func (s *failingService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *failingService) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func TestLifecycle_StopsInReverseOrder(t *testing.T) {
	var (
		order []string
		mu    sync.Mutex
	)
	a := newBlockingService("a", &order, &mu)
	b := newBlockingService("b", &order, &mu)

	lc := NewLifecycle(zaptest.NewLogger(t))
	lc.Add("a", a)
	lc.Add("b", b)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- lc.Run(ctx) }()

	<-a.started
	<-b.started
	cancel()

	select {
	case err := <-runErr:
		assert.NoError(t, err, "a cancelled run is a clean shutdown")
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle did not shut down")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "stop:b", order[len(order)-2])
	assert.Equal(t, "stop:a", order[len(order)-1])
}

func TestLifecycle_ServiceErrorStopsEverything(t *testing.T) {
	var (
		order []string
		mu    sync.Mutex
	)
	healthy := newBlockingService("healthy", &order, &mu)
	broken := &failingService{}

	lc := NewLifecycle(zaptest.NewLogger(t))
	lc.Add("healthy", healthy)
	lc.Add("broken", broken)

	runErr := make(chan error, 1)
	go func() { runErr <- lc.Run(context.Background()) }()

	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "broken")
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle did not shut down after service error")
	}

	assert.True(t, broken.wasStopped())
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, order, "stop:healthy")
}

func TestLifecycle_RunWithNoServices(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, lc.Run(ctx))
}
