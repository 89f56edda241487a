package workers

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/contract"
	"match-chat/errors"
	"sync"
	"time"
)

// maxRestartDelay caps the backoff between two restarts of a crashing worker.
const maxRestartDelay = 30 * time.Second

// Supervisor runs the server workers (HTTP server, health monitoring, presence heartbeat),
// each in its own goroutine. A worker that panics or fails is restarted after a delay that
// doubles on every consecutive crash; a worker returning nil is done for good.
type Supervisor struct {
	Cancel          context.CancelFunc
	wg              *sync.WaitGroup
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration

	mu       sync.Mutex
	restarts map[string]int
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	return &Supervisor{
		wg:              &sync.WaitGroup{},
		log:             log,
		restartInterval: restartInterval,
		restarts:        make(map[string]int),
	}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run blocks until every worker has returned.
// Cancelling the parent context or calling Stop ends all of them.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

// Start runs a single worker under supervision.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.supervise(ctx, contract.GetWorkerName(worker), worker)
	}()
}

func (s *Supervisor) supervise(ctx context.Context, name string, worker contract.Worker) {
	delay := s.restartInterval
	for ctx.Err() == nil {
		err := runOnce(ctx, worker)
		switch {
		case err == nil:
			s.log.Info("Worker finished", "name", name)
			return
		case ctx.Err() != nil:
			s.log.Info("Worker stopped", "name", name, "error", err)
			return
		}

		s.log.Warn("Worker crashed, restarting", "name", name, "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		s.recordRestart(name)
		delay = min(delay*2, maxRestartDelay)
	}
	s.log.Info("Worker not restarted, context done", "name", name)
}

// runOnce turns a panic of the worker into ErrWorkerPanic.
func runOnce(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return worker.Run(ctx)
}

func (s *Supervisor) recordRestart(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restarts[name]++
}

// Restarts returns how many times each worker has been restarted so far.
func (s *Supervisor) Restarts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	restarts := make(map[string]int, len(s.restarts))
	for name, n := range s.restarts {
		restarts[name] = n
	}
	return restarts
}

// Stop cancels every supervised worker, Run returns once they are all done.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
