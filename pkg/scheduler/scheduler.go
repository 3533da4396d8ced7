package scheduler

import (
	"context"
	"log/slog"
)

const (
	submitBuffer = 100
	diedBuffer   = 10
)

// Launcher starts and supervises a single function process. Launch blocks
// until the process is gone: on a natural exit it sends the function name on
// died, on ctx cancellation it kills the process and sends nothing. A spawn
// failure is reported through the returned error.
type Launcher interface {
	Launch(ctx context.Context, functionName, runtimeAPI string, died chan<- string) error
}

// Scheduler multiplexes invoke submissions across function processes. It
// lazily starts one process per function name and garbage-collects the
// function's queue when that process dies.
type Scheduler struct {
	requests  *RequestRegistry
	responses *ResponseRegistry
	launcher  Launcher
	logger    *slog.Logger

	submitCh chan *Invoke
	diedCh   chan string
}

// New builds a scheduler that composes per-function runtime API addresses
// from serverAddr and starts processes through launcher.
func New(serverAddr string, launcher Launcher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		requests:  NewRequestRegistry(serverAddr),
		responses: NewResponseRegistry(),
		launcher:  launcher,
		logger:    logger,
		submitCh:  make(chan *Invoke, submitBuffer),
		diedCh:    make(chan string, diedBuffer),
	}
}

// Submit hands an invoke to the scheduler loop. It is fire-and-forget: the
// caller blocks on the invoke's completion channel, not on the process start.
func (s *Scheduler) Submit(ctx context.Context, inv *Invoke) error {
	select {
	case s.submitCh <- inv:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the oldest pending invoke for the named function, or nil when
// nothing is queued. Ownership of the completion handle moves to the response
// registry so the eventual response can find its way back to the caller.
func (s *Scheduler) Next(functionName string) *Invoke {
	inv := s.requests.Pop(functionName)
	if inv == nil {
		return nil
	}
	s.responses.Push(inv.RequestID, inv.resp)
	return inv
}

// Resolve delivers a response to whichever caller is blocked on the request
// ID. Unknown IDs are a no-op: the caller either never existed or was already
// answered, and a second delivery must not resolve anything.
func (s *Scheduler) Resolve(requestID string, resp *Response) {
	ch := s.responses.Pop(requestID)
	if ch == nil {
		return
	}
	ch <- resp
}

// Run consumes submissions and death notifications until ctx is canceled.
// Process supervisors watch the same ctx on their own, so shutdown here only
// stops the event loop.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case inv := <-s.submitCh:
			if runtimeAPI, started := s.requests.Upsert(inv); started {
				go s.launch(ctx, inv.FunctionName, runtimeAPI)
			}
		case name := <-s.diedCh:
			s.logger.Debug("cleaning up dead function", "function", name)
			s.requests.Clean(name)
		case <-ctx.Done():
			s.logger.Info("terminating lambda scheduler")
			return nil
		}
	}
}

func (s *Scheduler) launch(ctx context.Context, name, runtimeAPI string) {
	if err := s.launcher.Launch(ctx, name, runtimeAPI, s.diedCh); err != nil {
		s.logger.Error("failed to run function process", "function", name, "error", err)
		// Treat the failed spawn like a death so queued invokes for this
		// name can trigger a fresh start instead of being stranded.
		select {
		case s.diedCh <- name:
		case <-ctx.Done():
		}
	}
}
