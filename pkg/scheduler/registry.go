package scheduler

import (
	"fmt"
	"sync"
)

// RequestRegistry maps function names to their invoke queues. A name is
// present exactly while a process for it is running or being started, so the
// check-and-insert in Upsert is the single point that prevents double spawns.
type RequestRegistry struct {
	serverAddr string
	mu         sync.Mutex
	queues     map[string]*Queue
}

func NewRequestRegistry(serverAddr string) *RequestRegistry {
	return &RequestRegistry{
		serverAddr: serverAddr,
		queues:     make(map[string]*Queue),
	}
}

// Upsert queues the invoke under its function name. When the name was absent
// it returns the function's runtime API address and true, signaling that a
// process must be started; otherwise the invoke joined the existing queue and
// started is false. Presence check and insertion happen under one lock.
func (r *RequestRegistry) Upsert(inv *Invoke) (runtimeAPI string, started bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := inv.FunctionName
	if q, ok := r.queues[name]; ok {
		q.Push(inv)
		return "", false
	}

	q := NewQueue()
	q.Push(inv)
	r.queues[name] = q

	return fmt.Sprintf("%s/%s", r.serverAddr, name), true
}

// Pop returns the oldest queued invoke for the named function, or nil when
// the function is unknown or has nothing pending.
func (r *RequestRegistry) Pop(functionName string) *Invoke {
	r.mu.Lock()
	q, ok := r.queues[functionName]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return q.Pop()
}

// Clean drops the function's entry entirely. Called after its process died;
// the next invoke for the name starts a fresh process.
func (r *RequestRegistry) Clean(functionName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queues, functionName)
}
