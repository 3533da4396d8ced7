package scheduler

import "sync"

// ResponseRegistry maps request IDs to single-use completion handles. An
// entry is inserted when a process picks up the invoke and removed when the
// process posts the response, so a duplicate or stale delivery finds nothing.
type ResponseRegistry struct {
	mu      sync.Mutex
	pending map[string]chan<- *Response
}

func NewResponseRegistry() *ResponseRegistry {
	return &ResponseRegistry{pending: make(map[string]chan<- *Response)}
}

// Push stores the completion handle for the request ID, silently overwriting
// an existing entry. Request IDs are expected to be unique upstream.
func (r *ResponseRegistry) Push(requestID string, resp chan<- *Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[requestID] = resp
}

// Pop removes and returns the completion handle for the request ID, or nil
// when no caller is waiting on it.
func (r *ResponseRegistry) Pop(requestID string) chan<- *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.pending[requestID]
	if !ok {
		return nil
	}
	delete(r.pending, requestID)
	return resp
}
