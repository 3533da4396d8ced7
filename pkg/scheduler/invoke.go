package scheduler

// Invoke is one pending call to a named function. The completion channel is
// created with the invoke and handed to the ResponseRegistry once a function
// process picks the invoke up.
type Invoke struct {
	FunctionName string
	RequestID    string
	Payload      []byte

	resp chan *Response
}

// Response carries the bytes a function process posted back for one request.
// FunctionError is non-empty when the process reported the invocation as
// failed instead of returning a result.
type Response struct {
	Payload       []byte
	FunctionError string
}

// NewInvoke builds an invoke together with the receive side of its completion
// channel. The caller blocks on the returned channel until the function's
// response is resolved; the channel is buffered so resolving never blocks.
func NewInvoke(functionName, requestID string, payload []byte) (*Invoke, <-chan *Response) {
	inv := &Invoke{
		FunctionName: functionName,
		RequestID:    requestID,
		Payload:      payload,
		resp:         make(chan *Response, 1),
	}
	return inv, inv.resp
}
