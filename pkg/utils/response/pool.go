package response

import "sync"

// pool recycles Response objects across requests. Handlers that obtain a
// Response from the constructors in this package should call Release after
// the response has been written.
var pool = sync.Pool{
	New: func() interface{} {
		return new(Response)
	},
}

// Acquire returns a zeroed Response from the pool.
func Acquire() *Response {
	return pool.Get().(*Response)
}

// Release resets the Response and returns it to the pool.
// Releasing nil is a no-op.
func Release(resp *Response) {
	if resp == nil {
		return
	}
	resp.Code = 0
	resp.HTTPCode = 0
	resp.Message = ""
	resp.Data = nil
	resp.RequestID = ""
	resp.Timestamp = 0
	pool.Put(resp)
}
