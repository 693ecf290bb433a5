package cbvweb

import (
	"bytes"
	"net/http"
)

// interceptor buffers a response so the panel can be inserted before it's
// sent. If the handler flushes, buffering stops, and everything written so far
// and afterwards goes straight to the client.
type interceptor struct {
	http.ResponseWriter

	flush     func()
	code      int
	buf       bytes.Buffer
	n         int
	streaming bool
}

func newInterceptor(w http.ResponseWriter) *interceptor {
	flush := func() {}
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	return &interceptor{ResponseWriter: w, flush: flush}
}

func (i *interceptor) WriteHeader(code int) {
	if i.code == 0 {
		i.code = code
	}
}

func (i *interceptor) Write(p []byte) (int, error) {
	if i.code == 0 {
		i.code = http.StatusOK
	}
	if i.streaming {
		n, err := i.ResponseWriter.Write(p)
		i.n += n
		return n, err
	}
	n, err := i.buf.Write(p)
	i.n += n
	return n, err
}

// Flush sends the buffered response and switches to streaming.
func (i *interceptor) Flush() {
	if !i.streaming {
		i.streaming = true
		i.ResponseWriter.WriteHeader(i.Code())
		i.ResponseWriter.Write(i.buf.Bytes())
		i.buf.Reset()
	}
	i.flush()
}

func (i *interceptor) Unwrap() http.ResponseWriter {
	return i.ResponseWriter
}

func (i *interceptor) Code() int {
	if i.code == 0 {
		return http.StatusOK
	}
	return i.code
}

func (i *interceptor) Written() int {
	return i.n
}

// Streaming reports whether the response has already been sent.
func (i *interceptor) Streaming() bool {
	return i.streaming
}

// Body returns the buffered response body.
func (i *interceptor) Body() []byte {
	return i.buf.Bytes()
}
