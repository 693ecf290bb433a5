package cbv

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

var (
	// ErrImproperlyConfigured is the cause of panics from views which are
	// missing required configuration.
	ErrImproperlyConfigured = errors.New("improperly configured")

	// ErrNotFound is returned when a requested object doesn't exist.
	ErrNotFound = errors.New("not found")
)

// Response is the result of a view. It's fully rendered before it's written.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewResponse returns a response with the given status, content type, and body.
func NewResponse(code int, contentType string, body []byte) *Response {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &Response{
		StatusCode: code,
		Header:     header,
		Body:       body,
	}
}

// NotFound returns a plain text 404 response describing err.
func NotFound(err error) *Response {
	return NewResponse(http.StatusNotFound, "text/plain; charset=utf-8", []byte(err.Error()+"\n"))
}

// ServerError returns a plain text 500 response describing x.
func ServerError(x any) *Response {
	return NewResponse(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte(fmt.Sprintf("internal server error: %v\n", x)))
}

func (r *Response) String() string {
	return fmt.Sprintf("<Response status_code=%d, %q>", r.StatusCode, r.Header.Get("Content-Type"))
}

// Send writes the response to w.
func (r *Response) Send(w http.ResponseWriter) error {
	for k, vs := range r.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if w.Header().Get("Content-Length") == "" {
		w.Header().Set("Content-Length", strconv.Itoa(len(r.Body)))
	}

	code := r.StatusCode
	if code == 0 {
		code = http.StatusOK
	}
	w.WriteHeader(code)

	if _, err := w.Write(r.Body); err != nil {
		return fmt.Errorf("write response body: %w", err)
	}
	return nil
}
