package cbvweb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bernerdschaefer/eventsource"
	"github.com/peterbourgon/cbvtrc"
	"github.com/peterbourgon/cbvtrc/cbvstore"
	"github.com/peterbourgon/cbvtrc/internal/cbvpubsub"
)

// Stream publishes finished requests to subscribers.
type Stream struct {
	broker *cbvpubsub.Broker[*cbvtrc.RequestMetadata]
}

// StreamStats describe what happened to requests published during a
// subscription.
type StreamStats = cbvpubsub.Stats

// NewStream returns a stream with no subscribers.
func NewStream() *Stream {
	return &Stream{
		broker: cbvpubsub.NewBroker[*cbvtrc.RequestMetadata](),
	}
}

// Publish the metadata to every subscriber whose request allows it. Slow
// subscribers miss values rather than blocking the publisher.
func (s *Stream) Publish(md *cbvtrc.RequestMetadata) {
	s.broker.Publish(md)
}

// Subscribe ch to published requests matching req, which may be nil. It
// blocks until the context is canceled.
func (s *Stream) Subscribe(ctx context.Context, req *cbvstore.SearchRequest, ch chan<- *cbvtrc.RequestMetadata) (StreamStats, error) {
	var allow func(*cbvtrc.RequestMetadata) bool
	if req != nil {
		req.Normalize()
		allow = req.Allow
	}
	return s.broker.Subscribe(ctx, allow, ch)
}

// Subscribers returns the number of active subscribers.
func (s *Stream) Subscribers() int {
	return s.broker.Subscribers()
}

//
//
//

// StreamServer serves published requests as server-sent events.
type StreamServer struct {
	stream *Stream
	logger *log.Logger
}

// NewStreamServer returns a server for the stream. The logger is optional.
func NewStreamServer(s *Stream, logger *log.Logger) *StreamServer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &StreamServer{
		stream: s,
		logger: logger,
	}
}

func (s *StreamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}

	if !requestExplicitlyAccepts(r, "text/event-stream") {
		http.Error(w, "request must Accept: text/event-stream", http.StatusPreconditionRequired)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		buf  = parseRange(r.URL.Query().Get("buf"), strconv.Atoi, 1, 10, 1000)
		c    = make(chan *cbvtrc.RequestMetadata, buf)
		req  = parseSearchRequest(r.URL.Query())
		done = make(chan struct{})
	)

	go func() {
		defer close(done)
		stats, err := s.stream.Subscribe(ctx, &req, c)
		switch {
		case errors.Is(err, context.Canceled):
			s.logger.Printf("stream %s: unsubscribed: %s", req, stats)
		default:
			s.logger.Printf("stream %s: unsubscribed: %s (%v)", req, stats, err)
		}
	}()

	defer func() {
		cancel()
		<-done
	}()

	eventsource.Handler(func(lastId string, encoder *eventsource.Encoder, stop <-chan bool) {
		var seq uint64
		for {
			select {
			case md := <-c:
				seq++
				data, err := json.Marshal(md)
				if err != nil {
					s.logger.Printf("stream: marshal request %s: %v", md.ID, err)
					continue
				}
				if err := encoder.Encode(eventsource.Event{
					Type: "request",
					ID:   strconv.FormatUint(seq, 10),
					Data: data,
				}); err != nil {
					s.logger.Printf("stream: encode request %s: %v", md.ID, err)
					return
				}

			case <-ctx.Done():
				return

			case <-stop:
				return
			}
		}
	}).ServeHTTP(w, r)
}

//
//
//

// StreamClient subscribes to a remote stream server.
type StreamClient struct {
	// HTTPClient used to connect. Optional. By default, http.DefaultClient.
	HTTPClient HTTPClient

	// URI of the stream server. Required.
	URI string

	// RetryInterval between reconnect attempts. Optional. By default, 1s.
	RetryInterval time.Duration

	// Request filters the streamed requests. Optional.
	Request cbvstore.SearchRequest
}

// Stream sends requests received from the server to ch, until the context is
// canceled. Connection errors and 5xx responses are retried after the retry
// interval. Other responses which aren't an event stream are fatal.
func (c *StreamClient) Stream(ctx context.Context, ch chan<- *cbvtrc.RequestMetadata) error {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Second
	}

	uri, err := url.Parse(c.URI)
	if err != nil {
		return fmt.Errorf("parse URI: %w", err)
	}

	query := uri.Query()
	for k, vs := range c.Request.QueryValues() {
		query[k] = vs
	}
	uri.RawQuery = query.Encode()

	// Every connection is bound to ctx, so cancelation closes the response
	// body and unblocks the decoder, without touching it from elsewhere.
	var lastEventID string
	for {
		err := c.connect(ctx, uri.String(), &lastEventID, ch)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, errStreamDone):
			return nil
		case errors.Is(err, errStreamFatal):
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.RetryInterval):
		}
	}
}

var (
	errStreamDone  = errors.New("stream closed by server")
	errStreamFatal = errors.New("unrecoverable stream error")
)

// connect reads a single connection until it fails. Errors wrapping
// errStreamDone or errStreamFatal shouldn't be retried.
func (c *StreamClient) connect(ctx context.Context, uri string, lastEventID *string, ch chan<- *cbvtrc.RequestMetadata) error {
	req, err := http.NewRequestWithContext(ctx, "GET", uri, nil)
	if err != nil {
		return fmt.Errorf("%w: create HTTP request: %v", errStreamFatal, err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if *lastEventID != "" {
		req.Header.Set("Last-Event-Id", *lastEventID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("server responded %s", resp.Status)
	case resp.StatusCode == http.StatusNoContent:
		return errStreamDone
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: server responded %s", errStreamFatal, resp.Status)
	}
	if mediatype, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediatype != "text/event-stream" {
		return fmt.Errorf("%w: invalid content type %q", errStreamFatal, resp.Header.Get("Content-Type"))
	}

	dec := eventsource.NewDecoder(resp.Body)
	for {
		var ev eventsource.Event
		err := dec.Decode(&ev)
		if errors.Is(err, eventsource.ErrInvalidEncoding) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read server-sent event: %w", err)
		}

		if ev.ID != "" || ev.ResetID {
			*lastEventID = ev.ID
		}

		if ev.Type != "request" || len(ev.Data) == 0 {
			continue
		}

		var md cbvtrc.RequestMetadata
		if err := json.Unmarshal(ev.Data, &md); err != nil {
			return fmt.Errorf("%w: decode request event: %v", errStreamFatal, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch <- &md:
		}
	}
}
