package cbvweb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/peterbourgon/cbvtrc/cbvstore"
)

// Client implements [cbvstore.Searcher] by querying a remote server.
type Client struct {
	client HTTPClient
	uri    string
}

var _ cbvstore.Searcher = (*Client)(nil)

// NewClient returns a client using the HTTP client to query the server at the
// URI. URIs without a scheme are assumed to be HTTP.
func NewClient(client HTTPClient, uri string) *Client {
	if !strings.Contains(uri, "://") {
		uri = "http://" + uri
	}
	return &Client{
		client: client,
		uri:    uri,
	}
}

// Search implements [cbvstore.Searcher].
func (c *Client) Search(ctx context.Context, req *cbvstore.SearchRequest) (*cbvstore.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.uri, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}

	httpReq.Header.Set("content-type", "application/json; charset=utf-8")
	httpReq.Header.Set("accept", "application/json")

	httpRes, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute HTTP request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, httpRes.Body)
		httpRes.Body.Close()
	}()

	if httpRes.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("read HTTP response: server gave HTTP %d (%s)", httpRes.StatusCode, http.StatusText(httpRes.StatusCode))
	}

	var data SearchData
	if err := json.NewDecoder(httpRes.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return &data.Response, nil
}
