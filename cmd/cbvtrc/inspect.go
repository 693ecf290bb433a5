package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/peterbourgon/cbvtrc"
	"github.com/peterbourgon/cbvtrc/cbvstore"
	"github.com/peterbourgon/cbvtrc/cbvweb"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/peterbourgon/unixtransport"
)

type inspectConfig struct {
	*rootConfig

	flags *ff.FlagSet

	uri           string
	output        string
	ids           []string
	route         string
	query         string
	minDuration   time.Duration
	isErrored     bool
	limit         int
	follow        bool
	retryInterval time.Duration
}

func (cfg *inspectConfig) register(fs *ff.FlagSet) {
	cfg.flags = fs
	fs.AddFlag(ff.FlagConfig{ShortName: 'u', LongName: "uri" /*            */, Value: ffval.NewValueDefault(&cfg.uri, "localhost:8080") /*           */, Usage: "instance URI, e.g. 'localhost:8080' or 'unix:///tmp/cbvtrc.sock'", Placeholder: "URI"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'o', LongName: "output" /*         */, Value: ffval.NewEnum(&cfg.output, "ndjson", "prettyjson") /*          */, Usage: "output format: ndjson, prettyjson", Placeholder: "FORMAT"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'i', LongName: "id" /*             */, Value: ffval.NewUniqueList(&cfg.ids) /*                              */, Usage: "request ID (repeatable)", Placeholder: "ID"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'r', LongName: "route" /*          */, Value: ffval.NewValue(&cfg.route) /*                                 */, Usage: "route name, or view path for unnamed routes"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'q', LongName: "query" /*          */, Value: ffval.NewValue(&cfg.query) /*                                 */, Usage: "regexp matched against path, view, and call names", Placeholder: "REGEXP"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'd', LongName: "min-duration" /*   */, Value: ffval.NewValue(&cfg.minDuration) /*                           */, Usage: "only requests at least this slow"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'e', LongName: "errored" /*        */, Value: ffval.NewValue(&cfg.isErrored) /*                             */, Usage: "only requests that failed", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 'n', LongName: "limit" /*          */, Value: ffval.NewValueDefault(&cfg.limit, cbvstore.SearchLimitDef) /* */, Usage: "maximum number of requests to return"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'f', LongName: "follow" /*         */, Value: ffval.NewValue(&cfg.follow) /*                                */, Usage: "stream requests as they're traced", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "retry-interval" /* */, Value: ffval.NewValueDefault(&cfg.retryInterval, time.Second) /*      */, Usage: "stream reconnect interval"})
}

func (cfg *inspectConfig) searchRequest() cbvstore.SearchRequest {
	req := cbvstore.SearchRequest{
		IDs:       cfg.ids,
		Route:     cfg.route,
		IsErrored: cfg.isErrored,
		Query:     cfg.query,
		Limit:     cfg.limit,
	}
	if f, ok := cfg.flags.GetFlag("min-duration"); ok && f.IsSet() {
		req.MinDuration = &cfg.minDuration
	}
	return req
}

func (cfg *inspectConfig) encoder() *json.Encoder {
	enc := json.NewEncoder(cfg.stdout)
	if cfg.output == "prettyjson" {
		enc.SetIndent("", "    ")
	}
	return enc
}

func (cfg *inspectConfig) Exec(ctx context.Context, args []string) error {
	unixtransport.Register(http.DefaultTransport.(*http.Transport))

	req := cfg.searchRequest()
	cfg.debug.Printf("request: %s", req)

	if cfg.follow {
		return cfg.stream(ctx, req)
	}
	return cfg.search(ctx, req)
}

func (cfg *inspectConfig) search(ctx context.Context, req cbvstore.SearchRequest) error {
	uri, err := normalizeURI(cfg.uri, tracesPath)
	if err != nil {
		return err
	}

	cfg.debug.Printf("search: %s", uri)

	res, err := cbvweb.NewClient(http.DefaultClient, uri).Search(ctx, &req)
	if err != nil {
		return fmt.Errorf("execute search: %w", err)
	}

	cfg.debug.Printf("response: total %d, matched %d, selected %d", res.Total, res.Matched, len(res.Selected))
	cfg.debug.Printf("response: duration %s", res.Duration)
	for _, problem := range res.Problems {
		cfg.info.Printf("problem: %s", problem)
	}

	enc := cfg.encoder()
	for _, md := range res.Selected {
		if err := enc.Encode(md); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	return nil
}

func (cfg *inspectConfig) stream(ctx context.Context, req cbvstore.SearchRequest) error {
	uri, err := normalizeURI(cfg.uri, streamPath)
	if err != nil {
		return err
	}

	cfg.info.Printf("streaming from %s", uri)

	var (
		ch     = make(chan *cbvtrc.RequestMetadata)
		client = &cbvweb.StreamClient{
			URI:           uri,
			RetryInterval: cfg.retryInterval,
			Request:       req,
		}
		g run.Group
	)

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return client.Stream(ctx, ch)
		}, func(error) {
			cancel()
		})
	}

	{
		ctx, cancel := context.WithCancel(ctx)
		enc := cfg.encoder()
		g.Add(func() error {
			for {
				select {
				case md := <-ch:
					if err := enc.Encode(md); err != nil {
						return fmt.Errorf("marshal request: %w", err)
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}, func(error) {
			cancel()
		})
	}

	{
		g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	}

	return g.Run()
}
