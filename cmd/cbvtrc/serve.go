package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/peterbourgon/cbvtrc/cbvstore"
	"github.com/peterbourgon/cbvtrc/cbvweb"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/peterbourgon/unixtransport/unixproxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	tracesPath = "/__cbvtrc/"
	streamPath = "/__cbvtrc/stream"
	skipHeader = "X-Cbvtrc-Skip"
)

type serveConfig struct {
	*rootConfig

	flags *ff.FlagSet

	listenAddr      string
	configFile      string
	enabled         bool
	debugCalls      bool
	docHost         string
	docVersion      string
	maxValueLen     int
	routeSize       int
	excludedMethods []string
	shutdownTimeout time.Duration
}

func (cfg *serveConfig) register(fs *ff.FlagSet) {
	cfg.flags = fs
	fs.AddFlag(ff.FlagConfig{ShortName: 'a', LongName: "listen" /*           */, Value: ffval.NewValueDefault(&cfg.listenAddr, "localhost:8080") /* */, Usage: "listen address, or unix:// socket URI", Placeholder: "ADDR"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'c', LongName: "config" /*           */, Value: ffval.NewValue(&cfg.configFile) /*                         */, Usage: "YAML toolbar config file", Placeholder: "FILE"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "enabled" /*          */, Value: ffval.NewValueDefault(&cfg.enabled, true) /*               */, Usage: "enable the toolbar"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "debug-calls" /*      */, Value: ffval.NewValue(&cfg.debugCalls) /*                         */, Usage: "log every intercepted call at debug level", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "doc-host" /*         */, Value: ffval.NewValue(&cfg.docHost) /*                            */, Usage: "framework reference docs host"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "doc-version" /*      */, Value: ffval.NewValue(&cfg.docVersion) /*                         */, Usage: "framework version used in doc links"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "max-value-len" /*    */, Value: ffval.NewValue(&cfg.maxValueLen) /*                        */, Usage: "truncate serialized values to this length (0 for no limit)"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "route-size" /*       */, Value: ffval.NewValue(&cfg.routeSize) /*                          */, Usage: "recent requests kept per route"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'x', LongName: "exclude" /*          */, Value: ffval.NewUniqueList(&cfg.excludedMethods) /*               */, Usage: "method name never logged (repeatable)", Placeholder: "METHOD"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "shutdown-timeout" /* */, Value: ffval.NewValueDefault(&cfg.shutdownTimeout, 3*time.Second) /* */, Usage: "graceful shutdown timeout"})
}

// toolbarConfig returns the config file, if any, with explicitly set flags
// applied over it.
func (cfg *serveConfig) toolbarConfig() (cbvweb.Config, error) {
	config := cbvweb.DefaultConfig()
	if cfg.configFile != "" {
		c, err := cbvweb.LoadConfig(cfg.configFile, config)
		if err != nil {
			return cbvweb.Config{}, err
		}
		config = c
		cfg.debug.Printf("loaded config from %s", cfg.configFile)
	}

	isSet := func(name string) bool {
		f, ok := cfg.flags.GetFlag(name)
		return ok && f.IsSet()
	}

	if isSet("enabled") || cfg.configFile == "" {
		config.Enabled = cfg.enabled
	}
	if isSet("debug-calls") {
		config.Debug = cfg.debugCalls
	}
	if isSet("doc-host") {
		config.DocHost = cfg.docHost
	}
	if isSet("doc-version") {
		config.DocVersion = cfg.docVersion
	}
	if isSet("max-value-len") {
		config.MaxValueLen = cfg.maxValueLen
	}
	if isSet("route-size") {
		config.RouteSize = cfg.routeSize
	}
	config.ExcludedMethods = append(config.ExcludedMethods, cfg.excludedMethods...)

	return config, nil
}

func (cfg *serveConfig) Exec(ctx context.Context, args []string) error {
	config, err := cfg.toolbarConfig()
	if err != nil {
		return fmt.Errorf("toolbar config: %w", err)
	}

	var (
		registry = prometheus.NewRegistry()
		store    = cbvstore.NewStore(cbvstore.StoreConfig{RouteSize: config.RouteSize})
		stream   = cbvweb.NewStream()
		router   = newDemoRouter()
		toolbar  = cbvweb.NewToolbar(cbvweb.ToolbarConfig{
			Config:      config,
			Resolver:    router,
			Store:       store,
			Stream:      stream,
			Metrics:     cbvweb.NewMetrics(registry),
			Logger:      cfg.info,
			DebugLogger: cfg.debug,
			ShouldProcess: func(r *http.Request) bool {
				return r.Header.Get(skipHeader) == ""
			},
		})
	)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	config = toolbar.Config()
	cfg.info.Printf("toolbar: enabled %v, debug %v", config.Enabled, config.Debug)
	cfg.debug.Printf("toolbar: doc host %q, doc version %q", config.DocHost, config.DocVersion)
	cfg.debug.Printf("toolbar: max value len %d, route size %d", config.MaxValueLen, config.RouteSize)
	cfg.debug.Printf("toolbar: excluded methods %v", config.ExcludedMethods)

	mux := http.NewServeMux()
	mux.Handle("/", toolbar.Wrap(router))
	mux.Handle(tracesPath, cbvweb.NewServer(store, cfg.debug))
	mux.Handle(streamPath, cbvweb.NewStreamServer(stream, cfg.debug))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	ln, err := unixproxy.ListenURI(ctx, cfg.listenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	cfg.info.Printf("listening on %s", cfg.listenAddr)
	cfg.info.Printf("traces at %s, stream at %s, metrics at /metrics", tracesPath, streamPath)

	var g run.Group

	{
		server := &http.Server{
			Handler:  mux,
			ErrorLog: log.New(&logWriter{Logger: cfg.debug}, "http: ", 0),
		}
		g.Add(func() error {
			return server.Serve(ln)
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				cfg.debug.Printf("shutdown: %v", err)
				server.Close()
			}
		})
	}

	{
		g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	}

	return g.Run()
}
