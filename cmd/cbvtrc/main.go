// cbvtrc runs a demo bookstore behind the call-tracing toolbar, and inspects
// the requests traced by a running instance.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

func main() {
	var (
		ctx    = context.Background()
		stdin  = os.Stdin
		stdout = os.Stdout
		stderr = os.Stderr
		args   = os.Args[1:]
	)
	err := exec(ctx, stdin, stdout, stderr, args)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.As(err, &(run.SignalError{})):
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func exec(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) (err error) {
	rootConfig := &rootConfig{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	rootFlags := ff.NewFlagSet("cbvtrc")
	rootConfig.registerBaseFlags(rootFlags)

	rootCommand := &ff.Command{
		Name:      "cbvtrc",
		ShortHelp: "trace the calls made by class-based views",
		Flags:     rootFlags,
	}

	// Config for `cbvtrc serve`.
	serveConfig := &serveConfig{rootConfig: rootConfig}
	serveFlags := ff.NewFlagSet("serve").SetParent(rootFlags)
	serveConfig.register(serveFlags)
	serveCommand := &ff.Command{
		Name:      "serve",
		ShortHelp: "run the demo bookstore with the toolbar enabled",
		LongHelp:  "Serve the demo bookstore, the traced request browser, the request stream, and metrics.",
		Flags:     serveFlags,
		Exec:      serveConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, serveCommand)

	// Config for `cbvtrc inspect`.
	inspectConfig := &inspectConfig{rootConfig: rootConfig}
	inspectFlags := ff.NewFlagSet("inspect").SetParent(rootFlags)
	inspectConfig.register(inspectFlags)
	inspectCommand := &ff.Command{
		Name:      "inspect",
		ShortHelp: "search or stream traced requests from a running instance",
		LongHelp:  "Fetch traced requests that match the provided query flags, or stream them with --follow.",
		Flags:     inspectFlags,
		Exec:      inspectConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, inspectCommand)

	// Print help when appropriate.
	showHelp := true
	defer func() {
		errHelp := errors.Is(err, ff.ErrHelp) || errors.Is(err, ff.ErrNoExec)
		if showHelp || errHelp {
			fmt.Fprintf(stderr, "\n%s\n", ffhelp.Command(rootCommand))
		}
		if errHelp {
			err = nil
		}
	}()

	// Initial parsing.
	if err := rootCommand.Parse(args, ff.WithEnvVarPrefix("CBVTRC")); err != nil {
		return err
	}

	// Validation and set-up.
	{
		var infodst, debugdst io.Writer
		switch rootConfig.logLevel {
		case "n", "none":
			infodst, debugdst = io.Discard, io.Discard
		case "i", "info":
			infodst, debugdst = stderr, io.Discard
		case "d", "debug":
			infodst, debugdst = stderr, stderr
		default:
			return fmt.Errorf("invalid log level %q", rootConfig.logLevel)
		}
		rootConfig.info = log.New(infodst, "", 0)
		rootConfig.debug = log.New(debugdst, "[DEBUG] ", log.Lmsgprefix)
	}

	// Run errors shouldn't show help by default.
	showHelp = false

	// Run the selected command.
	return rootCommand.Run(ctx)
}

// normalizeURI returns the URI with a scheme, and with path as its path if
// the URI doesn't already have one. Unix socket URIs are left alone.
func normalizeURI(uri, path string) (string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", fmt.Errorf("empty URI")
	}

	if strings.HasPrefix(uri, "unix://") {
		return uri, nil
	}

	if !strings.HasPrefix(uri, "http") {
		uri = "http://" + uri
	}

	u, err := url.ParseRequestURI(uri)
	if err != nil {
		return "", fmt.Errorf("%s: invalid: %w", uri, err)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = path
	}

	return u.String(), nil
}
