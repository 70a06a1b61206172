package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ananya-mh/searchload/internal/logging"
	"github.com/ananya-mh/searchload/internal/searchsvc"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	addr      string
	products  int
	logLevel  string
	logFormat string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func parseFlags(args []string, out io.Writer) (options, error) {
	fs := pflag.NewFlagSet("searchd", pflag.ContinueOnError)
	fs.SetOutput(out)
	var opts options
	fs.StringVar(&opts.addr, "addr", ":8080", "Listen address")
	fs.IntVar(&opts.products, "products", searchsvc.DefaultProductCount, "Number of products to generate")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	fs.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.products < 0 {
		return options{}, fmt.Errorf("products must be >= 0, got %d", opts.products)
	}
	return opts, nil
}

// run serves until ctx is cancelled. ready, if non-nil, receives the bound
// address once the listener is up.
func run(ctx context.Context, args []string, stderr io.Writer, ready chan<- string) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logger := logging.SetupWriter(stderr, opts.logLevel, opts.logFormat)

	logger.Info("generating products", "count", opts.products)
	store := searchsvc.NewStore(opts.products)
	logger.Info("generated products", "count", store.Len())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := searchsvc.NewHandler(store, searchsvc.NewMetrics(reg))

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.addr, err)
	}
	server := &http.Server{
		Handler:           handler.Routes(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("search service listening", "addr", ln.Addr().String())
		if ready != nil {
			ready <- ln.Addr().String()
		}
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("search service stopped")
	return nil
}
