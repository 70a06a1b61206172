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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ananya-mh/searchload/internal/logging"
	"github.com/ananya-mh/searchload/internal/searchproxy"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	addr        string
	target      string
	metricsAddr string
	logLevel    string
	logFormat   string
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
	fs := pflag.NewFlagSet("searchproxy", pflag.ContinueOnError)
	fs.SetOutput(out)
	var opts options
	target := os.Getenv("TARGET_URL")
	if target == "" {
		target = searchproxy.DefaultTarget
	}
	fs.StringVar(&opts.addr, "addr", ":8081", "Listen address")
	fs.StringVar(&opts.target, "target", target, "Upstream search service base URL (env TARGET_URL)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	fs.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// run proxies until ctx is cancelled. ready, if non-nil, receives the bound
// proxy address once the listener is up.
func run(ctx context.Context, args []string, stderr io.Writer, ready chan<- string) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	target, err := searchproxy.ParseTarget(opts.target)
	if err != nil {
		return err
	}

	logger := logging.SetupWriter(stderr, opts.logLevel, opts.logFormat)
	reg := prometheus.NewRegistry()
	handler := searchproxy.New(target, logging.WithComponent("proxy"), searchproxy.NewMetrics(reg))

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.addr, err)
	}
	servers := []*http.Server{{Handler: handler, ReadHeaderTimeout: 5 * time.Second}}
	listeners := []net.Listener{ln}
	if opts.metricsAddr != "" {
		mln, err := net.Listen("tcp", opts.metricsAddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listen %s: %w", opts.metricsAddr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second})
		listeners = append(listeners, mln)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		srv := srv
		ln := listeners[i]
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", ln.Addr(), err)
			}
			return nil
		})
	}
	logger.Info("search proxy listening", "addr", ln.Addr().String(), "target", target.String())
	if ready != nil {
		ready <- ln.Addr().String()
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("search proxy stopped")
	return nil
}
