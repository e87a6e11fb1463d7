// Command passage is a small forward HTTP proxy. It relays plain HTTP
// requests to origin servers and tunnels HTTPS traffic via CONNECT,
// optionally gated by Basic proxy authentication.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/passage-proxy/passage/internal/auth"
	"github.com/passage-proxy/passage/internal/dialer"
	"github.com/passage-proxy/passage/internal/log"
	"github.com/passage-proxy/passage/internal/proxy"
	"github.com/passage-proxy/passage/internal/ratelimit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listen   = pflag.String("listen", "0.0.0.0:8080", "Proxy listen address")
		username = pflag.String("username", "", "Proxy username (empty disables authentication)")
		password = pflag.String("password", "", "Proxy password")
		debug    = pflag.Bool("debug", false, "Enable per-request debug logging")

		upstream = pflag.String("upstream", defaultUpstream(), "Outbound target URL: direct:// | http://[user:pass@]host:port | https://[user:pass@]host:port | socks5://[user:pass@]host:port")

		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
		upstreamTimeout    = pflag.Duration("upstream-timeout", 30*time.Second, "Timeout for an origin's response header on forwarded requests")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Timeout for reading an inbound request header and for TLS setup")
		idleTimeout        = pflag.Duration("idle-timeout", 4*time.Minute, "Timeout for idle inbound connections")
		maxConns           = pflag.Int("max-conns", 1024, "Maximum number of concurrent inbound connections (0 = unlimited)")
		bandwidthLimit     = pflag.Int64("bandwidth-limit", 0, "Per-direction bandwidth limit in bytes/s shared by all connections (0 = unlimited)")
		tcpKeepAlive       = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")

		metricsListen = pflag.String("metrics-listen", "", "Prometheus metrics listen address (e.g. 127.0.0.1:9090). Empty disables.")
		debugListen   = pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	var credentials *auth.Credentials
	switch {
	case *username != "" && *password != "":
		credentials = &auth.Credentials{Username: *username, Password: *password}
	case *username != "" || *password != "":
		return errors.New("--username and --password must be set together")
	}

	logger := log.New(*debug)

	cfg := proxy.Config{
		Credentials:        credentials,
		NegotiationTimeout: *negotiationTimeout,
		UpstreamTimeout:    *upstreamTimeout,
		IdleTimeout:        *idleTimeout,
		KeepAlive:          ka,
		Logger:             logger.Named("proxy"),
	}

	dialCfg := dialer.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: cfg.NegotiationTimeout,
		KeepAlive:          ka,
	}

	cfg.Dialer, err = dialer.New(dialCfg, *upstream)
	if err != nil {
		return fmt.Errorf("invalid --upstream: %w", err)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *metricsListen != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		cfg.Metrics = proxy.NewMetrics(registry, "passage")

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Handler: mux, ReadHeaderTimeout: cfg.NegotiationTimeout}

		lc := net.ListenConfig{}
		metricsLn, err := lc.Listen(ctx, "tcp", *metricsListen)
		if err != nil {
			return fmt.Errorf("metrics listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = metricsSrv.Close()
			_ = metricsLn.Close()
		})

		g.Go(func() error {
			if err := metricsSrv.Serve(metricsLn); err != nil {
				return fmt.Errorf("metrics serve: %w", err)
			}
			return nil
		})
		logger.Info("metrics listening", "address", *metricsListen)
	}

	if *debugListen != "" {
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{}
		debugLn, err := lc.Listen(ctx, "tcp", *debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		logger.Info("debug listening", "address", *debugListen)
	}

	ln, err := proxy.ListenTCP("tcp", *listen, ka, *maxConns)
	if err != nil {
		return fmt.Errorf("proxy listen: %w", err)
	}
	if *bandwidthLimit > 0 {
		ln = ratelimit.NewListener(ln, *bandwidthLimit, *bandwidthLimit)
	}

	srv := proxy.NewServer(ctx, cfg)
	context.AfterFunc(ctx, func() {
		_ = srv.Close()
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil {
			return fmt.Errorf("proxy serve: %w", err)
		}
		return nil
	})
	logger.Info("proxy listening", "address", *listen, "auth", credentials != nil, "upstream", *upstream)

	err = g.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	logger.Info("shutting down")
	return err
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := parsePositiveInt(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

func defaultUpstream() string {
	if p := os.Getenv("ALL_PROXY"); p != "" {
		return p
	}

	if p := os.Getenv("all_proxy"); p != "" {
		return p
	}

	return "direct://"
}
