package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"curiochain/gateway/config"
	"curiochain/gateway/middleware"
	"curiochain/gateway/node"
	"curiochain/gateway/notify"
	"curiochain/gateway/routes"
	"curiochain/gateway/store"
	"curiochain/observability/logging"
	telemetry "curiochain/observability/otel"
)

func main() {
	var cfgPath string
	var allowInsecure bool
	flag.StringVar(&cfgPath, "config", "", "path to gateway configuration")
	flag.BoolVar(&allowInsecure, "allow-insecure", false, "DEV ONLY: permit plaintext listeners on loopback interfaces")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	env := strings.TrimSpace(os.Getenv("CURIO_ENV"))
	logger := logging.Setup("curio-gateway", env, logging.Options{
		Level:      cfg.Log.Level,
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	if cfg.Observability.Tracing {
		endpoint := strings.TrimSpace(cfg.Observability.OTLPEndpoint)
		if endpoint == "" {
			endpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
		}
		shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName: cfg.Observability.ServiceName,
			Environment: env,
			Endpoint:    endpoint,
			Insecure:    cfg.Observability.OTLPInsecure,
			Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		})
		if err != nil {
			logger.Error("initialise telemetry", "err", err)
			os.Exit(1)
		}
		defer func() {
			_ = shutdownTelemetry(context.Background())
		}()
	}

	nodeURL, err := cfg.NodeURL(env)
	if err != nil {
		logger.Error("resolve node url", "err", err)
		os.Exit(1)
	}
	rpcClient := node.NewRPCClient(nodeURL.String(), cfg.Node.Token(), cfg.Node.Timeout)

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		logger.Error("open gateway store", "path", cfg.Store.Path, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	queue, err := notify.OpenQueue(cfg.Notifier.Path)
	if err != nil {
		logger.Error("open notify queue", "path", cfg.Notifier.Path, "err", err)
		os.Exit(1)
	}
	defer queue.Close()

	rateLimits := cfg.RateLimits
	if len(rateLimits) == 0 {
		rateLimits = []config.RateLimitConfig{
			{ID: "reads", RequestsPerMinute: 600, Burst: 120},
			{ID: "writes", RequestsPerMinute: 120, Burst: 30},
		}
	}

	srv, err := routes.New(routes.Config{
		Node:          rpcClient,
		Store:         st,
		Authenticator: middleware.NewAuthenticator(cfg.Auth, logger),
		RateLimiter:   middleware.NewRateLimiter(rateLimits, logger),
		Observability: middleware.NewObservability(cfg.Observability, logger),
		Logger:        logger,
		NodeTimeout:   cfg.Node.Timeout,
	})
	if err != nil {
		logger.Error("configure routes", "err", err)
		os.Exit(1)
	}

	handler := http.Handler(srv.Router())
	if cfg.Observability.Tracing {
		handler = otelhttp.NewHandler(handler, "curio-gateway")
	}

	configDir := ""
	if strings.TrimSpace(cfgPath) != "" {
		configDir = filepath.Dir(cfgPath)
	}
	tlsConfig, err := buildTLSConfig(configDir, cfg.Security)
	if err != nil {
		logger.Error("configure TLS", "err", err)
		os.Exit(1)
	}
	if tlsConfig == nil {
		if !allowInsecure {
			logger.Error("TLS certificate and key are required; set security.tlsCertFile/tlsKeyFile or start with --allow-insecure in dev")
			os.Exit(1)
		}
		if !config.IsDevEnv(env) && !isLoopbackAddress(cfg.ListenAddress) {
			logger.Error("plaintext gateway mode is restricted to loopback listeners or dev environments")
			os.Exit(1)
		}
	}

	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	if tlsConfig != nil {
		server.TLSConfig = tlsConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher := notify.NewWatcher(rpcClient, queue, logger, cfg.Notifier.PollInterval, cfg.Notifier.FetchLimit)
	worker := notify.NewWorker(st, queue, logger, cfg.Notifier.MaxAttempts, cfg.Notifier.DeliveryTimeout)
	go watcher.Run(ctx)
	go worker.Run(ctx)

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		logger.Error("listen", "address", cfg.ListenAddress, "err", err)
		os.Exit(1)
	}
	go func() {
		scheme := "http"
		if tlsConfig != nil {
			scheme = "https"
		}
		logger.Info("gateway listening", "url", scheme+"://"+listener.Addr().String(), "node", nodeURL.String())
		var serveErr error
		if tlsConfig != nil {
			serveErr = server.Serve(tls.NewListener(listener, tlsConfig))
		} else {
			serveErr = server.Serve(listener)
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("serve", "err", serveErr)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "err", err)
	}
}

func buildTLSConfig(baseDir string, sec config.SecurityConfig) (*tls.Config, error) {
	certPath := resolveTLSPath(baseDir, sec.TLSCertFile)
	keyPath := resolveTLSPath(baseDir, sec.TLSKeyFile)
	if certPath == "" && keyPath == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}

func resolveTLSPath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	if baseDir == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(baseDir, trimmed)
}

func isLoopbackAddress(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
