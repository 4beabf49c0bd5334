package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"curiochain/config"
	"curiochain/core"
	"curiochain/core/types"
	"curiochain/observability"
	"curiochain/observability/logging"
	"curiochain/observability/metrics"
	telemetry "curiochain/observability/otel"
	"curiochain/rpc"
	"curiochain/storage"
)

const eventSubscriberBuffer = 256

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	listenFlag := flag.String("listen", "", "RPC listen address (overrides config ListenRPC)")
	metricsFlag := flag.String("metrics", "", "Prometheus listen address (empty disables the endpoint)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("CURIO_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("curiod", env, logging.Options{
		Level: cfg.LogLevel,
		Path:  cfg.LogPath,
	})

	insecureOTLP := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecureOTLP = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "curiod",
		Environment: env,
		Endpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    insecureOTLP,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialise telemetry: %v", err))
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	nodeCfg, err := cfg.NodeConfig()
	if err != nil {
		panic(fmt.Sprintf("Invalid ledger policy: %v", err))
	}
	node, err := core.NewNode(db, nodeCfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to open ledger: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	subID, events := node.SubscribeEvents(eventSubscriberBuffer)
	defer node.UnsubscribeEvents(subID)
	go recordEvents(ctx, events)

	if addr := strings.TrimSpace(*metricsFlag); addr != "" {
		startMetricsServer(ctx, logger, addr)
	}

	listenAddr := strings.TrimSpace(*listenFlag)
	if listenAddr == "" {
		listenAddr = cfg.ListenRPC
	}

	rpcServer := rpc.NewServer(node, rpc.ServerConfig{
		AuthToken:         cfg.RPCToken,
		ReadHeaderTimeout: time.Duration(cfg.RPCReadHeaderTimeout) * time.Second,
		ReadTimeout:       time.Duration(cfg.RPCReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.RPCWriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.RPCIdleTimeout) * time.Second,
		MaxConns:          cfg.MaxRPCConns,
	})
	rpcErrCh := make(chan error, 1)
	go func() {
		err := rpcServer.Start(listenAddr)
		rpcErrCh <- err
		close(rpcErrCh)
	}()

	if err := waitForRPCStartup(listenAddr, rpcErrCh, 5*time.Second); err != nil {
		logger.Error("RPC server failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Curio ledger node initialised and running",
		slog.String("rpc", listenAddr),
		slog.String("data_dir", cfg.DataDir))

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("RPC shutdown failed", slog.Any("error", err))
		}
	case err, ok := <-rpcErrCh:
		if ok && err != nil && err != http.ErrServerClosed {
			logger.Error("RPC server terminated", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

// recordEvents mirrors every committed ledger event into the Prometheus
// registries until the daemon context ends.
func recordEvents(ctx context.Context, events <-chan *types.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if evt == nil {
				continue
			}
			observability.Events().RecordPublished(evt.Type)
			metrics.Rewards().RecordEvent(evt)
		}
	}
}

func startMetricsServer(ctx context.Context, logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics endpoint failed", slog.Any("error", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func waitForRPCStartup(addr string, errCh <-chan error, timeout time.Duration) error {
	dialAddr := dialAddressFor(addr)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if !ok {
				return fmt.Errorf("RPC server terminated before startup confirmation")
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("RPC server exited before startup confirmation")
		default:
		}

		conn, err := net.DialTimeout("tcp", dialAddr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case err, ok := <-errCh:
			if !ok {
				return fmt.Errorf("RPC server terminated before startup confirmation")
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("RPC server exited before startup confirmation")
		case <-ticker.C:
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for RPC server to start on %s", addr)
		}
	}
}

func dialAddressFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
