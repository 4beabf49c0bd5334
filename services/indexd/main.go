package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"curiochain/observability/logging"
	telemetry "curiochain/observability/otel"
	"curiochain/services/indexd/config"
	"curiochain/services/indexd/consumer"
	"curiochain/services/indexd/export"
	"curiochain/services/indexd/models"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/indexd/config.yaml", "path to indexd configuration file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("indexd: load config: %v", err)
	}

	env := strings.TrimSpace(os.Getenv("CURIO_ENV"))
	logger := logging.Setup("curio-indexd", env, logging.Options{
		Level:      cfg.Log.Level,
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "curio-indexd",
		Environment: env,
		Endpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
	})
	if err != nil {
		logger.Error("initialise telemetry", "err", err)
		os.Exit(1)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		logger.Error("open read model database", "path", cfg.DatabasePath, "err", err)
		os.Exit(1)
	}
	if err := models.AutoMigrate(db); err != nil {
		logger.Error("migrate read model schema", "err", err)
		os.Exit(1)
	}

	tailer, err := consumer.New(consumer.Config{
		DB:           db,
		WebsocketURL: cfg.Node.WebsocketURL,
		DialTimeout:  cfg.Node.DialTimeout.Duration,
		ReconnectMin: cfg.Node.ReconnectMin.Duration,
		ReconnectMax: cfg.Node.ReconnectMax.Duration,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("configure event consumer", "err", err)
		os.Exit(1)
	}

	location, err := time.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		logger.Error("load report timezone", "timezone", cfg.Report.Timezone, "err", err)
		os.Exit(1)
	}
	reporter := export.New(export.Config{
		DB:        db,
		TZ:        location,
		OutputDir: cfg.Report.OutputDir,
		Logger:    logger,
	})
	scheduler := export.NewScheduler(export.SchedulerConfig{
		Reporter:  reporter,
		Window:    cfg.Report.Window.Duration,
		RunHour:   cfg.Report.RunHour,
		RunMinute: cfg.Report.RunMinute,
		Location:  location,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go tailer.Run(ctx)
	go scheduler.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/healthz", otelhttp.NewHandler(http.HandlerFunc(handleHealth), "indexd.health"))
	mux.Handle("/status", otelhttp.NewHandler(statusHandler(db, logger), "indexd.status"))
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("indexd listening", "addr", cfg.ListenAddress, "node", cfg.Node.WebsocketURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown status server", "err", err)
	}
	logger.Info("indexd stopped")
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// statusHandler reports the consumer checkpoint and read-model row counts.
func statusHandler(db *gorm.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var checkpoint models.Checkpoint
		if err := db.WithContext(r.Context()).First(&checkpoint, 1).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Warn("load checkpoint for status", "err", err)
				http.Error(w, "status unavailable", http.StatusInternalServerError)
				return
			}
		}
		var payouts, units int64
		if err := db.WithContext(r.Context()).Model(&models.Payout{}).Count(&payouts).Error; err != nil {
			logger.Warn("count payouts for status", "err", err)
		}
		if err := db.WithContext(r.Context()).Model(&models.Unit{}).Count(&units).Error; err != nil {
			logger.Warn("count units for status", "err", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"lastSequence":         checkpoint.LastSequence,
			"epochDurationSeconds": checkpoint.EpochDurationSeconds,
			"payouts":              payouts,
			"units":                units,
			"updatedAt":            checkpoint.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
}
