// Command odb-server is the single binary of spec.md §6: a `serve`
// subcommand that reads its configuration from the environment and
// fronts the execution-recording/time-accounting core over REST.
//
// Exit codes: 0 normal shutdown, 1 configuration error, 2 database
// unreachable or migration failure at boot (spec.md §6, "CLI surface").
// Exit code 2 is also returned when subscribing to a notify channel
// fails and when the HTTP server stops with an error.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/obsdb/odb/internal/config"
	"github.com/obsdb/odb/internal/database"
	"github.com/obsdb/odb/pkg/api"
	"github.com/obsdb/odb/pkg/api/authz"
	"github.com/obsdb/odb/pkg/digest"
	"github.com/obsdb/odb/pkg/log"
	"github.com/obsdb/odb/pkg/metrics"
	"github.com/obsdb/odb/pkg/notify"
	"github.com/obsdb/odb/pkg/notify/alert"
	"github.com/obsdb/odb/pkg/observation"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/recorder"
	"github.com/obsdb/odb/pkg/sequence"
	"github.com/obsdb/odb/pkg/smartgcal"
	"github.com/obsdb/odb/pkg/timeaccounting"
)

const (
	exitOK            = 0
	exitConfigError   = 1
	exitDatabaseError = 2
)

// Setup-time constants match the GMOS-North long-slit fixture of
// spec.md §8 E2E-1: 960s full setup, 300s reacquisition, 5s fixed
// acquisition exposure.
var (
	fullSetupTime          = odbtype.SpanFromMicros(960_000_000)
	reacquisitionSetupTime = odbtype.SpanFromMicros(300_000_000)
	acquisitionExposure    = odbtype.SpanFromDuration(5 * time.Second)
)

func main() {
	if len(os.Args) < 2 || os.Args[1] != "serve" {
		fmt.Fprintln(os.Stderr, "usage: odb-server serve")
		os.Exit(exitConfigError)
	}
	os.Exit(serve())
}

func serve() int {
	cfg := config.DefaultConfig()
	cfg.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return exitConfigError
	}

	logger := log.NewLogger(log.Options{ServiceName: "odb-server"})
	defer log.Sync(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error(err, "database unreachable at boot")
		return exitDatabaseError
	}
	defer db.Close()
	if err := database.Migrate(db.DB); err != nil {
		logger.Error(err, "failed applying migrations")
		return exitDatabaseError
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	observations := observation.NewRepository(db, logger)
	recorderRepo := recorder.NewRepository(db, logger)
	rec := recorder.NewRecorder(recorderRepo, logger)
	taRepo := timeaccounting.NewRepository(db)
	classifier := timeaccounting.NewRecorderClassifier(db)
	taEngine := timeaccounting.NewEngine(classifier)

	digester := &digest.Digester{
		Resolver:    observations,
		ItcCache:    digest.NewRedisItcCache(redisClient, cfg.Redis.TTL),
		Oracle:      digest.NewCircuitBreakingOracle("itc", digest.NewHTTPOracle(cfg.External.ITCBaseURL, http.DefaultClient, digest.DefaultFingerprint)),
		DigestCache: digest.NewRedisCache(redisClient, cfg.Redis.TTL),
		SmartGcal:   smartgcal.NewCircuitBreakingOracle("smartgcal", smartgcal.NewHTTPOracle(cfg.External.SmartGcalBaseURL, http.DefaultClient)),
		GcalKeyFor:  gcalKeyFor,
		Fingerprint: digest.DefaultFingerprint,
		CommitHash:  []byte(cfg.CommitHash),
		Setup: digest.SetupTime{
			Full:          fullSetupTime,
			Reacquisition: reacquisitionSetupTime,
		},
		AcquisitionExposure: acquisitionExposure,
	}

	authorizer, err := authz.New(ctx, cfg.AuthzPolicy)
	if err != nil {
		logger.Error(err, "failed compiling authorization policy")
		return exitConfigError
	}

	listener := notify.NewListener(cfg.Database.DSN(), logger)
	for _, ch := range []notify.Channel{notify.ChannelExecutionEvent, notify.ChannelWorkflowState} {
		if err := listener.Listen(ch); err != nil {
			logger.Error(err, "failed subscribing to notify channel", "channel", string(ch))
			return exitDatabaseError
		}
	}
	go listener.Run(ctx)
	defer listener.Close()

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithDB(db),
		api.WithObservationRepository(observations),
		api.WithRecorderRepository(recorderRepo),
		api.WithRecorder(rec),
		api.WithTimeAccountingEngine(taEngine),
		api.WithTimeAccountingRepository(taRepo),
		api.WithDigester(digester),
		api.WithAuthorizer(authorizer),
	}
	if cfg.Alert.SlackWebhookURL != "" {
		opts = append(opts, api.WithAlerter(alert.NewNotifier(cfg.Alert.SlackWebhookURL, cfg.Alert.SlackChannel, cfg.Alert.Threshold)))
	}
	handler := api.NewHandler(nil, opts...)

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsServer := metrics.NewServer(strconv.Itoa(cfg.Server.MetricsPort), logger)
	metricsServer.StartAsync()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error(err, "server stopped unexpectedly")
			return exitDatabaseError
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "error during graceful shutdown")
	}
	if err := metricsServer.Stop(shutdownCtx); err != nil {
		logger.Error(err, "error stopping metrics server")
	}
	return exitOK
}

// gcalKeyFor derives the Smart-GCAL lookup key for a SmartGcalConfig
// placeholder step, given the static instrument configuration it
// expands under (spec.md §4.C, "smart gcal placeholders resolved
// against the instrument's current grating/filter/fpu").
func gcalKeyFor(static sequence.StaticConfig, _ sequence.ProtoStep, cfg sequence.SmartGcalConfig) smartgcal.Key {
	return smartgcal.Key{
		Instrument: static.Instrument,
		Disperser:  static.Grating,
		Filter:     static.Filter,
		FPU:        static.FPU,
		CalType:    cfg.Type,
	}
}

