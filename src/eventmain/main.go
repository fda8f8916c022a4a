package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/kataras/go-events"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdk_trace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/optionsflow/optionsflow/src/api"
	"github.com/optionsflow/optionsflow/src/data"
	"github.com/optionsflow/optionsflow/src/detectors"
	"github.com/optionsflow/optionsflow/src/eventconsumers"
	"github.com/optionsflow/optionsflow/src/eventpubsub"
	"github.com/optionsflow/optionsflow/src/eventservices"
	"github.com/optionsflow/optionsflow/src/experiment"
	"github.com/optionsflow/optionsflow/src/pipeline"
	"github.com/optionsflow/optionsflow/src/utils"
)

func main() {
	run()
}

// setupOTelSDK bootstraps the OpenTelemetry pipeline.
// If it does not return an error, make sure to call shutdown for proper cleanup.
func setupOTelSDK(ctx context.Context) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error

	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	handleErr := func(inErr error) {
		err = errors.Join(inErr, shutdown(ctx))
	}

	prop := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(prop)

	traceExporter, err := otlptrace.New(ctx, otlptracehttp.NewClient())
	if err != nil {
		return nil, err
	}

	res, _ := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", "optionsflow")))

	tracerProvider := sdk_trace.NewTracerProvider(
		sdk_trace.WithBatcher(traceExporter),
		sdk_trace.WithResource(res),
	)

	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		handleErr(err)
		return
	}

	meterProvider := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(metricExporter)))
	shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	err = runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second))
	if err != nil {
		log.Fatalf("runtime.Start: %v", err)
	}

	return
}

func run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := sync.WaitGroup{}

	projectsDir := os.Getenv("PROJECTS_DIR")
	if projectsDir == "" {
		log.Fatalf("missing PROJECTS_DIR environment variable")
	}

	goEnv := os.Getenv("GO_ENV")

	if err := utils.InitEnvironmentVariables(projectsDir, goEnv); err != nil {
		log.Fatalf("error loading environment variables: %v", err)
	}

	// Set up Telemetry
	log.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
		log.WarnLevel,
		log.InfoLevel,
	)))

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		otelShutdown, err := setupOTelSDK(ctx)
		if err != nil {
			log.Fatalf("failed to setup otel sdk: %v", err)
		}

		defer func() {
			if err := otelShutdown(context.Background()); err != nil {
				log.Errorf("otel shutdown: %v", err)
			}
		}()
	}

	configInDir, err := utils.GetEnv("SCANNER_CONFIG")
	if err != nil {
		log.Fatalf("$SCANNER_CONFIG not set: %v", err)
	}

	config, err := eventservices.LoadScannerConfig(configInDir)
	if err != nil {
		log.Fatalf("failed to load scanner config: %v", err)
	}

	polygonApiKey, err := utils.GetEnv("POLYGON_API_KEY")
	if err != nil {
		log.Fatalf("$POLYGON_API_KEY not set: %v", err)
	}

	port, err := utils.GetEnv("PORT")
	if err != nil {
		log.Fatalf("$PORT not set: %v", err)
	}

	artifactDir := os.Getenv("ARTIFACT_DIR")

	// Setup pubsub and the quote window
	eventpubsub.Init()

	tracker := detectors.NewQuoteWindowTracker(config.ProfileA.QuotePressure.WindowMinutes)
	if err := eventpubsub.Subscribe(eventpubsub.NewQuoteEvent, tracker.Add); err != nil {
		log.Fatalf("failed to subscribe quote window tracker: %v", err)
	}

	if quoteStreamHost := os.Getenv("QUOTE_STREAM_HOST"); quoteStreamHost != "" {
		stream := data.NewQuoteStream(quoteStreamHost, os.Getenv("QUOTE_STREAM_PATH"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := stream.Start(ctx); err != nil {
				log.Errorf("quote stream stopped: %v", err)
			}
		}()
	}

	// Assemble the pipeline; both experiment profiles share one stage cache
	cache := pipeline.NewStageCache()

	orchestratorA, err := eventservices.BuildOrchestrator(config.ProfileA, cache)
	if err != nil {
		log.Fatalf("failed to build orchestrator: %v", err)
	}

	profileA := experiment.Profile{Name: config.ProfileA.Name, Orchestrator: orchestratorA}
	profileB := profileA

	if config.ProfileB != nil {
		orchestratorB, buildErr := eventservices.BuildOrchestrator(*config.ProfileB, cache)
		if buildErr != nil {
			log.Fatalf("failed to build orchestrator B: %v", buildErr)
		}

		profileB = experiment.Profile{Name: config.ProfileB.Name, Orchestrator: orchestratorB}
	}

	events.On(experiment.RollbackRecommended, func(payload ...interface{}) {
		log.WithField("payload", payload).Warn("experiment degradation detected; confirm rollback via POST /experiment/rollback")
	})

	coordinator, err := experiment.NewCoordinator(config.Experiment.ToConfig(), nil)
	if err != nil {
		log.Fatalf("failed to create coordinator: %v", err)
	}

	fetcher := data.NewPolygonFetcher(polygonApiKey)
	source := data.NewLiveSource(fetcher, tracker, config.Symbol)

	// Start the periodic scan worker
	eventconsumers.NewScanWorker(&wg, orchestratorA, source, eventservices.Criteria(config.ProfileA), artifactDir, 1*time.Minute).Start(ctx)

	// Setup router
	router := mux.NewRouter()
	api.NewServer(orchestratorA, coordinator, source, profileA, profileB).SetupRouter(router)

	srv := &http.Server{
		Handler: router,
		Addr:    fmt.Sprintf(":%s", port),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// Start web server
	go func() {
		log.Infof("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil {
			if err.Error() != "http: Server closed" {
				log.Fatalf("failed to start server: %v", err)
			}
		}
	}()

	// Create channel for shutdown signals.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	signal.Notify(stop, syscall.SIGTERM)

	log.Info("Main: init complete")

	// Block here until program is shut down
	<-stop

	cancel()

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Errorf("server shutdown: %v", err)
	}

	wg.Wait()

	log.Info("Main: gracefully stopped!")
}
