package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/totegamma/logbook/internal/config"
	"github.com/totegamma/logbook/internal/infra/cache"
	"github.com/totegamma/logbook/internal/infra/counter"
	"github.com/totegamma/logbook/internal/infra/database"
	"github.com/totegamma/logbook/internal/infra/index"
	"github.com/totegamma/logbook/internal/infra/repository"
	"github.com/totegamma/logbook/internal/markup"
	"github.com/totegamma/logbook/internal/present/rest"
	"github.com/totegamma/logbook/internal/service"
	"github.com/totegamma/logbook/internal/usecase"
)

func main() {
	configPath := flag.String("config", "/etc/logbook/config.yaml", "path to the configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()), slog.String("module", "main"))
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		cleanup, err := setupTraceProvider(conf.Server.TraceEndpoint, conf.NodeInfo.Name, conf.NodeInfo.Version)
		if err != nil {
			slog.Error("failed to setup trace provider", slog.String("error", err.Error()), slog.String("module", "main"))
			os.Exit(1)
		}
		defer cleanup()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()), slog.String("module", "main"))
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()), slog.String("module", "main"))
		os.Exit(1)
	}

	searchConf, err := conf.SearchConfig()
	if err != nil {
		slog.Error("invalid search config", slog.String("error", err.Error()), slog.String("module", "main"))
		os.Exit(1)
	}

	var sequence usecase.Counter = repository.NewCounterRepository(db)
	var signals *service.SignalService
	if conf.Server.RedisAddr != "" {
		rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		sequence = counter.NewRedisCounter(rdb)
		signals = service.NewSignalService(rdb)
	} else {
		slog.Warn("redis is not configured, drawing ids from postgres", slog.String("module", "main"))
	}

	var docs usecase.DocumentIndex
	if conf.Server.Elasticsearch.Enabled() {
		es, err := database.NewElasticsearch(
			conf.Server.Elasticsearch.Addresses,
			conf.Server.Elasticsearch.Username,
			conf.Server.Elasticsearch.Password,
		)
		if err != nil {
			slog.Error("failed to create elasticsearch client", slog.String("error", err.Error()), slog.String("module", "main"))
			os.Exit(1)
		}
		elastic := index.NewElasticIndex(es, conf.Server.Elasticsearch.Index)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = elastic.EnsureIndex(ctx)
		cancel()
		if err != nil {
			slog.Error("failed to prepare index", slog.String("error", err.Error()), slog.String("module", "main"))
			os.Exit(1)
		}
		docs = elastic
	} else {
		slog.Warn("elasticsearch is not configured, using the in-process index", slog.String("module", "main"))
		docs = index.NewMemoryIndex()
	}

	generator := usecase.NewGenerator(sequence)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	recovered, err := generator.Recover(ctx, docs, searchConf)
	cancel()
	if err != nil {
		slog.Error("failed to recover log sequence", slog.String("error", err.Error()), slog.String("module", "main"))
		os.Exit(1)
	}
	if recovered > 0 {
		slog.Info("log sequence recovered", slog.Int64("value", recovered), slog.String("module", "main"))
	}

	var logCache usecase.LogCache
	if conf.Server.MemcachedAddr != "" {
		logCache = cache.NewLogCache(database.NewMemcached(conf.Server.MemcachedAddr))
	}

	tagRepo := repository.NewTagRepository(db)
	logbookRepo := repository.NewLogbookRepository(db)
	propertyRepo := repository.NewPropertyRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db, conf.Server.MaxAttachmentSize)

	deps := usecase.LogDeps{
		Sequence:   generator,
		Index:      docs,
		Blobs:      attachmentRepo,
		Tags:       tagRepo,
		Logbooks:   logbookRepo,
		Properties: propertyRepo,
		Markup:     markup.New(conf.Server.MarkupProcessor),
		Cache:      logCache,
		Search:     searchConf,
	}
	if signals != nil {
		deps.Signal = signals
	}

	handler := rest.NewHandler(
		conf.Node(),
		usecase.NewLogUsecase(deps),
		usecase.NewTagUsecase(tagRepo),
		usecase.NewLogbookUsecase(logbookRepo),
		usecase.NewPropertyUsecase(propertyRepo),
		usecase.NewAttachmentUsecase(attachmentRepo),
		signals,
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware(conf.NodeInfo.Name))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	handler.RegisterRoutes(e)

	go func() {
		if err := e.Start(conf.Server.Listen); err != nil {
			slog.Info("server stopped", slog.String("reason", err.Error()), slog.String("module", "main"))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()), slog.String("module", "main"))
	}
}

func setupTraceProvider(endpoint string, serviceName string, serviceVersion string) (func(), error) {
	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", serviceVersion),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", slog.String("error", err.Error()), slog.String("module", "main"))
		}
	}
	return cleanup, nil
}
