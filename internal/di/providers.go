package di

import (
	"context"
	"fmt"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
	"FinSignal/internal/handler/api"
	"FinSignal/internal/handler/ws"
	mid "FinSignal/internal/middleware"
	internalrepo "FinSignal/internal/repository"
	icache "FinSignal/internal/service/cache"
	imetrics "FinSignal/internal/service/metrics"
	"FinSignal/internal/service/ratelimit"
	"FinSignal/internal/services/analytics"
	"FinSignal/internal/services/confluence"
	"FinSignal/internal/services/indicators"
	"FinSignal/internal/services/regime"
	"FinSignal/internal/usecase"
	pkgch "FinSignal/pkg/clickhouse"
	"FinSignal/pkg/config"
	xhttp "FinSignal/pkg/http"
	pkgkafka "FinSignal/pkg/kafka"
	"FinSignal/pkg/logger"
	"FinSignal/pkg/metrics"
	"FinSignal/pkg/server"
)

func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	imetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient connects and creates the bars and signals tables.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, fmt.Errorf("clickhouse disabled: bar store unavailable")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideKafkaProducer creates the producer, or nil when Kafka is disabled.
// When log collection is on, aggregated warnings are published through it.
func ProvideKafkaProducer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Logger.Collect {
		log.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Logger.CollectInterval,
			CountThreshold: cfg.Logger.CollectMax,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
	}
	cleanup := func() {
		log.RemoveCollector()
		if err := producer.Close(); err != nil {
			log.Warn("kafka producer close error", logger.Error(err))
		}
	}
	return producer, cleanup, nil
}

func ProvideBarStore(ch *pkgch.Client, cfg *config.Config, log *logger.Logger) domrepo.BarStore {
	return internalrepo.NewCHBarStore(ch.DB(), cfg.ClickHouse.Database, log)
}

func ProvideSignalStore(ch *pkgch.Client, cfg *config.Config) domrepo.SignalStore {
	return internalrepo.NewCHSignalStore(ch.DB(), cfg.ClickHouse.Database)
}

// ProvideSignalPublisher returns nil when Kafka is disabled.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalTopic)
}

// ProvideCache uses Redis when enabled, otherwise an in-process TTL cache.
func ProvideCache(cfg *config.Config, log *logger.Logger) (icache.BytesCache, func(), error) {
	if !cfg.Redis.Enabled {
		return icache.NewTTLCache(), func() {}, nil
	}
	rc := icache.NewRedisCache(icache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   "finsignal:",
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	cleanup := func() {
		if err := rc.Close(); err != nil {
			log.Warn("redis close error", logger.Error(err))
		}
	}
	return rc, cleanup, nil
}

// ProvideCalibrationStore persists calibration windows in Redis; nil without it.
func ProvideCalibrationStore(c icache.BytesCache, cfg *config.Config) domrepo.CalibrationStore {
	if !cfg.Redis.Enabled {
		return nil
	}
	return internalrepo.NewCacheCalibrationStore(c, cfg.Redis.SnapshotTTL)
}

func ProvideAnalyticsBase(cfg *config.Config) *analytics.HTTPServiceBase {
	return analytics.NewHTTPServiceBase(cfg.Analytics)
}

func ProvidePatternDetector(base *analytics.HTTPServiceBase, cfg *config.Config) domsvc.PatternDetector {
	return analytics.NewHTTPPatternDetector(base, cfg.Engine.BarLimit)
}

func ProvideQualitativeAnalyzer(base *analytics.HTTPServiceBase, c icache.BytesCache, cfg *config.Config) domsvc.QualitativeAnalyzer {
	return analytics.NewHTTPQualitativeAnalyzer(base, cfg.Engine.BarLimit, c, cfg.Redis.CacheTTL)
}

func ProvideIndicatorEngine() domsvc.IndicatorEngine {
	return indicators.NewDefaultEngine()
}

func ProvideRegimeDetector(cfg *config.Config) confluence.RegimeDetector {
	rc := regime.DefaultConfig()
	rc.Lookback = cfg.Engine.RegimeLookback
	return regime.NewDetector(rc)
}

func ProvideEngineRegistry(
	cfg *config.Config,
	indicator domsvc.IndicatorEngine,
	detector confluence.RegimeDetector,
	store domrepo.CalibrationStore,
	log *logger.Logger,
) (*usecase.EngineRegistry, error) {
	w := cfg.Engine.Weights
	weights, err := models.NewConfluenceWeights(w.Trend, w.Momentum, w.Volatility, w.Volume, w.Pattern, w.Qualitative)
	if err != nil {
		return nil, fmt.Errorf("engine weights: %w", err)
	}
	return usecase.NewEngineRegistry(usecase.EngineSettings{
		Weights:            weights,
		MinBars:            cfg.Engine.MinBars,
		CalibratorCapacity: cfg.Engine.CalibratorCapacity,
		SignalExpiry:       cfg.Engine.SignalExpiry,
	}, indicator, detector, store, log), nil
}

func ProvideHub(log *logger.Logger) *ws.Hub {
	return ws.NewHub(log)
}

func ProvideSignalSink(store domrepo.SignalStore, pub domrepo.SignalPublisher, hub *ws.Hub) *usecase.SignalSink {
	return usecase.NewSignalSink(store, pub, hub)
}

func ProvideSignalEmitter(sink *usecase.SignalSink, m domrepo.Metrics, cfg *config.Config, log *logger.Logger) *mid.SignalEmitter {
	return mid.NewSignalEmitter(sink, m, log,
		mid.WithCooldown(cfg.Engine.Cooldown),
		mid.WithBufferSize(cfg.Engine.EmitBuffer),
	)
}

func ProvideSignalPipeline(
	cfg *config.Config,
	bars domrepo.BarStore,
	patterns domsvc.PatternDetector,
	llm domsvc.QualitativeAnalyzer,
	engines *usecase.EngineRegistry,
	indicator domsvc.IndicatorEngine,
	detector confluence.RegimeDetector,
	emitter *mid.SignalEmitter,
	m domrepo.Metrics,
	log *logger.Logger,
) *usecase.SignalPipeline {
	return usecase.NewSignalPipeline(usecase.PipelineConfig{
		Timeframes:     domrepo.ParseTimeframes(cfg.Engine.Timeframes),
		BarLimit:       cfg.Engine.BarLimit,
		UsePatterns:    cfg.Engine.UsePatterns,
		UseQualitative: cfg.Engine.UseQualitative,
	}, bars, patterns, llm, engines, indicator, detector, emitter, m, log)
}

func ProvideScanner(p *usecase.SignalPipeline, cfg *config.Config, log *logger.Logger) *usecase.Scanner {
	return usecase.NewScanner(p, cfg.Engine.Symbols, cfg.Engine.ScanInterval, cfg.Engine.ScanTimeout, cfg.Engine.Workers, log)
}

func ProvideOutcomeHandler(engines *usecase.EngineRegistry, m domrepo.Metrics, cfg *config.Config, log *logger.Logger) *usecase.OutcomeHandler {
	return usecase.NewOutcomeHandler(cfg.Kafka.OutcomeTopic, engines, m, log)
}

// ProvideKafkaConsumer creates the outcome consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, h *usecase.OutcomeHandler, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(h)
	return consumer, nil
}

func ProvideSignalsHandler(
	p *usecase.SignalPipeline,
	store domrepo.SignalStore,
	outcomes *usecase.OutcomeHandler,
	c icache.BytesCache,
	cfg *config.Config,
	log *logger.Logger,
) *api.SignalsEchoHandler {
	return api.NewSignalsEchoHandler(log, p, store, outcomes, api.WithScoreCache(c, cfg.Redis.CacheTTL))
}

func ProvideHTTPServer(cfg *config.Config, signals *api.SignalsEchoHandler, hub *ws.Hub, log *logger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(log, []xhttp.Handler{signals, hub},
		xhttp.WithAddr(cfg.Server.Host, cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithRateLimiter(ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateBurst)),
	)
}

func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	engines *usecase.EngineRegistry,
	emitter *mid.SignalEmitter,
	scanner *usecase.Scanner,
	consumer *pkgkafka.Consumer,
	hub *ws.Hub,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, log, engines, emitter, scanner, consumer, hub, httpServer)
}
