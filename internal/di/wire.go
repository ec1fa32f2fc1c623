//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinSignal/pkg/config"
	"FinSignal/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCache,

		// Repositories
		ProvideBarStore,
		ProvideSignalStore,
		ProvideSignalPublisher,
		ProvideCalibrationStore,

		// Scoring core and analytics clients
		ProvideAnalyticsBase,
		ProvidePatternDetector,
		ProvideQualitativeAnalyzer,
		ProvideIndicatorEngine,
		ProvideRegimeDetector,
		ProvideEngineRegistry,

		// Use cases
		ProvideHub,
		ProvideSignalSink,
		ProvideSignalEmitter,
		ProvideSignalPipeline,
		ProvideScanner,
		ProvideOutcomeHandler,
		ProvideKafkaConsumer,

		// Transport
		ProvideSignalsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
