package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
	"FinSignal/internal/services/calibration"
	"FinSignal/internal/services/confluence"
	"FinSignal/internal/services/signal"
	"FinSignal/pkg/logger"
)

// EngineSettings configures every per-symbol engine.
type EngineSettings struct {
	Weights            models.ConfluenceWeights
	MinBars            int
	CalibratorCapacity int
	SignalExpiry       time.Duration
	Clock              func() time.Time
}

// symbolEngine owns one symbol's calibrator. mu serialises scoring and
// outcome feedback, since the calibrator is not safe for concurrent use.
type symbolEngine struct {
	mu  sync.Mutex
	cal *calibration.Calibrator
	gen *signal.Generator
}

// EngineRegistry lazily builds one scorer, calibrator and generator per symbol.
type EngineRegistry struct {
	settings  EngineSettings
	indicator domsvc.IndicatorEngine
	detector  confluence.RegimeDetector
	store     domrepo.CalibrationStore
	log       *logger.Logger

	mu      sync.RWMutex
	engines map[string]*symbolEngine
}

func NewEngineRegistry(settings EngineSettings, indicator domsvc.IndicatorEngine, detector confluence.RegimeDetector, store domrepo.CalibrationStore, log *logger.Logger) *EngineRegistry {
	if settings.Clock == nil {
		settings.Clock = time.Now
	}
	if settings.Weights.IsZero() {
		settings.Weights = models.DefaultConfluenceWeights()
	}
	return &EngineRegistry{
		settings:  settings,
		indicator: indicator,
		detector:  detector,
		store:     store,
		log:       log,
		engines:   make(map[string]*symbolEngine),
	}
}

func (r *EngineRegistry) engine(symbol string) *symbolEngine {
	r.mu.RLock()
	e, ok := r.engines[symbol]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[symbol]; ok {
		return e
	}
	cal := calibration.New(r.settings.CalibratorCapacity)
	scorer := confluence.NewScorer(r.indicator, r.detector,
		confluence.WithWeights(r.settings.Weights),
		confluence.WithCalibrator(cal),
		confluence.WithMinBars(r.settings.MinBars),
	)
	e = &symbolEngine{
		cal: cal,
		gen: signal.NewGenerator(scorer,
			signal.WithClock(r.settings.Clock),
			signal.WithExpiry(r.settings.SignalExpiry),
		),
	}
	r.engines[symbol] = e
	return e
}

// Evaluate scores the inputs and returns the signal, or nil if the gate rejects it.
func (r *EngineRegistry) Evaluate(symbol string, bars models.TimeframeBars, patterns models.TimeframePatterns, llm *models.LLMAnalysis) (*models.Signal, models.ConfluenceScore) {
	e := r.engine(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen.Evaluate(symbol, bars, patterns, llm)
}

// RecordOutcome feeds a realised outcome back into the symbol's calibrator.
func (r *EngineRegistry) RecordOutcome(o models.Outcome) error {
	e := r.engine(o.Symbol)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.cal.AddPrediction(o.Predicted(), o.Success); err != nil {
		return fmt.Errorf("record outcome %s: %w", o.SignalID, err)
	}
	return nil
}

// CalibrationSize reports how many outcomes the symbol's calibrator holds.
func (r *EngineRegistry) CalibrationSize(symbol string) int {
	e := r.engine(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cal.Len()
}

func (r *EngineRegistry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.engines))
	for s := range r.engines {
		out = append(out, s)
	}
	return out
}

// Restore loads persisted calibration windows. Missing or unreadable windows start empty.
func (r *EngineRegistry) Restore(ctx context.Context, symbols []string) {
	if r.store == nil {
		return
	}
	for _, sym := range symbols {
		window, err := r.store.Load(ctx, sym)
		if err != nil {
			r.log.Warn("calibration restore failed", logger.String("symbol", sym), logger.Error(err))
			continue
		}
		if len(window) == 0 {
			continue
		}
		e := r.engine(sym)
		e.mu.Lock()
		e.cal.Restore(window)
		n := e.cal.Len()
		e.mu.Unlock()
		r.log.Info("calibration restored", logger.String("symbol", sym), logger.Int("samples", n))
	}
}

// Persist saves every non-empty calibration window.
func (r *EngineRegistry) Persist(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	var firstErr error
	for _, sym := range r.Symbols() {
		e := r.engine(sym)
		e.mu.Lock()
		window := e.cal.Snapshot()
		e.mu.Unlock()
		if len(window) == 0 {
			continue
		}
		if err := r.store.Save(ctx, sym, window); err != nil {
			r.log.Warn("calibration persist failed", logger.String("symbol", sym), logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
