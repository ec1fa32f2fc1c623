package usecase

import (
	"context"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
	"FinSignal/internal/services/indicators"
	"FinSignal/internal/services/regime"
	"FinSignal/pkg/logger"
)

var fixedNow = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

type fakeBars struct {
	bars map[models.Timeframe][]models.MarketBar
	errs map[models.Timeframe]error
}

func (f *fakeBars) GetBars(ctx context.Context, symbol string, _, _ time.Time, tf models.Timeframe) ([]models.MarketBar, error) {
	return f.GetLatestNBars(ctx, symbol, 0, tf)
}

func (f *fakeBars) GetLatestNBars(_ context.Context, _ string, n int, tf models.Timeframe) ([]models.MarketBar, error) {
	if err := f.errs[tf]; err != nil {
		return nil, err
	}
	bars := f.bars[tf]
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

type fakePatterns struct {
	mu    sync.Mutex
	calls []models.Timeframe
	hits  map[models.Timeframe][]models.PatternHit
	err   error
}

func (f *fakePatterns) Detect(_ context.Context, _ string, tf models.Timeframe, _ []models.MarketBar) (models.PatternCollection, error) {
	f.mu.Lock()
	f.calls = append(f.calls, tf)
	f.mu.Unlock()
	if f.err != nil {
		return models.PatternCollection{}, f.err
	}
	return models.PatternCollection{Timeframe: tf, Patterns: f.hits[tf]}, nil
}

type fakeLLM struct {
	out *models.LLMAnalysis
	err error
}

func (f *fakeLLM) Analyze(context.Context, string, models.TimeframeBars) (*models.LLMAnalysis, error) {
	return f.out, f.err
}

type fakeMetrics struct {
	mu          sync.Mutex
	signals     int
	rejections  int
	diagnostics int
	errors      map[string]int
}

func (m *fakeMetrics) RecordSignal(string, string) {
	m.mu.Lock()
	m.signals++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordRejection(string) {
	m.mu.Lock()
	m.rejections++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordDiagnostic(string) {
	m.mu.Lock()
	m.diagnostics++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}

func (m *fakeMetrics) RecordScore(string, float64, float64) {}
func (m *fakeMetrics) RecordLatency(string, float64)        {}

type fakeEmitter struct {
	mu  sync.Mutex
	got []*models.Signal
}

func (e *fakeEmitter) Emit(_ context.Context, s *models.Signal) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, s)
	return true, nil
}

type memCalibrationStore struct {
	mu sync.Mutex
	m  map[string][]models.CalibrationSample
}

func (s *memCalibrationStore) Save(_ context.Context, symbol string, w []models.CalibrationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string][]models.CalibrationSample{}
	}
	s.m[symbol] = append([]models.CalibrationSample(nil), w...)
	return nil
}

func (s *memCalibrationStore) Load(_ context.Context, symbol string) ([]models.CalibrationSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[symbol], nil
}

func newRegistry(store domrepo.CalibrationStore) *EngineRegistry {
	return NewEngineRegistry(EngineSettings{
		MinBars:            50,
		CalibratorCapacity: 100,
		SignalExpiry:       4 * time.Hour,
		Clock:              func() time.Time { return fixedNow },
	}, indicators.NewDefaultEngine(), regime.NewDetector(regime.DefaultConfig()), store, logger.Nop())
}

func patternsOrNil(p *fakePatterns) domsvc.PatternDetector {
	if p == nil {
		return nil
	}
	return p
}

func llmOrNil(l *fakeLLM) domsvc.QualitativeAnalyzer {
	if l == nil {
		return nil
	}
	return l
}

type fakeRunner struct {
	mu    sync.Mutex
	n     int
	emit  map[string]bool
	fail  map[string]bool
	block bool
}

func (r *fakeRunner) Run(ctx context.Context, symbol string) (*Evaluation, error) {
	r.mu.Lock()
	r.n++
	r.mu.Unlock()
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.fail[symbol] {
		return nil, ErrNoData
	}
	return &Evaluation{Symbol: symbol, Emitted: r.emit[symbol]}, nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}
