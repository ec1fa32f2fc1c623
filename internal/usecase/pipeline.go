package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
	"FinSignal/internal/services/confluence"
	"FinSignal/internal/services/signal"
	"FinSignal/pkg/logger"
)

// ErrNoData is returned when none of the requested timeframes has any bars.
var ErrNoData = errors.New("no bars available")

// Emitter hands accepted signals downstream.
type Emitter interface {
	Emit(ctx context.Context, s *models.Signal) (bool, error)
}

// PipelineConfig selects the timeframes and optional inputs of an evaluation.
type PipelineConfig struct {
	Timeframes     []models.Timeframe
	BarLimit       int
	UsePatterns    bool
	UseQualitative bool
}

// SignalPipeline gathers bars, patterns and the qualitative read for a symbol,
// scores them and emits accepted signals.
type SignalPipeline struct {
	cfg       PipelineConfig
	bars      domrepo.BarStore
	patterns  domsvc.PatternDetector
	llm       domsvc.QualitativeAnalyzer
	engines   *EngineRegistry
	indicator domsvc.IndicatorEngine
	detector  confluence.RegimeDetector
	emitter   Emitter
	metrics   domrepo.Metrics
	log       *logger.Logger
}

func NewSignalPipeline(
	cfg PipelineConfig,
	bars domrepo.BarStore,
	patterns domsvc.PatternDetector,
	llm domsvc.QualitativeAnalyzer,
	engines *EngineRegistry,
	indicator domsvc.IndicatorEngine,
	detector confluence.RegimeDetector,
	emitter Emitter,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *SignalPipeline {
	if !cfg.UsePatterns {
		patterns = nil
	}
	if !cfg.UseQualitative {
		llm = nil
	}
	return &SignalPipeline{
		cfg:       cfg,
		bars:      bars,
		patterns:  patterns,
		llm:       llm,
		engines:   engines,
		indicator: indicator,
		detector:  detector,
		emitter:   emitter,
		metrics:   metrics,
		log:       log,
	}
}

// Inputs is everything a scan gathered for one symbol. Errors holds the failed
// fetches by source, e.g. "bars.H1" or "qualitative".
type Inputs struct {
	Bars     models.TimeframeBars
	Patterns models.TimeframePatterns
	LLM      *models.LLMAnalysis
	Errors   map[string]string
}

// Evaluation is the outcome of scoring one symbol.
type Evaluation struct {
	Symbol  string                 `json:"symbol"`
	Signal  *models.Signal         `json:"signal,omitempty"`
	Score   models.ConfluenceScore `json:"score"`
	Emitted bool                   `json:"emitted"`
	Reason  string                 `json:"reason,omitempty"`
	Errors  map[string]string      `json:"errors,omitempty"`
}

// Gather fetches bars for every timeframe concurrently, then patterns per
// timeframe and the qualitative read concurrently. Failed fetches are recorded
// and the timeframe or input is left out.
func (p *SignalPipeline) Gather(ctx context.Context, symbol string, tfs []models.Timeframe) Inputs {
	if len(tfs) == 0 {
		tfs = p.cfg.Timeframes
	}
	in := Inputs{
		Bars:     models.TimeframeBars{},
		Patterns: models.TimeframePatterns{},
		Errors:   map[string]string{},
	}
	var mu sync.Mutex
	fail := func(key string, err error) {
		mu.Lock()
		in.Errors[key] = err.Error()
		mu.Unlock()
		p.metrics.RecordError("fetch_" + key)
	}

	var wg sync.WaitGroup
	for _, tf := range tfs {
		wg.Add(1)
		go func(tf models.Timeframe) {
			defer wg.Done()
			start := time.Now()
			bars, err := p.bars.GetLatestNBars(ctx, symbol, p.cfg.BarLimit, tf)
			p.metrics.RecordLatency("get_bars", time.Since(start).Seconds())
			if err != nil {
				fail("bars."+string(tf), err)
				return
			}
			if len(bars) == 0 {
				return
			}
			mu.Lock()
			in.Bars[tf] = bars
			mu.Unlock()
		}(tf)
	}
	wg.Wait()

	if p.patterns != nil {
		for tf, bars := range in.Bars {
			wg.Add(1)
			go func(tf models.Timeframe, bars []models.MarketBar) {
				defer wg.Done()
				pc, err := p.patterns.Detect(ctx, symbol, tf, bars)
				if err != nil {
					fail("patterns."+string(tf), err)
					return
				}
				mu.Lock()
				in.Patterns[tf] = pc
				mu.Unlock()
			}(tf, bars)
		}
	}
	if p.llm != nil && len(in.Bars) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			llm, err := p.llm.Analyze(ctx, symbol, in.Bars)
			if err != nil {
				fail("qualitative", err)
				return
			}
			mu.Lock()
			in.LLM = llm
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(in.Errors) == 0 {
		in.Errors = nil
	}
	return in
}

// Score gathers inputs and scores them without emitting anything.
func (p *SignalPipeline) Score(ctx context.Context, symbol string, tfs []models.Timeframe) (*Evaluation, error) {
	in := p.Gather(ctx, symbol, tfs)
	if len(in.Bars) == 0 {
		return &Evaluation{Symbol: symbol, Errors: in.Errors}, fmt.Errorf("score %s: %w", symbol, ErrNoData)
	}

	start := time.Now()
	sig, score := p.engines.Evaluate(symbol, in.Bars, in.Patterns, in.LLM)
	p.metrics.RecordLatency("score", time.Since(start).Seconds())
	p.metrics.RecordScore(symbol, score.TotalScore, score.Confidence)
	p.logDiagnostics(symbol, score.Diagnostics)

	ev := &Evaluation{Symbol: symbol, Signal: sig, Score: score, Errors: in.Errors}
	if sig == nil {
		ev.Reason = signal.RejectionReason(score)
	}
	return ev, nil
}

// Run scores symbol and emits the signal if the gate accepts it.
func (p *SignalPipeline) Run(ctx context.Context, symbol string) (*Evaluation, error) {
	ev, err := p.Score(ctx, symbol, nil)
	if err != nil {
		p.metrics.RecordError("no_data")
		return ev, err
	}
	if ev.Signal == nil {
		p.metrics.RecordRejection(symbol)
		p.log.Debug("signal rejected",
			logger.String("symbol", symbol),
			logger.Float("score", ev.Score.TotalScore),
			logger.Float("confidence", ev.Score.Confidence),
			logger.String("reason", ev.Reason))
		return ev, nil
	}

	emitted, err := p.emitter.Emit(ctx, ev.Signal)
	ev.Emitted = emitted
	if err != nil {
		p.log.Warn("signal emit failed",
			logger.String("symbol", symbol),
			logger.String("signal_id", ev.Signal.ID),
			logger.Error(err))
	}
	if emitted {
		p.metrics.RecordSignal(symbol, string(ev.Signal.Direction))
		p.log.Info("signal emitted",
			logger.String("symbol", symbol),
			logger.String("signal_id", ev.Signal.ID),
			logger.String("direction", string(ev.Signal.Direction)),
			logger.Float("score", ev.Signal.ConfluenceScore),
			logger.Float("confidence", ev.Signal.Confidence),
			logger.Int("priority", ev.Signal.Priority))
	}
	return ev, nil
}

// RegimeView is the regime classification of one timeframe.
type RegimeView struct {
	Symbol    string            `json:"symbol"`
	Timeframe models.Timeframe  `json:"timeframe"`
	Bars      int               `json:"bars"`
	Regime    models.RegimeData `json:"regime"`
}

// Regime classifies a single timeframe of symbol.
func (p *SignalPipeline) Regime(ctx context.Context, symbol string, tf models.Timeframe) (*RegimeView, error) {
	bars, err := p.bars.GetLatestNBars(ctx, symbol, p.cfg.BarLimit, tf)
	if err != nil {
		return nil, fmt.Errorf("regime %s %s: %w", symbol, tf, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("regime %s %s: %w", symbol, tf, ErrNoData)
	}
	rd := p.detector.DetectRegime(bars, p.indicator.Compute(bars))
	p.logDiagnostics(symbol, rd.Diagnostics)
	return &RegimeView{Symbol: symbol, Timeframe: tf, Bars: len(bars), Regime: rd}, nil
}

func (p *SignalPipeline) logDiagnostics(symbol string, ds []models.Diagnostic) {
	for _, d := range ds {
		p.metrics.RecordDiagnostic(d.Source)
		p.log.Warn("degraded computation",
			logger.String("symbol", symbol),
			logger.String("tf", string(d.Timeframe)),
			logger.String("source", d.Source),
			logger.Error(d.Err))
	}
}
