// Package signal turns confluence scores into tradeable signals.
package signal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"FinSignal/internal/domain/models"
)

const (
	MinConfidence = 0.3
	MinScore      = 20.0

	DefaultExpiry = 4 * time.Hour

	atrPeriod         = 14
	maxPatterns       = 5
	maxPatternsPerTF  = 2
	minPatternConf    = 0.6
	stopATRMultiple   = 2
	targetATRMultiple = 3
	labelThreshold    = 2.0
	labelInsufficient = "insufficient_data"
)

var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("finsignal.signal"))

// Scorer produces the confluence score a signal is derived from.
type Scorer interface {
	CalculateConfluenceScore(symbol string, bars models.TimeframeBars, patterns models.TimeframePatterns, llm *models.LLMAnalysis) models.ConfluenceScore
}

type Option func(*Generator)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func WithExpiry(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.expiry = d
		}
	}
}

type Generator struct {
	scorer Scorer
	now    func() time.Time
	expiry time.Duration
}

func NewGenerator(scorer Scorer, opts ...Option) *Generator {
	g := &Generator{scorer: scorer, now: time.Now, expiry: DefaultExpiry}
	for _, o := range opts {
		o(g)
	}
	return g
}

// GenerateSignal returns nil when the score is rejected.
func (g *Generator) GenerateSignal(symbol string, bars models.TimeframeBars, patterns models.TimeframePatterns, llm *models.LLMAnalysis) *models.Signal {
	sig, _ := g.Evaluate(symbol, bars, patterns, llm)
	return sig
}

// Evaluate is GenerateSignal that also hands back the underlying score.
func (g *Generator) Evaluate(symbol string, bars models.TimeframeBars, patterns models.TimeframePatterns, llm *models.LLMAnalysis) (*models.Signal, models.ConfluenceScore) {
	score := g.scorer.CalculateConfluenceScore(symbol, bars, patterns, llm)
	return g.FromScore(score, bars, patterns, llm), score
}

// Accepted is the only gate between a score and a signal.
func Accepted(score models.ConfluenceScore) bool {
	return score.Confidence >= MinConfidence && score.TotalScore >= MinScore
}

// RejectionReason explains why a score does not produce a signal, or returns "".
func RejectionReason(score models.ConfluenceScore) string {
	var parts []string
	if score.Unscorable() {
		parts = append(parts, "insufficient data to score")
	}
	if score.Confidence < MinConfidence {
		parts = append(parts, fmt.Sprintf("confidence %.2f below %.2f", score.Confidence, MinConfidence))
	}
	if score.TotalScore < MinScore {
		parts = append(parts, fmt.Sprintf("score %.1f below %.1f", score.TotalScore, MinScore))
	}
	return strings.Join(parts, "; ")
}

// FromScore builds the signal for an already computed score, or nil when rejected.
func (g *Generator) FromScore(score models.ConfluenceScore, bars models.TimeframeBars, patterns models.TimeframePatterns, llm *models.LLMAnalysis) *models.Signal {
	if !Accepted(score) {
		return nil
	}
	primary := score.PrimaryTimeframe
	pbars := bars[primary]
	now := g.now().UTC()

	ts := now
	if len(pbars) > 0 {
		ts = pbars[len(pbars)-1].Timestamp
	}

	sig := &models.Signal{
		ID:               signalID(score.Symbol, primary, ts),
		Symbol:           score.Symbol,
		Direction:        score.Direction,
		ConfluenceScore:  score.TotalScore,
		Confidence:       score.Confidence,
		RawConfidence:    score.RawConfidence,
		Regime:           score.Regime.Regime,
		PrimaryTimeframe: primary,
		Analyses:         analyses(score, bars, patterns),
		Patterns:         selectPatterns(patterns),
		Qualitative:      llm,
		Reasoning:        reasoning(score),
		CreatedAt:        now,
		ExpiresAt:        now.Add(g.expiry),
		Priority:         Priority(score.TotalScore),
	}
	if len(pbars) > 0 {
		entry := pbars[len(pbars)-1].Close
		sig.EntryPrice = &entry
		sig.StopLoss, sig.TakeProfit = levels(score.Direction, entry, pbars)
	}
	return sig
}

func signalID(symbol string, tf models.Timeframe, ts time.Time) string {
	name := fmt.Sprintf("%s|%s|%d", symbol, tf, ts.UTC().UnixNano())
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// Priority maps a score to 1 (weakest) through 5.
func Priority(score float64) int {
	switch {
	case score >= 90:
		return 5
	case score >= 75:
		return 4
	case score >= 60:
		return 3
	case score >= 40:
		return 2
	default:
		return 1
	}
}

// AverageTrueRange over the last period bars, computed in decimal. ok is false with fewer bars.
func AverageTrueRange(bars []models.MarketBar, period int) (decimal.Decimal, bool) {
	if period <= 0 || len(bars) < period {
		return decimal.Zero, false
	}
	start := len(bars) - period
	sum := decimal.Zero
	for i := start; i < len(bars); i++ {
		b := bars[i]
		tr := b.High.Sub(b.Low)
		if i > 0 {
			pc := bars[i-1].Close
			tr = decimal.Max(tr, b.High.Sub(pc).Abs(), b.Low.Sub(pc).Abs())
		}
		sum = sum.Add(tr)
	}
	return sum.Div(decimal.NewFromInt(int64(period))), true
}

func levels(dir models.Direction, entry decimal.Decimal, bars []models.MarketBar) (stop, target *decimal.Decimal) {
	atr, ok := AverageTrueRange(bars, atrPeriod)
	if !ok || !atr.IsPositive() {
		return nil, nil
	}
	sd := atr.Mul(decimal.NewFromInt(stopATRMultiple))
	td := atr.Mul(decimal.NewFromInt(targetATRMultiple))
	var s, t decimal.Decimal
	if dir == models.DirectionLong {
		s, t = entry.Sub(sd), entry.Add(td)
	} else {
		s, t = entry.Add(sd), entry.Sub(td)
	}
	// a non-positive price level is meaningless
	if !s.IsPositive() || !t.IsPositive() {
		return nil, nil
	}
	return &s, &t
}

func analyses(score models.ConfluenceScore, bars models.TimeframeBars, patterns models.TimeframePatterns) []models.TimeframeAnalysis {
	tfs := bars.Ordered()
	out := make([]models.TimeframeAnalysis, 0, len(tfs))
	for _, tf := range tfs {
		pc := patterns[tf]
		a := models.TimeframeAnalysis{
			Timeframe:                  tf,
			BarCount:                   len(bars[tf]),
			PatternCount:               len(pc.Patterns),
			StrongestPatternConfidence: pc.Strongest(),
			Trend:                      labelInsufficient,
			Momentum:                   labelInsufficient,
			Weight:                     score.TimeframeWeights[tf],
		}
		if c, ok := score.TimeframeScores[tf]; ok {
			a.Trend = label(c.Trend)
			a.Momentum = label(c.Momentum)
		}
		out = append(out, a)
	}
	return out
}

func label(v float64) string {
	switch {
	case v > labelThreshold:
		return "bullish"
	case v < -labelThreshold:
		return "bearish"
	default:
		return "neutral"
	}
}

// selectPatterns keeps the most confident patterns: at most two per timeframe, five overall.
func selectPatterns(patterns models.TimeframePatterns) []models.PatternHit {
	var out []models.PatternHit
	for _, tf := range patterns.Ordered() {
		var hits []models.PatternHit
		for _, p := range patterns[tf].Patterns {
			if p.Confidence > minPatternConf {
				hits = append(hits, p)
			}
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Confidence > hits[j].Confidence })
		if len(hits) > maxPatternsPerTF {
			hits = hits[:maxPatternsPerTF]
		}
		out = append(out, hits...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > maxPatterns {
		out = out[:maxPatterns]
	}
	if out == nil {
		out = []models.PatternHit{}
	}
	return out
}

func reasoning(score models.ConfluenceScore) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: confluence %.1f, confidence %.2f, %s regime on %s.",
		score.Direction, score.Symbol, score.TotalScore, score.Confidence, score.Regime.Regime, score.PrimaryTimeframe)
	if len(score.KeyFactors) > 0 {
		fmt.Fprintf(&b, " Key factors: %s.", strings.Join(score.KeyFactors, "; "))
	}
	if len(score.RiskFactors) > 0 {
		fmt.Fprintf(&b, " Risks: %s.", strings.Join(score.RiskFactors, "; "))
	}
	return b.String()
}
