package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	pkgkafka "FinSignal/pkg/kafka"
	"FinSignal/pkg/logger"
)

// OutcomeHandler feeds realised signal outcomes into the per-symbol calibrators.
// It consumes the outcome topic and also backs POST /api/outcome.
type OutcomeHandler struct {
	topic   string
	engines *EngineRegistry
	metrics domrepo.Metrics
	log     *logger.Logger
}

var _ pkgkafka.MessageHandler = (*OutcomeHandler)(nil)

func NewOutcomeHandler(topic string, engines *EngineRegistry, metrics domrepo.Metrics, log *logger.Logger) *OutcomeHandler {
	return &OutcomeHandler{topic: topic, engines: engines, metrics: metrics, log: log}
}

func (h *OutcomeHandler) Topic() string { return h.topic }

// Handle decodes one outcome. Malformed messages are permanent failures.
func (h *OutcomeHandler) Handle(_ context.Context, b []byte) error {
	var o models.Outcome
	if err := json.Unmarshal(b, &o); err != nil {
		h.metrics.RecordError("outcome_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode outcome: %w", err))
	}
	if err := h.Record(o); err != nil {
		return pkgkafka.Permanent(err)
	}
	return nil
}

// Record validates and applies one outcome.
func (h *OutcomeHandler) Record(o models.Outcome) error {
	if o.Symbol == "" {
		h.metrics.RecordError("outcome_invalid")
		return fmt.Errorf("outcome %s: symbol required", o.SignalID)
	}
	if err := h.engines.RecordOutcome(o); err != nil {
		h.metrics.RecordError("outcome_invalid")
		return err
	}
	h.log.Debug("outcome recorded",
		logger.String("symbol", o.Symbol),
		logger.String("signal_id", o.SignalID),
		logger.Float("predicted", o.Predicted()),
		logger.Bool("success", o.Success),
		logger.Int("window", h.engines.CalibrationSize(o.Symbol)))
	return nil
}
