package core

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agenthands/intake/internal/core/analysis"
	"github.com/agenthands/intake/internal/core/model"
	"github.com/agenthands/intake/internal/driver"
	"github.com/agenthands/intake/internal/metrics"
)

// Ingestor stores raw records, labelling the ones that arrive without a
// classification.
type Ingestor struct {
	Repo       driver.Repository
	Classifier Classifier
	Logger     *zap.Logger
	NewID      func() string
}

// NewIngestor falls back to keyword classification when c is nil.
func NewIngestor(repo driver.Repository, c Classifier, logger *zap.Logger) *Ingestor {
	if c == nil {
		c = analysis.KeywordClassifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		Repo:       repo,
		Classifier: c,
		Logger:     logger,
		NewID:      uuid.NewString,
	}
}

// Ingest returns the record as stored, with its id and label filled in.
func (i *Ingestor) Ingest(ctx context.Context, rec model.RawRecord) (model.RawRecord, error) {
	if rec.ID == "" {
		rec.ID = i.NewID()
	}

	if rec.Label == "" {
		label, confidence, err := i.Classifier.Classify(ctx, rec.Text())
		if err != nil {
			return rec, eris.Wrapf(err, "classify %s", rec.ID)
		}
		rec.Label = label
		rec.Confidence = &confidence
	} else {
		label, err := model.ParseLabel(string(rec.Label))
		if err != nil {
			return rec, err
		}
		rec.Label = label
	}

	if err := i.Repo.Upsert(ctx, encodeRecord(rec)); err != nil {
		return rec, eris.Wrapf(err, "store %s", rec.ID)
	}

	metrics.RecordsProcessed.WithLabelValues(metrics.OutcomeIngested).Inc()
	i.Logger.Info("record ingested",
		zap.String("record", rec.ID),
		zap.String("classification", string(rec.Label)))
	return rec, nil
}
