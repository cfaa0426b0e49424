// Package core runs service requests through extraction, duplicate
// detection and routing, persisting each outcome as it goes.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agenthands/intake/internal/config"
	"github.com/agenthands/intake/internal/core/analysis"
	"github.com/agenthands/intake/internal/core/community"
	"github.com/agenthands/intake/internal/core/dedupe"
	"github.com/agenthands/intake/internal/core/extraction"
	"github.com/agenthands/intake/internal/core/model"
	"github.com/agenthands/intake/internal/core/routing"
	"github.com/agenthands/intake/internal/driver"
	"github.com/agenthands/intake/internal/metrics"
	"github.com/agenthands/intake/internal/notify"
)

// Classifier labels raw request text as an update or a request.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.Label, float64, error)
}

// Notifier is told about every persisted duplicate and routing outcome.
type Notifier interface {
	Notify(ctx context.Context, e notify.Event) error
}

type Stage string

const (
	StageExtraction Stage = "extraction"
	StageDedupe     Stage = "dedupe"
	StageRouting    Stage = "routing"
	StageAnalysis   Stage = "analysis"
	stageCases      Stage = "cases"
)

var ErrUnknownStage = eris.New("unknown stage")

func ParseStage(s string) (Stage, error) {
	switch st := Stage(s); st {
	case StageExtraction, StageDedupe, StageRouting, StageAnalysis:
		return st, nil
	}
	return "", eris.Wrapf(ErrUnknownStage, "%q", s)
}

type RunSummary struct {
	RunID      string `json:"run_id"`
	Stage      string `json:"stage,omitempty"`
	Processed  int    `json:"processed"`
	Duplicates int    `json:"duplicates"`
	Assigned   int    `json:"assigned"`
	Unassigned int    `json:"unassigned"`
	Failed     int    `json:"failed"`
	Cases      int    `json:"cases"`
}

type Pipeline struct {
	repo      driver.Repository
	extractor *extraction.Extractor
	router    *routing.Router
	cases     community.Detector
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string

	patterns []config.FieldPattern
	roster   model.Roster

	// one run at a time per process
	mu sync.Mutex
}

type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithPatterns(patterns []config.FieldPattern) Option {
	return func(p *Pipeline) { p.patterns = patterns }
}

func WithRoster(r model.Roster) Option {
	return func(p *Pipeline) { p.roster = r }
}

func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

func WithCaseDetector(d community.Detector) Option {
	return func(p *Pipeline) { p.cases = d }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(p *Pipeline) { p.newID = gen }
}

func NewPipeline(repo driver.Repository, opts ...Option) *Pipeline {
	p := &Pipeline{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if len(p.patterns) == 0 {
		p.patterns = config.DefaultPatterns()
	}
	if p.roster == nil {
		p.roster = config.DefaultRoster()
	}
	if p.cases == nil {
		p.cases = community.NewLabelPropagationDetector()
	}
	p.extractor = extraction.NewExtractor(p.patterns, p.logger)
	p.router = routing.NewRouter(p.roster)
	return p
}

// Roster returns the roster this pipeline routes against.
func (p *Pipeline) Roster() model.Roster {
	return p.router.Roster()
}

// Run takes every request through extraction, duplicate check and routing
// in repository order, then groups related records into cases. Only a
// failed fetch fails the run; per-record failures are logged and counted.
func (p *Pipeline) Run(ctx context.Context) (RunSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	metrics.Runs.Inc()
	sum := RunSummary{RunID: p.newID()}
	log := p.logger.With(zap.String("run", sum.RunID))

	docs, err := p.repo.FetchAll(ctx, driver.Filter{Classification: string(model.LabelRequest)})
	if err != nil {
		return sum, eris.Wrap(err, "fetch requests")
	}
	log.Info("run started", zap.Int("records", len(docs)))

	idx := dedupe.NewIndex()
	for _, d := range docs {
		rec := decodeRecord(d)

		fields := p.extractor.Extract(rec.Text())
		if err := p.repo.UpdatePartial(ctx, rec.ID, fieldsUpdate(rec, fields)); err != nil {
			p.fail(log, &sum, StageExtraction, rec.ID, err)
			continue
		}

		verdict := idx.CheckAndRegister(rec.ID, fields, rec.Sender)
		if err := p.persistVerdict(ctx, sum.RunID, rec.ID, verdict, &sum); err != nil {
			p.fail(log, &sum, StageDedupe, rec.ID, err)
			continue
		}

		res := p.router.Route(rec.ID, fields)
		if err := p.persistAssignment(ctx, sum.RunID, res, fields, &sum); err != nil {
			p.fail(log, &sum, StageRouting, rec.ID, err)
			continue
		}

		sum.Processed++
	}

	sum.Cases = p.groupCases(ctx, log, idx.Entries(), &sum)

	metrics.RunDuration.Observe(p.now().Sub(start).Seconds())
	log.Info("run finished",
		zap.Int("processed", sum.Processed),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("assigned", sum.Assigned),
		zap.Int("unassigned", sum.Unassigned),
		zap.Int("failed", sum.Failed),
		zap.Int("cases", sum.Cases))
	return sum, nil
}

// RunStage runs one stage on its own.
func (p *Pipeline) RunStage(ctx context.Context, s Stage) (RunSummary, error) {
	switch s {
	case StageExtraction:
		return p.RunExtraction(ctx)
	case StageDedupe:
		return p.RunDedupe(ctx)
	case StageRouting:
		return p.RunRouting(ctx)
	case StageAnalysis:
		return p.RunAnalysis(ctx)
	}
	return RunSummary{}, eris.Wrapf(ErrUnknownStage, "%q", s)
}

func (p *Pipeline) RunExtraction(ctx context.Context) (RunSummary, error) {
	return p.stage(ctx, StageExtraction, driver.Filter{Classification: string(model.LabelRequest)},
		func(ctx context.Context, sum *RunSummary, d driver.Document) error {
			rec := decodeRecord(d)
			fields := p.extractor.Extract(rec.Text())
			if err := p.repo.UpdatePartial(ctx, rec.ID, fieldsUpdate(rec, fields)); err != nil {
				return err
			}
			metrics.RecordsProcessed.WithLabelValues(metrics.OutcomeExtracted).Inc()
			return nil
		})
}

func (p *Pipeline) RunDedupe(ctx context.Context) (RunSummary, error) {
	idx := dedupe.NewIndex()
	return p.stage(ctx, StageDedupe, driver.Filter{HasExtractedFields: true},
		func(ctx context.Context, sum *RunSummary, d driver.Document) error {
			fields, _ := decodeFields(d)
			verdict := idx.CheckAndRegister(d.ID(), fields, stringValue(d[keySender]))
			return p.persistVerdict(ctx, sum.RunID, d.ID(), verdict, sum)
		})
}

func (p *Pipeline) RunRouting(ctx context.Context) (RunSummary, error) {
	return p.stage(ctx, StageRouting, driver.Filter{HasExtractedFields: true},
		func(ctx context.Context, sum *RunSummary, d driver.Document) error {
			fields, _ := decodeFields(d)
			return p.persistAssignment(ctx, sum.RunID, p.router.Route(d.ID(), fields), fields, sum)
		})
}

func (p *Pipeline) RunAnalysis(ctx context.Context) (RunSummary, error) {
	filter := driver.Filter{ExcludeDuplicates: true, Classification: string(model.LabelRequest)}
	return p.stage(ctx, StageAnalysis, filter,
		func(ctx context.Context, sum *RunSummary, d driver.Document) error {
			a := analysis.Analyze(decodeRecord(d), p.now())
			if err := p.repo.UpdatePartial(ctx, d.ID(), analysisUpdate(a)); err != nil {
				return err
			}
			metrics.RecordsProcessed.WithLabelValues(metrics.OutcomeAnalyzed).Inc()
			return nil
		})
}

type recordFunc func(ctx context.Context, sum *RunSummary, d driver.Document) error

func (p *Pipeline) stage(ctx context.Context, s Stage, f driver.Filter, fn recordFunc) (RunSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sum := RunSummary{RunID: p.newID(), Stage: string(s)}
	log := p.logger.With(zap.String("run", sum.RunID), zap.String("stage", string(s)))

	docs, err := p.repo.FetchAll(ctx, f)
	if err != nil {
		return sum, eris.Wrapf(err, "fetch records for %s", s)
	}

	for _, d := range docs {
		if err := fn(ctx, &sum, d); err != nil {
			p.fail(log, &sum, s, d.ID(), err)
			continue
		}
		sum.Processed++
	}

	log.Info("stage finished", zap.Int("processed", sum.Processed), zap.Int("failed", sum.Failed))
	return sum, nil
}

func (p *Pipeline) persistVerdict(ctx context.Context, runID, id string, v model.DuplicateVerdict, sum *RunSummary) error {
	if err := p.repo.UpdatePartial(ctx, id, duplicateUpdate(v)); err != nil {
		return err
	}
	if !v.Duplicate {
		return nil
	}

	sum.Duplicates++
	metrics.RecordsProcessed.WithLabelValues(metrics.OutcomeDuplicate).Inc()
	p.notify(ctx, notify.Event{
		Kind:       notify.KindDuplicate,
		RunID:      runID,
		RecordID:   id,
		OriginalID: v.OriginalID,
	})
	return nil
}

func (p *Pipeline) persistAssignment(ctx context.Context, runID string, res model.AssignmentResult, fields model.ExtractedFields, sum *RunSummary) error {
	if err := p.repo.UpdatePartial(ctx, res.RecordID, assignmentUpdate(res)); err != nil {
		return err
	}

	e := notify.Event{
		Kind:           notify.KindUnassigned,
		RunID:          runID,
		RecordID:       res.RecordID,
		RequestType:    model.Value(fields.RequestType),
		SubRequestType: model.Value(fields.SubRequestType),
	}
	if res.Assigned {
		sum.Assigned++
		metrics.RecordsProcessed.WithLabelValues(metrics.OutcomeAssigned).Inc()
		e.Kind = notify.KindAssigned
		e.HandlerID = res.HandlerID
		e.HandlerName = res.HandlerName
	} else {
		sum.Unassigned++
		metrics.RecordsProcessed.WithLabelValues(metrics.OutcomeUnassigned).Inc()
	}
	p.notify(ctx, e)
	return nil
}

// groupCases writes caseId on every indexed record, clearing it on records
// that no longer belong to a group. It returns the number of cases.
func (p *Pipeline) groupCases(ctx context.Context, log *zap.Logger, entries []model.DuplicateIndexEntry, sum *RunSummary) int {
	cases := community.Cases(entries, p.cases)

	distinct := make(map[string]struct{})
	for _, e := range entries {
		caseID := cases[e.RecordID]
		if caseID != "" {
			distinct[caseID] = struct{}{}
		}
		if err := p.repo.UpdatePartial(ctx, e.RecordID, caseUpdate(caseID)); err != nil {
			metrics.RecordFailures.WithLabelValues(string(stageCases)).Inc()
			log.Warn("case update failed", zap.String("record", e.RecordID), zap.Error(err))
		}
	}
	return len(distinct)
}

func (p *Pipeline) notify(ctx context.Context, e notify.Event) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, e); err != nil {
		p.logger.Warn("notification failed",
			zap.String("record", e.RecordID),
			zap.String("kind", string(e.Kind)),
			zap.Error(err))
	}
}

func (p *Pipeline) fail(log *zap.Logger, sum *RunSummary, s Stage, id string, err error) {
	sum.Failed++
	metrics.RecordFailures.WithLabelValues(string(s)).Inc()
	log.Error("record failed", zap.String("record", id), zap.String("stage", string(s)), zap.Error(err))
}
