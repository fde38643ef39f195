package pipeline

import (
	"context"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/dletelier/churnpipe/artifact"
	"github.com/dletelier/churnpipe/encode"
	"github.com/dletelier/churnpipe/internal/parallel"
	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
	pkglog "github.com/dletelier/churnpipe/pkg/log"
	"github.com/dletelier/churnpipe/record"
)

// DefaultThreshold is the decision cutoff used when the caller supplies none.
const DefaultThreshold = 0.4

// BatchScorer is the optional batch capability of a model: scoring a whole
// feature matrix at once. The engine uses it for chunked batch runs when
// no per-record timeout is configured.
type BatchScorer interface {
	PredictProba(X mat.Matrix) (*mat.Dense, error)
}

// Engine scores customer records against the loaded artifacts. It holds
// only read-only state and is safe for concurrent use.
type Engine struct {
	model   artifact.Scorer
	encoder *encode.Encoder
	logger  *slog.Logger

	scoreTimeout time.Duration
	chunkSize    int
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithScoreTimeout guards each model call with a wall-clock timeout; a
// pathological input then fails that record instead of stalling the batch.
func WithScoreTimeout(d time.Duration) Option {
	return func(e *Engine) { e.scoreTimeout = d }
}

// WithLogger replaces the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithChunkSize sets how many records a batch run materializes at a time.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithClock injects the timestamp source; tests pin it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the encoder to the model's feature order. A feature the
// fitted encoders cannot serve fails here, at startup, as a configuration
// error.
func NewEngine(store *artifact.Store, opts ...Option) (*Engine, error) {
	encoder, err := encode.NewEncoder(store.Encoders, store.Model.FeatureNames())
	if err != nil {
		return nil, err
	}

	e := &Engine{
		model:     store.Model,
		encoder:   encoder,
		logger:    slog.Default(),
		chunkSize: 256,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Predict scores one record under the given decision threshold.
func (e *Engine) Predict(ctx context.Context, rec *record.CustomerRecord, threshold float64) (Result, error) {
	if err := validateThreshold(threshold); err != nil {
		return Result{}, err
	}
	if err := rec.Validate(); err != nil {
		return Result{}, err
	}

	vec, fallbacks, err := e.encoder.Encode(rec)
	if err != nil {
		return Result{}, err
	}
	if len(fallbacks) > 0 {
		e.logger.Debug("fallbacks applied while encoding",
			pkglog.CustomerIDKey, rec.CustomerID,
			pkglog.FallbacksKey, len(fallbacks),
			pkglog.StageKey, pkglog.StageEncode)
	}

	p, err := e.score(ctx, vec)
	if err != nil {
		return Result{}, err
	}

	return e.newResult(rec.CustomerID, p, threshold), nil
}

// PredictBatch maps Predict over a record stream. One record's failure is
// captured as a diagnostic and never stops the remaining records; results
// keep input order. A terminal stream error is returned together with the
// report holding everything completed so far, so the caller can still
// flush partial output.
func (e *Engine) PredictBatch(ctx context.Context, stream *record.Stream, threshold float64) (*BatchReport, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}

	started := e.now()
	report := &BatchReport{}
	records := 0
	chunk := make([]*record.CustomerRecord, 0, e.chunkSize)

	for stream.Next() {
		records++
		if rowErr := stream.RowErr(); rowErr != nil {
			report.Failures = append(report.Failures, RecordFailure{
				CustomerID: rowErr.CustomerID,
				Stage:      pkglog.StageLoad,
				Kind:       errorKind(rowErr.Err),
				Message:    rowErr.Error(),
			})
			continue
		}

		chunk = append(chunk, stream.Record())
		if len(chunk) == e.chunkSize {
			if err := e.scoreChunk(ctx, chunk, threshold, report); err != nil {
				return report, err
			}
			chunk = chunk[:0]
		}
	}
	if len(chunk) > 0 {
		if err := e.scoreChunk(ctx, chunk, threshold, report); err != nil {
			return report, err
		}
	}

	e.logger.Info("batch prediction completed",
		pkglog.RecordsKey, records,
		pkglog.SucceededKey, report.Succeeded(),
		pkglog.FailedKey, report.Failed(),
		pkglog.ThresholdKey, threshold,
		pkglog.DurationMsKey, time.Since(started).Milliseconds())

	return report, stream.Err()
}

// scoreChunk scores one materialized chunk, preserving input order. With
// no per-record timeout and a model exposing the batch capability, the
// chunk goes through one matrix call; otherwise records are scored
// individually across workers.
func (e *Engine) scoreChunk(ctx context.Context, recs []*record.CustomerRecord, threshold float64, report *BatchReport) error {
	if batcher, ok := e.model.(BatchScorer); ok && e.scoreTimeout <= 0 {
		return e.scoreChunkBatch(batcher, recs, threshold, report)
	}

	type outcome struct {
		res  Result
		err  error
		enc  bool // failure happened while encoding
	}
	outcomes := make([]outcome, len(recs))

	parallel.ParallelizeWithThreshold(len(recs), 16, func(start, end int) {
		for i := start; i < end; i++ {
			vec, fallbacks, err := e.encoder.Encode(recs[i])
			if err != nil {
				outcomes[i] = outcome{err: err, enc: true}
				continue
			}
			if len(fallbacks) > 0 {
				e.logger.Debug("fallbacks applied while encoding",
					pkglog.CustomerIDKey, recs[i].CustomerID,
					pkglog.FallbacksKey, len(fallbacks),
					pkglog.StageKey, pkglog.StageEncode)
			}
			p, err := e.score(ctx, vec)
			if err != nil {
				outcomes[i] = outcome{err: err}
				continue
			}
			outcomes[i] = outcome{res: e.newResult(recs[i].CustomerID, p, threshold)}
		}
	})

	for i, o := range outcomes {
		if o.err != nil {
			stage := pkglog.StageScore
			if o.enc {
				stage = pkglog.StageEncode
			}
			report.Failures = append(report.Failures, RecordFailure{
				CustomerID: recs[i].CustomerID,
				Stage:      stage,
				Kind:       errorKind(o.err),
				Message:    o.err.Error(),
			})
			continue
		}
		report.Results = append(report.Results, o.res)
	}
	return nil
}

func (e *Engine) scoreChunkBatch(batcher BatchScorer, recs []*record.CustomerRecord, threshold float64, report *BatchReport) error {
	X, fallbacks, err := e.encoder.EncodeBatch(recs)
	if err != nil {
		return err
	}
	probs, err := batcher.PredictProba(X)
	if err != nil {
		// A shape mismatch here is an artifact-versioning problem, not a
		// per-record condition.
		return err
	}
	for i, rec := range recs {
		if len(fallbacks[i]) > 0 {
			e.logger.Debug("fallbacks applied while encoding",
				pkglog.CustomerIDKey, rec.CustomerID,
				pkglog.FallbacksKey, len(fallbacks[i]),
				pkglog.StageKey, pkglog.StageEncode)
		}
		report.Results = append(report.Results, e.newResult(rec.CustomerID, probs.At(i, 0), threshold))
	}
	return nil
}

// score runs the model, honoring the configured timeout and the caller's
// context deadline.
func (e *Engine) score(ctx context.Context, features []float64) (float64, error) {
	if e.scoreTimeout <= 0 && ctx.Done() == nil {
		return e.model.Score(features)
	}

	if e.scoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.scoreTimeout)
		defer cancel()
	}

	type scored struct {
		p   float64
		err error
	}
	done := make(chan scored, 1)
	go func() {
		p, err := e.model.Score(features)
		done <- scored{p, err}
	}()

	select {
	case <-ctx.Done():
		return 0, pkgerrors.Wrapf(errScoreTimeout, "%v", ctx.Err())
	case s := <-done:
		return s.p, s.err
	}
}

func (e *Engine) newResult(customerID string, p, threshold float64) Result {
	return Result{
		CustomerID:          customerID,
		ChurnProbability:    round4(p),
		WillChurn:           p >= threshold,
		RiskLevel:           RiskLevel(p),
		Confidence:          ConfidenceLevel(p),
		ThresholdUsed:       threshold,
		PredictionTimestamp: e.now().Format(time.RFC3339),
	}
}

func validateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return pkgerrors.NewValidationError("threshold", "must be in [0,1]", t)
	}
	return nil
}
