// Package pipeline orchestrates record loading, feature encoding, and
// model scoring into business-facing churn predictions, for one record or
// a batch.
package pipeline

import (
	"encoding/json"
	"io"
	"math"
	"time"

	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

// Risk tier boundaries. Risk is a pure function of the probability,
// independent of the caller's decision threshold; the two may disagree.
const (
	highRiskBoundary   = 0.7
	mediumRiskBoundary = 0.4
)

// Confidence tier boundaries on the distance to the indecision point 0.5.
const (
	highConfidenceBoundary   = 0.3
	mediumConfidenceBoundary = 0.15
)

// RiskLevel buckets a churn probability. Boundary values belong to the
// higher tier.
func RiskLevel(p float64) string {
	switch {
	case p >= highRiskBoundary:
		return "High Risk"
	case p >= mediumRiskBoundary:
		return "Medium Risk"
	default:
		return "Low Risk"
	}
}

// ConfidenceLevel buckets the distance between a probability and the
// indecision point 0.5. Boundary values belong to the higher tier.
func ConfidenceLevel(p float64) string {
	d := math.Abs(p - 0.5)
	switch {
	case d >= highConfidenceBoundary:
		return "High"
	case d >= mediumConfidenceBoundary:
		return "Medium"
	default:
		return "Low"
	}
}

// Result is one scored record, immutable once created.
type Result struct {
	CustomerID          string  `json:"customer_id"`
	ChurnProbability    float64 `json:"churn_probability"`
	WillChurn           bool    `json:"will_churn"`
	RiskLevel           string  `json:"risk_level"`
	Confidence          string  `json:"confidence"`
	ThresholdUsed       float64 `json:"threshold_used"`
	PredictionTimestamp string  `json:"prediction_timestamp"`
}

// RecordFailure is one per-record diagnostic from a batch run.
type RecordFailure struct {
	CustomerID string `json:"customer_id,omitempty"`
	Stage      string `json:"stage"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

// BatchReport aggregates a batch run: successful predictions in input
// order plus the failure diagnostics captured along the way.
type BatchReport struct {
	Results  []Result        `json:"results"`
	Failures []RecordFailure `json:"failures"`
}

// Succeeded returns the number of scored records.
func (r *BatchReport) Succeeded() int { return len(r.Results) }

// Failed returns the number of failure diagnostics.
func (r *BatchReport) Failed() int { return len(r.Failures) }

// WriteResult serializes a single-mode result document.
func WriteResult(w io.Writer, res Result) error {
	return writeJSON(w, res)
}

// WriteReport serializes a batch-mode result document.
func WriteReport(w io.Writer, rep *BatchReport) error {
	return writeJSON(w, rep)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return pkgerrors.Wrap(err, "writing results")
	}
	return nil
}

// DefaultOutputPath names the result document when the caller gives none.
func DefaultOutputPath(now time.Time) string {
	return "churn_prediction_results_" + now.Format("20060102_150405") + ".json"
}

// round4 rounds the probability for the output contract; decisions and
// tiers use the unrounded value.
func round4(p float64) float64 {
	return math.Round(p*10000) / 10000
}

// errorKind maps a failure to a stable diagnostic kind.
func errorKind(err error) string {
	var (
		parseErr      *pkgerrors.ParseError
		validationErr *pkgerrors.ValidationError
		mismatchErr   *pkgerrors.FeatureMismatchError
	)
	switch {
	case pkgerrors.As(err, &parseErr):
		return "parse_error"
	case pkgerrors.As(err, &validationErr):
		return "validation_error"
	case pkgerrors.As(err, &mismatchErr):
		return "feature_mismatch"
	case pkgerrors.Is(err, errScoreTimeout):
		return "score_timeout"
	default:
		return "internal_error"
	}
}

var errScoreTimeout = pkgerrors.New("scoring timed out")
