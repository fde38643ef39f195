// Package encode transforms raw customer records into the exact numeric
// feature vectors the classifier was fitted on. Feature order comes from
// the model artifact and derived-feature constants from the encoder
// artifact, so encoding at inference time is bit-for-bit the encoding
// used at training time.
package encode

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/dletelier/churnpipe/artifact"
	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
	"github.com/dletelier/churnpipe/record"
)

// Derived feature names shared between training and inference.
const (
	tenureGroupFeature   = "tenure_group"
	totalServicesFeature = "total_services"
)

// coercionSentinel replaces numeric values that cannot be parsed; blank
// TotalCharges for zero-tenure customers lands here.
const coercionSentinel = 0.0

// FallbackKind classifies a recoverable value-level substitution.
type FallbackKind string

const (
	// FallbackUnseenCategory marks a categorical value outside the
	// training vocabulary, replaced by the encoder's default class.
	FallbackUnseenCategory FallbackKind = "unseen_category"
	// FallbackNumericCoercion marks an uncoercible numeric value,
	// replaced by a sentinel.
	FallbackNumericCoercion FallbackKind = "numeric_coercion"
)

// Fallback records one substitution applied while encoding a record.
// The original value is preserved so consumers can audit how often the
// fallback fires.
type Fallback struct {
	Kind        FallbackKind `json:"kind"`
	Field       string       `json:"field"`
	Value       string       `json:"value"`
	Substituted string       `json:"substituted"`
}

// Encoder maps CustomerRecords to feature vectors in the model's feature
// order. Construction validates that every feature name is resolvable, so
// an artifact-versioning mismatch fails at startup, never per record.
type Encoder struct {
	set          *artifact.EncoderSet
	featureNames []string
}

// NewEncoder builds an encoder for the given training-time feature order.
func NewEncoder(set *artifact.EncoderSet, featureNames []string) (*Encoder, error) {
	if len(featureNames) == 0 {
		return nil, pkgerrors.NewFeatureMismatchError("encode.NewEncoder", 1, 0)
	}

	for _, name := range featureNames {
		switch {
		case name == tenureGroupFeature:
			if set.TenureGroups == nil {
				return nil, pkgerrors.NewUnresolvableFeatureError("encode.NewEncoder", name)
			}
			if _, ok := set.Encoder(name); !ok {
				return nil, pkgerrors.NewUnresolvableFeatureError("encode.NewEncoder", name)
			}
		case name == totalServicesFeature:
			if set.Services == nil {
				return nil, pkgerrors.NewUnresolvableFeatureError("encode.NewEncoder", name)
			}
		case record.IsNumericField(name):
			// Served directly from the record.
		case record.IsCategoricalField(name):
			if _, ok := set.Encoder(name); !ok {
				return nil, pkgerrors.NewUnresolvableFeatureError("encode.NewEncoder", name)
			}
		default:
			return nil, pkgerrors.NewUnresolvableFeatureError("encode.NewEncoder", name)
		}
	}

	return &Encoder{set: set, featureNames: featureNames}, nil
}

// NumFeatures returns the length of produced vectors.
func (e *Encoder) NumFeatures() int { return len(e.featureNames) }

// FeatureNames returns the feature order the encoder produces.
func (e *Encoder) FeatureNames() []string { return e.featureNames }

// Encode produces the feature vector for one record. Encoding is
// deterministic; recoverable substitutions are returned as fallbacks and
// raised through the warning handler with the record id.
func (e *Encoder) Encode(rec *record.CustomerRecord) ([]float64, []Fallback, error) {
	vec := make([]float64, len(e.featureNames))
	var fallbacks []Fallback

	for i, name := range e.featureNames {
		switch {
		case name == tenureGroupFeature:
			label := e.set.TenureGroups.Label(rec.Tenure)
			vec[i] = e.encodeCategory(rec, name, label, &fallbacks)

		case name == totalServicesFeature:
			vec[i] = float64(e.set.Services.Count(rec.CategoricalValue))

		case name == "TotalCharges":
			vec[i] = e.coerceTotalCharges(rec, &fallbacks)

		case record.IsNumericField(name):
			v, _ := rec.NumericValue(name)
			vec[i] = v

		default:
			value, _ := rec.CategoricalValue(name)
			vec[i] = e.encodeCategory(rec, name, value, &fallbacks)
		}
	}

	return vec, fallbacks, nil
}

// EncodeBatch stacks the vectors of many records into one matrix for the
// batch scoring path, with per-record fallbacks in matching order.
func (e *Encoder) EncodeBatch(recs []*record.CustomerRecord) (*mat.Dense, [][]Fallback, error) {
	if len(recs) == 0 {
		return nil, nil, pkgerrors.ErrEmptySource
	}

	X := mat.NewDense(len(recs), len(e.featureNames), nil)
	all := make([][]Fallback, len(recs))
	for i, rec := range recs {
		vec, fallbacks, err := e.Encode(rec)
		if err != nil {
			return nil, nil, err
		}
		X.SetRow(i, vec)
		all[i] = fallbacks
	}
	return X, all, nil
}

func (e *Encoder) encodeCategory(rec *record.CustomerRecord, field, value string, fallbacks *[]Fallback) float64 {
	enc, _ := e.set.Encoder(field)
	code, seen := enc.Transform(value)
	if !seen {
		substituted := enc.DefaultClass()
		*fallbacks = append(*fallbacks, Fallback{
			Kind:        FallbackUnseenCategory,
			Field:       field,
			Value:       value,
			Substituted: substituted,
		})
		pkgerrors.Warn(pkgerrors.NewUnseenCategoryWarning(rec.CustomerID, field, value, substituted))
	}
	return code
}

func (e *Encoder) coerceTotalCharges(rec *record.CustomerRecord, fallbacks *[]Fallback) float64 {
	raw := strings.TrimSpace(string(rec.TotalCharges))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		*fallbacks = append(*fallbacks, Fallback{
			Kind:        FallbackNumericCoercion,
			Field:       "TotalCharges",
			Value:       raw,
			Substituted: strconv.FormatFloat(coercionSentinel, 'f', -1, 64),
		})
		pkgerrors.Warn(pkgerrors.NewNumericCoercionWarning(rec.CustomerID, "TotalCharges", raw, coercionSentinel))
		return coercionSentinel
	}
	return v
}
