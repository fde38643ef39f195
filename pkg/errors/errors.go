// Package errors provides the error taxonomy and warning system for the
// churn inference pipeline. Fatal conditions (missing artifacts, parse
// failures, shape mismatches) are typed errors carrying stack traces via
// cockroachdb/errors; recoverable value-level issues (unseen categories,
// uncoercible numerics) are warnings routed through a pluggable handler
// so the fallback rate stays observable.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("churnpipe-warning: %v\n", w)
	}
)

// SetWarningHandler replaces the process-wide warning handler. The handler
// receives every recoverable fallback raised during encoding, so a caller
// can count, silence, or re-route them.
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// Warn raises a recoverable warning through the configured handler.
// Warnings never abort the record that produced them.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ZerologWarningHandler returns a warning handler that renders warnings as
// structured zerolog events. Warnings implementing
// zerolog.LogObjectMarshaler are embedded field by field.
func ZerologWarningHandler(logger zerolog.Logger) func(w error) {
	return func(w error) {
		ev := logger.Warn()
		if obj, ok := w.(zerolog.LogObjectMarshaler); ok {
			ev.EmbedObject(obj)
		}
		ev.Msg(w.Error())
	}
}

// ===========================================================================
//
//	Recoverable fallback warnings
//
// ===========================================================================

// UnseenCategoryWarning is raised when a categorical value was never
// observed during training and the encoder substituted its designated
// default class. The offending and substituted values are both kept so
// downstream analysts can audit how often the fallback fires.
type UnseenCategoryWarning struct {
	CustomerID  string
	Field       string
	Value       string
	Substituted string
}

func (w *UnseenCategoryWarning) Error() string {
	return fmt.Sprintf("unseen category %q in field %q for customer %s, substituted %q",
		w.Value, w.Field, w.CustomerID, w.Substituted)
}

// MarshalZerologObject adds the structured warning fields to a zerolog event.
func (w *UnseenCategoryWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("customer_id", w.CustomerID).
		Str("field", w.Field).
		Str("value", w.Value).
		Str("substituted", w.Substituted).
		Str("type", "UnseenCategoryWarning")
}

// NewUnseenCategoryWarning creates a new UnseenCategoryWarning.
func NewUnseenCategoryWarning(customerID, field, value, substituted string) *UnseenCategoryWarning {
	return &UnseenCategoryWarning{CustomerID: customerID, Field: field, Value: value, Substituted: substituted}
}

// NumericCoercionWarning is raised when a text-encoded numeric field could
// not be parsed and the encoder fell back to a numeric sentinel.
type NumericCoercionWarning struct {
	CustomerID string
	Field      string
	Value      string
	Sentinel   float64
}

func (w *NumericCoercionWarning) Error() string {
	return fmt.Sprintf("uncoercible numeric %q in field %q for customer %s, defaulted to %g",
		w.Value, w.Field, w.CustomerID, w.Sentinel)
}

// MarshalZerologObject adds the structured warning fields to a zerolog event.
func (w *NumericCoercionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("customer_id", w.CustomerID).
		Str("field", w.Field).
		Str("value", w.Value).
		Float64("sentinel", w.Sentinel).
		Str("type", "NumericCoercionWarning")
}

// NewNumericCoercionWarning creates a new NumericCoercionWarning.
func NewNumericCoercionWarning(customerID, field, value string, sentinel float64) *NumericCoercionWarning {
	return &NumericCoercionWarning{CustomerID: customerID, Field: field, Value: value, Sentinel: sentinel}
}

// ===========================================================================
//
//	Fatal error types
//
// ===========================================================================

// ArtifactNotFoundError indicates a model or encoder artifact path does not
// resolve to a readable file.
type ArtifactNotFoundError struct {
	Kind string // "model" or "encoders"
	Path string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("churnpipe: %s artifact not found at %s", e.Kind, e.Path)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ArtifactNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("artifact_kind", e.Kind).
		Str("path", e.Path).
		Str("type", "ArtifactNotFoundError")
}

// NewArtifactNotFoundError creates a new ArtifactNotFoundError with a stack trace.
func NewArtifactNotFoundError(kind, path string) error {
	return errors.WithStack(&ArtifactNotFoundError{Kind: kind, Path: path})
}

// ArtifactCorruptError indicates an artifact deserialized structurally but
// does not expose the expected scoring or encoding capability.
type ArtifactCorruptError struct {
	Kind   string
	Path   string
	Reason string
}

func (e *ArtifactCorruptError) Error() string {
	return fmt.Sprintf("churnpipe: %s artifact at %s is unusable: %s", e.Kind, e.Path, e.Reason)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ArtifactCorruptError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("artifact_kind", e.Kind).
		Str("path", e.Path).
		Str("reason", e.Reason).
		Str("type", "ArtifactCorruptError")
}

// NewArtifactCorruptError creates a new ArtifactCorruptError with a stack trace.
func NewArtifactCorruptError(kind, path, reason string) error {
	return errors.WithStack(&ArtifactCorruptError{Kind: kind, Path: path, Reason: reason})
}

// ParseError indicates a structurally corrupt input source: unreadable
// encoding, truncated content, or a schema mismatch against the required
// field set. Row is 1-based and 0 when the failure is not row-scoped.
type ParseError struct {
	Source string
	Row    int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("churnpipe: parse error in %s at row %d: %s", e.Source, e.Row, e.Reason)
	}
	return fmt.Sprintf("churnpipe: parse error in %s: %s", e.Source, e.Reason)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ParseError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("source", e.Source).
		Int("row", e.Row).
		Str("reason", e.Reason).
		Str("type", "ParseError")
}

// NewParseError creates a new ParseError with a stack trace.
func NewParseError(source string, row int, reason string) error {
	return errors.WithStack(&ParseError{Source: source, Row: row, Reason: reason})
}

// FeatureMismatchError indicates the feature vector cannot be made to match
// the model's expected input shape. This is a model-and-encoder versioning
// problem, never a per-record condition, and must not be silently coerced.
type FeatureMismatchError struct {
	Op       string
	Feature  string // offending feature name, empty for pure length mismatches
	Expected int
	Got      int
}

func (e *FeatureMismatchError) Error() string {
	if e.Feature != "" {
		return fmt.Sprintf("churnpipe: %s: feature %q cannot be resolved by the fitted encoders", e.Op, e.Feature)
	}
	return fmt.Sprintf("churnpipe: %s: feature vector length mismatch, expected %d, got %d", e.Op, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *FeatureMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("feature", e.Feature).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("type", "FeatureMismatchError")
}

// NewFeatureMismatchError creates a length-mismatch FeatureMismatchError with a stack trace.
func NewFeatureMismatchError(op string, expected, got int) error {
	return errors.WithStack(&FeatureMismatchError{Op: op, Expected: expected, Got: got})
}

// NewUnresolvableFeatureError creates a FeatureMismatchError for a feature
// name that neither an encoder, a numeric field, nor derived metadata can serve.
func NewUnresolvableFeatureError(op, feature string) error {
	return errors.WithStack(&FeatureMismatchError{Op: op, Feature: feature})
}

// ValidationError indicates an input parameter failed validation, e.g. a
// decision threshold outside [0,1] or a target label column in input data.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("churnpipe: validation failed for %q: %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a new ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// UsageError indicates the caller invoked an operation in a way the
// pipeline cannot honor, e.g. single mode against a multi-record source.
type UsageError struct {
	Op      string
	Message string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("churnpipe: %s: %s", e.Op, e.Message)
}

// NewUsageError creates a new UsageError with a stack trace.
func NewUsageError(op, message string) error {
	return errors.WithStack(&UsageError{Op: op, Message: message})
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates an error with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ErrEmptySource is returned when an input source yields no records.
var ErrEmptySource = New("empty input source")
