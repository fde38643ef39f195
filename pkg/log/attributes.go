// Standard attribute keys for pipeline logging. Using these keys keeps
// log lines filterable across the load, encode, and score stages.
package log

// Record and operation context.
const (
	// CustomerIDKey identifies the record being processed.
	CustomerIDKey = "customer.id"

	// StageKey names the pipeline stage emitting the log line.
	// Standard values: "load", "encode", "score", "check".
	StageKey = "pipeline.stage"

	// SourceKey names the input source being read.
	SourceKey = "input.source"

	// ModeKey is the processing mode, "single" or "batch".
	ModeKey = "input.mode"
)

// Artifact context.
const (
	// ModelPathKey is the path of the loaded model artifact.
	ModelPathKey = "artifact.model_path"

	// EncodersPathKey is the path of the loaded encoder artifact.
	EncodersPathKey = "artifact.encoders_path"

	// ModelNameKey is the name recorded inside the model artifact.
	ModelNameKey = "artifact.model_name"

	// ModelVersionKey is the version recorded inside the model artifact.
	ModelVersionKey = "artifact.model_version"

	// FeaturesKey is the number of features the model expects.
	FeaturesKey = "artifact.features"

	// EncodersKey is the number of fitted per-field encoders.
	EncodersKey = "artifact.encoders"
)

// Fallback observability. A high fallback rate signals encoder or model
// staleness, so these are always logged with the record id.
const (
	// FieldKey is the field a fallback fired on.
	FieldKey = "fallback.field"

	// OffendingValueKey is the raw value that triggered the fallback.
	OffendingValueKey = "fallback.value"

	// SubstitutedValueKey is the value used in place of the offending one.
	SubstitutedValueKey = "fallback.substituted"

	// FallbacksKey counts fallbacks applied while encoding one record.
	FallbacksKey = "fallback.count"
)

// Prediction and batch context.
const (
	// ThresholdKey is the decision threshold in effect.
	ThresholdKey = "prediction.threshold"

	// ProbabilityKey is the churn probability produced by the model.
	ProbabilityKey = "prediction.probability"

	// RecordsKey counts records read from the source.
	RecordsKey = "batch.records"

	// SucceededKey counts records that produced a prediction.
	SucceededKey = "batch.succeeded"

	// FailedKey counts records captured as failure diagnostics.
	FailedKey = "batch.failed"

	// DurationMsKey records elapsed wall time in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Standard stage values.
const (
	StageLoad   = "load"
	StageEncode = "encode"
	StageScore  = "score"
	StageCheck  = "check"
)
