// Package artifact loads and validates the trained churn classifier and
// the fitted categorical encoders. Both are opaque, immutable inputs:
// loaded once at process start, shared read-only, never refreshed mid-run.
package artifact

// Scorer is the capability the prediction engine depends on. Any
// classifier that maps a feature vector to a probability in [0, 1] is
// substitutable; the engine never sees a concrete model family.
type Scorer interface {
	// Score returns the churn probability for one encoded feature vector.
	Score(features []float64) (float64, error)

	// NumFeatures returns the length of the feature vector the model was
	// fitted on.
	NumFeatures() int

	// FeatureNames returns the training-time feature order. Encoding must
	// follow this order exactly; a mismatch is a configuration error.
	FeatureNames() []string
}
