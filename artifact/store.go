package artifact

import (
	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

// Store holds the loaded model and encoders for the process lifetime.
// Construct it once in main and inject it; both members are immutable
// after Load and safe to share across scoring workers without locking.
type Store struct {
	Model    Scorer
	Encoders *EncoderSet

	modelPath    string
	encodersPath string
}

// Load reads both artifacts and cross-validates them. All failure modes
// here are configuration errors: the process must not reach prediction
// with a store that failed to load.
func Load(modelPath, encodersPath string) (*Store, error) {
	model, err := LoadModel(modelPath)
	if err != nil {
		return nil, err
	}
	encoders, err := LoadEncoders(encodersPath)
	if err != nil {
		return nil, err
	}

	s := &Store{
		Model:        model,
		Encoders:     encoders,
		modelPath:    modelPath,
		encodersPath: encodersPath,
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

// Check verifies structural consistency between the model and the
// encoders without performing any prediction. It backs the CLI's check
// mode: a smoke test of artifact presence and shape, not of predictive
// quality.
func (s *Store) Check() error {
	for _, name := range s.Model.FeatureNames() {
		switch name {
		case "tenure_group":
			if s.Encoders.TenureGroups == nil {
				return pkgerrors.NewArtifactCorruptError("encoders", s.encodersPath,
					"model expects feature tenure_group but the artifact carries no tenure bucket metadata")
			}
			if _, ok := s.Encoders.Encoder("tenure_group"); !ok {
				return pkgerrors.NewArtifactCorruptError("encoders", s.encodersPath,
					"model expects feature tenure_group but no fitted encoder covers it")
			}
		case "total_services":
			if s.Encoders.Services == nil {
				return pkgerrors.NewArtifactCorruptError("encoders", s.encodersPath,
					"model expects feature total_services but the artifact carries no service count metadata")
			}
		}
	}

	// Tenure bucket labels must be encodable, or every record would hit
	// the unseen-value fallback on a derived feature.
	if s.Encoders.TenureGroups != nil {
		if enc, ok := s.Encoders.Encoder("tenure_group"); ok {
			for _, label := range s.Encoders.TenureGroups.Labels {
				if _, seen := enc.Transform(label); !seen {
					return pkgerrors.NewArtifactCorruptError("encoders", s.encodersPath,
						"tenure bucket label "+label+" is missing from the tenure_group vocabulary")
				}
			}
		}
	}

	return nil
}

// ModelPath returns the path the model artifact was loaded from.
func (s *Store) ModelPath() string { return s.modelPath }

// EncodersPath returns the path the encoder artifact was loaded from.
func (s *Store) EncodersPath() string { return s.encodersPath }
