package artifact

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dletelier/churnpipe/internal/parallel"
	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

// node is one internal node of a decision tree in compact form. Child
// references >= 0 index into the node array; negative references encode a
// leaf as -(leafIndex+1).
type node struct {
	Threshold   float64
	Left        int32
	Right       int32
	Feature     int32
	DefaultLeft bool
}

// Tree is a single decision tree of the ensemble.
type Tree struct {
	Nodes      []node
	LeafValues []float64
}

// predict traverses the tree for one feature vector and returns the leaf
// value. Leaf values in the artifact already include shrinkage.
func (t *Tree) predict(fvals []float64) float64 {
	if len(t.Nodes) == 0 {
		// Constant tree.
		if len(t.LeafValues) > 0 {
			return t.LeafValues[0]
		}
		return 0.0
	}

	idx := int32(0)
	for {
		n := &t.Nodes[idx]
		fval := fvals[n.Feature]

		goLeft := fval <= n.Threshold
		if math.IsNaN(fval) {
			goLeft = n.DefaultLeft
		}

		next := n.Right
		if goLeft {
			next = n.Left
		}
		if next < 0 {
			return t.LeafValues[-next-1]
		}
		idx = next
	}
}

// Ensemble is a gradient-boosted decision tree classifier with a binary
// sigmoid objective. It implements Scorer and is safe for concurrent use
// once loaded.
type Ensemble struct {
	name         string
	version      string
	objective    string
	featureNames []string
	initScore    float64
	trees        []Tree
}

// Name returns the model name recorded in the artifact.
func (m *Ensemble) Name() string { return m.name }

// Version returns the model version recorded in the artifact.
func (m *Ensemble) Version() string { return m.version }

// NumTrees returns the number of trees in the ensemble.
func (m *Ensemble) NumTrees() int { return len(m.trees) }

// NumFeatures implements Scorer.
func (m *Ensemble) NumFeatures() int { return len(m.featureNames) }

// FeatureNames implements Scorer.
func (m *Ensemble) FeatureNames() []string { return m.featureNames }

// Score implements Scorer: raw score is the init score plus the sum of
// tree outputs, squashed through a sigmoid for the binary objective.
func (m *Ensemble) Score(features []float64) (float64, error) {
	if len(features) != len(m.featureNames) {
		return 0, pkgerrors.NewFeatureMismatchError("Ensemble.Score", len(m.featureNames), len(features))
	}

	raw := m.initScore
	for i := range m.trees {
		raw += m.trees[i].predict(features)
	}
	return sigmoid(raw), nil
}

// PredictProba scores a batch of samples held in a gonum matrix and
// returns an n×1 column of churn probabilities. Rows are scored in
// parallel; the ensemble is read-only so no locking is needed.
func (m *Ensemble) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if cols != len(m.featureNames) {
		return nil, pkgerrors.NewFeatureMismatchError("Ensemble.PredictProba", len(m.featureNames), cols)
	}

	probs := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			features := mat.Row(nil, i, X)
			p, _ := m.Score(features) // length verified above
			probs.Set(i, 0, p)
		}
	})
	return probs, nil
}

// parallelThreshold is the batch size below which row scoring stays
// sequential; goroutine overhead dominates for small batches.
const parallelThreshold = 64

func sigmoid(x float64) float64 {
	if x > 500 {
		return 1.0
	}
	if x < -500 {
		return 0.0
	}
	return 1.0 / (1.0 + math.Exp(-x))
}
