package artifact

import (
	"encoding/json"
	"os"
	"strings"

	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

// modelFile is the on-disk JSON layout of the trained classifier: a
// LightGBM-style dump with named features and nested tree structures.
type modelFile struct {
	Name          string     `json:"name"`
	Version       string     `json:"version"`
	Objective     string     `json:"objective"`
	FeatureNames  []string   `json:"feature_names"`
	MaxFeatureIdx int        `json:"max_feature_idx"`
	InitScore     float64    `json:"init_score"`
	TreeInfo      []treeInfo `json:"tree_info"`
}

type treeInfo struct {
	TreeIndex     int      `json:"tree_index"`
	NumLeaves     int      `json:"num_leaves"`
	Shrinkage     float64  `json:"shrinkage"`
	TreeStructure treeNode `json:"tree_structure"`
}

// treeNode is one node of the serialized tree. A node with no children is
// a leaf and only LeafValue is meaningful.
type treeNode struct {
	SplitFeature int       `json:"split_feature"`
	Threshold    float64   `json:"threshold"`
	DefaultLeft  bool      `json:"default_left"`
	LeftChild    *treeNode `json:"left_child,omitempty"`
	RightChild   *treeNode `json:"right_child,omitempty"`
	LeafValue    float64   `json:"leaf_value"`
}

// LoadModel reads and validates the trained classifier artifact.
func LoadModel(path string) (*Ensemble, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.NewArtifactNotFoundError("model", path)
		}
		return nil, pkgerrors.Wrapf(err, "reading model artifact %s", path)
	}

	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, pkgerrors.NewArtifactCorruptError("model", path, "invalid JSON: "+err.Error())
	}

	if len(mf.FeatureNames) == 0 {
		return nil, pkgerrors.NewArtifactCorruptError("model", path, "no feature names")
	}
	if mf.MaxFeatureIdx != 0 && mf.MaxFeatureIdx+1 != len(mf.FeatureNames) {
		return nil, pkgerrors.NewArtifactCorruptError("model", path, "max_feature_idx disagrees with feature_names")
	}
	if len(mf.TreeInfo) == 0 {
		return nil, pkgerrors.NewArtifactCorruptError("model", path, "no trees; object does not expose a scoring capability")
	}
	if !strings.HasPrefix(mf.Objective, "binary") {
		return nil, pkgerrors.NewArtifactCorruptError("model", path, "objective "+mf.Objective+" is not binary classification")
	}

	model := &Ensemble{
		name:         mf.Name,
		version:      mf.Version,
		objective:    mf.Objective,
		featureNames: mf.FeatureNames,
		initScore:    mf.InitScore,
		trees:        make([]Tree, 0, len(mf.TreeInfo)),
	}

	numFeatures := len(mf.FeatureNames)
	for i := range mf.TreeInfo {
		tree, err := convertTree(&mf.TreeInfo[i].TreeStructure, numFeatures)
		if err != nil {
			return nil, pkgerrors.NewArtifactCorruptError("model", path, err.Error())
		}
		model.trees = append(model.trees, tree)
	}

	return model, nil
}

// convertTree flattens the nested JSON tree into the compact node-array
// form used for traversal.
func convertTree(root *treeNode, numFeatures int) (Tree, error) {
	tree := Tree{}

	if root.LeftChild == nil && root.RightChild == nil {
		tree.LeafValues = []float64{root.LeafValue}
		return tree, nil
	}

	var convErr error

	var build func(n *treeNode) int32
	build = func(n *treeNode) int32 {
		if n.LeftChild == nil && n.RightChild == nil {
			tree.LeafValues = append(tree.LeafValues, n.LeafValue)
			return -int32(len(tree.LeafValues)) // -(leafIdx+1)
		}

		if n.LeftChild == nil || n.RightChild == nil {
			convErr = pkgerrors.New("split node with a single child")
			return 0
		}
		if n.SplitFeature < 0 || n.SplitFeature >= numFeatures {
			convErr = pkgerrors.Newf("split feature %d out of range [0, %d)", n.SplitFeature, numFeatures)
			return 0
		}

		idx := int32(len(tree.Nodes))
		tree.Nodes = append(tree.Nodes, node{
			Threshold:   n.Threshold,
			Feature:     int32(n.SplitFeature),
			DefaultLeft: n.DefaultLeft,
		})
		tree.Nodes[idx].Left = build(n.LeftChild)
		tree.Nodes[idx].Right = build(n.RightChild)
		return idx
	}

	build(root)
	if convErr != nil {
		return Tree{}, convErr
	}
	return tree, nil
}
