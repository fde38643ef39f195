package artifact

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

func TestStoreLoad(t *testing.T) {
	store, err := Load("testdata/model.json", "testdata/encoders.json")
	require.NoError(t, err)

	assert.Equal(t, "testdata/model.json", store.ModelPath())
	assert.Equal(t, "testdata/encoders.json", store.EncodersPath())
	assert.Equal(t, 21, store.Model.NumFeatures())
	assert.Equal(t, "Churn", store.Encoders.Target)
}

func TestStoreLoadMissingModel(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), "testdata/encoders.json")
	require.Error(t, err)

	var notFound *pkgerrors.ArtifactNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "model", notFound.Kind)
}

func TestStoreCheckMissingDerivedMetadata(t *testing.T) {
	// The model expects tenure_group and total_services; an encoder
	// artifact without the derived metadata cannot serve it.
	path := writeArtifact(t, "encoders.json", `{
		"target": "Churn",
		"encoders": {
			"gender": {"classes": ["Female", "Male"], "default": 0},
			"tenure_group": {"classes": ["New (<1 yr)"], "default": 0}
		}
	}`)

	_, err := Load("testdata/model.json", path)
	require.Error(t, err)

	var corrupt *pkgerrors.ArtifactCorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Contains(t, corrupt.Reason, "tenure_group")
}

func TestStoreCheckUnencodableBucketLabel(t *testing.T) {
	path := writeArtifact(t, "encoders.json", `{
		"target": "Churn",
		"encoders": {
			"tenure_group": {"classes": ["New (<1 yr)", "Established (1-2 yr)"], "default": 0}
		},
		"derived": {
			"tenure_group": {"edges": [12, 24], "labels": ["New (<1 yr)", "Established (1-2 yr)", "Veteran (2+ yr)"]},
			"total_services": {"fields": {"PhoneService": ["Yes"]}}
		}
	}`)

	_, err := Load("testdata/model.json", path)
	require.Error(t, err)

	var corrupt *pkgerrors.ArtifactCorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Contains(t, corrupt.Reason, "Veteran (2+ yr)")
}

func TestTenureBucketsLabel(t *testing.T) {
	b := &TenureBuckets{
		Edges:  []int{12, 24},
		Labels: []string{"New (<1 yr)", "Established (1-2 yr)", "Veteran (2+ yr)"},
	}

	tests := []struct {
		tenure int
		want   string
	}{
		{0, "New (<1 yr)"},
		{11, "New (<1 yr)"},
		{12, "Established (1-2 yr)"},
		{23, "Established (1-2 yr)"},
		{24, "Veteran (2+ yr)"},
		{72, "Veteran (2+ yr)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Label(tt.tenure), "tenure=%d", tt.tenure)
	}
}

func TestServiceCountsCount(t *testing.T) {
	c := &ServiceCounts{Fields: map[string][]string{
		"PhoneService":    {"Yes"},
		"InternetService": {"DSL", "Fiber optic"},
		"StreamingTV":     {"Yes"},
	}}

	values := map[string]string{
		"PhoneService":    "Yes",
		"InternetService": "Fiber optic",
		"StreamingTV":     "No",
	}
	get := func(field string) (string, bool) {
		v, ok := values[field]
		return v, ok
	}
	assert.Equal(t, 2, c.Count(get))

	values["InternetService"] = "No"
	assert.Equal(t, 1, c.Count(get))
}
