package artifact

import (
	"encoding/json"
	"os"

	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

// LabelEncoder is one fitted categorical-to-numeric mapping with a
// designated default class for values never seen during training.
type LabelEncoder struct {
	Classes []string
	Default int

	index map[string]int
}

// Transform looks up a raw value and returns its code. seen is false when
// the value was not in the training vocabulary; the caller decides whether
// to fall back to the default.
func (e *LabelEncoder) Transform(value string) (code float64, seen bool) {
	if i, ok := e.index[value]; ok {
		return float64(i), true
	}
	return float64(e.Default), false
}

// DefaultClass returns the class substituted for unseen values.
func (e *LabelEncoder) DefaultClass() string {
	return e.Classes[e.Default]
}

// TenureBuckets is the training-time tenure bucketing: fixed edges from
// the artifact, never recomputed from data statistics at inference time.
// Labels has one more entry than Edges; tenure < Edges[i] maps to
// Labels[i], anything at or past the last edge to the final label.
type TenureBuckets struct {
	Edges  []int    `json:"edges"`
	Labels []string `json:"labels"`
}

// Label returns the bucket label for a tenure in months.
func (b *TenureBuckets) Label(tenure int) string {
	for i, edge := range b.Edges {
		if tenure < edge {
			return b.Labels[i]
		}
	}
	return b.Labels[len(b.Labels)-1]
}

// ServiceCounts defines the training-time active-service count: per field,
// the raw values that count as an active service.
type ServiceCounts struct {
	Fields map[string][]string `json:"fields"`
}

// Count tallies active services given a field-value getter.
func (c *ServiceCounts) Count(get func(field string) (string, bool)) int {
	count := 0
	for field, active := range c.Fields {
		value, ok := get(field)
		if !ok {
			continue
		}
		for _, a := range active {
			if value == a {
				count++
				break
			}
		}
	}
	return count
}

// EncoderSet holds every fitted per-field encoder plus the derived-feature
// metadata produced at training time. It is owned by the artifact store
// and read-only to all consumers.
type EncoderSet struct {
	// Target is the training label column; its presence in an input
	// source is a configuration error.
	Target string

	Fields map[string]*LabelEncoder

	// TenureGroups and Services are nil when the artifact carries no
	// derived-feature metadata; consumers that need them fail fast.
	TenureGroups *TenureBuckets
	Services     *ServiceCounts
}

// Encoder returns the fitted encoder for a field.
func (s *EncoderSet) Encoder(field string) (*LabelEncoder, bool) {
	enc, ok := s.Fields[field]
	return enc, ok
}

// Len returns the number of fitted per-field encoders.
func (s *EncoderSet) Len() int { return len(s.Fields) }

// encodersFile is the on-disk JSON layout of the encoder artifact.
type encodersFile struct {
	Target   string                `json:"target"`
	Encoders map[string]fileLabels `json:"encoders"`
	Derived  struct {
		TenureGroup   *TenureBuckets `json:"tenure_group"`
		TotalServices *ServiceCounts `json:"total_services"`
	} `json:"derived"`
}

type fileLabels struct {
	Classes []string `json:"classes"`
	Default int      `json:"default"`
}

// defaultTarget is used when the artifact predates the target field.
const defaultTarget = "Churn"

// LoadEncoders reads and validates the fitted encoder artifact.
func LoadEncoders(path string) (*EncoderSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.NewArtifactNotFoundError("encoders", path)
		}
		return nil, pkgerrors.Wrapf(err, "reading encoder artifact %s", path)
	}

	var ef encodersFile
	if err := json.Unmarshal(data, &ef); err != nil {
		return nil, pkgerrors.NewArtifactCorruptError("encoders", path, "invalid JSON: "+err.Error())
	}
	if len(ef.Encoders) == 0 {
		return nil, pkgerrors.NewArtifactCorruptError("encoders", path, "no fitted encoders; object does not expose an encoding capability")
	}

	set := &EncoderSet{
		Target:       ef.Target,
		Fields:       make(map[string]*LabelEncoder, len(ef.Encoders)),
		TenureGroups: ef.Derived.TenureGroup,
		Services:     ef.Derived.TotalServices,
	}
	if set.Target == "" {
		set.Target = defaultTarget
	}

	for field, fl := range ef.Encoders {
		if len(fl.Classes) == 0 {
			return nil, pkgerrors.NewArtifactCorruptError("encoders", path, "encoder for "+field+" has an empty vocabulary")
		}
		if fl.Default < 0 || fl.Default >= len(fl.Classes) {
			return nil, pkgerrors.NewArtifactCorruptError("encoders", path, "encoder for "+field+" has no valid default class")
		}
		enc := &LabelEncoder{
			Classes: fl.Classes,
			Default: fl.Default,
			index:   make(map[string]int, len(fl.Classes)),
		}
		for i, class := range fl.Classes {
			enc.index[class] = i
		}
		set.Fields[field] = enc
	}

	if set.TenureGroups != nil {
		b := set.TenureGroups
		if len(b.Labels) != len(b.Edges)+1 || len(b.Edges) == 0 {
			return nil, pkgerrors.NewArtifactCorruptError("encoders", path, "tenure_group metadata has mismatched edges and labels")
		}
	}
	if set.Services != nil && len(set.Services.Fields) == 0 {
		return nil, pkgerrors.NewArtifactCorruptError("encoders", path, "total_services metadata lists no fields")
	}

	return set, nil
}
