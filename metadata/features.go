package metadata

import (
	"github.com/wippyai/godot-wasm-bindgen/errors"
)

// TargetFeaturesSection is the tool-conventions section listing the
// features a module was compiled with.
const TargetFeaturesSection = "target_features"

const (
	featureEnabled  byte = '+'
	featureDisabled byte = '-'
)

// Feature is one entry of the target_features section.
type Feature struct {
	Name    string
	Enabled bool
}

// TargetFeatures is the decoded target_features section in entry order.
type TargetFeatures struct {
	Features []Feature
}

// ParseTargetFeatures decodes a target_features section payload.
func ParseTargetFeatures(b []byte) (*TargetFeatures, error) {
	fs, _, err := AllConsuming(Count(parseFeature))(b)
	if err != nil {
		return nil, err
	}
	return &TargetFeatures{Features: fs}, nil
}

func parseFeature(in []byte) (Feature, []byte, error) {
	sign, rest, err := Byte()(in)
	if err != nil {
		return Feature{}, nil, err
	}
	var f Feature
	switch sign {
	case featureEnabled:
		f.Enabled = true
	case featureDisabled:
	default:
		return Feature{}, nil, errors.New(errors.PhaseMetadata, errors.KindUnknownFeatureFlag).
			Value(sign).
			Detail("Unknown flag 0x%02x", sign).
			Build()
	}
	f.Name, rest, err = Context("name", Name())(rest)
	if err != nil {
		return Feature{}, nil, err
	}
	return f, rest, nil
}

// Encode serializes the features. ParseTargetFeatures(tf.Encode()) equals tf.
func (tf *TargetFeatures) Encode() []byte {
	out := AppendVarint(nil, uint64(len(tf.Features)))
	for _, f := range tf.Features {
		if f.Enabled {
			out = append(out, featureEnabled)
		} else {
			out = append(out, featureDisabled)
		}
		out = appendName(out, f.Name)
	}
	return out
}

// Enable appends an enabled entry for name unless one is already present.
// It reports whether the list changed.
func (tf *TargetFeatures) Enable(name string) bool {
	for _, f := range tf.Features {
		if f.Enabled && f.Name == name {
			return false
		}
	}
	tf.Features = append(tf.Features, Feature{Name: name, Enabled: true})
	return true
}

// Has reports whether name is listed as enabled.
func (tf *TargetFeatures) Has(name string) bool {
	for _, f := range tf.Features {
		if f.Enabled && f.Name == name {
			return true
		}
	}
	return false
}
