// Package diagnosis holds the random-forest disease classifier: the JSON
// model artifact, inference, training and hold-out evaluation.
package diagnosis

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const artifactVersion = 1

//go:embed model.schema.json
var modelSchemaJSON []byte

var (
	// ErrFeatureMismatch is returned when a vector or key ordering does not
	// line up with the features the forest was trained on.
	ErrFeatureMismatch = errors.New("feature mismatch")
	// ErrMalformedModel is returned when a tree cannot be evaluated.
	ErrMalformedModel = errors.New("malformed model")
)

// Node is one decision-tree node. A node with Left < 0 is a leaf and carries
// a class distribution in Value; internal nodes send a sample left when its
// feature value is <= Threshold.
type Node struct {
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

func (n Node) isLeaf() bool { return n.Left < 0 }

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is an ensemble of decision trees over binary symptom features.
type Forest struct {
	Version  int      `json:"version"`
	Features []string `json:"features"`
	Classes  []string `json:"classes"`
	Trees    []Tree   `json:"trees"`
}

// LoadForest reads and validates a model artifact.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	f, err := ParseForest(data)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return f, nil
}

// ParseForest validates data against the artifact schema and decodes it.
func ParseForest(data []byte) (*Forest, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(modelSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile model schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validate model: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedModel, strings.Join(msgs, "; "))
	}

	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Save writes the forest as indented JSON.
func (f *Forest) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write model %s: %w", path, err)
	}
	return nil
}

// validate checks references the schema cannot express.
func (f *Forest) validate() error {
	for ti, t := range f.Trees {
		for ni, n := range t.Nodes {
			if n.isLeaf() {
				if len(n.Value) != len(f.Classes) {
					return fmt.Errorf("%w: tree %d node %d has %d class weights, want %d",
						ErrMalformedModel, ti, ni, len(n.Value), len(f.Classes))
				}
				continue
			}
			if n.Feature >= len(f.Features) {
				return fmt.Errorf("%w: tree %d node %d uses feature %d of %d",
					ErrMalformedModel, ti, ni, n.Feature, len(f.Features))
			}
			// Children always follow their parent, which rules out cycles.
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d has invalid children %d/%d",
					ErrMalformedModel, ti, ni, n.Left, n.Right)
			}
		}
	}
	return nil
}

// CheckFeatures verifies that keys is exactly the ordering the forest was
// trained with. A different ordering would silently corrupt predictions.
func (f *Forest) CheckFeatures(keys []string) error {
	if len(keys) != len(f.Features) {
		return fmt.Errorf("%w: model has %d features, symptom list has %d",
			ErrFeatureMismatch, len(f.Features), len(keys))
	}
	for i := range keys {
		if keys[i] != f.Features[i] {
			return fmt.Errorf("%w: position %d is %q in the model and %q in the symptom list",
				ErrFeatureMismatch, i, f.Features[i], keys[i])
		}
	}
	return nil
}

// PredictProba averages the per-tree class distributions for one sample.
func (f *Forest) PredictProba(vector []int) ([]float64, error) {
	if len(vector) != len(f.Features) {
		return nil, fmt.Errorf("%w: vector has %d entries, model expects %d",
			ErrFeatureMismatch, len(vector), len(f.Features))
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("%w: forest has no trees", ErrMalformedModel)
	}

	proba := make([]float64, len(f.Classes))
	for ti, t := range f.Trees {
		leaf, err := t.leaf(vector)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", ti, err)
		}
		var total float64
		for _, w := range leaf.Value {
			total += w
		}
		if total == 0 {
			return nil, fmt.Errorf("%w: tree %d reached an empty leaf", ErrMalformedModel, ti)
		}
		for c, w := range leaf.Value {
			proba[c] += w / total
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.Trees))
	}
	return proba, nil
}

// Predict returns the most probable raw class label. Ties resolve to the
// lowest class index.
func (f *Forest) Predict(vector []int) (string, error) {
	proba, err := f.PredictProba(vector)
	if err != nil {
		return "", err
	}
	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return f.Classes[best], nil
}

func (t Tree) leaf(vector []int) (Node, error) {
	i := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if i < 0 || i >= len(t.Nodes) {
			return Node{}, fmt.Errorf("%w: node index %d out of range", ErrMalformedModel, i)
		}
		n := t.Nodes[i]
		if n.isLeaf() {
			return n, nil
		}
		if n.Feature < 0 || n.Feature >= len(vector) {
			return Node{}, fmt.Errorf("%w: feature %d out of range", ErrMalformedModel, n.Feature)
		}
		if float64(vector[n.Feature]) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return Node{}, fmt.Errorf("%w: tree does not terminate", ErrMalformedModel)
}

// DisplayLabel turns a raw class label into its user-facing form.
func DisplayLabel(raw string) string {
	return strings.ReplaceAll(raw, "_", " ")
}
