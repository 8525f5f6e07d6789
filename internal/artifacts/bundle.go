package artifacts

import (
	"fmt"
)

// Forest is a serialized tree-ensemble classifier exported by the offline
// training step. Each tree is stored in the flat node-array layout the
// exporter writes: children index pairs, split feature/threshold per node,
// and per-class counts at every node. A node with left child -1 is a leaf.
type Forest struct {
	NClasses     int      `json:"n_classes"`
	FeatureOrder []string `json:"feature_order"`
	Trees        []Tree   `json:"trees"`
}

type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Predict walks every tree for the feature vector and returns the
// majority-vote class code.
func (f *Forest) Predict(features []float64) (int, error) {
	if len(features) != len(f.FeatureOrder) {
		return 0, fmt.Errorf("expected %d features, got %d", len(f.FeatureOrder), len(features))
	}
	if len(f.Trees) == 0 {
		return 0, fmt.Errorf("forest has no trees")
	}

	votes := make([]int, f.NClasses)
	for i := range f.Trees {
		code, err := f.Trees[i].predict(features)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		if code < 0 || code >= f.NClasses {
			return 0, fmt.Errorf("tree %d voted for unknown class %d", i, code)
		}
		votes[code]++
	}

	best := 0
	for code, count := range votes {
		if count > votes[best] {
			best = code
		}
	}
	return best, nil
}

func (t *Tree) predict(features []float64) (int, error) {
	node := 0
	for steps := 0; steps <= len(t.ChildrenLeft); steps++ {
		if node < 0 || node >= len(t.ChildrenLeft) {
			return 0, fmt.Errorf("node index %d out of range", node)
		}
		if t.ChildrenLeft[node] < 0 {
			return argmax(t.Value[node]), nil
		}
		feat := t.Feature[node]
		if feat < 0 || feat >= len(features) {
			return 0, fmt.Errorf("split feature %d out of range", feat)
		}
		if features[feat] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return 0, fmt.Errorf("tree walk did not terminate")
}

func argmax(counts []float64) int {
	best := 0
	for i, v := range counts {
		if v > counts[best] {
			best = i
		}
	}
	return best
}

// NumericImputer fills missing numeric values with the constant fitted on
// training data (the column median in the shipped bundles).
type NumericImputer struct {
	Strategy string  `json:"strategy"`
	Fill     float64 `json:"fill_value"`
}

// Impute returns the fill constant when the value is absent.
func (i *NumericImputer) Impute(value *float64) float64 {
	if value == nil {
		return i.Fill
	}
	return *value
}

// CategoricalImputer fills missing categorical values with a constant
// placeholder shared with the encoder vocabulary.
type CategoricalImputer struct {
	Strategy string `json:"strategy"`
	Fill     string `json:"fill_value"`
}

// Impute returns the placeholder when the value is absent or blank.
func (i *CategoricalImputer) Impute(value string) string {
	if value == "" {
		return i.Fill
	}
	return value
}

// LabelEncoder maps categorical string values to the integer codes the
// classifier was trained on. Classes are stored in code order so the decoder
// is a plain index lookup.
type LabelEncoder struct {
	Classes []string `json:"classes"`

	index map[string]int
}

// BuildIndex materializes the value-to-code lookup. Must run once after
// decoding, before any Encode or Contains call.
func (e *LabelEncoder) BuildIndex() {
	e.index = make(map[string]int, len(e.Classes))
	for code, class := range e.Classes {
		e.index[class] = code
	}
}

// Contains reports whether the value is part of the trained vocabulary.
func (e *LabelEncoder) Contains(value string) bool {
	_, ok := e.index[value]
	return ok
}

// Encode returns the integer code for the value.
func (e *LabelEncoder) Encode(value string) (int, bool) {
	code, ok := e.index[value]
	return code, ok
}

// Decode returns the class label for the code.
func (e *LabelEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", fmt.Errorf("class code %d outside decoder range %d", code, len(e.Classes))
	}
	return e.Classes[code], nil
}

// Bundle is the full set of loaded artifacts for one model: the classifier,
// an imputer for every declared column, an encoder for every categorical
// column, and the decoder for the target label. Immutable after load and
// shared read-only across workers.
type Bundle struct {
	ModelName           string
	Forest              *Forest
	NumericImputers     map[string]*NumericImputer
	CategoricalImputers map[string]*CategoricalImputer
	Encoders            map[string]*LabelEncoder
	LabelDecoder        *LabelEncoder
}

// FeatureOrder returns the trained column order of the classifier.
func (b *Bundle) FeatureOrder() []string {
	return b.Forest.FeatureOrder
}
