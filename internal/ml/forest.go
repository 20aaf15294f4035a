package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gesture-eval/internal/features"
)

// forestFile is the JSON export of a fitted scikit-learn random forest: the
// estimator's classes_, feature_names_in_ and, per tree, the tree_ arrays.
type forestFile struct {
	Classes      []string   `json:"classes"`
	FeatureNames []string   `json:"feature_names"`
	NFeatures    int        `json:"n_features"`
	Trees        []treeFile `json:"trees"`
}

type treeFile struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

const leaf = -1

type tree struct {
	left, right []int
	feature     []int
	threshold   []float64
	proba       [][]float64 // normalized class distribution per node
}

// ForestModel evaluates an exported random forest in process. It is
// read-only after loading and safe for concurrent use.
type ForestModel struct {
	path         string
	classes      []string
	featureNames []string
	nFeatures    int
	trees        []tree
}

// LoadForest reads and validates a forest export.
func LoadForest(path string) (*ForestModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f forestFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	return newForest(path, f)
}

func newForest(path string, f forestFile) (*ForestModel, error) {
	if len(f.Classes) == 0 {
		return nil, errors.New("forest has no classes")
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	nFeatures := f.NFeatures
	if len(f.FeatureNames) > 0 {
		if nFeatures != 0 && nFeatures != len(f.FeatureNames) {
			return nil, fmt.Errorf("n_features %d disagrees with %d feature names", nFeatures, len(f.FeatureNames))
		}
		nFeatures = len(f.FeatureNames)
	}
	if nFeatures <= 0 {
		return nil, errors.New("forest does not declare its features")
	}

	m := &ForestModel{
		path:         path,
		classes:      f.Classes,
		featureNames: f.FeatureNames,
		nFeatures:    nFeatures,
		trees:        make([]tree, len(f.Trees)),
	}
	for i, tf := range f.Trees {
		t, err := buildTree(tf, len(f.Classes), nFeatures)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		m.trees[i] = t
	}
	return m, nil
}

func buildTree(tf treeFile, nClasses, nFeatures int) (tree, error) {
	n := len(tf.ChildrenLeft)
	if n == 0 {
		return tree{}, errors.New("empty tree")
	}
	if len(tf.ChildrenRight) != n || len(tf.Feature) != n || len(tf.Threshold) != n || len(tf.Value) != n {
		return tree{}, errors.New("node arrays differ in length")
	}

	t := tree{
		left:      tf.ChildrenLeft,
		right:     tf.ChildrenRight,
		feature:   tf.Feature,
		threshold: tf.Threshold,
		proba:     make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		l, r := tf.ChildrenLeft[i], tf.ChildrenRight[i]
		if (l == leaf) != (r == leaf) {
			return tree{}, fmt.Errorf("node %d has a single child", i)
		}
		if l != leaf {
			// children are stored after their parent, which also rules out cycles
			if l <= i || l >= n || r <= i || r >= n {
				return tree{}, fmt.Errorf("node %d has out-of-range children", i)
			}
			if f := tf.Feature[i]; f < 0 || f >= nFeatures {
				return tree{}, fmt.Errorf("node %d splits on feature %d", i, f)
			}
			continue
		}
		if len(tf.Value[i]) != nClasses {
			return tree{}, fmt.Errorf("leaf %d has %d class weights, expected %d", i, len(tf.Value[i]), nClasses)
		}
		total := 0.0
		for _, w := range tf.Value[i] {
			total += w
		}
		if total <= 0 {
			return tree{}, fmt.Errorf("leaf %d has no weight", i)
		}
		p := make([]float64, nClasses)
		for k, w := range tf.Value[i] {
			p[k] = w / total
		}
		t.proba[i] = p
	}
	return t, nil
}

// leafFor walks to the leaf for x. Inputs are rounded to float32 before the
// comparison, as scikit-learn does when it predicts.
func (t *tree) leafFor(x []float64) []float64 {
	node := 0
	for t.left[node] != leaf {
		if float64(float32(x[t.feature[node]])) <= t.threshold[node] {
			node = t.left[node]
		} else {
			node = t.right[node]
		}
	}
	return t.proba[node]
}

// Name implements Model.
func (m *ForestModel) Name() string { return "forest" }

// Close implements Model.
func (m *ForestModel) Close() error { return nil }

// Classes returns the class names in model order.
func (m *ForestModel) Classes() []string {
	return append([]string(nil), m.classes...)
}

// Proba averages the per-tree leaf distributions.
func (m *ForestModel) Proba(v features.Vector) ([]float64, error) {
	x, err := m.align(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(m.classes))
	for i := range m.trees {
		for k, p := range m.trees[i].leafFor(x) {
			out[k] += p
		}
	}
	for k := range out {
		out[k] /= float64(len(m.trees))
	}
	return out, nil
}

// Predict returns the most probable class; ties go to the class listed first.
func (m *ForestModel) Predict(ctx context.Context, v features.Vector) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	proba, err := m.Proba(v)
	if err != nil {
		return "", err
	}
	best := 0
	for k := 1; k < len(proba); k++ {
		if proba[k] > proba[best] {
			best = k
		}
	}
	return m.classes[best], nil
}

// align orders the vector's values the way the forest was fit. Features are
// matched by name when the export carries names.
func (m *ForestModel) align(v features.Vector) ([]float64, error) {
	if len(v.Names) != len(v.Values) {
		return nil, fmt.Errorf("vector has %d names and %d values", len(v.Names), len(v.Values))
	}
	if len(m.featureNames) == 0 {
		if len(v.Values) != m.nFeatures {
			return nil, &features.SchemaError{Reason: fmt.Sprintf("model expects %d features, got %d", m.nFeatures, len(v.Values))}
		}
		return v.Values, nil
	}

	if sameNames(m.featureNames, v.Names) {
		return v.Values, nil
	}

	index := v.Index()
	x := make([]float64, len(m.featureNames))
	var missing []string
	for i, name := range m.featureNames {
		j, ok := index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		x[i] = v.Values[j]
	}
	var unexpected []string
	if len(index) != len(m.featureNames)-len(missing) {
		want := make(map[string]struct{}, len(m.featureNames))
		for _, name := range m.featureNames {
			want[name] = struct{}{}
		}
		for _, name := range v.Names {
			if _, ok := want[name]; !ok {
				unexpected = append(unexpected, name)
			}
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		return nil, &features.SchemaError{Missing: missing, Unexpected: unexpected, Reason: "vector does not match model features"}
	}
	return x, nil
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
