package diagnosis

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// TrainConfig controls random-forest training.
type TrainConfig struct {
	Trees           int
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 means sqrt(number of features)
	Seed            int64
}

// DefaultTrainConfig returns the settings used by the train command.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Trees:           100,
		MaxDepth:        20,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
	}
}

// Train fits a random forest on a binary dataset. Class order is sorted
// label order; the same dataset and seed always produce the same forest.
func Train(ds Dataset, cfg TrainConfig) (*Forest, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("empty dataset")
	}
	if len(ds.X) != len(ds.Y) {
		return nil, fmt.Errorf("dataset has %d rows but %d labels", len(ds.X), len(ds.Y))
	}
	if cfg.Trees <= 0 {
		return nil, fmt.Errorf("trees must be positive, got %d", cfg.Trees)
	}
	for i, row := range ds.X {
		if len(row) != len(ds.Features) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrFeatureMismatch, i, len(row), len(ds.Features))
		}
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	if cfg.MaxFeatures <= 0 || cfg.MaxFeatures > len(ds.Features) {
		cfg.MaxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(len(ds.Features))))))
	}

	classes := uniqueSorted(ds.Y)
	classIdx := make(map[string]int, len(classes))
	for i, c := range classes {
		classIdx[c] = i
	}
	y := make([]int, len(ds.Y))
	for i, label := range ds.Y {
		y[i] = classIdx[label]
	}

	f := &Forest{
		Version:  artifactVersion,
		Features: append([]string(nil), ds.Features...),
		Classes:  classes,
	}
	for t := 0; t < cfg.Trees; t++ {
		g := &grower{
			x:        ds.X,
			y:        y,
			nClasses: len(classes),
			cfg:      cfg,
			rng:      rand.New(rand.NewSource(cfg.Seed + int64(t))),
		}
		sample := make([]int, ds.Len())
		for i := range sample {
			sample[i] = g.rng.Intn(ds.Len())
		}
		g.grow(sample, 0)
		f.Trees = append(f.Trees, Tree{Nodes: g.nodes})
	}
	return f, nil
}

type grower struct {
	x        [][]int
	y        []int
	nClasses int
	cfg      TrainConfig
	rng      *rand.Rand
	nodes    []Node
}

// grow appends the subtree for samples and returns its root index.
func (g *grower) grow(samples []int, depth int) int {
	counts := g.counts(samples)
	id := len(g.nodes)
	g.nodes = append(g.nodes, Node{Left: -1, Right: -1})

	if g.stop(samples, counts, depth) {
		g.nodes[id].Value = distribution(counts, len(samples))
		return id
	}

	feature, left, right := g.bestSplit(samples, gini(counts, len(samples)))
	if feature < 0 {
		g.nodes[id].Value = distribution(counts, len(samples))
		return id
	}

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[id] = Node{Feature: feature, Threshold: 0.5, Left: l, Right: r}
	return id
}

func (g *grower) stop(samples []int, counts []int, depth int) bool {
	if g.cfg.MaxDepth > 0 && depth >= g.cfg.MaxDepth {
		return true
	}
	if len(samples) < g.cfg.MinSamplesSplit {
		return true
	}
	for _, c := range counts {
		if c == len(samples) {
			return true
		}
	}
	return false
}

// bestSplit tries a random subset of features and returns the split with the
// lowest weighted Gini impurity, or feature -1 when none improves on parent.
func (g *grower) bestSplit(samples []int, parent float64) (int, []int, []int) {
	bestFeature := -1
	bestScore := parent
	var bestLeft, bestRight []int

	for _, f := range g.rng.Perm(len(g.x[0]))[:g.cfg.MaxFeatures] {
		var left, right []int
		for _, s := range samples {
			if g.x[s][f] == 0 {
				left = append(left, s)
			} else {
				right = append(right, s)
			}
		}
		if len(left) < g.cfg.MinSamplesLeaf || len(right) < g.cfg.MinSamplesLeaf {
			continue
		}
		n := float64(len(samples))
		score := float64(len(left))/n*gini(g.counts(left), len(left)) +
			float64(len(right))/n*gini(g.counts(right), len(right))
		if score < bestScore-1e-12 {
			bestFeature, bestScore, bestLeft, bestRight = f, score, left, right
		}
	}
	return bestFeature, bestLeft, bestRight
}

func (g *grower) counts(samples []int) []int {
	counts := make([]int, g.nClasses)
	for _, s := range samples {
		counts[g.y[s]]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		impurity -= p * p
	}
	return impurity
}

func distribution(counts []int, n int) []float64 {
	out := make([]float64, len(counts))
	for i, c := range counts {
		out[i] = float64(c) / float64(n)
	}
	return out
}

func uniqueSorted(labels []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
