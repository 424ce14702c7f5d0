// Package ncut implements normalized graph cuts for partitioning view
// graphs into weakly connected halves.
package ncut

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Edge is an undirected weighted edge between two nodes.
type Edge[T comparable] struct {
	Node1  T
	Node2  T
	Weight float64
}

// Options tunes the cut search.
type Options struct {
	// NumCutsToTest is the number of candidate cut points evaluated on
	// the solution vector; the one with the lowest normalized cut cost
	// wins.
	NumCutsToTest int
}

// DefaultOptions returns the recommended settings.
func DefaultOptions() Options {
	return Options{NumCutsToTest: 20}
}

// Cut holds the two subgraphs of a computed cut and its cost.
type Cut[T comparable] struct {
	Subgraph1 map[T]struct{}
	Subgraph2 map[T]struct{}
	Cost      float64
}

// ComputeCut partitions the graph described by edges into two subgraphs
// minimizing the normalized cut cost. The graph must have at least four
// nodes.
func ComputeCut[T comparable](opts Options, edges []Edge[T]) (Cut[T], error) {
	if opts.NumCutsToTest < 2 {
		opts.NumCutsToTest = DefaultOptions().NumCutsToTest
	}

	nodes, index := indexNodes(edges)
	n := len(nodes)
	if n < 4 {
		return Cut[T]{}, errors.New("ncut: graph must have at least 4 nodes")
	}

	// W holds the symmetric edge weights, D the per-node weight sums on
	// its diagonal.
	w := mat.NewSymDense(n, nil)
	for _, e := range edges {
		i, j := index[e.Node1], index[e.Node2]
		if i == j {
			continue
		}
		w.SetSym(i, j, w.At(i, j)+e.Weight)
	}
	degree := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			degree[i] += w.At(i, j)
		}
	}

	// Minimizing the normalized cut is a Rayleigh quotient over the
	// generalized eigensystem (D - W) y = lambda D y. Substituting
	// z = D^{1/2} y turns it into an ordinary symmetric eigenproblem on
	// D^{-1/2} (D - W) D^{-1/2}.
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if degree[i] <= 0 {
			return Cut[T]{}, errors.New("ncut: graph has an isolated node")
		}
		for j := i; j < n; j++ {
			lap := -w.At(i, j)
			if i == j {
				lap += degree[i]
			}
			sym.SetSym(i, j, lap/math.Sqrt(degree[i]*degree[j]))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return Cut[T]{}, errors.New("ncut: eigendecomposition failed")
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Eigenvalues are in ascending order; the eigenvector of the second
	// smallest one carries the partition. Undo the substitution to get y.
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = vectors.At(i, 1) / math.Sqrt(degree[i])
	}

	cutValue, cost := findOptimalCut(opts.NumCutsToTest, y, w, degree)

	cut := Cut[T]{
		Subgraph1: make(map[T]struct{}),
		Subgraph2: make(map[T]struct{}),
		Cost:      cost,
	}
	for i, node := range nodes {
		if y[i] > cutValue {
			cut.Subgraph1[node] = struct{}{}
		} else {
			cut.Subgraph2[node] = struct{}{}
		}
	}
	return cut, nil
}

// findOptimalCut sweeps evenly spaced cut values across the middle 50%
// of the solution vector's range and returns the one with the lowest
// normalized cut cost.
func findOptimalCut(numCuts int, y []float64, w *mat.SymDense, degree []float64) (cutValue, cost float64) {
	q1, q3 := firstAndThirdQuartiles(y)

	bestValue := 0.0
	bestCost := math.Inf(1)
	for i := 0; i < numCuts; i++ {
		t := float64(i) / float64(numCuts-1)
		candidate := (1-t)*q1 + t*q3
		c := costForCut(y, candidate, w, degree)
		if c < bestCost {
			bestCost = c
			bestValue = candidate
		}
	}
	return bestValue, bestCost
}

// costForCut discretizes y at the cut value into {1, -b} with b chosen
// so the discrete vector stays D-orthogonal to the trivial solution,
// then evaluates y^T (D - W) y / (y^T D y).
func costForCut(y []float64, cutValue float64, w *mat.SymDense, degree []float64) float64 {
	n := len(y)
	var weightSum, aboveSum float64
	for i := 0; i < n; i++ {
		weightSum += degree[i]
		if y[i] > cutValue {
			aboveSum += degree[i]
		}
	}
	k := aboveSum / weightSum
	if k <= 0 || k >= 1 {
		return math.Inf(1)
	}
	b := k / (1 - k)

	discrete := make([]float64, n)
	for i := 0; i < n; i++ {
		if y[i] > cutValue {
			discrete[i] = 1
		} else {
			discrete[i] = -b
		}
	}

	var num, den float64
	for i := 0; i < n; i++ {
		den += discrete[i] * degree[i] * discrete[i]
		num += discrete[i] * degree[i] * discrete[i]
		for j := 0; j < n; j++ {
			num -= discrete[i] * w.At(i, j) * discrete[j]
		}
	}
	if den == 0 {
		return math.Inf(1)
	}
	return num / den
}

func firstAndThirdQuartiles(y []float64) (q1, q3 float64) {
	sorted := append([]float64(nil), y...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/4], sorted[3*len(sorted)/4]
}

// indexNodes assigns each distinct node a dense matrix index.
func indexNodes[T comparable](edges []Edge[T]) ([]T, map[T]int) {
	index := make(map[T]int)
	var nodes []T
	for _, e := range edges {
		if _, ok := index[e.Node1]; !ok {
			index[e.Node1] = len(nodes)
			nodes = append(nodes, e.Node1)
		}
		if _, ok := index[e.Node2]; !ok {
			index[e.Node2] = len(nodes)
			nodes = append(nodes, e.Node2)
		}
	}
	return nodes, index
}
