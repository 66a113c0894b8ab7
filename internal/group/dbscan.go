package group

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/deusflow/newsai/internal/article"
)

// dbscan labels the rows of x with cosine distance. A point is core when at
// least minSamples points, itself included, lie within eps. Clusters are
// numbered from 0 in order of their first core point; noise is -1.
func dbscan(x *mat.Dense, eps float64, minSamples int) []int {
	n, _ := x.Dims()
	rows := make([][]float64, n)
	norms := make([]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, x)
		norms[i] = floats.Norm(rows[i], 2)
	}

	neighbours := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || cosineDistance(rows[i], rows[j], norms[i], norms[j]) <= eps {
				neighbours[i] = append(neighbours[i], j)
			}
		}
	}

	core := make([]bool, n)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = article.Unclustered
		core[i] = len(neighbours[i]) >= minSamples
	}

	next := 0
	var stack []int
	for i := 0; i < n; i++ {
		if labels[i] != article.Unclustered || !core[i] {
			continue
		}
		p := i
		for {
			if labels[p] == article.Unclustered {
				labels[p] = next
				if core[p] {
					for _, q := range neighbours[p] {
						if labels[q] == article.Unclustered {
							stack = append(stack, q)
						}
					}
				}
			}
			if len(stack) == 0 {
				break
			}
			p = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
		next++
	}
	return labels
}

// cosineDistance is 1 - cos(a, b). A zero vector has similarity 0 with every
// other point.
func cosineDistance(a, b []float64, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - floats.Dot(a, b)/(na*nb)
	return math.Max(d, 0)
}
