package group

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// errLabelCount is returned when a metric is undefined for the labelling:
// it needs at least 2 labels and fewer labels than samples.
var errLabelCount = errors.New("number of labels must be in [2, n_samples-1]")

// scorer evaluates one labelling of the reduced points with euclidean
// distances. Noise (-1) counts as an ordinary label.
type scorer struct {
	points  [][]float64
	labels  []int   // encoded 0..k-1
	members [][]int // indices per encoded label
}

func newScorer(x *mat.Dense, labels []int) (*scorer, error) {
	n, _ := x.Dims()

	index := make(map[int]int)
	s := &scorer{points: make([][]float64, n), labels: make([]int, n)}
	for i, l := range labels {
		s.points[i] = mat.Row(nil, i, x)
		enc, ok := index[l]
		if !ok {
			enc = len(s.members)
			index[l] = enc
			s.members = append(s.members, nil)
		}
		s.labels[i] = enc
		s.members[enc] = append(s.members[enc], i)
	}

	if k := len(s.members); k < 2 || k > n-1 {
		return nil, errLabelCount
	}
	return s, nil
}

func (s *scorer) k() int { return len(s.members) }

// silhouette is the mean silhouette coefficient. Points alone in their
// label score 0.
func (s *scorer) silhouette() float64 {
	n := len(s.points)
	var total float64
	sums := make([]float64, s.k())

	for i := 0; i < n; i++ {
		own := s.labels[i]
		if len(s.members[own]) == 1 {
			continue
		}
		clear(sums)
		for j := 0; j < n; j++ {
			if i != j {
				sums[s.labels[j]] += floats.Distance(s.points[i], s.points[j], 2)
			}
		}

		a := sums[own] / float64(len(s.members[own])-1)
		b := math.Inf(1)
		for l, sum := range sums {
			if l == own {
				continue
			}
			b = math.Min(b, sum/float64(len(s.members[l])))
		}

		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n)
}

// calinskiHarabasz is the ratio of between- to within-label dispersion.
func (s *scorer) calinskiHarabasz() float64 {
	n := len(s.points)
	k := s.k()
	mean := centroid(s.points, nil)

	var extra, intra float64
	for _, idx := range s.members {
		c := centroid(s.points, idx)
		d := floats.Distance(c, mean, 2)
		extra += float64(len(idx)) * d * d
		for _, i := range idx {
			d := floats.Distance(s.points[i], c, 2)
			intra += d * d
		}
	}
	if intra == 0 {
		return 1
	}
	return extra * float64(n-k) / (intra * float64(k-1))
}

// daviesBouldin is the mean, over labels, of the worst ratio of summed
// scatter to centroid separation. Lower is better.
func (s *scorer) daviesBouldin() float64 {
	k := s.k()
	centroids := make([][]float64, k)
	scatter := make([]float64, k)
	for l, idx := range s.members {
		centroids[l] = centroid(s.points, idx)
		for _, i := range idx {
			scatter[l] += floats.Distance(s.points[i], centroids[l], 2)
		}
		scatter[l] /= float64(len(idx))
	}

	sep := make([][]float64, k)
	allSepZero := true
	for a := range sep {
		sep[a] = make([]float64, k)
		for b := range sep[a] {
			sep[a][b] = floats.Distance(centroids[a], centroids[b], 2)
			if !nearZero(sep[a][b]) {
				allSepZero = false
			}
		}
	}

	allScatterZero := true
	for _, v := range scatter {
		if !nearZero(v) {
			allScatterZero = false
		}
	}
	if allScatterZero || allSepZero {
		return 0
	}

	var total float64
	for a := 0; a < k; a++ {
		worst := 0.0
		for b := 0; b < k; b++ {
			if a == b || sep[a][b] == 0 {
				continue
			}
			worst = math.Max(worst, (scatter[a]+scatter[b])/sep[a][b])
		}
		total += worst
	}
	return total / float64(k)
}

// composite weighs silhouette, Calinski-Harabasz and inverted Davies-Bouldin
// equally.
func composite(s, ch, db float64) float64 {
	return (s + ch + 1/(1+db)) / 3
}

func centroid(points [][]float64, idx []int) []float64 {
	if idx == nil {
		idx = make([]int, len(points))
		for i := range idx {
			idx[i] = i
		}
	}
	c := make([]float64, len(points[idx[0]]))
	for _, i := range idx {
		floats.Add(c, points[i])
	}
	floats.Scale(1/float64(len(idx)), c)
	return c
}

func nearZero(v float64) bool {
	return math.Abs(v) <= 1e-8
}
