package group

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Vectorizer maps token lists to smoothed TF-IDF vectors with L2 row
// normalisation. Terms are indexed in lexical order.
type Vectorizer struct {
	vocab map[string]int
	idf   []float64
}

// FitVectorizer learns the vocabulary and document frequencies of docs.
func FitVectorizer(docs [][]string) *Vectorizer {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{}, len(doc))
		for _, t := range doc {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	v := &Vectorizer{
		vocab: make(map[string]int, len(terms)),
		idf:   make([]float64, len(terms)),
	}
	n := float64(len(docs))
	for i, t := range terms {
		v.vocab[t] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return v
}

// Size is the vocabulary size.
func (v *Vectorizer) Size() int { return len(v.idf) }

// Transform returns one row per doc. Tokens outside the vocabulary are
// ignored. The vocabulary must not be empty.
func (v *Vectorizer) Transform(docs [][]string) *mat.Dense {
	x := mat.NewDense(len(docs), v.Size(), nil)
	for i, doc := range docs {
		for _, t := range doc {
			if j, ok := v.vocab[t]; ok {
				x.Set(i, j, x.At(i, j)+1)
			}
		}
		var norm float64
		for j := range v.idf {
			w := x.At(i, j) * v.idf[j]
			x.Set(i, j, w)
			norm += w * w
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for j := range v.idf {
			x.Set(i, j, x.At(i, j)/norm)
		}
	}
	return x
}
