// Package group clusters articles that report the same story. Texts are
// vectorised with TF-IDF, reduced with a truncated SVD and clustered with
// DBSCAN over a grid of (eps, components) pairs; the best labelling by a
// composite of three internal validity scores wins.
package group

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/deusflow/newsai/internal/article"
	"github.com/deusflow/newsai/internal/config"
	"github.com/deusflow/newsai/internal/metrics"
)

// Candidate is one evaluated grid point.
type Candidate struct {
	Components int
	Eps        float64
	Clusters   int // distinct labels, noise included
	Score      float64
}

// Result is the outcome of one grouping pass. Labels follow the order of the
// current articles. Best is nil when no candidate was accepted.
type Result struct {
	Labels     []int
	Best       *Candidate
	Evaluated  int
	Vocabulary int
}

type Grouper struct {
	cfg     config.GroupConfig
	pre     *Preprocessor
	log     *slog.Logger
	metrics *metrics.Metrics
}

func New(cfg config.GroupConfig, log *slog.Logger, m *metrics.Metrics) (*Grouper, error) {
	if cfg.MinSamples < 1 {
		return nil, errors.New("group: min_samples must be positive")
	}
	if len(cfg.Grid.Components) == 0 || len(cfg.Grid.Eps) == 0 {
		return nil, errors.New("group: empty parameter grid")
	}
	pre, err := NewPreprocessor()
	if err != nil {
		return nil, err
	}
	return &Grouper{cfg: cfg, pre: pre, log: log, metrics: m}, nil
}

// Group labels every current article. The vocabulary is learnt from current
// and archived texts together so recurring terms are weighted down; only the
// current articles are clustered.
func (g *Grouper) Group(current, archived []*article.Record) (*Result, error) {
	start := time.Now()
	res := &Result{Labels: unclustered(len(current))}
	defer func() {
		for i, r := range current {
			r.SetCluster(res.Labels[i])
		}
		g.metrics.SetClusters(clusterCount(res.Labels))
	}()

	if len(current) < 2 {
		g.log.Info("too few articles to group", "articles", len(current))
		return res, nil
	}

	docs := make([][]string, 0, len(current)+len(archived))
	for _, r := range current {
		docs = append(docs, g.pre.Tokens(Text(r)))
	}
	for _, r := range archived {
		docs = append(docs, g.pre.Tokens(Text(r)))
	}

	vec := FitVectorizer(docs)
	res.Vocabulary = vec.Size()
	if vec.Size() == 0 {
		g.log.Warn("empty vocabulary, nothing to group", "articles", len(current))
		return res, nil
	}
	x := vec.Transform(docs[:len(current)])

	basis, ok := factorize(x)
	if !ok {
		return res, fmt.Errorf("group: svd of %dx%d matrix did not converge", len(current), vec.Size())
	}

	sel := newSelection()
	for _, eps := range g.cfg.Grid.Eps {
		for _, k := range g.cfg.Grid.Components {
			reduced, ok := basis.reduce(k)
			if !ok {
				g.log.Debug("skipping components above rank", "components", k, "rank", basis.rank)
				continue
			}
			c, labels, ok := g.evaluate(reduced, k, eps)
			if !ok {
				continue
			}
			res.Evaluated++
			sel.offer(c, labels)
		}
	}
	if sel.best != nil {
		res.Best = sel.best
		res.Labels = sel.labels
	}

	attrs := []any{"articles", len(current), "vocabulary", vec.Size(), "evaluated", res.Evaluated, "duration", time.Since(start)}
	if res.Best != nil {
		attrs = append(attrs, "components", res.Best.Components, "eps", res.Best.Eps,
			"clusters", res.Best.Clusters, "score", res.Best.Score)
	}
	g.log.Info("grouping finished", attrs...)
	return res, nil
}

// evaluate clusters one reduction and scores it. It reports false when the
// labelling has a single label or the scores are undefined.
func (g *Grouper) evaluate(reduced *mat.Dense, k int, eps float64) (Candidate, []int, bool) {
	labels := dbscan(reduced, eps, g.cfg.MinSamples)
	c := Candidate{Components: k, Eps: eps, Clusters: distinct(labels)}
	if c.Clusters <= 1 {
		return c, nil, false
	}

	s, err := newScorer(reduced, labels)
	if err != nil {
		g.log.Debug("scores undefined", "components", k, "eps", eps, "clusters", c.Clusters, "error", err)
		return c, nil, false
	}
	c.Score = composite(s.silhouette(), s.calinskiHarabasz(), s.daviesBouldin())
	g.log.Debug("candidate", "components", k, "eps", eps, "clusters", c.Clusters, "score", c.Score)
	return c, labels, true
}

// selection tracks the accepted candidate of a grid search. A candidate
// replaces the current one only when it scores higher and also finds
// strictly more clusters, so a better score alone is not enough.
type selection struct {
	score    float64
	clusters int
	best     *Candidate
	labels   []int
}

func newSelection() *selection {
	return &selection{score: -1}
}

// offer reports whether c was accepted.
func (s *selection) offer(c Candidate, labels []int) bool {
	if c.Score <= s.score || c.Clusters <= s.clusters {
		return false
	}
	s.score, s.clusters = c.Score, c.Clusters
	s.best = &c
	s.labels = labels
	return true
}

func unclustered(n int) []int {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = article.Unclustered
	}
	return labels
}

func distinct(labels []int) int {
	seen := make(map[int]struct{})
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	return len(seen)
}

// clusterCount counts real clusters, noise excluded.
func clusterCount(labels []int) int {
	seen := make(map[int]struct{})
	for _, l := range labels {
		if l != article.Unclustered {
			seen[l] = struct{}{}
		}
	}
	return len(seen)
}
