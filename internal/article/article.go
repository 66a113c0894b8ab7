// Package article holds the records that flow through the crawl pipeline:
// sections, discovered links, extracted articles and their display groups.
package article

import (
	"slices"
	"strings"
	"time"
)

// Unclustered is the cluster id of articles that share no group.
const Unclustered = -1

// Section is a seed listing page of one source, e.g. a "Europe" front.
type Section struct {
	URL      string `yaml:"url" json:"url"`
	Source   string `yaml:"source" json:"source"`
	Category string `yaml:"category" json:"category"`
}

// LinkRecord is a candidate article URL discovered on one or more sections.
type LinkRecord struct {
	URL        string
	Source     string
	Categories []string
}

// AddCategory appends c unless already present.
func (l *LinkRecord) AddCategory(c string) bool {
	if c == "" || slices.Contains(l.Categories, c) {
		return false
	}
	l.Categories = append(l.Categories, c)
	return true
}

// Summary is the generated summary attached by the summarization stage.
type Summary struct {
	Text           string `json:"text"`
	WordCount      int    `json:"word_count"`
	TokensSent     int    `json:"tokens_sent"`
	TokensReceived int    `json:"tokens_received"`
	RelativeSize   int    `json:"relative_size"`
}

// Record is a fully extracted article keyed by URL.
//
// Content fields are populated together at extraction; Summary and ClusterID
// stay nil until their stage has run on the record.
type Record struct {
	URL           string    `json:"url"`
	Source        string    `json:"source"`
	Categories    []string  `json:"categories"`
	Published     time.Time `json:"published"`
	Modified      time.Time `json:"modified"`
	Headline      string    `json:"headline"`
	Description   string    `json:"description"`
	Body          string    `json:"body"`
	BodyWordCount int       `json:"body_word_count"`
	Outdated      bool      `json:"outdated"`
	Scraped       bool      `json:"scraped"`
	LastChecked   time.Time `json:"last_checked"`

	Summary   *Summary `json:"summary,omitempty"`
	ClusterID *int     `json:"cluster_id,omitempty"`
}

// HasSummary reports whether the summarization stage succeeded for r.
func (r *Record) HasSummary() bool { return r.Summary != nil }

// Cluster returns the assigned cluster id, or Unclustered when none is set.
func (r *Record) Cluster() int {
	if r.ClusterID == nil {
		return Unclustered
	}
	return *r.ClusterID
}

// SetCluster records the grouping result.
func (r *Record) SetCluster(id int) {
	r.ClusterID = &id
}

// AddCategory appends c unless already present.
func (r *Record) AddCategory(c string) bool {
	if c == "" || slices.Contains(r.Categories, c) {
		return false
	}
	r.Categories = append(r.Categories, c)
	return true
}

// IsStale reports whether r was published more than maxAge before now.
func (r *Record) IsStale(now time.Time, maxAge time.Duration) bool {
	return IsStale(r.Published, now, maxAge)
}

// IsStale reports whether published lies more than maxAge before now.
func IsStale(published, now time.Time, maxAge time.Duration) bool {
	return now.Sub(published) > maxAge
}

// WordCount counts whitespace separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
