package group

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/jdkato/prose/v2"

	"github.com/deusflow/newsai/internal/article"
)

var nonLetters = regexp.MustCompile(`[^a-zA-Z]`)

// Preprocessor turns article text into lemmatised content tokens.
type Preprocessor struct {
	lemmatizer *golem.Lemmatizer
}

func NewPreprocessor() (*Preprocessor, error) {
	l, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("load lemmatizer: %w", err)
	}
	return &Preprocessor{lemmatizer: l}, nil
}

// Text is the part of a record that is clustered on.
func Text(r *article.Record) string {
	summary := ""
	if r.Summary != nil {
		summary = r.Summary.Text
	}
	return strings.Join([]string{r.Headline, r.Description, r.Body, summary}, " ")
}

// Tokens cleans, tags and lemmatises text. Stop words and single letters are
// dropped; only adjectives, verbs, nouns and adverbs are lemmatised.
func (p *Preprocessor) Tokens(text string) []string {
	cleaned := nonLetters.ReplaceAllString(text, " ")

	doc, err := prose.NewDocument(cleaned,
		prose.WithSegmentation(false),
		prose.WithExtraction(false))
	if err != nil {
		return p.untagged(cleaned)
	}

	var out []string
	for _, tok := range doc.Tokens() {
		lower := strings.ToLower(tok.Text)
		if !keep(lower) {
			continue
		}
		if lemmatised(tok.Tag) {
			lower = p.lemmatizer.LemmaLower(lower)
		}
		out = append(out, lower)
	}
	return out
}

func (p *Preprocessor) untagged(cleaned string) []string {
	var out []string
	for _, w := range strings.Fields(cleaned) {
		if lower := strings.ToLower(w); keep(lower) {
			out = append(out, lower)
		}
	}
	return out
}

func keep(word string) bool {
	if len(word) <= 1 {
		return false
	}
	_, stop := stopwords[word]
	return !stop
}

// lemmatised reports whether a Penn Treebank tag is an adjective, verb, noun
// or adverb.
func lemmatised(tag string) bool {
	if tag == "" {
		return false
	}
	switch tag[0] {
	case 'J', 'V', 'N', 'R':
		return true
	}
	return false
}
