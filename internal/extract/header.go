package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// Header is the metadata block of an article page.
type Header struct {
	Types       []string
	Published   time.Time
	Modified    time.Time
	Headline    string
	Description string
}

// ParseHeader reads the JSON-LD blocks matched by selector. It prefers the
// first typed node that carries datePublished, falling back to the first
// typed node. ErrNoHeader is returned when no typed node exists.
func ParseHeader(doc *goquery.Document, selector string) (Header, error) {
	var nodes []map[string]any

	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return
		}
		collectNodes(v, &nodes)
	})

	var chosen map[string]any
	for _, n := range nodes {
		if _, ok := n["datePublished"]; ok {
			chosen = n
			break
		}
	}
	if chosen == nil {
		if len(nodes) == 0 {
			return Header{}, ErrNoHeader
		}
		chosen = nodes[0]
	}

	h := Header{
		Types:       types(chosen["@type"]),
		Headline:    strings.TrimSpace(str(chosen["headline"])),
		Description: strings.TrimSpace(str(chosen["description"])),
	}

	if s := str(chosen["datePublished"]); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return h, fmt.Errorf("%w: datePublished %q: %v", ErrNoHeader, s, err)
		}
		h.Published = t
	}
	h.Modified = h.Published
	if s := str(chosen["dateModified"]); s != "" {
		if t, err := parseTime(s); err == nil {
			h.Modified = t
		}
	}
	return h, nil
}

// collectNodes flattens arrays and @graph containers into typed objects.
func collectNodes(v any, out *[]map[string]any) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			collectNodes(item, out)
		}
	case map[string]any:
		if _, ok := t["@type"]; ok {
			*out = append(*out, t)
		}
		if g, ok := t["@graph"]; ok {
			collectNodes(g, out)
		}
	}
}

func types(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func parseTime(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
