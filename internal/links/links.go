// Package links discovers candidate article URLs on section pages.
package links

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/newsai/internal/article"
	"github.com/deusflow/newsai/internal/config"
	"github.com/deusflow/newsai/internal/fetcher"
)

// Index answers whether a URL is already resolved.
type Index interface {
	Article(url string) (*article.Record, bool)
	IsDiscarded(url string) bool
}

// SectionLinks are the new links found on one section, in page order.
type SectionLinks struct {
	Section article.Section
	Links   []*article.LinkRecord
}

// Extractor accumulates links across section documents. One Extractor
// serves one run.
type Extractor struct {
	sources map[string]config.SourceConfig
	index   Index
	log     *slog.Logger

	records map[string]*article.LinkRecord
	order   []string
}

func New(sources map[string]config.SourceConfig, index Index, log *slog.Logger) *Extractor {
	return &Extractor{
		sources: sources,
		index:   index,
		log:     log,
		records: make(map[string]*article.LinkRecord),
	}
}

// Extract pulls links from every successfully fetched section document.
// A URL seen on several sections yields one LinkRecord, listed under the
// first section, carrying every category. Known URLs are dropped.
func (e *Extractor) Extract(docs []fetcher.Result) []SectionLinks {
	var out []SectionLinks

	for _, d := range docs {
		if !d.OK() {
			continue
		}
		src, ok := e.sources[d.Source]
		if !ok {
			e.log.Warn("no source config", "source", d.Source, "url", d.URL)
			continue
		}

		hrefs, err := e.hrefs(d, src)
		if err != nil {
			e.log.Warn("section skipped", "url", d.URL, "error", err)
			continue
		}
		if len(hrefs) == 0 {
			e.log.Warn("selector broken", "source", d.Source, "url", d.URL, "selector", src.LinkSelector)
			continue
		}

		section := article.Section{URL: d.URL, Source: d.Source, Category: d.Category}
		sl := SectionLinks{Section: section}
		known := 0

		for _, href := range hrefs {
			link, ok := resolve(href, base(src, d.URL), src.ExcludePrefixes)
			if !ok {
				continue
			}

			if rec, stored := e.index.Article(link); stored {
				if rec.AddCategory(d.Category) {
					e.log.Debug("category added to stored article", "url", link, "category", d.Category)
				}
				known++
				continue
			}
			if e.index.IsDiscarded(link) {
				known++
				continue
			}

			if rec, seen := e.records[link]; seen {
				rec.AddCategory(d.Category)
				continue
			}

			rec := &article.LinkRecord{URL: link, Source: d.Source}
			rec.AddCategory(d.Category)
			e.records[link] = rec
			e.order = append(e.order, link)
			sl.Links = append(sl.Links, rec)
		}

		e.log.Debug("section links",
			"url", d.URL,
			"found", len(hrefs),
			"new", len(sl.Links),
			"known", known)
		out = append(out, sl)
	}

	return out
}

// Records returns every new LinkRecord in discovery order.
func (e *Extractor) Records() []*article.LinkRecord {
	out := make([]*article.LinkRecord, 0, len(e.order))
	for _, u := range e.order {
		out = append(out, e.records[u])
	}
	return out
}

func (e *Extractor) hrefs(d fetcher.Result, src config.SourceConfig) ([]string, error) {
	if src.Feed {
		return feedLinks(d.Body)
	}

	doc, err := fetcher.Parse(d.Body)
	if err != nil {
		return nil, err
	}

	var out []string
	doc.Find(src.LinkSelector).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			out = append(out, strings.TrimSpace(href))
		}
	})
	return out, nil
}

func base(src config.SourceConfig, sectionURL string) string {
	if src.LinkPrefix != "" {
		return src.LinkPrefix
	}
	return sectionURL
}

// resolve makes href absolute against prefix, strips the fragment and
// rejects non-http links and excluded paths.
func resolve(href, prefix string, exclude []string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	b, err := url.Parse(prefix)
	if err != nil {
		return "", false
	}

	u := b.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""

	for _, p := range exclude {
		if strings.HasPrefix(u.Path, p) {
			return "", false
		}
	}
	return u.String(), true
}
