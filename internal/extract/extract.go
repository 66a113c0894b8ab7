// Package extract turns discovered links into stored article records,
// discarding pages that are stale, malformed or not articles.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/deusflow/newsai/internal/article"
	"github.com/deusflow/newsai/internal/config"
	"github.com/deusflow/newsai/internal/fetcher"
	"github.com/deusflow/newsai/internal/links"
	"github.com/deusflow/newsai/internal/metrics"
)

var (
	// ErrNoHeader marks a page without a usable JSON-LD header.
	ErrNoHeader = errors.New("no article header")
	// ErrSelector marks a text selector that matched nothing, which usually
	// means the site layout changed.
	ErrSelector = errors.New("selector matched nothing")
)

// orderSlack is how far a later link may be newer than an earlier one before
// the section is reported as out of order.
const orderSlack = time.Hour

type Fetcher interface {
	Fetch(ctx context.Context, reqs []fetcher.Request) []fetcher.Result
}

// Store is the crawl state the extractor writes to.
type Store interface {
	Store(r *article.Record) error
	Discard(url string, reason article.DiscardReason, at time.Time)
	SaveArticles(ctx context.Context) error
	SaveDiscarded(ctx context.Context) error
}

// Report summarises one extraction run.
type Report struct {
	Sections  int
	Fetched   int
	Stored    int
	Failed    int
	Skipped   int // not fetched after tolerance ran out
	Discarded map[article.DiscardReason]int
}

func (r *Report) add(o Report) {
	r.Sections += o.Sections
	r.Fetched += o.Fetched
	r.Stored += o.Stored
	r.Failed += o.Failed
	r.Skipped += o.Skipped
	for k, v := range o.Discarded {
		r.Discarded[k] += v
	}
}

type Extractor struct {
	fetcher Fetcher
	store   Store
	sources map[string]config.SourceConfig
	cfg     config.ExtractConfig
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(f Fetcher, store Store, cfg *config.Config, log *slog.Logger, m *metrics.Metrics) *Extractor {
	sources := make(map[string]config.SourceConfig, len(cfg.Sources))
	for name := range cfg.Sources {
		src, _ := cfg.Source(name)
		sources[name] = src
	}
	return &Extractor{
		fetcher: f,
		store:   store,
		sources: sources,
		cfg:     cfg.Extract,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Run processes every section in order. Persistence errors are collected;
// per-article failures only show up in the report.
func (e *Extractor) Run(ctx context.Context, sections []links.SectionLinks) (Report, error) {
	total := Report{Discarded: make(map[article.DiscardReason]int)}
	var errs []error

	for _, sl := range sections {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rep, err := e.Section(ctx, sl)
		total.add(rep)
		if err != nil {
			errs = append(errs, err)
		}
	}

	e.log.Info("extraction finished",
		"sections", total.Sections,
		"fetched", total.Fetched,
		"stored", total.Stored,
		"failed", total.Failed,
		"skipped", total.Skipped,
		"discarded", total.Discarded)
	return total, errors.Join(errs...)
}

// verdict is the classification of one fetched link.
type verdict struct {
	record    *article.Record
	reason    article.DiscardReason
	published time.Time
	fresh     bool
	err       error
}

// Section extracts one section's links. Links are fetched in windows the size
// of the remaining tolerance, so a run of stale pages exhausts it exactly at a
// window boundary; everything after that point is discarded unfetched.
func (e *Extractor) Section(ctx context.Context, sl links.SectionLinks) (Report, error) {
	rep := Report{Sections: 1, Discarded: make(map[article.DiscardReason]int)}
	log := e.log.With("section", sl.Section.URL, "source", sl.Section.Source)

	src, ok := e.sources[sl.Section.Source]
	if !ok {
		return rep, fmt.Errorf("section %s: unknown source %q", sl.Section.URL, sl.Section.Source)
	}

	tolerance := e.cfg.Tolerance
	var sample []time.Time
	i := 0

	for i < len(sl.Links) && tolerance > 0 {
		if ctx.Err() != nil {
			break
		}
		window := sl.Links[i:min(i+tolerance, len(sl.Links))]
		results := e.fetcher.Fetch(ctx, requests(window, sl.Section))
		rep.Fetched += len(results)
		now := e.now()

		for j, res := range results {
			link := window[j]
			v := e.classify(res, link, src, now)

			if !v.published.IsZero() && len(sample) < e.cfg.OrderSample {
				sample = append(sample, v.published)
			}

			switch {
			case v.err != nil:
				rep.Failed++
				log.Warn("article skipped", "url", link.URL, "error", v.err)
				e.metrics.ObserveExtraction(link.Source, outcomeOf(v.err))
			case v.reason != "":
				e.store.Discard(link.URL, v.reason, now)
				rep.Discarded[v.reason]++
				log.Debug("article discarded", "url", link.URL, "reason", v.reason)
				e.metrics.ObserveExtraction(link.Source, string(v.reason))
			default:
				if err := e.store.Store(v.record); err != nil {
					rep.Failed++
					log.Warn("store failed", "url", link.URL, "error", err)
					continue
				}
				rep.Stored++
				log.Info("article stored", "url", link.URL, "words", v.record.BodyWordCount)
				e.metrics.ObserveExtraction(link.Source, "stored")
			}

			if v.reason == article.ReasonStale {
				tolerance--
			} else if v.fresh {
				tolerance = e.cfg.Tolerance
			}
		}
		i += len(window)
	}

	if tolerance == 0 && i < len(sl.Links) {
		now := e.now()
		rest := sl.Links[i:]
		for _, link := range rest {
			e.store.Discard(link.URL, article.ReasonStale, now)
		}
		rep.Skipped += len(rest)
		rep.Discarded[article.ReasonStale] += len(rest)
		log.Warn("outdated tolerance limit reached", "discarded_unfetched", len(rest))
	}

	if !newestFirst(sample) {
		log.Warn("section links are not newest first; tolerance may discard fresh articles", "sample", sample)
	}

	var errs []error
	if err := e.store.SaveDiscarded(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := e.store.SaveArticles(ctx); err != nil {
		errs = append(errs, err)
	}
	return rep, errors.Join(errs...)
}

func (e *Extractor) classify(res fetcher.Result, link *article.LinkRecord, src config.SourceConfig, now time.Time) verdict {
	if !res.OK() {
		return verdict{err: res.Err}
	}

	doc, err := fetcher.Parse(res.Body)
	if err != nil {
		return verdict{err: err}
	}

	hdr, err := ParseHeader(doc, src.HeaderSelector)
	if err != nil {
		return verdict{reason: article.ReasonNoHeader}
	}
	if e.nonArticle(hdr.Types) {
		return verdict{reason: article.ReasonNotArticle, published: hdr.Published}
	}
	if hdr.Published.IsZero() {
		return verdict{reason: article.ReasonNoHeader}
	}
	if article.IsStale(hdr.Published, now, e.cfg.StaleAfter) {
		return verdict{reason: article.ReasonStale, published: hdr.Published}
	}

	var body string
	if src.TextSelector != "" {
		body, err = Body(doc, src.TextSelector)
	} else {
		body, err = readableBody(res.Body, res.URL)
	}
	if err != nil {
		return verdict{err: err, published: hdr.Published, fresh: true}
	}

	words := article.WordCount(body)
	if words < e.cfg.MinWords {
		return verdict{reason: article.ReasonShortBody, published: hdr.Published, fresh: true}
	}

	return verdict{
		published: hdr.Published,
		fresh:     true,
		record: &article.Record{
			URL:           link.URL,
			Source:        link.Source,
			Categories:    slices.Clone(link.Categories),
			Published:     hdr.Published,
			Modified:      hdr.Modified,
			Headline:      hdr.Headline,
			Description:   hdr.Description,
			Body:          body,
			BodyWordCount: words,
			Scraped:       true,
			LastChecked:   now,
		},
	}
}

func (e *Extractor) nonArticle(types []string) bool {
	for _, t := range types {
		if slices.Contains(e.cfg.NonArticleTypes, t) {
			return true
		}
	}
	return false
}

func requests(window []*article.LinkRecord, s article.Section) []fetcher.Request {
	reqs := make([]fetcher.Request, len(window))
	for i, l := range window {
		reqs[i] = fetcher.Request{URL: l.URL, Source: l.Source, Category: s.Category}
	}
	return reqs
}

// newestFirst reports whether ts is non-increasing within orderSlack.
func newestFirst(ts []time.Time) bool {
	for k := 1; k < len(ts); k++ {
		if ts[k].After(ts[k-1].Add(orderSlack)) {
			return false
		}
	}
	return true
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrSelector):
		return "selector_error"
	case errors.Is(err, fetcher.ErrStatus):
		return "http_error"
	default:
		return "fetch_error"
	}
}
