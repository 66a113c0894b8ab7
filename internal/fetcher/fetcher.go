// Package fetcher retrieves raw HTML documents with bounded concurrency.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/newsai/internal/batch"
	"github.com/deusflow/newsai/internal/config"
	"github.com/deusflow/newsai/internal/metrics"
)

// ErrStatus marks a non-2xx response.
var ErrStatus = errors.New("unexpected status")

// Request is one URL to retrieve, tagged with the section it came from.
type Request struct {
	URL      string
	Source   string
	Category string
}

// Result is the outcome of one Request. Err is set on any failure.
type Result struct {
	Request
	Body   []byte
	Status int
	Err    error
}

func (r Result) OK() bool { return r.Err == nil }

type Fetcher struct {
	client      *http.Client
	concurrency int
	maxBody     int64
	userAgents  []string
	log         *slog.Logger
	metrics     *metrics.Metrics
}

func New(cfg config.FetchConfig, log *slog.Logger, m *metrics.Metrics) *Fetcher {
	return &Fetcher{
		client:      &http.Client{Timeout: cfg.Timeout},
		concurrency: cfg.Concurrency,
		maxBody:     cfg.MaxBodyBytes,
		userAgents:  cfg.UserAgents,
		log:         log,
		metrics:     m,
	}
}

// Fetch retrieves every request with at most the configured number in
// flight. Results are aligned with reqs.
func (f *Fetcher) Fetch(ctx context.Context, reqs []Request) []Result {
	outcomes := batch.Run(ctx, reqs, f.concurrency, func(ctx context.Context, req Request) (Result, error) {
		body, status, err := f.get(ctx, req.URL)
		return Result{Request: req, Body: body, Status: status, Err: err}, err
	})

	results := make([]Result, len(outcomes))
	for i, o := range outcomes {
		r := o.Value
		r.Request = reqs[i]
		r.Err = o.Err
		if !o.OK() {
			f.log.Warn("fetch failed", "url", reqs[i].URL, "status", r.Status, "error", o.Err)
		}
		f.metrics.ObservePage(reqs[i].Source, o.OK())
		results[i] = r
	}
	return results
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("get %s: %w %d", url, ErrStatus, resp.StatusCode)
	}

	var r io.Reader = resp.Body
	if f.maxBody > 0 {
		r = io.LimitReader(resp.Body, f.maxBody)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read %s: %w", url, err)
	}
	return body, resp.StatusCode, nil
}

func (f *Fetcher) userAgent() string {
	if len(f.userAgents) == 0 {
		return "newsai/1.0"
	}
	return f.userAgents[rand.IntN(len(f.userAgents))]
}

// Parse builds a queryable document from raw HTML.
func Parse(raw []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}
