// Package summarize asks a text-generation backend for a summary of every
// stored article that does not have one yet.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/deusflow/newsai/internal/article"
	"github.com/deusflow/newsai/internal/batch"
	"github.com/deusflow/newsai/internal/config"
	"github.com/deusflow/newsai/internal/metrics"
	"github.com/deusflow/newsai/internal/ratelimit"
)

const systemPrompt = "You will be given an article. I want you to summarise it in '%d words'."

// Failure is one article whose request failed. It stays unsummarised.
type Failure struct {
	URL string
	Err error
}

// Report summarises one pipeline pass.
type Report struct {
	Requested      int
	Succeeded      int
	Failed         []Failure
	TokensSent     int
	TokensReceived int
}

// summarized pairs an article with the backend response for it.
type summarized struct {
	record *article.Record
	resp   *Response
}

type Pipeline struct {
	client  Client
	limiter *ratelimit.RequestLimiter
	cfg     config.SummarizeConfig
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New builds a pipeline. limiter may be nil.
func New(client Client, limiter *ratelimit.RequestLimiter, cfg config.SummarizeConfig, log *slog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{client: client, limiter: limiter, cfg: cfg, log: log, metrics: m}
}

// Summarize dispatches one request per unsummarised article and attaches the
// results in place. No request is retried; failed articles are picked up by
// the next run.
func (p *Pipeline) Summarize(ctx context.Context, articles []*article.Record) Report {
	var pending []*article.Record
	for _, a := range articles {
		if !a.HasSummary() {
			pending = append(pending, a)
		}
	}
	rep := Report{Requested: len(pending)}
	if len(pending) == 0 {
		return rep
	}

	outcomes := batch.Run(ctx, pending, p.cfg.Concurrency, func(ctx context.Context, a *article.Record) (summarized, error) {
		if p.limiter != nil {
			if err := p.limiter.Acquire(ctx); err != nil {
				return summarized{}, err
			}
		}
		resp, err := p.client.Complete(ctx, p.Compose(a))
		if err == nil && resp == nil {
			err = ErrEmptyResponse
		}
		return summarized{record: a, resp: resp}, err
	})
	done, failed := batch.Partition(outcomes)

	for _, o := range failed {
		a := pending[o.Index]
		rep.Failed = append(rep.Failed, Failure{URL: a.URL, Err: o.Err})
		p.log.Warn("summary failed", "url", a.URL, "error", o.Err)
		p.metrics.ObserveSummary(false, 0, 0)
	}

	for _, d := range done {
		a, resp := d.record, d.resp
		words := article.WordCount(resp.Text)
		a.Summary = &article.Summary{
			Text:           resp.Text,
			WordCount:      words,
			TokensSent:     resp.PromptTokens,
			TokensReceived: resp.CompletionTokens,
			RelativeSize:   RelativeSize(words, a.BodyWordCount),
		}
		rep.Succeeded++
		rep.TokensSent += resp.PromptTokens
		rep.TokensReceived += resp.CompletionTokens
		p.metrics.ObserveSummary(true, resp.PromptTokens, resp.CompletionTokens)
	}

	p.log.Info("summarization finished",
		"requested", rep.Requested,
		"succeeded", rep.Succeeded,
		"failed", len(rep.Failed),
		"tokens_sent", rep.TokensSent,
		"tokens_received", rep.TokensReceived)
	return rep
}

// Compose builds the request for one article.
func (p *Pipeline) Compose(a *article.Record) Request {
	return Request{
		Model:       p.cfg.Model,
		System:      fmt.Sprintf(systemPrompt, TargetLength(a.BodyWordCount)),
		Content:     a.Body,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}
}

// TargetLength is the requested summary length in words for a body of
// bodyWords words: round(40 + 65.24·ln(bodyWords/100)), at least 1.
// Rounding is half to even.
func TargetLength(bodyWords int) int {
	if bodyWords <= 0 {
		return 1
	}
	n := int(math.RoundToEven(40 + 65.24*math.Log(0.01*float64(bodyWords))))
	return max(n, 1)
}

// RelativeSize is the summary length as a rounded percentage of the body.
func RelativeSize(summaryWords, bodyWords int) int {
	if bodyWords <= 0 {
		return 0
	}
	return int(math.RoundToEven(float64(summaryWords) / float64(bodyWords) * 100))
}
