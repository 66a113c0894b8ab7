// Package app wires the crawl stages into one run: fetch section pages,
// discover links, extract articles, summarise them and group them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/newsai/internal/article"
	"github.com/deusflow/newsai/internal/config"
	"github.com/deusflow/newsai/internal/extract"
	"github.com/deusflow/newsai/internal/fetcher"
	"github.com/deusflow/newsai/internal/group"
	"github.com/deusflow/newsai/internal/links"
	"github.com/deusflow/newsai/internal/metrics"
	"github.com/deusflow/newsai/internal/ratelimit"
	"github.com/deusflow/newsai/internal/storage"
	"github.com/deusflow/newsai/internal/summarize"
)

// Stages selects which parts of the pipeline a run executes.
type Stages struct {
	Crawl     bool
	Summarize bool
	Group     bool
}

// AllStages runs the whole pipeline.
var AllStages = Stages{Crawl: true, Summarize: true, Group: true}

// Report collects the per-stage reports of one run.
type Report struct {
	RunID    string
	Sections int // section pages fetched
	Links    int // new links discovered
	Archived int
	Extract  extract.Report
	Summary  summarize.Report
	Group    *group.Result
	Duration time.Duration
}

// App runs the pipeline against one persisted state. Client may be nil, in
// which case the summarize stage is skipped.
type App struct {
	cfg     *config.Config
	fetcher extract.Fetcher
	client  summarize.Client
	backend storage.Backend
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(cfg *config.Config, f extract.Fetcher, client summarize.Client, backend storage.Backend, log *slog.Logger, m *metrics.Metrics) *App {
	return &App{
		cfg:     cfg,
		fetcher: f,
		client:  client,
		backend: backend,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Run executes the selected stages in order. Each stage is a gate: the next
// one starts only after the previous has finished. The state is saved at the
// end even when a stage failed.
func (a *App) Run(ctx context.Context, stages Stages) (*Report, error) {
	start := a.now()
	rep := &Report{RunID: uuid.NewString()}
	log := a.log.With("run_id", rep.RunID)
	log.Info("run started",
		"crawl", stages.Crawl,
		"summarize", stages.Summarize,
		"group", stages.Group,
		"sources", a.cfg.SourceNames())

	state := storage.Open(ctx, a.backend, log)
	var errs []error

	if stages.Crawl {
		if err := a.crawl(ctx, state, rep, log); err != nil {
			errs = append(errs, fmt.Errorf("crawl: %w", err))
		}
	}

	if stages.Summarize {
		if a.client == nil {
			log.Warn("no summarization client configured, skipping summaries")
		} else {
			limiter := ratelimit.NewRequestLimiter(a.cfg.Summarize.Provider,
				a.cfg.Summarize.RequestsPerMinute, a.cfg.Summarize.MaxRequests, log)
			p := summarize.New(a.client, limiter, a.cfg.Summarize, log.With("component", "summarize"), a.metrics)
			rep.Summary = p.Summarize(ctx, state.Articles())
			limiter.PrintStats()
		}
	}

	if stages.Group {
		res, err := a.group(state, log)
		if err != nil {
			errs = append(errs, fmt.Errorf("group: %w", err))
		}
		rep.Group = res
	}

	if err := state.Save(ctx); err != nil {
		errs = append(errs, err)
	}
	a.metrics.SetStoreSizes(state.Counts())

	rep.Duration = a.now().Sub(start)
	a.metrics.RecordProcessingTime(rep.Duration)

	err := errors.Join(errs...)
	if err != nil {
		a.metrics.SetError(err.Error())
		log.Error("run failed", "error", err, "duration", rep.Duration)
		return rep, err
	}
	a.metrics.SetLastRun()
	log.Info("run finished",
		"duration", rep.Duration,
		"sections", rep.Sections,
		"links", rep.Links,
		"stored", rep.Extract.Stored,
		"summarized", rep.Summary.Succeeded)
	return rep, nil
}

func (a *App) crawl(ctx context.Context, state *storage.State, rep *Report, log *slog.Logger) error {
	rep.Archived = state.ArchiveStale(a.now(), a.cfg.Extract.StaleAfter)

	reqs := make([]fetcher.Request, 0, len(a.cfg.Sections))
	for _, s := range a.cfg.Sections {
		reqs = append(reqs, fetcher.Request{URL: s.URL, Source: s.Source, Category: s.Category})
	}
	pages := a.fetcher.Fetch(ctx, reqs)
	for _, p := range pages {
		if p.OK() {
			rep.Sections++
		}
	}

	le := links.New(a.cfg.Sources, state, log.With("component", "links"))
	sections := le.Extract(pages)
	rep.Links = len(le.Records())

	ex := extract.New(a.fetcher, state, a.cfg, log.With("component", "extract"), a.metrics)
	var err error
	rep.Extract, err = ex.Run(ctx, sections)
	return err
}

func (a *App) group(state *storage.State, log *slog.Logger) (*group.Result, error) {
	g, err := group.New(a.cfg.Group, log.With("component", "group"), a.metrics)
	if err != nil {
		return nil, err
	}
	return g.Group(state.Articles(), state.Archived())
}

// Show loads the state and folds the grouped articles for display.
func (a *App) Show(ctx context.Context) ([]group.DisplayRecord, []*article.Record) {
	state := storage.Open(ctx, a.backend, a.log)
	return group.Display(state.Articles())
}
