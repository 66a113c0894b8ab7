package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/newsai/internal/app"
	"github.com/deusflow/newsai/internal/config"
	"github.com/deusflow/newsai/internal/fetcher"
	"github.com/deusflow/newsai/internal/group"
	"github.com/deusflow/newsai/internal/logger"
	"github.com/deusflow/newsai/internal/metrics"
	"github.com/deusflow/newsai/internal/storage"
	"github.com/deusflow/newsai/internal/summarize"
)

var version = "dev"

type options struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "newsai",
		Short:         "Crawl news sections, summarise articles and group related stories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "path to the YAML config")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		stageCmd(opts, "run", "Run the whole pipeline once", app.AllStages),
		stageCmd(opts, "crawl", "Fetch sections and extract new articles", app.Stages{Crawl: true}),
		stageCmd(opts, "summarize", "Summarise stored articles that have no summary", app.Stages{Summarize: true}),
		stageCmd(opts, "group", "Group stored articles into stories", app.Stages{Group: true}),
		showCmd(opts),
		serveCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "newsai %s\n", version)
			},
		},
	)
	return root
}

// env is what every command needs: config, logger and an opened app.
type env struct {
	cfg     *config.Config
	app     *app.App
	backend storage.Backend
	client  summarize.Client
	closer  io.Closer
	log     *slog.Logger
}

func (e *env) Close() {
	if e.client != nil {
		e.client.Close()
	}
	if e.backend != nil {
		e.backend.Close()
	}
	if e.closer != nil {
		e.closer.Close()
	}
}

func setup(ctx context.Context, opts *options, needClient bool) (*env, error) {
	if opts.debug {
		os.Setenv("DEBUG", "true")
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	closer, err := logger.Init(cfg.Log)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, closer: closer, log: logger.With("app", "newsai")}

	e.backend, err = storage.NewBackend(cfg.Storage)
	if err != nil {
		e.Close()
		return nil, err
	}

	if needClient {
		e.client, err = summarize.NewClient(ctx, cfg.Summarize)
		if err != nil {
			e.Close()
			return nil, err
		}
	}

	f := fetcher.New(cfg.Fetch, logger.With("component", "fetcher"), metrics.Global)
	e.app = app.New(cfg, f, e.client, e.backend, e.log, metrics.Global)
	return e, nil
}

func stageCmd(opts *options, use, short string, stages app.Stages) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), opts, stages.Summarize)
			if err != nil {
				return err
			}
			defer e.Close()

			rep, err := e.app.Run(cmd.Context(), stages)
			if err != nil {
				// Stage failures are logged and reported in the health status;
				// only configuration errors fail the command.
				e.log.Warn("run completed with errors", "run_id", rep.RunID, "error", err)
			}
			return nil
		},
	}
}

func showCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print grouped stories as a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			groups, singles := e.app.Show(cmd.Context())
			group.Render(cmd.OutOrStdout(), groups, singles, time.Now())
			return nil
		},
	}
}

func serveCmd(opts *options) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on a schedule and expose /health and /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx, opts, true)
			if err != nil {
				return err
			}
			defer e.Close()

			sched := app.NewScheduler(e.log.With("component", "scheduler"))
			if err := sched.Schedule(e.cfg.Monitoring.Schedule, e.app.Job(ctx, app.AllStages)); err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return app.ServeMonitoring(ctx, e.cfg.Monitoring.Addr, metrics.Global, e.log)
			})
			g.Go(func() error {
				if once {
					e.app.Job(ctx, app.AllStages)()
				}
				sched.Start()
				e.log.Info("scheduler started", "schedule", e.cfg.Monitoring.Schedule)
				<-ctx.Done()
				sched.Stop()
				return nil
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "now", false, "run the pipeline immediately before waiting for the schedule")
	return cmd
}
