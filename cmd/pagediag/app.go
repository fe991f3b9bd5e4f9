// app.go — Shared command setup: config, logging, classifier and sinks.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dev-console/pagediag/internal/classify"
	"github.com/dev-console/pagediag/internal/config"
	"github.com/dev-console/pagediag/internal/logging"
	"github.com/dev-console/pagediag/internal/monitor"
	"github.com/dev-console/pagediag/internal/report"
)

// app is the resolved environment of one command invocation.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	classifier *classify.Classifier
	out        io.Writer
}

// setup resolves config with the cascade, initialises logging on the
// command's stderr and compiles the pattern table.
func setup(cmd *cobra.Command, g *globalFlags, extra func(*config.FlagOverrides)) (*app, error) {
	fo := g.overrides(cmd)
	if extra != nil {
		extra(fo)
	}
	cfg, err := config.Load(".", g.configFile, fo)
	if err != nil {
		return nil, err
	}
	logger := logging.Init(cmd.ErrOrStderr(), cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

	table, err := classify.LoadTable(cfg.PatternsFile)
	if err != nil {
		return nil, err
	}
	logger.Debug("pattern table loaded", "version", table.Version, "file", cfg.PatternsFile)
	return &app{
		cfg:        cfg,
		logger:     logger,
		classifier: classify.New(table),
		out:        cmd.OutOrStdout(),
	}, nil
}

// monitorOptions maps config onto a monitor run.
func (a *app) monitorOptions() monitor.Options {
	return monitor.Options{
		Window:             a.cfg.Window,
		Timeout:            a.cfg.Timeout,
		MaxScripts:         a.cfg.MaxScripts,
		ScriptFetchTimeout: a.cfg.ScriptFetchTimeout,
		Classifier:         a.classifier,
		Logger:             a.logger,
	}
}

// stdoutSink renders reports on stdout in the configured format.
func (a *app) stdoutSink() report.Sink {
	if a.cfg.Output.Format == "json" {
		return report.JSONSink{W: a.out}
	}
	return report.HumanSink{W: a.out}
}

// sinks builds the full fan-out for finished reports. The returned closer
// releases files and the database.
func (a *app) sinks() (report.Sink, func() error, error) {
	multi := report.Multi{a.stdoutSink()}
	var closers []io.Closer

	if p := a.cfg.Output.JSONPath; p != "" {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, nil, fmt.Errorf("json_out_failed: %w", err)
		}
		f, err := os.Create(p)
		if err != nil {
			return nil, nil, fmt.Errorf("json_out_failed: %w", err)
		}
		closers = append(closers, f)
		multi = append(multi, report.JSONSink{W: f})
	}
	if p := a.cfg.Output.HARPath; p != "" {
		multi = append(multi, report.HARSink{Path: p, CreatorVersion: version})
	}
	if p := a.cfg.Output.SQLitePath; p != "" {
		store, err := report.OpenStore(p)
		if err != nil {
			closeAll(closers)
			return nil, nil, err
		}
		closers = append(closers, store)
		multi = append(multi, store)
	}
	return multi, func() error { return closeAll(closers) }, nil
}

// openStore opens the configured report database for read commands.
func (a *app) openStore() (*report.Store, error) {
	if a.cfg.Output.SQLitePath == "" {
		return nil, errors.New("no_report_store: set --sqlite or output.sqlite_path")
	}
	return report.OpenStore(a.cfg.Output.SQLitePath)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
