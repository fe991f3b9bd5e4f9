// commands.go — Command implementations: run, replay, classify, patterns, show, list.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dev-console/pagediag/internal/config"
	"github.com/dev-console/pagediag/internal/diagnose"
	"github.com/dev-console/pagediag/internal/driver"
	"github.com/dev-console/pagediag/internal/driver/rodpage"
	"github.com/dev-console/pagediag/internal/monitor"
	"github.com/dev-console/pagediag/internal/types"
)

// ============================================
// run
// ============================================

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		window, timeout, fetchTimeout time.Duration
		maxScripts                    int
		bin, controlURL               string
		headless                      bool
	)
	cmd := &cobra.Command{
		Use:   "run <url>...",
		Short: "Load each URL in a browser and report what the page reported",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			a, err := setup(cmd, g, func(fo *config.FlagOverrides) {
				if flags.Changed("window") {
					fo.Window = &window
				}
				if flags.Changed("timeout") {
					fo.Timeout = &timeout
				}
				if flags.Changed("script-fetch-timeout") {
					fo.ScriptFetchTimeout = &fetchTimeout
				}
				if flags.Changed("max-scripts") {
					fo.MaxScripts = &maxScripts
				}
				if flags.Changed("browser-bin") {
					fo.Bin = &bin
				}
				if flags.Changed("control-url") {
					fo.ControlURL = &controlURL
				}
				if flags.Changed("headless") {
					fo.Headless = &headless
				}
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			browser, err := rodpage.Connect(ctx, rodpage.Config{
				ControlURL:   a.cfg.Browser.ControlURL,
				Bin:          a.cfg.Browser.Bin,
				Headless:     a.cfg.Browser.Headless,
				FetchTimeout: a.cfg.ScriptFetchTimeout,
				Logger:       a.logger,
			})
			if err != nil {
				return err
			}
			defer func() {
				if cerr := browser.Close(); cerr != nil {
					a.logger.Warn("browser close failed", "error", cerr)
				}
			}()

			reports, runErr := monitor.RunAll(ctx, browser, args, a.monitorOptions())
			return emitAll(cmd, a, reports, runErr)
		},
	}
	f := cmd.Flags()
	f.DurationVar(&window, "window", monitor.DefaultWindow, "observation window after navigation")
	f.DurationVar(&timeout, "timeout", monitor.DefaultTimeout, "hard limit per page; reports become partial when it fires")
	f.DurationVar(&fetchTimeout, "script-fetch-timeout", monitor.DefaultScriptFetchTimeout, "per-artifact fetch limit")
	f.IntVar(&maxScripts, "max-scripts", monitor.DefaultMaxScripts, "script bodies to fetch and classify")
	f.StringVar(&bin, "browser-bin", "", "browser executable (default: launcher lookup)")
	f.StringVar(&controlURL, "control-url", "", "attach to a running browser's DevTools websocket")
	f.BoolVar(&headless, "headless", true, "launch the browser headless")
	return cmd
}

// emitAll hands every produced report to the sinks. Reports are emitted even
// when some targets failed; all errors are joined.
func emitAll(cmd *cobra.Command, a *app, reports []*diagnose.Report, runErr error) error {
	sink, closeSinks, err := a.sinks()
	if err != nil {
		return errors.Join(runErr, err)
	}
	errs := []error{runErr}
	for _, r := range reports {
		if r == nil {
			continue
		}
		if err := sink.Emit(cmd.Context(), r); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, closeSinks())
	return errors.Join(errs...)
}

// ============================================
// replay
// ============================================

func newReplayCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <recording.json>...",
		Short: "Diagnose recorded sessions offline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, g, nil)
			if err != nil {
				return err
			}
			var (
				reports []*diagnose.Report
				errs    []error
			)
			for _, path := range args {
				rec, err := driver.LoadRecording(path)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
					continue
				}
				page := driver.NewReplay(rec)
				r, err := monitor.Run(cmd.Context(), page, rec.Target, a.monitorOptions())
				_ = page.Close()
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
					continue
				}
				reports = append(reports, r)
			}
			return emitAll(cmd, a, reports, errors.Join(errs...))
		},
	}
}

// ============================================
// classify
// ============================================

// classification is the printable form of one classify result.
type classification struct {
	Verdict         types.Verdict `json:"verdict"`
	PatternID       string        `json:"pattern_id,omitempty"`
	Excerpt         string        `json:"excerpt,omitempty"`
	HandlingMatches int           `json:"handling_matches"`
	GenuineMatches  int           `json:"genuine_matches"`
	Uncaught        bool          `json:"uncaught"`
	Banner          bool          `json:"visible_failure_banner"`
}

func newClassifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [file]",
		Short: "Classify a text (console message, script body, page text) read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, g, nil)
			if err != nil {
				return err
			}
			var data []byte
			if len(args) == 1 && args[0] != "-" {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read_input_failed: %w", err)
			}

			text := string(data)
			res := a.classifier.Classify(text)
			out := classification{
				Verdict:         res.Verdict,
				PatternID:       res.PatternID,
				Excerpt:         res.Excerpt,
				HandlingMatches: res.HandlingMatches,
				GenuineMatches:  res.GenuineMatches,
				Uncaught:        res.Uncaught,
				Banner:          a.classifier.DetectVisibleFailureBanner(text),
			}
			if a.cfg.Output.Format == "json" {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			verdict := string(out.Verdict)
			if verdict == "" {
				verdict = "none"
			}
			fmt.Fprintf(a.out, "verdict:  %s\n", verdict)
			if out.PatternID != "" {
				fmt.Fprintf(a.out, "pattern:  %s\n", out.PatternID)
				fmt.Fprintf(a.out, "excerpt:  %s\n", out.Excerpt)
			}
			fmt.Fprintf(a.out, "matches:  handling=%d genuine=%d uncaught=%t\n", out.HandlingMatches, out.GenuineMatches, out.Uncaught)
			fmt.Fprintf(a.out, "banner:   %t\n", out.Banner)
			return nil
		},
	}
}

// ============================================
// patterns
// ============================================

func newPatternsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "Print the active pattern table as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, g, nil)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(a.out)
			enc.SetIndent(2)
			if err := enc.Encode(a.classifier.Table()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

// ============================================
// show / list
// ============================================

func newShowCmd(g *globalFlags) *cobra.Command {
	var verdict string
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, g, nil)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if verdict != "" {
				findings, err := store.FindingsByVerdict(cmd.Context(), args[0], types.Verdict(verdict))
				if err != nil {
					return err
				}
				return writeFindings(a, findings)
			}
			r, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.stdoutSink().Emit(cmd.Context(), r)
		},
	}
	cmd.Flags().StringVar(&verdict, "verdict", "", "print only findings with this verdict (e.g. genuine_error)")
	return cmd
}

func writeFindings(a *app, findings []types.Finding) error {
	if a.cfg.Output.Format == "json" {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(findings)
	}
	for _, f := range findings {
		text := f.Excerpt
		if text == "" {
			text = f.Text
		}
		fmt.Fprintf(a.out, "[%s] %s %s\n", f.PatternID, f.Origin, strings.TrimSpace(text))
	}
	return nil
}

func newListCmd(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, g, nil)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if a.cfg.Output.Format == "json" {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tSTATUS\tCRITICAL\tFINDINGS\tTARGET")
			for _, row := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", row.SessionID, row.Status, row.Critical, row.Findings, row.Target)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum reports to list")
	return cmd
}
