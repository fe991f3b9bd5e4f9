// main.go — Entry point for the pagediag CLI binary.
// Attaches to live pages (or replays recorded sessions), classifies what the
// page reported and prints a diagnostic report.
//
// Usage: pagediag <command> [args] [--flags]
//
// Exit codes:
//
//	0 = report(s) produced
//	1 = error (no report could be produced, or a sink failed)
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/dev-console/pagediag/internal/config"
)

// version is set at build time via -ldflags.
var version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is the main entry point, separated for testability.
// Returns the exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	// Interrupt cancels in-flight sessions; they still produce partial reports.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configFile string
	patterns   string
	format     string
	jsonOut    string
	harOut     string
	sqlite     string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "pagediag",
		Short:         "Diagnose why a web page misbehaves from its live console, network and DOM",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "config file (replaces ./.pagediag.yaml)")
	pf.StringVar(&g.patterns, "patterns", "", "pattern table YAML (default: embedded table)")
	pf.StringVar(&g.format, "format", "", "stdout format: human or json")
	pf.StringVar(&g.jsonOut, "json-out", "", "also write the JSON report to this file")
	pf.StringVar(&g.harOut, "har-out", "", "write a HAR file; %s is replaced by the session ID")
	pf.StringVar(&g.sqlite, "sqlite", "", "persist reports to this SQLite database")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&g.logFormat, "log-format", "", "text or json (logs go to stderr)")

	root.AddCommand(newRunCmd(g))
	root.AddCommand(newReplayCmd(g))
	root.AddCommand(newClassifyCmd(g))
	root.AddCommand(newPatternsCmd(g))
	root.AddCommand(newShowCmd(g))
	root.AddCommand(newListCmd(g))
	return root
}

// overrides turns explicitly set persistent flags into config overrides.
func (g *globalFlags) overrides(cmd *cobra.Command) *config.FlagOverrides {
	fo := &config.FlagOverrides{}
	flags := cmd.Flags()
	if flags.Changed("patterns") {
		fo.PatternsFile = &g.patterns
	}
	if flags.Changed("format") {
		fo.Format = &g.format
	}
	if flags.Changed("json-out") {
		fo.JSONPath = &g.jsonOut
	}
	if flags.Changed("har-out") {
		fo.HARPath = &g.harOut
	}
	if flags.Changed("sqlite") {
		fo.SQLitePath = &g.sqlite
	}
	if flags.Changed("log-level") {
		fo.LogLevel = &g.logLevel
	}
	if flags.Changed("log-format") {
		fo.LogFormat = &g.logFormat
	}
	return fo
}
