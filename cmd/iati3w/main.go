package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/iati3w/internal/activity"
	"github.com/dshills/iati3w/internal/codelist"
	"github.com/dshills/iati3w/internal/config"
	"github.com/dshills/iati3w/internal/metrics"
	"github.com/dshills/iati3w/internal/patch"
	"github.com/dshills/iati3w/internal/render"
	"github.com/dshills/iati3w/internal/schema"
	"github.com/dshills/iati3w/internal/schema/validate"
	"github.com/dshills/iati3w/internal/source"
	"github.com/dshills/iati3w/internal/summary"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

// codeError returns an exitErr for the given code.
func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// Exit codes.
const (
	exitChanged  = 2
	exitInput    = 3
	exitUpstream = 4
	exitOutput   = 5
)

// outputFlags are shared by every command that writes a report.
type outputFlags struct {
	format  string
	out     string
	lang    string
	verbose bool
}

// fetchFlags holds the parsed flags for the fetch command.
type fetchFlags struct {
	outputFlags
	country      string
	humanitarian bool
	yearMin      int
	yearMax      int
	status       string
	pageSize     int
	metricsOut   string
}

// projectFlags holds the parsed flags for the project command.
type projectFlags struct {
	outputFlags
	status       []string
	humanitarian bool
}

// diffFlags holds the parsed flags for the diff command.
type diffFlags struct {
	out          string
	failOnChange bool
	verbose      bool
}

func main() {
	root := &cobra.Command{
		Use:     "iati3w",
		Short:   "Project IATI activities into who/what/where records",
		Long:    "iati3w pulls IATI activities from d-portal or a local file and projects them into flat who/what/where/when records.",
		Version: version,
	}

	root.AddCommand(newFetchCmd(), newProjectCmd(), newDiffCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		// cobra already printed the error
		os.Exit(1)
	}
}

func addOutputFlags(cmd *cobra.Command, o *outputFlags) {
	f := cmd.Flags()
	f.StringVar(&o.format, "format", "json", "Output format: json, csv or md")
	f.StringVar(&o.out, "out", "", "Write output to file instead of stdout")
	f.StringVar(&o.lang, "lang", "en", "Preferred narrative language for csv and md output (BCP 47)")
	f.BoolVar(&o.verbose, "verbose", false, "Log each fetched page to stderr")
}

func newFetchCmd() *cobra.Command {
	var flags fetchFlags
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Query d-portal and project every matching activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), flags)
		},
	}
	addOutputFlags(cmd, &flags.outputFlags)
	f := cmd.Flags()
	f.StringVar(&flags.country, "country", "", "ISO 3166-1 alpha-2 recipient country code")
	f.BoolVar(&flags.humanitarian, "humanitarian", false, "Only activities flagged humanitarian")
	f.IntVar(&flags.yearMin, "year-min", 0, "Only activities still running on 1 January of this year")
	f.IntVar(&flags.yearMax, "year-max", 0, "Only activities started by 31 December of this year")
	f.StringVar(&flags.status, "status", "", "Activity status code filter")
	f.IntVar(&flags.pageSize, "page-size", source.DefaultPageSize, "Activities requested per page")
	f.StringVar(&flags.metricsOut, "metrics-out", "", "Write fetch metrics in Prometheus text format to this file")
	return cmd
}

func newProjectCmd() *cobra.Command {
	var flags projectFlags
	cmd := &cobra.Command{
		Use:   "project <activities.xml>",
		Short: "Project the activities of a local IATI XML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject(args[0], flags)
		},
	}
	addOutputFlags(cmd, &flags.outputFlags)
	f := cmd.Flags()
	f.StringSliceVar(&flags.status, "status", nil, "Keep only these activity status codes (may be repeated)")
	f.BoolVar(&flags.humanitarian, "humanitarian", false, "Keep only humanitarian activities (flag or sector)")
	return cmd
}

func newDiffCmd() *cobra.Command {
	var flags diffFlags
	cmd := &cobra.Command{
		Use:   "diff <old.json> <new.json>",
		Short: "Show per-activity differences between two JSON reports",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(args[0], args[1], flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.out, "out", "", "Write the diff to file instead of stdout")
	f.BoolVar(&flags.failOnChange, "fail-on-change", false, "Exit 2 if any activity was added, removed or changed")
	f.BoolVar(&flags.verbose, "verbose", false, "List each changed activity on stderr")
	return cmd
}

func runFetch(ctx context.Context, flags fetchFlags) error {
	renderer, err := render.NewRenderer(flags.format, flags.lang)
	if err != nil {
		return codeError(exitInput, "invalid flags: %s", err)
	}
	cfg, projector, err := setup()
	if err != nil {
		return err
	}
	logger := newLogger(flags.verbose)

	var client source.Doer = &http.Client{Timeout: cfg.Timeout}
	if cfg.CacheDir != "" {
		client, err = source.NewCachingClient(cfg.CacheDir, client, logger)
		if err != nil {
			return codeError(exitInput, "response cache: %s", err)
		}
	}

	var m *metrics.Fetch
	if flags.metricsOut != "" {
		m = metrics.New()
	}

	q := source.Query{
		CountryCode:  flags.country,
		Humanitarian: flags.humanitarian,
		YearMin:      flags.yearMin,
		YearMax:      flags.yearMax,
		StatusCode:   flags.status,
		PageSize:     flags.pageSize,
	}
	it, err := source.NewIterator(q, source.Options{
		Endpoint: cfg.Endpoint,
		Client:   client,
		Logger:   logger,
		Metrics:  m,
	})
	if err != nil {
		return codeError(exitInput, "invalid flags: %s", err)
	}

	logger.Info("fetching activities", "endpoint", it.Endpoint(), "country", q.CountryCode)
	var acts []schema.Activity
	for el, err := range it.All(ctx) {
		if err != nil {
			return codeError(exitUpstream, "fetching activities: %s", err)
		}
		acts = append(acts, projector.Project(el))
	}

	report := newReport(acts, schema.Input{
		Source:   schema.SourceDPortal,
		Endpoint: it.Endpoint(),
		Query:    q.Record(),
	})
	if err := writeReport(renderer, report, flags.out); err != nil {
		return err
	}

	if flags.metricsOut != "" {
		if err := writeMetrics(m, flags.metricsOut); err != nil {
			return codeError(exitOutput, "writing metrics: %s", err)
		}
	}
	logger.Info("report written", "activities", len(acts), "pages", it.Pages())
	return nil
}

func runProject(path string, flags projectFlags) error {
	renderer, err := render.NewRenderer(flags.format, flags.lang)
	if err != nil {
		return codeError(exitInput, "invalid flags: %s", err)
	}
	_, projector, err := setup()
	if err != nil {
		return err
	}
	logger := newLogger(flags.verbose)

	file, err := source.LoadFile(path)
	if err != nil {
		return codeError(exitInput, "loading activities: %s", err)
	}
	logger.Debug("loaded activity file", "path", path, "activities", len(file.Activities), "hash", file.Hash)

	acts := make([]schema.Activity, 0, len(file.Activities))
	for _, el := range file.Activities {
		acts = append(acts, projector.Project(el))
	}
	acts = summary.FilterByStatus(acts, flags.status)
	if flags.humanitarian {
		acts = summary.FilterHumanitarian(acts)
	}

	report := newReport(acts, schema.Input{
		Source:   schema.SourceFile,
		File:     path,
		FileHash: file.Hash,
	})
	return writeReport(renderer, report, flags.out)
}

func runDiff(oldPath, newPath string, flags diffFlags) error {
	var prev, next *schema.Report
	var g errgroup.Group
	g.Go(func() (err error) {
		prev, err = readReport(oldPath)
		return err
	})
	g.Go(func() (err error) {
		next, err = readReport(newPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return codeError(exitInput, "%s", err)
	}

	changes, err := patch.Compare(prev, next)
	if err != nil {
		return codeError(exitInput, "comparing reports: %s", err)
	}
	var notices io.Writer
	if flags.verbose {
		notices = os.Stderr
	}
	diffText := patch.GenerateDiff(changes, notices)
	if err := writeOutput(flags.out, []byte(diffText)); err != nil {
		return err
	}

	if flags.failOnChange && len(changes) > 0 {
		return codeError(exitChanged, "%d activities differ", len(changes))
	}
	return nil
}

// setup loads deployment configuration and builds the projector.
func setup() (config.Config, *activity.Projector, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, codeError(exitInput, "configuration: %s", err)
	}
	codes := codelist.Default()
	if cfg.Codelists != "" {
		codes, err = codelist.Load(cfg.Codelists)
		if err != nil {
			return config.Config{}, nil, codeError(exitInput, "loading codelists: %s", err)
		}
	}
	projector, err := activity.NewProjector(codes)
	if err != nil {
		return config.Config{}, nil, codeError(exitInput, "%s", err)
	}
	return cfg, projector, nil
}

func newReport(acts []schema.Activity, input schema.Input) *schema.Report {
	if acts == nil {
		acts = []schema.Activity{}
	}
	return &schema.Report{
		Tool:       schema.ToolName,
		Version:    version,
		RunID:      uuid.NewString(),
		Input:      input,
		Summary:    summary.Build(acts),
		Activities: acts,
	}
}

func readReport(path string) (*schema.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	r, err := validate.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func writeReport(renderer render.Renderer, report *schema.Report, out string) error {
	data, err := renderer.Render(report)
	if err != nil {
		return codeError(exitOutput, "rendering output: %s", err)
	}
	return writeOutput(out, data)
}

// writeOutput writes data to the named file, or to stdout when out is empty.
func writeOutput(out string, data []byte) error {
	if out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return codeError(exitOutput, "writing output file: %s", err)
		}
		return nil
	}
	if _, err := os.Stdout.Write(data); err != nil {
		return codeError(exitOutput, "writing output: %s", err)
	}
	// Ensure output ends with a newline for terminal friendliness.
	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Fprintln(os.Stdout)
	}
	return nil
}

func writeMetrics(m *metrics.Fetch, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// newLogger returns a text logger on stderr, at debug level when verbose.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
