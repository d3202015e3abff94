package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/randalmurphal/catflow/pkg/catflow"
	"github.com/randalmurphal/catflow/pkg/catflow/config"
	"github.com/randalmurphal/catflow/pkg/catflow/load"
	"github.com/randalmurphal/catflow/pkg/catflow/pipeline"
	"github.com/randalmurphal/catflow/pkg/catflow/report"
	"github.com/urfave/cli/v3"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Extract the inputs, merge them and write the enriched events",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML or JSON settings file"},
			&cli.StringFlag{Name: "data-dir", Usage: "directory holding the input CSV files"},
			&cli.StringFlag{Name: "out-dir", Usage: "output directory (default: the data directory)"},
			&cli.StringFlag{Name: "out-name", Usage: "output file name without extension"},
			&cli.StringSliceFlag{Name: "formats", Usage: "output formats, primary first: csv, jsonl, sqlite, parquet"},
			&cli.StringFlag{Name: "report-db", Usage: "SQLite file to save run reports to"},
			&cli.IntFlag{Name: "workers", Usage: "parallel enrichment workers"},
			&cli.StringFlag{Name: "separator", Usage: "ancestor path separator"},
			&cli.DurationFlag{Name: "timeout", Usage: "abort the run after this long"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
			&cli.BoolFlag{Name: "metrics", Usage: "record OpenTelemetry metrics"},
			&cli.BoolFlag{Name: "tracing", Usage: "record OpenTelemetry spans"},
			&cli.BoolFlag{Name: "json", Usage: "print the run summary as JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			s, err := config.Load(c.String("config"), flagOverrides(c))
			if err != nil {
				return err
			}
			return runPipeline(ctx, s, c.Root().Writer, c.Root().ErrWriter, c.Bool("json"))
		},
	}
}

// flagOverrides applies the flags that were set on the command line.
func flagOverrides(c *cli.Command) func(*config.Settings) {
	return func(s *config.Settings) {
		if c.IsSet("data-dir") {
			s.DataDir = c.String("data-dir")
		}
		if c.IsSet("out-dir") {
			s.OutputDir = c.String("out-dir")
		}
		if c.IsSet("out-name") {
			s.OutputName = c.String("out-name")
		}
		if c.IsSet("formats") {
			s.Formats = c.StringSlice("formats")
		}
		if c.IsSet("report-db") {
			s.ReportDB = c.String("report-db")
		}
		if c.IsSet("workers") {
			s.Workers = c.Int("workers")
		}
		if c.IsSet("separator") {
			s.PathSeparator = c.String("separator")
		}
		if c.IsSet("timeout") {
			s.Timeout = c.Duration("timeout")
		}
		if c.IsSet("log-level") {
			s.LogLevel = c.String("log-level")
		}
		if c.IsSet("log-format") {
			s.LogFormat = c.String("log-format")
		}
		if c.IsSet("metrics") {
			s.Metrics = c.Bool("metrics")
		}
		if c.IsSet("tracing") {
			s.Tracing = c.Bool("tracing")
		}
	}
}

func runPipeline(ctx context.Context, s config.Settings, stdout, stderr io.Writer, asJSON bool) (err error) {
	logger := s.NewLogger(stderr)

	shutdown := installTelemetry(s, logger)
	defer shutdown(context.WithoutCancel(ctx))

	store, err := openReports(s.ReportDB)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	p, err := pipeline.New(s, pipeline.WithLogger(logger), pipeline.WithReportStore(store))
	if err != nil {
		return err
	}
	run, err := p.Run(ctx)
	if err != nil {
		return err
	}
	return printRun(stdout, run, asJSON)
}

// openReports opens the SQLite report store, or an in-memory one when no
// file is configured.
func openReports(path string) (report.Store, error) {
	if path == "" {
		return report.NewMemoryStore(), nil
	}
	return report.NewSQLiteStore(path)
}

type runOutput struct {
	RunID      string          `json:"run_id"`
	DurationMs int64           `json:"duration_ms"`
	Summary    catflow.Summary `json:"summary"`
	Outputs    []load.Output   `json:"outputs"`
	Warnings   []string        `json:"warnings,omitempty"`
}

func printRun(w io.Writer, run *pipeline.Run, asJSON bool) error {
	sum := run.State.Result.Summary
	var warnings []string
	if run.State.Load.Warnings != nil {
		warnings = strings.Split(run.State.Load.Warnings.Error(), "\n")
	}

	if asJSON {
		return writeJSON(w, runOutput{
			RunID:      run.ID,
			DurationMs: run.Duration.Milliseconds(),
			Summary:    sum,
			Outputs:    run.State.Load.Outputs,
			Warnings:   warnings,
		})
	}

	fmt.Fprintf(w, "run %s completed in %s\n", run.ID, run.Duration.Round(time.Millisecond))
	rows := []struct {
		label string
		n     int
	}{
		{"events", sum.Events},
		{"resolved", sum.Resolved},
		{"unresolved items", sum.UnresolvedItems},
		{"unresolved categories", sum.UnresolvedCategories},
		{"item conflicts", sum.ItemConflicts},
		{"cycles", sum.Cycles},
		{"missing categories", sum.MissingCategories},
		{"orphan categories", sum.OrphanCategories},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %-22s %d\n", r.label, r.n)
	}
	for _, o := range run.State.Load.Outputs {
		fmt.Fprintf(w, "wrote %s %s (%d rows)\n", o.Format, o.Path, o.Rows)
	}
	for _, warn := range warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	return nil
}
