package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/randalmurphal/catflow/pkg/catflow/config"
	"github.com/randalmurphal/catflow/pkg/catflow/report"
	"github.com/urfave/cli/v3"
)

func reportsCommand() *cli.Command {
	return &cli.Command{
		Name:      "reports",
		Usage:     "List past runs, or show the stage reports of one run",
		ArgsUsage: "[run-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML or JSON settings file"},
			&cli.StringFlag{Name: "report-db", Usage: "SQLite file run reports are saved to"},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum runs to list, 0 for all"},
			&cli.BoolFlag{Name: "delete", Usage: "delete the reports of the given run"},
			&cli.BoolFlag{Name: "json", Usage: "print reports as JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			s, err := config.Load(c.String("config"), func(s *config.Settings) {
				if c.IsSet("report-db") {
					s.ReportDB = c.String("report-db")
				}
			})
			if err != nil {
				return err
			}
			if s.ReportDB == "" {
				return fmt.Errorf("%w: no report database configured (use --report-db or report_db)", config.ErrInvalidSettings)
			}

			store, err := report.NewSQLiteStore(s.ReportDB)
			if err != nil {
				return err
			}
			defer store.Close()

			w := c.Root().Writer
			runID := c.Args().First()
			switch {
			case c.Bool("delete"):
				if runID == "" {
					return errors.New("--delete needs a run id")
				}
				if err := store.DeleteRun(runID); err != nil {
					return err
				}
				fmt.Fprintf(w, "deleted run %s\n", runID)
				return nil
			case runID != "":
				return showRun(w, store, runID, c.Bool("json"))
			default:
				return listRuns(w, store, c.Int("limit"), c.Bool("json"))
			}
		},
	}
}

func listRuns(w io.Writer, store report.Store, limit int, asJSON bool) error {
	runs, err := store.Runs(limit)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %-9s last=%s stages=%d\n",
			r.RunID, r.Updated.Local().Format(time.DateTime), r.Status, r.LastStage, r.Stages)
	}
	return nil
}

func showRun(w io.Writer, store report.Store, runID string, asJSON bool) error {
	infos, err := store.List(runID)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		return fmt.Errorf("run %s: %w", runID, report.ErrNotFound)
	}

	reports := make([]*report.Report, 0, len(infos))
	for _, info := range infos {
		r, err := store.Load(runID, info.Stage)
		if err != nil {
			return err
		}
		reports = append(reports, r)
	}
	if asJSON {
		return writeJSON(w, reports)
	}

	for _, r := range reports {
		fmt.Fprintf(w, "%d %-9s %-9s %8.1fms", r.Sequence, r.Stage, r.Status, r.DurationMs)
		if r.Error != "" {
			fmt.Fprintf(w, "  error: %s", r.Error)
		}
		fmt.Fprintln(w)
		for _, table := range slices.Sorted(maps.Keys(r.Tables)) {
			fmt.Fprintf(w, "    table %s: %d rows\n", table, r.Tables[table])
		}
		if r.Summary != nil {
			fmt.Fprintf(w, "    events=%d resolved=%d unresolved_items=%d unresolved_categories=%d cycles=%d\n",
				r.Summary.Events, r.Summary.Resolved, r.Summary.UnresolvedItems,
				r.Summary.UnresolvedCategories, r.Summary.Cycles)
		}
		for _, o := range r.Outputs {
			fmt.Fprintf(w, "    output %s %s (%d rows)\n", o.Format, o.Path, o.Rows)
		}
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "    warning: %s\n", warn)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
