package pipeline

import (
	"errors"

	"github.com/randalmurphal/catflow/pkg/catflow"
	"github.com/randalmurphal/catflow/pkg/catflow/extract"
	"github.com/randalmurphal/catflow/pkg/catflow/load"
	"github.com/randalmurphal/catflow/pkg/catflow/report"
)

// extract reads the three inputs. An absent or empty table aborts the run
// before any merge work starts.
func (p *Pipeline) extract(ctx Context, st *State, rep *report.Report) error {
	reader := extract.NewReader(p.settings.Columns, extract.WithLogger(ctx.Logger()))
	tables, err := reader.ReadAll(ctx, extract.Paths{
		Events:     p.settings.EventsPath(),
		Items:      p.settings.ItemsPath(),
		Categories: p.settings.CategoriesPath(),
	})
	if err != nil {
		return err
	}
	st.Tables = tables

	rep.Tables = make(map[string]int, 3)
	if tables.Events != nil {
		rep.Tables[catflow.TableEvents] = tables.Events.Len()
	}
	if tables.Items != nil {
		rep.Tables[catflow.TableItems] = len(tables.Items)
	}
	if tables.Nodes != nil {
		rep.Tables[catflow.TableCategories] = len(tables.Nodes)
	}

	switch {
	case tables.Events == nil || tables.Events.Len() == 0:
		return &catflow.MissingInputError{Table: catflow.TableEvents}
	case len(tables.Items) == 0:
		return &catflow.MissingInputError{Table: catflow.TableItems}
	case len(tables.Nodes) == 0:
		return &catflow.MissingInputError{Table: catflow.TableCategories}
	}
	return nil
}

// transform merges the extracted tables.
func (p *Pipeline) transform(ctx Context, st *State, rep *report.Report) error {
	if st.Tables.Events == nil {
		return &catflow.MissingInputError{Table: catflow.TableEvents}
	}
	res, err := catflow.Merge(ctx, *st.Tables.Events, st.Tables.Items, st.Tables.Nodes,
		catflow.WithWorkers(p.settings.Workers),
		catflow.WithPathSeparator(p.settings.PathSeparator),
		catflow.WithLogger(ctx.Logger()),
		catflow.WithMetrics(p.cfg.metricsEnabled),
		catflow.WithTracing(p.cfg.tracingEnabled),
	)
	if err != nil {
		return err
	}
	st.Result = res
	summary := res.Summary
	rep.Summary = &summary
	return nil
}

// load writes the enriched table. Only a primary output failure fails the
// stage; secondary failures become report warnings.
func (p *Pipeline) load(ctx Context, st *State, rep *report.Report) error {
	if st.Result == nil {
		return errors.New("no merge result to write")
	}
	w, err := load.ForFormats(p.settings.Formats, p.settings.OutputPath, load.WithLogger(ctx.Logger()))
	if err != nil {
		return err
	}
	res, err := w.Write(ctx, &st.Result.Table)
	st.Load = res
	rep.Outputs = res.Outputs
	rep.Warnings = warningStrings(res.Warnings)
	return err
}

// warningStrings flattens a joined error into one string per failure.
func warningStrings(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		out := make([]string, 0, len(errs))
		for _, e := range errs {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
