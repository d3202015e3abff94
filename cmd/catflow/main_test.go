package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/catflow/pkg/catflow"
	"github.com/randalmurphal/catflow/pkg/catflow/config"
	"github.com/randalmurphal/catflow/pkg/catflow/pipeline"
	"github.com/randalmurphal/catflow/pkg/catflow/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeData(t *testing.T, withTree bool) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"event.csv":         "timestamp,visitorid,event,itemid\n1433221332117,1,view,I1\n1433221332118,2,view,I9\n",
		"item_category.csv": "itemid,categoryid\nI1,C10\n",
	}
	if withTree {
		files["category_tree.csv"] = "categoryid,parentid\nC10,C1\nC1,\n"
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"catflow"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunCommand(t *testing.T) {
	dir := writeData(t, true)
	db := filepath.Join(t.TempDir(), "runs.db")

	code, out, errOut := runCLI(t, "run",
		"--data-dir", dir,
		"--formats", "csv,jsonl",
		"--report-db", db,
		"--separator", "/",
		"--log-level", "error")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "unresolved items")
	assert.Contains(t, out, "wrote csv")
	assert.Contains(t, out, "wrote jsonl")

	data, err := os.ReadFile(filepath.Join(dir, "processed_data.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "C1/C10")

	code, out, errOut = runCLI(t, "reports", "--report-db", db)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "stages=3")
}

func TestRunCommand_JSON(t *testing.T) {
	dir := writeData(t, true)

	code, out, errOut := runCLI(t, "run", "--data-dir", dir, "--json", "--log-level", "error")
	require.Equal(t, exitOK, code, errOut)

	var got runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.NotEmpty(t, got.RunID)
	assert.Equal(t, 2, got.Summary.Events)
	assert.Equal(t, 1, got.Summary.UnresolvedItems)
	require.Len(t, got.Outputs, 1)
	assert.Equal(t, config.FormatCSV, got.Outputs[0].Format)
}

func TestRunCommand_MissingInput(t *testing.T) {
	dir := writeData(t, false)

	code, _, errOut := runCLI(t, "run", "--data-dir", dir, "--log-level", "error")
	assert.Equal(t, exitMissingInput, code)
	assert.Contains(t, errOut, catflow.TableCategories)

	_, err := os.Stat(filepath.Join(dir, "processed_data.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunCommand_InvalidSettings(t *testing.T) {
	code, _, errOut := runCLI(t, "run", "--workers", "0")
	assert.Equal(t, exitInvalid, code)
	assert.Contains(t, errOut, "workers must be at least 1")
}

func TestRunCommand_ConfigFile(t *testing.T) {
	dir := writeData(t, true)
	out := t.TempDir()
	cfg := filepath.Join(t.TempDir(), "catflow.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(
		"data_dir: "+dir+"\noutput:\n  dir: "+out+"\n  name: enriched\n  formats: [jsonl]\nlog:\n  level: error\n",
	), 0o644))

	code, _, errOut := runCLI(t, "run", "--config", cfg)
	require.Equal(t, exitOK, code, errOut)

	_, err := os.Stat(filepath.Join(out, "enriched.jsonl"))
	assert.NoError(t, err)
}

func TestReportsCommand_ShowAndDelete(t *testing.T) {
	dir := writeData(t, true)
	db := filepath.Join(t.TempDir(), "runs.db")

	code, out, errOut := runCLI(t, "run", "--data-dir", dir, "--report-db", db, "--json", "--log-level", "error")
	require.Equal(t, exitOK, code, errOut)
	var got runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	code, out, errOut = runCLI(t, "reports", "--report-db", db, got.RunID)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "extract")
	assert.Contains(t, out, "table events: 2 rows")
	assert.Contains(t, out, "output csv")

	code, out, errOut = runCLI(t, "reports", "--report-db", db, "--json", got.RunID)
	require.Equal(t, exitOK, code, errOut)
	var reports []report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 3)
	assert.Equal(t, pipeline.StageLoad, reports[2].Stage)

	code, _, errOut = runCLI(t, "reports", "--report-db", db, "--delete", got.RunID)
	require.Equal(t, exitOK, code, errOut)

	code, _, errOut = runCLI(t, "reports", "--report-db", db, got.RunID)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, errOut, "not found")
}

func TestReportsCommand_NoDatabase(t *testing.T) {
	code, _, errOut := runCLI(t, "reports")
	assert.Equal(t, exitInvalid, code)
	assert.Contains(t, errOut, "no report database")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"invalid settings", config.ErrInvalidSettings, exitInvalid},
		{"missing input", &pipeline.StageError{Stage: pipeline.StageExtract, Err: &catflow.MissingInputError{Table: catflow.TableItems}}, exitMissingInput},
		{"cancelled", &pipeline.CancellationError{Stage: pipeline.StageLoad, Cause: context.Canceled}, exitCancelled},
		{"other", errors.New("boom"), exitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
