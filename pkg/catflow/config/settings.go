package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. CATFLOW_WORKERS.
const EnvPrefix = "catflow"

// Output format names accepted in Settings.Formats.
const (
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
	FormatSQLite  = "sqlite"
	FormatParquet = "parquet"
)

// KnownFormats lists the accepted output formats.
var KnownFormats = []string{FormatCSV, FormatJSONL, FormatSQLite, FormatParquet}

// ErrInvalidSettings is wrapped by every Validate failure.
var ErrInvalidSettings = errors.New("invalid settings")

// EventColumns names the events table columns.
type EventColumns struct {
	Timestamp string `envconfig:"TIMESTAMP"`
	User      string `envconfig:"USER"`
	EventType string `envconfig:"EVENT_TYPE"`
	Item      string `envconfig:"ITEM"`
}

// ItemColumns names the item to category table columns.
type ItemColumns struct {
	Item     string `envconfig:"ITEM"`
	Category string `envconfig:"CATEGORY"`
}

// TreeColumns names the category tree columns.
type TreeColumns struct {
	Category string `envconfig:"CATEGORY"`
	Parent   string `envconfig:"PARENT"`
}

// Columns holds the header names of the three input tables.
type Columns struct {
	Events EventColumns `envconfig:"EVENTS"`
	Items  ItemColumns  `envconfig:"ITEMS"`
	Tree   TreeColumns  `envconfig:"TREE"`
}

// Settings is the resolved configuration of one pipeline run.
type Settings struct {
	DataDir        string `envconfig:"DATA_DIR"`
	EventsFile     string `envconfig:"EVENTS_FILE"`
	ItemsFile      string `envconfig:"ITEMS_FILE"`
	CategoriesFile string `envconfig:"CATEGORIES_FILE"`

	// OutputDir defaults to DataDir when empty.
	OutputDir  string   `envconfig:"OUTPUT_DIR"`
	OutputName string   `envconfig:"OUTPUT_NAME"`
	Formats    []string `envconfig:"FORMATS"`

	// ReportDB is the SQLite file run reports are saved to. Empty keeps
	// reports in memory for the life of the process.
	ReportDB string `envconfig:"REPORT_DB"`

	Workers       int           `envconfig:"WORKERS"`
	PathSeparator string        `envconfig:"PATH_SEPARATOR"`
	Timeout       time.Duration `envconfig:"TIMEOUT"`

	LogLevel  string `envconfig:"LOG_LEVEL"`
	LogFormat string `envconfig:"LOG_FORMAT"`
	Metrics   bool   `envconfig:"METRICS"`
	Tracing   bool   `envconfig:"TRACING"`

	Columns Columns `envconfig:"COLUMNS"`
}

// Default returns the settings used when nothing is configured: the
// Retailrocket file and column names in ./data, CSV output, one worker.
func Default() Settings {
	return Settings{
		DataDir:        "data",
		EventsFile:     "event.csv",
		ItemsFile:      "item_category.csv",
		CategoriesFile: "category_tree.csv",
		OutputName:     "processed_data",
		Formats:        []string{FormatCSV},
		Workers:        1,
		PathSeparator:  ">",
		LogLevel:       "info",
		LogFormat:      "text",
		Columns: Columns{
			Events: EventColumns{Timestamp: "timestamp", User: "visitorid", EventType: "event", Item: "itemid"},
			Items:  ItemColumns{Item: "itemid", Category: "categoryid"},
			Tree:   TreeColumns{Category: "categoryid", Parent: "parentid"},
		},
	}
}

// FromConfig reads Settings from a decoded document. Keys that are absent
// keep their Default value.
//
// Document layout:
//
//	data_dir: data
//	inputs:
//	  events: event.csv
//	  item_categories: item_category.csv
//	  category_tree: category_tree.csv
//	output:
//	  dir: out
//	  name: processed_data
//	  formats: [csv, jsonl, sqlite, parquet]
//	report_db: runs.db
//	workers: 4
//	path_separator: ">"
//	timeout: 10m
//	log:
//	  level: debug
//	  format: json
//	metrics: true
//	tracing: true
//	columns:
//	  events: {timestamp: timestamp, user: visitorid, event_type: event, item: itemid}
//	  items: {item: itemid, category: categoryid}
//	  tree: {category: categoryid, parent: parentid}
func FromConfig(c Config) Settings {
	d := Default()

	cols := c.Sub("columns")
	return Settings{
		DataDir:        c.String("data_dir", d.DataDir),
		EventsFile:     c.String("inputs.events", d.EventsFile),
		ItemsFile:      c.String("inputs.item_categories", d.ItemsFile),
		CategoriesFile: c.String("inputs.category_tree", d.CategoriesFile),
		OutputDir:      c.String("output.dir", d.OutputDir),
		OutputName:     c.String("output.name", d.OutputName),
		Formats:        c.StringSlice("output.formats", d.Formats),
		ReportDB:       c.String("report_db", d.ReportDB),
		Workers:        c.Int("workers", d.Workers),
		PathSeparator:  c.String("path_separator", d.PathSeparator),
		Timeout:        c.Duration("timeout", d.Timeout),
		LogLevel:       c.String("log.level", d.LogLevel),
		LogFormat:      c.String("log.format", d.LogFormat),
		Metrics:        c.Bool("metrics", d.Metrics),
		Tracing:        c.Bool("tracing", d.Tracing),
		Columns: Columns{
			Events: EventColumns{
				Timestamp: cols.String("events.timestamp", d.Columns.Events.Timestamp),
				User:      cols.String("events.user", d.Columns.Events.User),
				EventType: cols.String("events.event_type", d.Columns.Events.EventType),
				Item:      cols.String("events.item", d.Columns.Events.Item),
			},
			Items: ItemColumns{
				Item:     cols.String("items.item", d.Columns.Items.Item),
				Category: cols.String("items.category", d.Columns.Items.Category),
			},
			Tree: TreeColumns{
				Category: cols.String("tree.category", d.Columns.Tree.Category),
				Parent:   cols.String("tree.parent", d.Columns.Tree.Parent),
			},
		},
	}
}

// ApplyEnv overrides fields from CATFLOW_* environment variables, e.g.
// CATFLOW_DATA_DIR, CATFLOW_FORMATS=csv,jsonl or
// CATFLOW_COLUMNS_EVENTS_ITEM. Unset variables leave fields untouched.
func (s *Settings) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, s); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}

// Validate checks the settings for values no run could use.
func (s Settings) Validate() error {
	var errs []error
	if s.DataDir == "" {
		errs = append(errs, errors.New("data_dir is empty"))
	}
	if s.EventsFile == "" || s.ItemsFile == "" || s.CategoriesFile == "" {
		errs = append(errs, errors.New("input file names must not be empty"))
	}
	if s.OutputName == "" {
		errs = append(errs, errors.New("output name is empty"))
	}
	if len(s.Formats) == 0 {
		errs = append(errs, errors.New("no output format"))
	}
	for _, f := range s.Formats {
		if !slices.Contains(KnownFormats, f) {
			errs = append(errs, fmt.Errorf("unknown output format %q (want one of %s)", f, strings.Join(KnownFormats, ", ")))
		}
	}
	if s.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", s.Workers))
	}
	if s.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", s.Timeout))
	}
	if _, err := s.Level(); err != nil {
		errs = append(errs, err)
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", s.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
	}
	return nil
}

// EventsPath returns the path of the events input.
func (s Settings) EventsPath() string {
	return filepath.Join(s.DataDir, s.EventsFile)
}

// ItemsPath returns the path of the item to category input.
func (s Settings) ItemsPath() string {
	return filepath.Join(s.DataDir, s.ItemsFile)
}

// CategoriesPath returns the path of the category tree input.
func (s Settings) CategoriesPath() string {
	return filepath.Join(s.DataDir, s.CategoriesFile)
}

// OutputPath returns the output file for a format, e.g.
// data/processed_data.csv.
func (s Settings) OutputPath(format string) string {
	dir := s.OutputDir
	if dir == "" {
		dir = s.DataDir
	}
	return filepath.Join(dir, s.OutputName+"."+format)
}

// Level parses LogLevel.
func (s Settings) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return l, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// NewLogger builds the slog logger described by LogLevel and LogFormat.
// An invalid level falls back to info.
func (s Settings) NewLogger(w io.Writer) *slog.Logger {
	level, err := s.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if s.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
