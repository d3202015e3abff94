/*
Package config loads catflow run settings.

Settings are resolved in three layers, each overriding the last:

 1. Default: Retailrocket file and column names under ./data
 2. a YAML or JSON file, read through Config
 3. CATFLOW_* environment variables

Command-line flags are applied by the caller on top of the result.

# Documents

Config wraps a decoded document and provides typed accessors that fall
back to a default on a missing key or a type mismatch. Dotted keys reach
into nested maps:

	c, err := config.FromFile("catflow.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	workers := c.Int("workers", 1)
	formats := c.StringSlice("output.formats", []string{"csv"})

# Settings

	s, err := config.Load("catflow.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	logger := s.NewLogger(os.Stderr)
	fmt.Println(s.EventsPath(), s.OutputPath("csv"))

Environment names follow the field layout, e.g. CATFLOW_WORKERS,
CATFLOW_FORMATS=csv,jsonl and CATFLOW_COLUMNS_EVENTS_ITEM.
*/
package config
