/*
Package config loads mosaic application settings.

# Overview

Files are parsed into a generic map and wrapped in Config, which provides
typed accessors that return defaults for missing keys or mismatched
types. Decode turns a Config into Settings, starting from Default, and
Validate reports every problem at once.

# File Loading

FromFile picks the format by extension: .yaml and .yml, .json, .toml.

	s, err := config.LoadSettings("mosaic.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	// Or step by step
	cfg, err := config.FromTOML(data)
	s, err := config.Decode(cfg)
	err = s.Validate()

# Type Coercion

Duration accepts "30s" style strings, or numbers interpreted as seconds.
Int accepts JSON float64 values without a fractional part and TOML
int64 values.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
