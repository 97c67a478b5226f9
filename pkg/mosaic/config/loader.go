package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type unmarshalFunc func([]byte, any) error

// formats maps a file extension to its format name and decoder.
var formats = map[string]struct {
	name      string
	unmarshal unmarshalFunc
}{
	".yaml": {"yaml", yaml.Unmarshal},
	".yml":  {"yaml", yaml.Unmarshal},
	".json": {"json", json.Unmarshal},
	".toml": {"toml", toml.Unmarshal},
}

// FromFile reads path and decodes it according to its extension
// (.yaml, .yml, .json or .toml).
func FromFile(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	f, ok := formats[ext]
	if !ok {
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
	return decode(f.name, f.unmarshal, data)
}

// FromYAML decodes a YAML document.
func FromYAML(data []byte) (Config, error) { return decode("yaml", yaml.Unmarshal, data) }

// FromJSON decodes a JSON object.
func FromJSON(data []byte) (Config, error) { return decode("json", json.Unmarshal, data) }

// FromTOML decodes a TOML document.
func FromTOML(data []byte) (Config, error) { return decode("toml", toml.Unmarshal, data) }

func decode(format string, unmarshal unmarshalFunc, data []byte) (Config, error) {
	var m map[string]any
	if err := unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", format, err)
	}
	return New(m), nil
}

// LoadSettings reads path and decodes validated Settings from it.
func LoadSettings(path string) (Settings, error) {
	c, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	s, err := Decode(c)
	if err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
