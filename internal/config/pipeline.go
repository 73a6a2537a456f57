package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// PipelineConfig is the reloadable subset of pipeline settings. It maps
// the [pipeline] table of the config file and is the payload type for the
// file watcher, so a running pipeline can pick up changes without restart.
type PipelineConfig struct {
	OutputFormat       string `toml:"output_format"`
	Orientation        string `toml:"orientation"`
	Matrix             string `toml:"matrix"`
	Backend            string `toml:"backend"`
	MaxAvailableFrames int    `toml:"max_available_frames"`
	MaxCachedFrames    int    `toml:"max_cached_frames"`
}

// LoadPipelineConfig reads the [pipeline] table from a TOML config file.
// Missing keys keep their zero values; callers treat zero as "leave as is".
func LoadPipelineConfig(path string) (PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PipelineConfig{}, err
	}

	var raw struct {
		Pipeline PipelineConfig `toml:"pipeline"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return PipelineConfig{}, err
	}
	return raw.Pipeline, nil
}
