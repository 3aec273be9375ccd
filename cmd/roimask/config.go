package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/bioimagetools/roimask/component"
	"github.com/bioimagetools/roimask/mask"
)

// Config holds the optional TOML settings for the roimask tool.
type Config struct {
	Log     mask.LogConfig   `toml:"log"`
	Labeler component.Config `toml:"labeler"`

	// DownscaleThreshold is the 3d voting threshold used by the scale
	// command; 0 selects the default.
	DownscaleThreshold int `toml:"downscale_threshold"`
}

// LoadConfig reads a TOML config file.  An empty path returns defaults.
func LoadConfig(path string) (*Config, error) {
	var c Config
	if path == "" {
		return &c, nil
	}
	meta, err := toml.DecodeFile(path, &c)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %v", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		mask.Warningf("config %q has unknown keys: %v\n", path, undecoded)
	}
	return &c, nil
}
