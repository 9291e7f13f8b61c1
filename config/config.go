package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the viewer's server configuration. Flags override whatever the
// yaml file provides.
type Config struct {
	Addr     string `yaml:"addr"`
	SceneDir string `yaml:"scene_dir"`
	WebDir   string `yaml:"web_dir"`
	BaseURI  string `yaml:"base_uri"`
	FontPath string `yaml:"font"`
}

func Default() *Config {
	return &Config{
		Addr:     ":8000",
		SceneDir: "scenes",
		WebDir:   "web",
	}
}

// Load reads a yaml config file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %q", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %q", path)
	}
	return cfg, nil
}
