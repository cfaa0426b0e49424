package config

import (
	"os"
)

// DefaultPath is used when neither a flag nor CONFIG_PATH names a file.
const DefaultPath = "config/config.toml"

// Resolve loads the config at path (or CONFIG_PATH, or DefaultPath) and
// applies environment overrides. A missing default file is not an error;
// built-in defaults are used instead. found reports whether a file was read.
func Resolve(path string) (cfg *Config, found bool, err error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg = Default()
			cfg.ApplyEnv()
			return cfg, false, nil
		}
	}

	cfg, err = Load(path)
	if err != nil {
		return nil, false, err
	}
	cfg.ApplyEnv()
	return cfg, true, nil
}
