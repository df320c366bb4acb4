// Package ops loads run configuration from disk and applies CLI overrides.
package ops

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/yanun0323/errors"

	"main/internal/sim"
)

// Load reads a JSON config file on top of the defaults and validates the
// result. Omitted keys keep their default values; unknown keys are rejected
// so a typoed parameter fails loudly instead of silently running the
// baseline.
func Load(path string) (sim.Config, error) {
	cfg := sim.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return sim.Config{}, errors.Wrap(err, "read config")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return sim.Config{}, errors.Wrapf(err, "parse config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return sim.Config{}, errors.Wrapf(err, "validate config %s", path)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the validated defaults when
// path is empty.
func LoadOrDefault(path string) (sim.Config, error) {
	if path == "" {
		cfg := sim.DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return sim.Config{}, err
		}
		return cfg, nil
	}
	return Load(path)
}
