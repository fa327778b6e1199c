package models

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

type PersonPreset struct {
	ID          string    `json:"id" yaml:"id"`
	Label       string    `json:"label" yaml:"label"`
	Description string    `json:"description" yaml:"description"`
	Axes        StyleAxes `json:"axes" yaml:"axes"`
}

var presets = mustLoadPresets(presetsYAML)

func mustLoadPresets(data []byte) []PersonPreset {
	out, err := parsePresets(data)
	if err != nil {
		panic(err)
	}
	return out
}

func parsePresets(data []byte) ([]PersonPreset, error) {
	var out []PersonPreset
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("parse presets: empty preset list")
	}
	for _, p := range out {
		if !p.Axes.Valid() {
			return nil, fmt.Errorf("parse presets: preset %q has invalid axes", p.ID)
		}
	}
	return out, nil
}

func Presets() []PersonPreset {
	out := make([]PersonPreset, len(presets))
	copy(out, presets)
	return out
}

func FindPreset(id string) (PersonPreset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return PersonPreset{}, false
}

// DefaultAxes is applied to people created without explicit axes.
func DefaultAxes() StyleAxes {
	return presets[0].Axes
}
