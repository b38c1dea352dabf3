package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meridianlab/sweepctl/pkg/api"
)

// LoadSpec reads a sweep spec from a YAML file.
func LoadSpec(path string) (api.SweepSpec, error) {
	var spec api.SweepSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("read sweep spec: %w", err)
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("parse sweep spec: %w", err)
	}
	return spec, nil
}

// Expand enumerates the cartesian product of the sweep axes, targets
// outermost and tariffs innermost, so the output order is stable across
// runs. Every axis must have at least one value.
func Expand(spec api.SweepSpec) ([]Scenario, error) {
	axes := []struct {
		name   string
		values []string
	}{
		{"targets", spec.Targets},
		{"profiles", spec.Profiles},
		{"vessels", spec.Vessels},
		{"tariffs", spec.Tariffs},
	}
	for _, a := range axes {
		if len(a.values) == 0 {
			return nil, fmt.Errorf("sweep spec: axis %q has no values", a.name)
		}
	}

	out := make([]Scenario, 0, len(spec.Targets)*len(spec.Profiles)*len(spec.Vessels)*len(spec.Tariffs))
	for _, t := range spec.Targets {
		for _, p := range spec.Profiles {
			for _, v := range spec.Vessels {
				for _, r := range spec.Tariffs {
					s := Scenario{Target: t, Profile: p, Vessel: v, Tariff: r}.Sanitized()
					if err := s.Validate(); err != nil {
						return nil, fmt.Errorf("sweep spec: %w", err)
					}
					out = append(out, s)
				}
			}
		}
	}
	return out, nil
}
