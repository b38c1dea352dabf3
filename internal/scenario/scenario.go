package scenario

import (
	"fmt"
	"regexp"
	"strings"
)

// Scenario is one row of the parameter table: a single simulation case to be
// turned into exactly one batch job.
type Scenario struct {
	Target  string
	Profile string
	Vessel  string
	Tariff  string
}

// fieldRE is the allow-list for sanitized field values. Values outside it
// would corrupt the artifact name or leak shell syntax into the generated
// script, so they reject the row instead.
var fieldRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// SanitizeField trims a raw field and replaces interior spaces with
// underscores so the value stays usable in file and scheduler job names.
func SanitizeField(v string) string {
	return strings.ReplaceAll(strings.TrimSpace(v), " ", "_")
}

// FieldError reports a field that failed allow-list validation.
type FieldError struct {
	Field string
	Value string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("invalid field %s=%q: only letters, digits, '.', '_' and '-' are allowed", e.Field, e.Value)
}

// Sanitized returns a copy of the scenario with every field sanitized.
func (s Scenario) Sanitized() Scenario {
	return Scenario{
		Target:  SanitizeField(s.Target),
		Profile: SanitizeField(s.Profile),
		Vessel:  SanitizeField(s.Vessel),
		Tariff:  SanitizeField(s.Tariff),
	}
}

// Validate checks every field against the allow-list. Call on sanitized
// values; an empty field is invalid.
func (s Scenario) Validate() error {
	fields := []struct{ name, value string }{
		{"target", s.Target},
		{"profile", s.Profile},
		{"vessel", s.Vessel},
		{"tariff", s.Tariff},
	}
	for _, f := range fields {
		if !fieldRE.MatchString(f.value) {
			return FieldError{Field: f.name, Value: f.value}
		}
	}
	return nil
}

// JobName derives the artifact base name from the four fields. Identical
// scenarios collapse to identical names; the generator decides what
// overwriting means.
func (s Scenario) JobName() string {
	return fmt.Sprintf("job_%s_%s_%s_%s", s.Target, s.Profile, s.Vessel, s.Tariff)
}
