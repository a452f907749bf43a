package script

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParamSpec declares one tunable script parameter.
type ParamSpec struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"` // "float" | "int" | "color" | "bool" | "string"
	Default any      `yaml:"default"`
	Min     *float64 `yaml:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty"`
}

// Manifest is the optional sidecar declaring a script's parameter schema.
type Manifest struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Params      []ParamSpec `yaml:"params"`
}

// ManifestPath is the sidecar location for a script path.
func ManifestPath(scriptPath string) string {
	return scriptPath + ".manifest.yaml"
}

// LoadManifest reads a manifest; a missing file yields (nil, nil).
func LoadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

// Merge produces the effective parameter table: declared defaults
// overlaid with the given overrides, numeric values clamped to the
// declared range. Overrides for undeclared names pass through.
func (m *Manifest) Merge(overrides map[string]any) map[string]any {
	out := map[string]any{}
	for _, p := range m.Params {
		out[p.Name] = p.Default
	}
	for k, v := range overrides {
		out[k] = m.Clamp(k, v)
	}
	return out
}

// Clamp applies the declared range of a parameter to a value.
func (m *Manifest) Clamp(name string, v any) any {
	var spec *ParamSpec
	for idx := range m.Params {
		if m.Params[idx].Name == name {
			spec = &m.Params[idx]
			break
		}
	}
	if spec == nil || (spec.Min == nil && spec.Max == nil) {
		return v
	}
	f, ok := toFloat(v)
	if !ok {
		return v
	}
	if spec.Min != nil && f < *spec.Min {
		f = *spec.Min
	}
	if spec.Max != nil && f > *spec.Max {
		f = *spec.Max
	}
	if spec.Type == "int" || spec.Type == "color" {
		return int64(f)
	}
	return f
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint32:
		return float64(x), true
	default:
		return 0, false
	}
}
