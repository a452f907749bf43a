package profile

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eruption-project/eruption-sub002/internal/script"
)

// ErrProfileLoad marks invalid profile or script references; a switch
// that fails this way is rejected and the prior state retained.
var ErrProfileLoad = errors.New("profile load failed")

// Profile is a named ordered list of active effect scripts plus
// per-script parameter overrides. The render loop only reads it.
type Profile struct {
	Name          string                    `yaml:"name"`
	Description   string                    `yaml:"description,omitempty"`
	ActiveScripts []string                  `yaml:"active_scripts"`
	Params        map[string]map[string]any `yaml:"params,omitempty"`

	Path string `yaml:"-"`
}

// Load reads a profile file.
func Load(path string) (*Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProfileLoad, path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProfileLoad, path, err)
	}
	if len(p.ActiveScripts) == 0 {
		return nil, fmt.Errorf("%w: %s: no active scripts", ErrProfileLoad, path)
	}
	p.Path = path
	return &p, nil
}

// Save writes the profile back to path.
func (p *Profile) Save(path string) error {
	b, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// FailSafe is the built-in minimal profile used when configured state
// cannot be loaded: a single solid red effect.
func FailSafe() *Profile {
	return &Profile{
		Name:          "failsafe",
		Description:   "built-in fail-safe profile",
		ActiveScripts: []string{script.FailSafeName},
	}
}

// ScriptParams returns the override table for one script (may be nil).
func (p *Profile) ScriptParams(name string) map[string]any {
	if p.Params == nil {
		return nil
	}
	return p.Params[name]
}

// SetParam records a parameter override for a script.
func (p *Profile) SetParam(scriptName, param string, value any) {
	if p.Params == nil {
		p.Params = map[string]map[string]any{}
	}
	if p.Params[scriptName] == nil {
		p.Params[scriptName] = map[string]any{}
	}
	p.Params[scriptName][param] = value
}
