// Package manifest reads the project manifest (lambda.yaml) that declares
// per-function metadata: environment overrides, package locations and the
// defaults used when deploying.
package manifest

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrFunctionNotDeclared = errors.New("manifest: function not declared")

// DefaultPath is where the manifest is looked up relative to the project root.
const DefaultPath = "lambda.yaml"

// Manifest is the root of the project configuration file.
type Manifest struct {
	// Env applies to every function in the project.
	Env map[string]string `yaml:"env"`
	// Functions holds per-function settings keyed by function name.
	Functions map[string]Function `yaml:"functions"`
}

// Function declares one function of the project.
type Function struct {
	// Dir overrides the package that is built and run for this function.
	Dir string `yaml:"dir"`
	// Env entries override the project-wide Env entries.
	Env map[string]string `yaml:"env"`

	// Deploy defaults, overridable from the command line.
	MemorySize int32  `yaml:"memory"`
	Timeout    int32  `yaml:"timeout"`
	Role       string `yaml:"role"`
}

// Load reads and decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	return &m, nil
}

// FunctionEnv loads the manifest at path and returns the environment
// overrides for the named function. A read or decode failure yields the
// error; callers that can run without overrides treat it as empty.
func FunctionEnv(path, name string) (map[string]string, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	return m.FunctionEnv(name), nil
}

// FunctionEnv merges the environment overrides for the named function:
// project-wide entries first, shadowed by the function's own entries.
func (m *Manifest) FunctionEnv(name string) map[string]string {
	env := make(map[string]string, len(m.Env))
	for k, v := range m.Env {
		env[k] = v
	}
	if fn, ok := m.Functions[name]; ok {
		for k, v := range fn.Env {
			env[k] = v
		}
	}
	return env
}

// Function returns the declaration of the named function.
func (m *Manifest) Function(name string) (Function, error) {
	fn, ok := m.Functions[name]
	if !ok {
		return Function{}, fmt.Errorf("%w: %s", ErrFunctionNotDeclared, name)
	}
	return fn, nil
}

// FunctionDir returns the declared package dir for the named function, or
// empty when the function is undeclared or uses the default layout.
func (m *Manifest) FunctionDir(name string) string {
	if m == nil {
		return ""
	}
	return m.Functions[name].Dir
}
