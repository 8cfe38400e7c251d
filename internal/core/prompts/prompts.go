package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Template is a system/user prompt pair with {{name}} placeholders.
type Template struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Render substitutes vars into the user prompt.
func (t Template) Render(vars map[string]string) (system string, user string) {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return t.System, strings.NewReplacer(pairs...).Replace(t.User)
}

type Prompts struct {
	Questions Template `yaml:"questions"`
	Summary   Template `yaml:"summary"`
	Answer    Template `yaml:"answer"`
}

// Load returns the built-in prompts, overlaid with the YAML file at path when
// path is non-empty. Keys missing from the file keep their defaults.
func Load(path string) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(defaultPrompts, &p); err != nil {
		return nil, fmt.Errorf("parse default prompts: %w", err)
	}
	if path == "" {
		return &p, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	var override Prompts
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
	}
	p.Questions = merge(p.Questions, override.Questions)
	p.Summary = merge(p.Summary, override.Summary)
	p.Answer = merge(p.Answer, override.Answer)
	return &p, nil
}

// Default is Load("") for callers that cannot fail.
func Default() *Prompts {
	p, err := Load("")
	if err != nil {
		panic(err)
	}
	return p
}

func merge(base, override Template) Template {
	if override.System != "" {
		base.System = override.System
	}
	if override.User != "" {
		base.User = override.User
	}
	return base
}
