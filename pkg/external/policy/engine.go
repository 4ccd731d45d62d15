// Package policy evaluates declared external dependencies against a YAML
// policy before anything is fetched. The YAML is transpiled to Rego and run
// with an embedded OPA evaluator.
package policy

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
	"gopkg.in/yaml.v3"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external"
)

// Query is the Rego rule every transpiled policy defines.
const Query = "data.luacomposer.dependencies.deny"

// Document is the YAML policy format.
type Document struct {
	Version string `yaml:"version"`
	Types   struct {
		Allowed []string `yaml:"allowed"`
	} `yaml:"types"`
	Sources struct {
		ForbiddenPrefixes []string `yaml:"forbidden_prefixes"`
	} `yaml:"sources"`
	Licenses struct {
		Required bool `yaml:"required"`
	} `yaml:"licenses"`
}

// Engine holds a transpiled policy.
type Engine struct {
	regoCode string
}

// LoadFile reads and transpiles a YAML policy file.
func LoadFile(path string) (*Engine, error) {
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- policy path is supplied by the operator
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return FromYAML(data)
}

// FromYAML transpiles policy YAML.
func FromYAML(data []byte) (*Engine, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	for _, t := range doc.Types.Allowed {
		if !slices.Contains(external.Kinds, external.Kind(t)) {
			return nil, fmt.Errorf("policy allows unknown dependency type: %s", t)
		}
	}
	return &Engine{regoCode: transpile(doc)}, nil
}

// Rego returns the generated policy module.
func (e *Engine) Rego() string { return e.regoCode }

// Evaluate returns every denial message, sorted.
func (e *Engine) Evaluate(ctx context.Context, deps []external.Dependency) ([]string, error) {
	rs, err := rego.New(
		rego.Query(Query),
		rego.Input(buildInput(deps)),
		rego.Module("policy.rego", e.regoCode),
	).Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}

	var denials []string
	for _, r := range rs {
		for _, expr := range r.Expressions {
			values, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, v := range values {
				denials = append(denials, fmt.Sprint(v))
			}
		}
	}
	slices.Sort(denials)
	return denials, nil
}

// Check evaluates deps and returns a *DenyError when anything is denied.
func (e *Engine) Check(ctx context.Context, deps []external.Dependency) error {
	denials, err := e.Evaluate(ctx, deps)
	if err != nil {
		return err
	}
	if len(denials) > 0 {
		return &DenyError{Denials: denials}
	}
	return nil
}

// DenyError lists policy denials.
type DenyError struct {
	Denials []string
}

func (e *DenyError) Error() string {
	return "dependency policy denied: " + strings.Join(e.Denials, "; ")
}

func buildInput(deps []external.Dependency) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(deps))
	for _, d := range deps {
		items = append(items, map[string]interface{}{
			"name":    d.Name,
			"type":    string(d.Type),
			"source":  d.Source,
			"file":    d.File,
			"license": d.License,
		})
	}
	return map[string]interface{}{"dependencies": items}
}

func transpile(doc Document) string {
	var buf bytes.Buffer

	buf.WriteString("package luacomposer.dependencies\n\n")

	if len(doc.Types.Allowed) > 0 {
		buf.WriteString("allowed_types := ")
		buf.WriteString(regoSet(doc.Types.Allowed))
		buf.WriteString("\n\n")
		buf.WriteString("deny contains msg if {\n")
		buf.WriteString("  dep := input.dependencies[_]\n")
		buf.WriteString("  not allowed_types[dep.type]\n")
		buf.WriteString("  msg := sprintf(\"dependency %s uses disallowed type: %s\", [dep.name, dep.type])\n")
		buf.WriteString("}\n\n")
	}

	if len(doc.Sources.ForbiddenPrefixes) > 0 {
		buf.WriteString("deny contains msg if {\n")
		buf.WriteString("  dep := input.dependencies[_]\n")
		buf.WriteString("  prefix := ")
		buf.WriteString(regoArray(doc.Sources.ForbiddenPrefixes))
		buf.WriteString("[_]\n")
		buf.WriteString("  startswith(dep.source, prefix)\n")
		buf.WriteString("  msg := sprintf(\"dependency %s source %s matches forbidden prefix %s\", [dep.name, dep.source, prefix])\n")
		buf.WriteString("}\n\n")
	}

	if doc.Licenses.Required {
		buf.WriteString("deny contains msg if {\n")
		buf.WriteString("  dep := input.dependencies[_]\n")
		buf.WriteString("  trim_space(dep.license) == \"\"\n")
		buf.WriteString("  msg := sprintf(\"dependency %s declares no license\", [dep.name])\n")
		buf.WriteString("}\n\n")
	}

	return buf.String()
}

func regoArray(items []string) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, strconv.Quote(item))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func regoSet(items []string) string {
	return "{" + strings.TrimSuffix(strings.TrimPrefix(regoArray(items), "["), "]") + "}"
}
