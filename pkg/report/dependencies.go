package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DependencyList is the document written by `deps list`.
type DependencyList struct {
	Dependencies []PlanDependency `json:"dependencies" yaml:"dependencies" toml:"dependencies"`
}

// RenderDependencies writes declared dependencies in the given format.
func RenderDependencies(w io.Writer, deps []PlanDependency, format Format) error {
	doc := DependencyList{Dependencies: deps}
	if doc.Dependencies == nil {
		doc.Dependencies = []PlanDependency{}
	}
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		err = enc.Encode(doc)
		data = buf.Bytes()
	case FormatTOML:
		data, err = toml.Marshal(doc)
	case FormatText, "":
		if len(deps) == 0 {
			data = []byte("No external dependencies declared.\n")
			break
		}
		var sb strings.Builder
		rows := [][]string{{"NAME", "TYPE", "SOURCE", "FILE"}}
		for _, d := range deps {
			file := d.File
			if file == "" {
				file = "-"
			}
			rows = append(rows, []string{d.Name, d.Type, d.Source, file})
		}
		writeTable(&sb, rows)
		data = []byte(sb.String())
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to render dependencies as %s: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}
