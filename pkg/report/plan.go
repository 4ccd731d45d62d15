package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Format is an output format for plans.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Formats lists every supported plan format.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatTOML}

// ParseFormat validates a format name. The empty string means text.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatText, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format %q (valid: text, json, yaml, toml)", s)
}

// PlanModule is one entry of the emission order.
type PlanModule struct {
	Order    int      `json:"order" yaml:"order" toml:"order"`
	ID       string   `json:"id" yaml:"id" toml:"id"`
	File     string   `json:"file" yaml:"file" toml:"file"`
	Role     string   `json:"role" yaml:"role" toml:"role"`
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty" toml:"requires,omitempty"`
}

// PlanDependency is a declared external dependency.
type PlanDependency struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Type   string `json:"type" yaml:"type" toml:"type"`
	Source string `json:"source" yaml:"source" toml:"source"`
	File   string `json:"file,omitempty" yaml:"file,omitempty" toml:"file,omitempty"`
}

// PlanDropped is a require that produced no ordering edge.
type PlanDropped struct {
	Module string `json:"module" yaml:"module" toml:"module"`
	Target string `json:"target" yaml:"target" toml:"target"`
	Reason string `json:"reason" yaml:"reason" toml:"reason"`
}

// Plan describes what a build would emit, without the module contents.
type Plan struct {
	SourceDirectory string           `json:"source_directory" yaml:"source_directory" toml:"source_directory"`
	Scope           string           `json:"scope" yaml:"scope" toml:"scope"`
	Strict          bool             `json:"dcs_strict_sanitize" yaml:"dcs_strict_sanitize" toml:"dcs_strict_sanitize"`
	Header          string           `json:"header,omitempty" yaml:"header,omitempty" toml:"header,omitempty"`
	Footer          string           `json:"footer,omitempty" yaml:"footer,omitempty" toml:"footer,omitempty"`
	Dependencies    []PlanDependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty" toml:"dependencies,omitempty"`
	Modules         []PlanModule     `json:"modules" yaml:"modules" toml:"modules"`
	Dropped         []PlanDropped    `json:"dropped_requires,omitempty" yaml:"dropped_requires,omitempty" toml:"dropped_requires,omitempty"`
	Warnings        []Diagnostic     `json:"warnings,omitempty" yaml:"warnings,omitempty" toml:"warnings,omitempty"`
}

// RenderPlan writes p in the given format.
func RenderPlan(w io.Writer, p Plan, format Format) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(p, "", "  ")
		data = append(data, '\n')
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		err = enc.Encode(p)
		data = buf.Bytes()
	case FormatTOML:
		data, err = toml.Marshal(p)
	case FormatText, "":
		data = []byte(renderText(p))
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to render plan as %s: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}

var titleCase = cases.Title(language.English)

func renderText(p Plan) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Source: %s\n", p.SourceDirectory)
	fmt.Fprintf(&sb, "Scope: %s, strict sanitize: %t\n", p.Scope, p.Strict)
	if p.Header != "" {
		fmt.Fprintf(&sb, "Header: %s\n", p.Header)
	}
	if p.Footer != "" {
		fmt.Fprintf(&sb, "Footer: %s\n", p.Footer)
	}

	if len(p.Dependencies) > 0 {
		sb.WriteString("\nExternal dependencies:\n")
		rows := [][]string{{"NAME", "TYPE", "SOURCE"}}
		for _, d := range p.Dependencies {
			rows = append(rows, []string{d.Name, d.Type, d.Source})
		}
		writeTable(&sb, rows)
	}

	sb.WriteString("\nEmission order:\n")
	rows := [][]string{{"#", "MODULE", "ROLE", "FILE", "REQUIRES"}}
	for _, m := range p.Modules {
		requires := strings.Join(m.Requires, ", ")
		if requires == "" {
			requires = "-"
		}
		rows = append(rows, []string{fmt.Sprint(m.Order), m.ID, titleCase.String(m.Role), m.File, requires})
	}
	writeTable(&sb, rows)

	if len(p.Dropped) > 0 {
		sb.WriteString("\nRequires without ordering edges:\n")
		for _, d := range p.Dropped {
			fmt.Fprintf(&sb, "  %s -> %s (%s)\n", d.Module, d.Target, d.Reason)
		}
	}
	if len(p.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, d := range p.Warnings {
			fmt.Fprintf(&sb, "  %s:%d:%d: %s\n", d.File, d.Line, d.Column, d.Message)
		}
	}
	return sb.String()
}

// writeTable pads columns by display width so wide runes stay aligned.
func writeTable(sb *strings.Builder, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for _, row := range rows {
		sb.WriteString("  ")
		for i, cell := range row {
			if i == len(row)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]+2))
		}
		sb.WriteString("\n")
	}
}
