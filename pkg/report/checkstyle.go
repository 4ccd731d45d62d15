package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/beevik/etree"
)

// CheckstyleVersion is written on the root element.
const CheckstyleVersion = "4.3"

// WriteCheckstyle writes diags as a checkstyle XML document, one <file>
// element per file in sorted order. Files with no findings are listed when
// named in files so CI tools can show them as clean.
func WriteCheckstyle(w io.Writer, diags []Diagnostic, files ...string) error {
	sorted := append([]Diagnostic(nil), diags...)
	SortDiagnostics(sorted)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("checkstyle")
	root.CreateAttr("version", CheckstyleVersion)

	names := append([]string(nil), files...)
	for _, d := range sorted {
		names = append(names, d.File)
	}
	sort.Strings(names)

	byFile := make(map[string]*etree.Element)
	for _, name := range names {
		if _, ok := byFile[name]; ok {
			continue
		}
		el := root.CreateElement("file")
		el.CreateAttr("name", name)
		byFile[name] = el
	}

	for _, d := range sorted {
		el := byFile[d.File].CreateElement("error")
		if d.Line > 0 {
			el.CreateAttr("line", strconv.Itoa(d.Line))
		}
		if d.Column > 0 {
			el.CreateAttr("column", strconv.Itoa(d.Column))
		}
		el.CreateAttr("severity", string(d.Severity))
		el.CreateAttr("message", d.Message)
		el.CreateAttr("source", "luacomposer."+d.Rule)
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write checkstyle report: %w", err)
	}
	return nil
}
