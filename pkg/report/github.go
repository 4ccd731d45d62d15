package report

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// InGitHubActions reports whether the process runs inside a workflow.
func InGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// WriteAnnotations writes one workflow command per diagnostic, e.g.
//
//	::warning file=lib/a.lua,line=3,col=1,title=loadlib::loadlib call removed
func WriteAnnotations(w io.Writer, diags []Diagnostic) error {
	for _, d := range diags {
		cmd := "warning"
		if d.Severity == SeverityError {
			cmd = "error"
		}
		var props []string
		if d.File != "" {
			props = append(props, "file="+escapeProperty(d.File))
		}
		if d.Line > 0 {
			props = append(props, fmt.Sprintf("line=%d", d.Line))
		}
		if d.Column > 0 {
			props = append(props, fmt.Sprintf("col=%d", d.Column))
		}
		if d.Rule != "" {
			props = append(props, "title="+escapeProperty(d.Rule))
		}
		if len(props) > 0 {
			cmd += " " + strings.Join(props, ",")
		}
		if _, err := fmt.Fprintf(w, "::%s::%s\n", cmd, escapeData(d.Message)); err != nil {
			return err
		}
	}
	return nil
}

func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	return strings.ReplaceAll(s, "\n", "%0A")
}

func escapeProperty(s string) string {
	s = escapeData(s)
	s = strings.ReplaceAll(s, ":", "%3A")
	return strings.ReplaceAll(s, ",", "%2C")
}
