package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var sampleDiags = []Diagnostic{
	{Rule: "loadlib", Severity: SeverityWarning, File: "lib/z.lua", Line: 7, Column: 3, Message: "loadlib call removed"},
	{Rule: "dynamic-require", Severity: SeverityWarning, File: "lib/a.lua", Line: 2, Column: 1, Message: "require target is not a literal string"},
	{Rule: "dynamic-require", Severity: SeverityWarning, File: "lib/a.lua", Line: 1, Column: 9, Message: "require with 2 arguments"},
}

func samplePlan() Plan {
	return Plan{
		SourceDirectory: "src",
		Scope:           "local",
		Strict:          true,
		Header:          "header.lua",
		Dependencies:    []PlanDependency{{Name: "mist", Type: "github_release", Source: "mrSkortch/MissionScriptingTools@latest", File: "mist.lua"}},
		Modules: []PlanModule{
			{Order: 1, ID: "namespace", File: "namespace.lua", Role: "namespace"},
			{Order: 2, ID: "lib.util", File: "lib/util.lua", Role: "core"},
			{Order: 3, ID: "lib.数_wide", File: "lib/数_wide.lua", Role: "core", Requires: []string{"lib.util"}},
			{Order: 4, ID: "main", File: "main.lua", Role: "entrypoint", Requires: []string{"lib.util", "namespace"}},
		},
		Dropped:  []PlanDropped{{Module: "main", Target: "lfs", Reason: "ignored"}},
		Warnings: sampleDiags[:1],
	}
}

func TestSortDiagnostics(t *testing.T) {
	diags := append([]Diagnostic(nil), sampleDiags...)
	SortDiagnostics(diags)
	assert.Equal(t, "lib/a.lua", diags[0].File)
	assert.Equal(t, 1, diags[0].Line)
	assert.Equal(t, 2, diags[1].Line)
	assert.Equal(t, "lib/z.lua", diags[2].File)
}

func TestWriteCheckstyle(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCheckstyle(&buf, sampleDiags, "main.lua"))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))

	root := doc.SelectElement("checkstyle")
	require.NotNil(t, root)
	assert.Equal(t, CheckstyleVersion, root.SelectAttrValue("version", ""))

	files := root.SelectElements("file")
	require.Len(t, files, 3)
	assert.Equal(t, "lib/a.lua", files[0].SelectAttrValue("name", ""))
	assert.Equal(t, "lib/z.lua", files[1].SelectAttrValue("name", ""))
	assert.Equal(t, "main.lua", files[2].SelectAttrValue("name", ""))
	assert.Empty(t, files[2].SelectElements("error"))

	errs := files[0].SelectElements("error")
	require.Len(t, errs, 2)
	assert.Equal(t, "1", errs[0].SelectAttrValue("line", ""))
	assert.Equal(t, "9", errs[0].SelectAttrValue("column", ""))
	assert.Equal(t, "warning", errs[0].SelectAttrValue("severity", ""))
	assert.Equal(t, "luacomposer.dynamic-require", errs[0].SelectAttrValue("source", ""))
}

func TestWriteCheckstyle_EscapesMessages(t *testing.T) {
	var buf bytes.Buffer
	diags := []Diagnostic{{Rule: "x", Severity: SeverityError, File: "a.lua", Message: `bad "<tag>" & more`}}
	require.NoError(t, WriteCheckstyle(&buf, diags))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))
	el := doc.FindElement("//error")
	require.NotNil(t, el)
	assert.Equal(t, `bad "<tag>" & more`, el.SelectAttrValue("message", ""))
	assert.Empty(t, el.SelectAttrValue("line", ""))
}

func TestWriteAnnotations(t *testing.T) {
	var buf bytes.Buffer
	diags := []Diagnostic{
		sampleDiags[0],
		{Rule: "goto", Severity: SeverityError, File: "dir,with:odd.lua", Line: 4, Message: "50% done\nnext line"},
	}
	require.NoError(t, WriteAnnotations(&buf, diags))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "::warning file=lib/z.lua,line=7,col=3,title=loadlib::loadlib call removed", lines[0])
	assert.Equal(t, "::error file=dir%2Cwith%3Aodd.lua,line=4,title=goto::50%25 done%0Anext line", lines[1])
}

func TestWriteAnnotations_NoFile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnnotations(&buf, []Diagnostic{{Rule: "license", Severity: SeverityWarning, Message: "license file not found for 'mist'"}}))
	assert.Equal(t, "::warning title=license::license file not found for 'mist'\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteAnnotations(&buf, []Diagnostic{{Severity: SeverityWarning, Message: "bare"}}))
	assert.Equal(t, "::warning::bare\n", buf.String())
}

func TestInGitHubActions(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")
	assert.True(t, InGitHubActions())
	t.Setenv("GITHUB_ACTIONS", "")
	assert.False(t, InGitHubActions())
}

func TestParseFormat(t *testing.T) {
	for _, f := range []string{"", "text", "JSON", "yaml", "toml"} {
		_, err := ParseFormat(f)
		assert.NoError(t, err, f)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestRenderPlan_Structured(t *testing.T) {
	p := samplePlan()

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderPlan(&buf, p, FormatJSON))
		var got Plan
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, p, got)
	})
	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderPlan(&buf, p, FormatYAML))
		assert.Contains(t, buf.String(), "dcs_strict_sanitize: true")
		var got Plan
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, p.Modules, got.Modules)
	})
	t.Run("toml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderPlan(&buf, p, FormatTOML))
		assert.Contains(t, buf.String(), "[[modules]]")
		var got Plan
		require.NoError(t, toml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, p.Modules, got.Modules)
		assert.Equal(t, "local", got.Scope)
	})
	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, RenderPlan(&bytes.Buffer{}, p, "xml"))
	})
}

func TestRenderPlan_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPlan(&buf, samplePlan(), FormatText))
	out := buf.String()

	assert.Contains(t, out, "Scope: local, strict sanitize: true\n")
	assert.Contains(t, out, "Header: header.lua\n")
	assert.Contains(t, out, "External dependencies:\n")
	assert.Contains(t, out, "main -> lfs (ignored)")
	assert.Contains(t, out, "Entrypoint")
	assert.Contains(t, out, "lib.util, namespace")

	// Columns after a wide rune stay aligned with the header row.
	var header, wide string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "MODULE") {
			header = line
		}
		if strings.Contains(line, "lib.数_wide") {
			wide = line
		}
	}
	require.NotEmpty(t, header)
	require.NotEmpty(t, wide)
	assert.Equal(t, strings.Index(header, "ROLE"), strings.Index(wide, "Core")-(len("数")-2))
}

func TestRenderDependencies(t *testing.T) {
	deps := []PlanDependency{
		{Name: "mist", Type: "github_release", Source: "mrSkortch/MissionScriptingTools@latest", File: "mist.lua"},
		{Name: "json", Type: "url", Source: "https://example.com/json.lua"},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderDependencies(&buf, deps, FormatText))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "  NAME"))
	assert.True(t, strings.HasSuffix(lines[2], "-"))

	buf.Reset()
	require.NoError(t, RenderDependencies(&buf, nil, FormatText))
	assert.Equal(t, "No external dependencies declared.\n", buf.String())

	buf.Reset()
	require.NoError(t, RenderDependencies(&buf, nil, FormatJSON))
	assert.JSONEq(t, `{"dependencies": []}`, buf.String())

	buf.Reset()
	require.NoError(t, RenderDependencies(&buf, deps, FormatYAML))
	assert.Contains(t, buf.String(), "  - name: mist\n")

	assert.Error(t, RenderDependencies(&buf, deps, Format("xml")))
}
