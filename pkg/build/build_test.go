package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/compose"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/config"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external/policy"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/finalizer"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/graph"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/ast"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/parse"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/report"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/sanitize"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/source"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

func posAt(line, col int) ast.Pos { return ast.Pos{Line: line, Column: col} }

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func sampleProject(t *testing.T) (string, map[string]string) {
	files := map[string]string{
		"header.lua":    "-- mission header\n",
		"namespace.lua": "MyMission = {}\n",
		"main.lua":      "require('lib.b')\nprint('start')\n",
		"footer.lua":    "-- footer\n",
		"lib/a.lua":     "MyMission.a = 1\n",
		"lib/b.lua":     "require('lib.a')\nlog.info('b loaded')\nMyMission.b = MyMission.a + 1\n",
		"util/c.lua":    "require(\"lib.a\")\nMyMission.c = true\n",
	}
	root := t.TempDir()
	writeTree(t, root, files)
	return root, files
}

func baseOptions(root string) Options {
	return Options{
		SourceDir:      root,
		OutputFile:     filepath.Join(root, "dist", "mission.lua"),
		HeaderFile:     "header.lua",
		NamespaceFile:  "namespace.lua",
		EntrypointFile: "main.lua",
		FooterFile:     "footer.lua",
		Strict:         true,
		Parallel:       4,
		NoIgnore:       true,
		Now:            fixedNow,
	}
}

func TestBuild_OrdersSanitizesAndWrites(t *testing.T) {
	root, _ := sampleProject(t)
	opts := baseOptions(root)

	res, err := New(opts).Build(context.Background())
	require.NoError(t, err)
	require.True(t, res.Written)

	assert.Equal(t, []string{"lib.a", "lib.b", "util.c"}, res.Order)

	data, err := os.ReadFile(opts.OutputFile)
	require.NoError(t, err)
	out := string(data)
	assert.Equal(t, res.Output, out)

	assert.True(t, strings.HasPrefix(out, "-- mission header\n"))
	assert.Contains(t, out, "-- Combined and Sanitized Lua script generated on 2025-03-01T12:00:00Z")
	assert.Contains(t, out, "-- Core Modules Order: lib.a, lib.b, util.c")
	assert.Contains(t, out, "env.info('start')")
	assert.Contains(t, out, "env.info('b loaded')")
	assert.NotContains(t, out, "require(")
	assert.NotContains(t, out, "print(")
	assert.True(t, strings.HasSuffix(out, "-- footer\n"))
	assert.False(t, strings.HasSuffix(out, "\n\n"))

	markers := []string{
		"-- Namespace Content from: namespace.lua",
		"-- Core Module Content from: lib/a.lua",
		"-- Core Module Content from: lib/b.lua",
		"-- Core Module Content from: util/c.lua",
		"-- Entrypoint Content from: main.lua",
		"-- Footer Content from: footer.lua",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(out, m)
		require.NotEqual(t, -1, idx, m)
		assert.Greater(t, idx, last, m)
		last = idx
	}
}

func TestBuild_LocalScopeAndCRLF(t *testing.T) {
	root, _ := sampleProject(t)
	opts := baseOptions(root)
	opts.Scope = compose.ScopeLocal
	opts.LineEnding = finalizer.CRLF

	res, err := New(opts).Compose(context.Background())
	require.NoError(t, err)

	out := strings.ReplaceAll(res.Output, "\r\n", "\n")
	assert.NotContains(t, out, "\r")
	assert.Equal(t, strings.Count(res.Output, "\n"), strings.Count(res.Output, "\r\n"))

	order := []string{"-- mission header", "-- Combined and Sanitized", "\ndo\n", "-- Namespace Content from:", "-- Entrypoint Content from:", "\nend\n", "-- Footer Content from:"}
	last := -1
	for _, m := range order {
		idx := strings.Index(out, m)
		require.NotEqual(t, -1, idx, m)
		assert.Greater(t, idx, last, m)
		last = idx
	}
}

func TestBuild_CycleWritesNothing(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"namespace.lua": "NS = {}\n",
		"main.lua":      "NS.run()\n",
		"a.lua":         "require('b')\n",
		"b.lua":         "require('a')\n",
	})
	opts := baseOptions(root)
	opts.HeaderFile, opts.FooterFile = "", ""

	_, err := New(opts).Build(context.Background())
	var cycle *graph.CycleError
	require.True(t, errors.As(err, &cycle), "got %v", err)
	assert.Equal(t, []string{"a", "b"}, cycle.Cycle)
	assert.NoFileExists(t, opts.OutputFile)
}

func TestBuild_FatalErrors(t *testing.T) {
	tests := []struct {
		name   string
		module string
		strict bool
		check  func(t *testing.T, err error)
	}{
		{
			name:   "strict library use",
			module: "local now = os.time()\n",
			strict: true,
			check: func(t *testing.T, err error) {
				var strict *sanitize.StrictModeViolationError
				require.True(t, errors.As(err, &strict), "got %v", err)
				assert.Equal(t, "lib/bad.lua", strict.File)
				assert.Equal(t, 1, strict.Pos.Line)
			},
		},
		{
			name:   "goto without strict",
			module: "for i = 1, 3 do\n  goto continue\n  ::continue::\nend\n",
			strict: false,
			check: func(t *testing.T, err error) {
				var gotoErr *sanitize.GotoError
				require.True(t, errors.As(err, &gotoErr), "got %v", err)
				assert.Equal(t, 2, gotoErr.Pos.Line)
			},
		},
		{
			name:   "syntax error",
			module: "local x = \n",
			strict: true,
			check: func(t *testing.T, err error) {
				var parseErr *parse.Error
				require.True(t, errors.As(err, &parseErr), "got %v", err)
				assert.Equal(t, "lib/bad.lua", parseErr.File)
			},
		},
		{
			name:   "unresolved require",
			module: "require('missing.module')\n",
			strict: true,
			check: func(t *testing.T, err error) {
				var unresolved *graph.UnresolvedDependencyError
				require.True(t, errors.As(err, &unresolved), "got %v", err)
				assert.Equal(t, "missing.module", unresolved.Target)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeTree(t, root, map[string]string{
				"namespace.lua": "NS = {}\n",
				"main.lua":      "NS.run()\n",
				"lib/bad.lua":   tt.module,
			})
			opts := baseOptions(root)
			opts.HeaderFile, opts.FooterFile = "", ""
			opts.Strict = tt.strict

			_, err := New(opts).Build(context.Background())
			require.Error(t, err)
			tt.check(t, err)
			assert.NoFileExists(t, opts.OutputFile)
		})
	}
}

func TestBuild_StrictOffLeavesLibrariesAlone(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"namespace.lua": "NS = {}\n",
		"main.lua":      "NS.started = os.time()\n",
	})
	opts := baseOptions(root)
	opts.HeaderFile, opts.FooterFile = "", ""
	opts.Strict = false

	res, err := New(opts).Compose(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.Output, "NS.started = os.time()")
	assert.Contains(t, res.Output, "-- Core Modules Order: None")
}

func TestBuild_FirstFatalInEmissionOrderWins(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"namespace.lua": "NS = {}\n",
		"main.lua":      "goto done\n::done::\n",
		"z.lua":         "local t = io.open('x')\n",
		"a.lua":         "require('z')\nlocal f = lfs.writedir()\n",
	})
	opts := baseOptions(root)
	opts.HeaderFile, opts.FooterFile = "", ""

	for range 5 {
		_, err := New(opts).Build(context.Background())
		var strict *sanitize.StrictModeViolationError
		require.True(t, errors.As(err, &strict), "got %v", err)
		assert.Equal(t, "z.lua", strict.File, "z is emitted before a")
	}
}

func TestBuild_Diagnostics(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"namespace.lua": "NS = {}\n",
		"main.lua":      "local name = 'lib'\nlocal m = require(name)\n",
		"lib.lua":       "local f = loadlib('x.dll', 'init')\nNS.lib = true\n",
	})
	opts := baseOptions(root)
	opts.HeaderFile, opts.FooterFile = "", ""

	res, err := New(opts).Compose(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, "lib.lua", res.Diagnostics[0].File)
	assert.Equal(t, sanitize.RuleLoadlib, res.Diagnostics[0].Rule)
	assert.Equal(t, "main.lua", res.Diagnostics[1].File)
	assert.Equal(t, RuleDynamicRequire, res.Diagnostics[1].Rule)
	assert.Equal(t, 2, res.Diagnostics[1].Line)
	assert.Equal(t, res.Diagnostics, res.Plan.Warnings)
	assert.NotContains(t, res.Output, "loadlib")
}

func TestMergeDiagnostics_LeavesInputsAlone(t *testing.T) {
	analysis := make([]report.Diagnostic, 2, 8)
	analysis[0] = report.Diagnostic{Rule: RuleDynamicRequire, File: "z.lua", Line: 1}
	analysis[1] = report.Diagnostic{Rule: RuleDynamicRequire, File: "b.lua", Line: 1}
	sanitized := []report.Diagnostic{{Rule: sanitize.RuleLoadlib, File: "a.lua", Line: 3}}

	merged := mergeDiagnostics(analysis, nil, sanitized)

	require.Len(t, merged, 3)
	assert.Equal(t, []string{"a.lua", "b.lua", "z.lua"}, []string{merged[0].File, merged[1].File, merged[2].File})
	assert.Equal(t, "z.lua", analysis[0].File)
	assert.Equal(t, "b.lua", analysis[1].File)
	assert.Equal(t, "a.lua", sanitized[0].File)
}

func TestBuild_ExternalDependencies(t *testing.T) {
	work := t.TempDir()
	root := filepath.Join(work, "src")
	writeTree(t, work, map[string]string{
		"src/namespace.lua":  "NS = {}\n",
		"src/main.lua":       "local json = require('json')\nNS.run()\n",
		"vendor/json.lua":    "json = {}\nprint('vendored untouched')\n",
		"vendor/LICENSE.txt": "MIT\nCopyright\n",
	})
	opts := baseOptions(root)
	opts.HeaderFile, opts.FooterFile = "", ""
	opts.Dependencies = []external.Dependency{
		{Name: "json", Type: external.KindLocal, Source: "vendor/json.lua", License: "vendor/LICENSE.txt", Description: "JSON codec"},
		{Name: "extra", Type: external.KindLocal, Source: "vendor/json.lua", License: "vendor/NOPE"},
	}
	opts.Fetcher = external.NewFetcher(external.Options{BaseDir: work})

	res, err := New(opts).Compose(context.Background())
	require.NoError(t, err)

	out := res.Output
	depIdx := strings.Index(out, "-- External Dependency: json")
	extraIdx := strings.Index(out, "-- External Dependency: extra")
	nsIdx := strings.Index(out, "-- Namespace Content from:")
	bannerIdx := strings.Index(out, "-- External Dependencies: 2 loaded")
	require.NotEqual(t, -1, depIdx)
	require.NotEqual(t, -1, bannerIdx)
	assert.Less(t, bannerIdx, depIdx)
	assert.Less(t, depIdx, extraIdx)
	assert.Less(t, extraIdx, nsIdx)
	assert.Contains(t, out, "-- Description: JSON codec")
	assert.Contains(t, out, "print('vendored untouched')")

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, RuleDependency, res.Diagnostics[0].Rule)
	assert.Contains(t, res.Diagnostics[0].Message, "extra")
}

func TestBuild_PolicyDeniesBeforeFetch(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"namespace.lua": "NS = {}\n",
		"main.lua":      "NS.run()\n",
	})
	engine, err := policy.FromYAML([]byte("version: v1\ntypes:\n  allowed: [github_release, local]\n"))
	require.NoError(t, err)

	mock := external.NewMockHTTP()
	opts := baseOptions(root)
	opts.HeaderFile, opts.FooterFile = "", ""
	opts.Policy = engine
	opts.Dependencies = []external.Dependency{{Name: "json", Type: external.KindURL, Source: "https://example.com/json.lua"}}
	opts.Fetcher = external.NewFetcher(external.Options{BaseDir: root, HTTP: mock})

	_, err = New(opts).Build(context.Background())
	var deny *policy.DenyError
	require.True(t, errors.As(err, &deny), "got %v", err)
	assert.Empty(t, mock.Requests())
	assert.NoFileExists(t, opts.OutputFile)

	_, err = New(opts).Plan(context.Background())
	assert.True(t, errors.As(err, &deny))
}

func TestBuild_DependenciesWithoutFetcher(t *testing.T) {
	root, _ := sampleProject(t)
	opts := baseOptions(root)
	opts.Dependencies = []external.Dependency{{Name: "json", Type: external.KindLocal, Source: "x.lua"}}

	_, err := New(opts).Build(context.Background())
	assert.ErrorContains(t, err, "no fetcher")
}

func TestPlan(t *testing.T) {
	root, _ := sampleProject(t)
	opts := baseOptions(root)

	res, err := New(opts).Plan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Output)
	assert.False(t, res.Written)
	assert.NoFileExists(t, opts.OutputFile)

	p := res.Plan
	assert.Equal(t, "global", p.Scope)
	assert.True(t, p.Strict)
	assert.Equal(t, "header.lua", p.Header)
	assert.Equal(t, "footer.lua", p.Footer)

	var ids, roles []string
	for _, m := range p.Modules {
		ids = append(ids, m.ID)
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"namespace", "lib.a", "lib.b", "util.c", "main"}, ids)
	assert.Equal(t, []string{
		string(source.RoleNamespace), string(source.RoleCore), string(source.RoleCore), string(source.RoleCore), string(source.RoleEntrypoint),
	}, roles)
	assert.Equal(t, []string{"lib.a"}, p.Modules[2].Requires)
	assert.Equal(t, 1, p.Modules[0].Order)
	assert.Equal(t, 5, p.Modules[4].Order)

	require.Len(t, p.Dropped, 1)
	assert.Equal(t, report.PlanDropped{Module: "main", Target: "lib.b", Reason: "loaded before the entrypoint"}, p.Dropped[0])
}

func TestBuild_MissingRole(t *testing.T) {
	root, _ := sampleProject(t)
	opts := baseOptions(root)
	opts.NamespaceFile = ""

	_, err := New(opts).Build(context.Background())
	assert.ErrorIs(t, err, source.ErrMissingRoleFile)
}

func TestRunOrdered_LowestIndexErrorWins(t *testing.T) {
	errs := map[int]error{1: errors.New("one"), 3: errors.New("three")}
	err := runOrdered(context.Background(), 5, 3, func(i int) error {
		if i == 1 {
			time.Sleep(10 * time.Millisecond)
		}
		return errs[i]
	})
	assert.EqualError(t, err, "one")

	calls := 0
	err = runOrdered(context.Background(), 4, 1, func(int) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestFailureDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []report.Diagnostic
	}{
		{name: "nil", err: nil, want: nil},
		{
			name: "syntax",
			err:  &parse.Error{File: "a.lua", Pos: posAt(3, 7), Msg: "unexpected symbol"},
			want: []report.Diagnostic{{Rule: "syntax", Severity: report.SeverityError, File: "a.lua", Line: 3, Column: 7, Message: "unexpected symbol"}},
		},
		{
			name: "cycle",
			err:  &graph.CycleError{Cycle: []string{"a", "b"}},
			want: []report.Diagnostic{{Rule: "cycle", Severity: report.SeverityError, Message: "dependency cycle detected among modules: a, b"}},
		},
		{
			name: "plain",
			err:  errors.New("boom"),
			want: []report.Diagnostic{{Severity: report.SeverityError, Message: "boom"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureDiagnostics(tt.err))
		})
	}

	joined := errors.Join(
		&graph.UnresolvedDependencyError{Module: "a", File: "a.lua", Target: "x", Pos: posAt(1, 1), Reason: "no module with this identity"},
		&sanitize.GotoError{File: "b.lua", Pos: posAt(2, 3), Label: "l", Line: "goto l"},
	)
	diags := FailureDiagnostics(joined)
	require.Len(t, diags, 2)
	assert.Equal(t, "unresolved-require", diags[0].Rule)
	assert.Equal(t, sanitize.RuleGoto, diags[1].Rule)
	assert.Equal(t, 3, diags[1].Column)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.Load(config.LoadOptions{Dir: t.TempDir()})
	require.NoError(t, err)
	cfg.SourceDirectory = "src"
	cfg.Scope = "local"
	cfg.LineEndings = "crlf"
	cfg.CacheDir = t.TempDir()
	cfg.Dependencies = []external.Dependency{{Name: "json", Type: external.KindLocal, Source: "json.lua"}}

	opts, err := OptionsFromConfig(cfg, t.TempDir(), external.NewMockHTTP())
	require.NoError(t, err)
	assert.Equal(t, "src", opts.SourceDir)
	assert.Equal(t, compose.ScopeLocal, opts.Scope)
	assert.Equal(t, finalizer.CRLF, opts.LineEnding)
	assert.True(t, opts.Strict)
	assert.NotNil(t, opts.Fetcher)
	assert.Nil(t, opts.Policy)

	cfg.DependencyPolicy = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = OptionsFromConfig(cfg, t.TempDir(), nil)
	var cfgErr *config.Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "dependency_policy", cfgErr.Key)
}

func TestBuild_OutputInsideSourceIsNotReadBack(t *testing.T) {
	root, _ := sampleProject(t)
	opts := baseOptions(root)

	first, err := New(opts).Build(context.Background())
	require.NoError(t, err)
	require.FileExists(t, opts.OutputFile)

	second, err := New(opts).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Order, second.Order)
	assert.Equal(t, first.Output, second.Output)
}
