package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external"
)

const sampleRC = `{
  "source_directory": "src",
  "output_file": "dist/mission.lua",
  "namespace_file": "namespace.lua",
  "entrypoint_file": "main.lua",
  "dcs_strict_sanitize": false,
  "scope": "local",
  "exclude": ["tests/**"],
  "dependencies": [
    {"name": "mist", "type": "github_release", "source": "mrSkortch/MissionScriptingTools@latest", "file": "mist.lua", "license": "LICENSE"}
  ],
  "colour": "blue"
}`

func writeRC(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, RCFileName), []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{Dir: t.TempDir()})
	require.NoError(t, err)

	assert.True(t, cfg.DCSStrictSanitize)
	assert.Equal(t, "global", cfg.Scope)
	assert.Equal(t, DefaultParallel, cfg.Parallel)
	assert.Equal(t, "lf", cfg.LineEndings)
	assert.Empty(t, cfg.Dependencies)
	assert.Empty(t, cfg.File)
	assert.Empty(t, cfg.Warnings)
}

func TestLoad_RCFile(t *testing.T) {
	dir := t.TempDir()
	writeRC(t, dir, sampleRC)

	cfg, err := Load(LoadOptions{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, RCFileName), cfg.File)
	assert.Equal(t, "src", cfg.SourceDirectory)
	assert.Equal(t, "dist/mission.lua", cfg.OutputFile)
	assert.False(t, cfg.DCSStrictSanitize)
	assert.Equal(t, "local", cfg.Scope)
	assert.Equal(t, []string{"tests/**"}, cfg.Exclude)
	require.Len(t, cfg.Dependencies, 1)
	assert.Equal(t, external.KindGitHubRelease, cfg.Dependencies[0].Type)
	assert.Equal(t, "mist.lua", cfg.Dependencies[0].File)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "colour")
	assert.NoError(t, cfg.ValidateForBuild())
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	writeRC(t, dir, sampleRC)

	t.Setenv("LUACOMPOSER_SCOPE", "global")
	t.Setenv("LUACOMPOSER_OUTPUT_FILE", "env.lua")
	t.Setenv("LUACOMPOSER_DEPENDENCIES", `[{"name":"json","type":"url","source":"https://example.com/json.lua"}]`)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Var(NewEnumValue("true", "true", "false"), "dcs-strict-sanitize", "")
	flags.String("output", "", "")
	flags.String("namespace", "", "")
	require.NoError(t, flags.Parse([]string{"--output", "flag.lua", "--dcs-strict-sanitize", "true"}))

	cfg, err := Load(LoadOptions{
		Dir:   dir,
		Flags: flags,
		FlagKeys: map[string]string{
			"output_file":         "output",
			"dcs_strict_sanitize": "dcs-strict-sanitize",
			"namespace_file":      "namespace",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "flag.lua", cfg.OutputFile, "flag beats env and file")
	assert.Equal(t, "global", cfg.Scope, "env beats file")
	assert.True(t, cfg.DCSStrictSanitize, "flag beats file")
	assert.Equal(t, "namespace.lua", cfg.NamespaceFile, "unset flag does not override the file")
	require.Len(t, cfg.Dependencies, 1)
	assert.Equal(t, "json", cfg.Dependencies[0].Name)
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"scope":"local"}`), 0o644))

	cfg, err := Load(LoadOptions{File: path})
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Scope)

	_, err = Load(LoadOptions{File: filepath.Join(t.TempDir(), "missing.json")})
	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "not accessible")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		rc   string
		want string
	}{
		{name: "bad json", rc: `{"scope":`, want: "invalid JSON"},
		{name: "bad scope", rc: `{"scope":"module"}`, want: "scope"},
		{name: "strict as string", rc: `{"dcs_strict_sanitize":"yes"}`, want: "dcs_strict_sanitize"},
		{name: "release without file", rc: `{"dependencies":[{"name":"a","type":"github_release","source":"o/r@v1"}]}`, want: "file"},
		{name: "unknown dependency type", rc: `{"dependencies":[{"name":"a","type":"git","source":"x"}]}`, want: "type"},
		{name: "duplicate dependency", rc: `{"dependencies":[{"name":"a","type":"local","source":"x.lua"},{"name":"a","type":"local","source":"y.lua"}]}`, want: "duplicate dependency name"},
		{name: "parallel zero", rc: `{"parallel":0}`, want: "parallel"},
		{name: "line endings", rc: `{"line_endings":"cr"}`, want: "line_endings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeRC(t, dir, tt.rc)
			_, err := Load(LoadOptions{Dir: dir})
			require.Error(t, err)
			var cfgErr *Error
			assert.True(t, errors.As(err, &cfgErr), "expected *config.Error, got %T", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateForBuild(t *testing.T) {
	cfg, err := Load(LoadOptions{Dir: t.TempDir()})
	require.NoError(t, err)

	err = cfg.ValidateForBuild()
	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "source_directory", cfgErr.Key)

	cfg.SourceDirectory, cfg.NamespaceFile, cfg.EntrypointFile = "src", "ns.lua", "main.lua"
	assert.NoError(t, cfg.ValidateForPlan())
	err = cfg.ValidateForBuild()
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "output_file", cfgErr.Key)
}

func TestEnumValue(t *testing.T) {
	v := NewEnumValue("global", "global", "local")
	assert.Equal(t, "global", v.String())
	assert.Equal(t, "global|local", v.Type())
	require.NoError(t, v.Set("LOCAL"))
	assert.Equal(t, "local", v.String())
	assert.Error(t, v.Set("block"))
	assert.Equal(t, []string{"global", "local"}, v.Allowed())
}

func TestReadRC(t *testing.T) {
	dir := t.TempDir()
	rc, err := ReadRC(dir)
	require.NoError(t, err)
	assert.Nil(t, rc)

	writeRC(t, dir, sampleRC)
	rc, err = ReadRC(dir)
	require.NoError(t, err)
	require.NotNil(t, rc)
	assert.Equal(t, []string{"colour"}, rc.Unknown)
	assert.NotContains(t, rc.Values, "colour")

	out, err := rc.Outputs()
	require.NoError(t, err)
	assert.Equal(t, "false", out["dcs_strict_sanitize"])
	assert.Equal(t, `["tests/**"]`, out["exclude"])
	assert.Contains(t, out["dependencies"], `"name":"mist"`)
}

func TestWriteOutputs(t *testing.T) {
	rc := &RC{Values: map[string]interface{}{
		"source_directory":    "src",
		"dcs_strict_sanitize": true,
		"parallel":            float64(8),
		"header_file":         "multi\nline",
	}}

	t.Run("github output file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.txt")
		require.NoError(t, os.WriteFile(path, []byte("existing=1\n"), 0o644))
		require.NoError(t, rc.WriteOutputs(path, nil))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "existing=1\n"+
			"rc_dcs_strict_sanitize=true\n"+
			"rc_header_file<<EOF_RC_HEADER_FILE\nmulti\nline\nEOF_RC_HEADER_FILE\n"+
			"rc_parallel=8\n"+
			"rc_source_directory=src\n", string(data))
	})

	t.Run("legacy set-output", func(t *testing.T) {
		var buf bytes.Buffer
		single := &RC{Values: map[string]interface{}{"scope": "local", "dcs_strict_sanitize": false}}
		require.NoError(t, single.WriteOutputs("", &buf))
		assert.Equal(t, "::set-output name=rc_dcs_strict_sanitize::false\n::set-output name=rc_scope::local\n", buf.String())
	})
}
