package external

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDependency_Validate(t *testing.T) {
	tests := []struct {
		name    string
		dep     Dependency
		wantErr string
	}{
		{name: "valid url", dep: Dependency{Name: "a", Type: KindURL, Source: "https://x/a.lua"}},
		{name: "valid release", dep: Dependency{Name: "mist", Type: KindGitHubRelease, Source: "mrSkortch/MissionScriptingTools@latest", File: "mist.lua"}},
		{name: "missing name", dep: Dependency{Type: KindURL, Source: "s"}, wantErr: "'name'"},
		{name: "missing type", dep: Dependency{Name: "a", Source: "s"}, wantErr: "'type'"},
		{name: "bad type", dep: Dependency{Name: "a", Type: "git", Source: "s"}, wantErr: "invalid type: git"},
		{name: "missing source", dep: Dependency{Name: "a", Type: KindLocal}, wantErr: "'source'"},
		{name: "release without file", dep: Dependency{Name: "a", Type: KindGitHubRelease, Source: "o/r@v1"}, wantErr: "'file'"},
		{name: "release bad source", dep: Dependency{Name: "a", Type: KindGitHubRelease, Source: "o-r-v1", File: "a.lua"}, wantErr: "owner/repo@tag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dep.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDependency))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseList(t *testing.T) {
	deps, err := ParseList(`[{"name":"a","type":"url","source":"https://x/a.lua"},{"name":"b","type":"local","source":"vendor/b.lua"}]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, Names(deps))

	deps, err = ParseList("  ")
	require.NoError(t, err)
	assert.Nil(t, deps)

	_, err = ParseList(`{"name":"a"}`)
	assert.ErrorIs(t, err, ErrInvalidDependency)

	_, err = ParseList(`[{"name":"a","type":"url","source":"x"},{"name":"a","type":"url","source":"y"}]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestParseReleaseSource(t *testing.T) {
	src, err := ParseReleaseSource("owner/repo@v1.2.3")
	require.NoError(t, err)
	assert.Equal(t, ReleaseSource{Owner: "owner", Repo: "repo", Tag: "v1.2.3"}, src)

	_, err = ParseReleaseSource("owner@v1")
	assert.Error(t, err)
}

func newTestFetcher(t *testing.T, mock *MockHTTP) *Fetcher {
	t.Helper()
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	return NewFetcher(Options{
		BaseDir:      t.TempDir(),
		HTTP:         mock,
		Cache:        cache,
		APIBase:      "https://api.test",
		DownloadBase: "https://dl.test",
	})
}

func TestFetch_GitHubReleaseLatest(t *testing.T) {
	mock := NewMockHTTP()
	mock.AddResponse("https://api.test/repos/o/r/releases/latest", 200, `{"tag_name":"v4.5"}`)
	mock.AddResponse("https://dl.test/o/r/releases/download/v4.5/lib.lua", 200, "lib = {}")
	mock.AddResponse("https://dl.test/o/r/releases/download/v4.5/LICENSE", 200, "MIT\n\nCopyright")
	f := newTestFetcher(t, mock)

	dep := Dependency{Name: "lib", Type: KindGitHubRelease, Source: "o/r@latest", File: "lib.lua", License: "LICENSE"}
	p, err := f.Fetch(context.Background(), dep)
	require.NoError(t, err)
	assert.Equal(t, "lib = {}", p.Content)
	assert.Equal(t, "v4.5", p.Tag)
	assert.Equal(t, "MIT\n\nCopyright", p.License)
	assert.Empty(t, p.Warnings)

	// the second fetch is served from the cache
	_, err = f.Fetch(context.Background(), dep)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.Count("https://dl.test/o/r/releases/download/v4.5/lib.lua"))
	assert.Positive(t, f.opts.Cache.Stats().MemoryHits)
}

func TestFetch_TokenHeader(t *testing.T) {
	mock := NewMockHTTP()
	mock.AddResponse("https://api.test/repos/o/r/releases/latest", 200, `{"tag_name":"v1"}`)
	mock.AddResponse("https://dl.test/o/r/releases/download/v1/x.lua", 200, "x")
	f := newTestFetcher(t, mock)
	f.opts.Token = "secret"

	_, err := f.Fetch(context.Background(), Dependency{Name: "x", Type: KindGitHubRelease, Source: "o/r@latest", File: "x.lua"})
	require.NoError(t, err)
	reqs := mock.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "token secret", reqs[0].Header.Get("Authorization"))
	assert.Equal(t, "luacomposer", reqs[0].Header.Get("User-Agent"))
}

func TestFetch_LicenseFailureIsWarning(t *testing.T) {
	mock := NewMockHTTP()
	mock.AddResponse("https://example.test/a.lua", 200, "a = 1")
	f := newTestFetcher(t, mock)

	p, err := f.Fetch(context.Background(), Dependency{Name: "a", Type: KindURL, Source: "https://example.test/a.lua", License: "https://example.test/LICENSE"})
	require.NoError(t, err)
	assert.Equal(t, "a = 1", p.Content)
	assert.Empty(t, p.License)
	require.Len(t, p.Warnings, 1)
	assert.Contains(t, p.Warnings[0], "failed to fetch license for 'a'")
}

func TestFetch_Errors(t *testing.T) {
	mock := NewMockHTTP()
	limited := make(http.Header)
	limited.Set("X-RateLimit-Limit", "60")
	limited.Set("X-RateLimit-Remaining", "0")
	limited.Set("X-RateLimit-Reset", "1700000000")
	mock.AddResponseWithHeader("https://api.test/repos/o/limited/releases/latest", 403, "{}", limited)
	mock.AddResponse("https://example.test/500.lua", 502, "bad gateway")
	mock.AddError("https://example.test/down.lua", errors.New("connection refused"))
	f := newTestFetcher(t, mock)
	ctx := context.Background()

	_, err := f.Fetch(ctx, Dependency{Name: "l", Type: KindGitHubRelease, Source: "o/limited@latest", File: "l.lua"})
	var rl *RateLimitError
	require.True(t, errors.As(err, &rl), "got %v", err)
	assert.Equal(t, 60, rl.Limit)
	assert.Equal(t, 0, rl.Remaining)
	assert.False(t, rl.RetryAfter.IsZero())

	_, err = f.Fetch(ctx, Dependency{Name: "s", Type: KindURL, Source: "https://example.test/500.lua"})
	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))

	_, err = f.Fetch(ctx, Dependency{Name: "d", Type: KindURL, Source: "https://example.test/down.lua"})
	assert.True(t, errors.As(err, &netErr))

	_, err = f.Fetch(ctx, Dependency{Name: "n", Type: KindURL, Source: "https://example.test/none.lua"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetch_RejectsOversizedDownload(t *testing.T) {
	orig := maxDownload
	maxDownload = 16
	t.Cleanup(func() { maxDownload = orig })

	mock := NewMockHTTP()
	mock.AddResponse("https://example.test/exact.lua", 200, strings.Repeat("x", 16))
	mock.AddResponse("https://example.test/big.lua", 200, strings.Repeat("x", 17))
	f := newTestFetcher(t, mock)
	ctx := context.Background()

	p, err := f.Fetch(ctx, Dependency{Name: "exact", Type: KindURL, Source: "https://example.test/exact.lua"})
	require.NoError(t, err)
	assert.Len(t, p.Content, 16)

	_, err = f.Fetch(ctx, Dependency{Name: "big", Type: KindURL, Source: "https://example.test/big.lua"})
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr), "got %v", err)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFetch_Local(t *testing.T) {
	f := newTestFetcher(t, NewMockHTTP())
	base := f.opts.BaseDir
	require.NoError(t, os.MkdirAll(filepath.Join(base, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "vendor", "lib.lua"), []byte("local lib = {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "vendor", "LICENSE"), []byte("BSD"), 0o644))

	p, err := f.Fetch(context.Background(), Dependency{Name: "lib", Type: KindLocal, Source: "vendor/lib.lua", License: "vendor/LICENSE"})
	require.NoError(t, err)
	assert.Equal(t, "local lib = {}", p.Content)
	assert.Equal(t, "BSD", p.License)

	p, err = f.Fetch(context.Background(), Dependency{Name: "lib", Type: KindLocal, Source: "vendor/lib.lua", License: "../LICENSE"})
	require.NoError(t, err)
	require.Len(t, p.Warnings, 1)
	assert.Contains(t, p.Warnings[0], "outside project boundaries")

	_, err = f.Fetch(context.Background(), Dependency{Name: "evil", Type: KindLocal, Source: "../../etc/passwd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the project")

	_, err = f.Fetch(context.Background(), Dependency{Name: "gone", Type: KindLocal, Source: "vendor/gone.lua"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchAll_PreservesDeclarationOrder(t *testing.T) {
	mock := NewMockHTTP()
	names := []string{"e", "d", "c", "b", "a"}
	var deps []Dependency
	for _, n := range names {
		u := "https://example.test/" + n + ".lua"
		mock.AddResponse(u, 200, "-- "+n)
		deps = append(deps, Dependency{Name: n, Type: KindURL, Source: u})
	}
	f := newTestFetcher(t, mock)

	payloads, err := f.FetchAll(context.Background(), deps)
	require.NoError(t, err)
	require.Len(t, payloads, len(names))
	for i, n := range names {
		assert.Equal(t, "-- "+n, payloads[i].Content)
	}

	deps = append(deps, Dependency{Name: "missing", Type: KindURL, Source: "https://example.test/missing.lua"})
	_, err = f.FetchAll(context.Background(), deps)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "missing", fe.Dependency)
}

func TestCache_PathAndClean(t *testing.T) {
	c, err := NewCache(t.TempDir())
	require.NoError(t, err)

	p := c.Path("lib_v1_sub/lib.lua", "https://x/lib.lua")
	assert.Equal(t, c.Dir(), filepath.Dir(p))
	assert.True(t, strings.HasPrefix(filepath.Base(p), "lib_v1_sub_lib.lua_"))
	assert.True(t, strings.HasSuffix(p, ".cached"))
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "lib_v1_sub_lib.lua_"), ".cached"), 16)

	_, ok := c.Get("k", "https://x/a")
	assert.False(t, ok)
	require.NoError(t, c.Put("k", "https://x/a", "content"))
	got, ok := c.Get("k", "https://x/a")
	assert.True(t, ok)
	assert.Equal(t, "content", got)

	n, err := c.Clean()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok = c.Get("k", "https://x/a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Stats().Misses)
}

func TestSequence_Format(t *testing.T) {
	resolved := Pair(
		[]Dependency{
			{Name: "mist", Type: KindGitHubRelease, Source: "o/mist@latest", File: "mist.lua", Description: "Mission tools"},
			{Name: "util", Type: KindURL, Source: "https://x/util.lua"},
		},
		[]Payload{
			{Content: "mist = {}", Tag: "4.5.126", License: "MIT\n\nLine two\n"},
			{Content: "util = {}"},
		},
	)
	blocks := Sequence(resolved)
	require.Len(t, blocks, 2)
	assert.Equal(t, "mist", blocks[0].Name)
	assert.Equal(t, "\n-- External Dependency: mist\n"+
		"-- Description: Mission tools\n"+
		"-- Source: o/mist@latest\n"+
		"-- File: mist.lua\n"+
		"-- Version: 4.5.126\n"+
		"-- License:\n"+
		"-- MIT\n"+
		"--\n"+
		"-- Line two\n"+
		"\n"+
		"mist = {}", blocks[0].Text)
	assert.Equal(t, "\n-- External Dependency: util\n-- Source: https://x/util.lua\n\nutil = {}", blocks[1].Text)
}

func TestSequence_PinnedTagNotRepeated(t *testing.T) {
	blocks := Sequence([]Resolved{{
		Dependency: Dependency{Name: "x", Type: KindGitHubRelease, Source: "o/x@v1", File: "x.lua"},
		Payload:    Payload{Content: "x", Tag: "v1"},
	}})
	assert.NotContains(t, blocks[0].Text, "-- Version:")
}
