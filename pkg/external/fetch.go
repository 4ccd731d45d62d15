package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/logger"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/safeio"
)

const (
	userAgent       = "luacomposer"
	defaultParallel = 4
)

// maxDownload caps the size of a single downloaded file.
var maxDownload int64 = 32 << 20

// Payload is what fetching a dependency produced.
type Payload struct {
	Content string
	License string // empty when none was declared or it could not be fetched
	Tag     string // resolved release tag for GitHub releases
	// Warnings are non-fatal problems, such as a missing license.
	Warnings []string
}

// Options configures a Fetcher.
type Options struct {
	// BaseDir anchors local dependencies; they may not leave it.
	BaseDir string
	// Token authenticates GitHub API calls when set.
	Token string
	// HTTP performs requests; defaults to NewHTTPClient(60s).
	HTTP HTTPDoer
	// Cache stores downloads; nil disables caching.
	Cache *Cache
	// Parallel bounds concurrent fetches in FetchAll; defaults to 4.
	Parallel int
	// APIBase and DownloadBase override the GitHub endpoints in tests.
	APIBase      string
	DownloadBase string
}

// Fetcher retrieves dependency content.
type Fetcher struct {
	opts Options
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts Options) *Fetcher {
	if opts.HTTP == nil {
		opts.HTTP = NewHTTPClient(60 * time.Second)
	}
	if opts.Parallel <= 0 {
		opts.Parallel = defaultParallel
	}
	if opts.APIBase == "" {
		opts.APIBase = "https://api.github.com"
	}
	if opts.DownloadBase == "" {
		opts.DownloadBase = "https://github.com"
	}
	return &Fetcher{opts: opts}
}

// FetchAll fetches every dependency concurrently and returns the payloads in
// declaration order. The first failure cancels the rest.
func (f *Fetcher) FetchAll(ctx context.Context, deps []Dependency) ([]Payload, error) {
	payloads := make([]Payload, len(deps))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Parallel)
	for i, dep := range deps {
		g.Go(func() error {
			logger.Info("Fetching dependency", logger.String("name", dep.Name), logger.String("type", string(dep.Type)))
			p, err := f.Fetch(ctx, dep)
			if err != nil {
				return &FetchError{Dependency: dep.Name, Wrapped: err}
			}
			payloads[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

// Fetch retrieves a single dependency.
func (f *Fetcher) Fetch(ctx context.Context, dep Dependency) (Payload, error) {
	switch dep.Type {
	case KindGitHubRelease:
		return f.fetchRelease(ctx, dep)
	case KindURL:
		return f.fetchURL(ctx, dep)
	case KindLocal:
		return f.fetchLocal(dep)
	default:
		return Payload{}, fmt.Errorf("%w: unknown dependency type: %s", ErrInvalidDependency, dep.Type)
	}
}

// ReleaseSource is a parsed `owner/repo@tag` reference.
type ReleaseSource struct {
	Owner string
	Repo  string
	Tag   string
}

var releaseSourcePattern = regexp.MustCompile(`^([^/]+)/([^@]+)@(.+)$`)

// ParseReleaseSource parses `owner/repo@tag`; tag may be `latest`.
func ParseReleaseSource(s string) (ReleaseSource, error) {
	m := releaseSourcePattern.FindStringSubmatch(s)
	if m == nil {
		return ReleaseSource{}, fmt.Errorf("invalid GitHub release source %q, expected format: owner/repo@tag", s)
	}
	return ReleaseSource{Owner: m[1], Repo: m[2], Tag: m[3]}, nil
}

func (f *Fetcher) fetchRelease(ctx context.Context, dep Dependency) (Payload, error) {
	src, err := ParseReleaseSource(dep.Source)
	if err != nil {
		return Payload{}, err
	}
	tag := src.Tag
	if tag == "latest" {
		if tag, err = f.latestTag(ctx, src); err != nil {
			return Payload{}, err
		}
		logger.Debug("Resolved latest release", logger.String("name", dep.Name), logger.String("tag", tag))
	}

	fileURL := fmt.Sprintf("%s/%s/%s/releases/download/%s/%s", f.opts.DownloadBase, src.Owner, src.Repo, tag, dep.File)
	content, err := f.download(ctx, fileURL, fmt.Sprintf("%s_%s_%s", dep.Name, tag, dep.File))
	if err != nil {
		return Payload{}, err
	}
	p := Payload{Content: content, Tag: tag}

	if dep.License != "" {
		licenseURL := fmt.Sprintf("%s/%s/%s/releases/download/%s/%s", f.opts.DownloadBase, src.Owner, src.Repo, tag, dep.License)
		license, err := f.download(ctx, licenseURL, fmt.Sprintf("%s_%s_%s", dep.Name, tag, dep.License))
		if err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("failed to fetch license for '%s': %v", dep.Name, err))
		} else {
			p.License = license
		}
	}
	return p, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, dep Dependency) (Payload, error) {
	content, err := f.download(ctx, dep.Source, dep.Name+"_main")
	if err != nil {
		return Payload{}, err
	}
	p := Payload{Content: content}
	if dep.License != "" {
		license, err := f.download(ctx, dep.License, dep.Name+"_license")
		if err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("failed to fetch license for '%s': %v", dep.Name, err))
		} else {
			p.License = license
		}
	}
	return p, nil
}

func (f *Fetcher) fetchLocal(dep Dependency) (Payload, error) {
	path, err := safeio.ResolveContained(f.opts.BaseDir, dep.Source)
	if err != nil {
		return Payload{}, fmt.Errorf("local dependency '%s' resolves to a path outside the project: %w", dep.Name, err)
	}
	data, err := os.ReadFile(path) // #nosec G304 -- containment checked by ResolveContained
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Payload{}, fmt.Errorf("local dependency '%s' not found at %s: %w", dep.Name, path, ErrNotFound)
		}
		return Payload{}, fmt.Errorf("failed to read local dependency '%s': %w", dep.Name, err)
	}
	p := Payload{Content: string(data)}

	if dep.License != "" {
		licensePath, err := safeio.ResolveContained(f.opts.BaseDir, dep.License)
		switch {
		case err != nil:
			p.Warnings = append(p.Warnings, fmt.Sprintf("license path for '%s' is outside project boundaries", dep.Name))
		default:
			license, err := os.ReadFile(licensePath) // #nosec G304 -- containment checked above
			if err != nil {
				p.Warnings = append(p.Warnings, fmt.Sprintf("license file not found for '%s': %s", dep.Name, filepath.ToSlash(licensePath)))
			} else {
				p.License = string(license)
			}
		}
	}
	return p, nil
}

type latestRelease struct {
	TagName string `json:"tag_name"`
}

func (f *Fetcher) latestTag(ctx context.Context, src ReleaseSource) (string, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/releases/latest", f.opts.APIBase, src.Owner, src.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if f.opts.Token != "" {
		req.Header.Set("Authorization", "token "+f.opts.Token)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := f.opts.HTTP.Do(req)
	if err != nil {
		return "", &NetworkError{URL: apiURL, Wrapped: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, apiURL); err != nil {
		return "", fmt.Errorf("failed to fetch latest release for %s/%s: %w", src.Owner, src.Repo, err)
	}
	var rel latestRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return "", &ParseError{Message: "latest release response", Wrapped: err}
	}
	if rel.TagName == "" {
		return "", &ParseError{Message: "latest release response", Wrapped: errors.New("missing tag_name")}
	}
	return rel.TagName, nil
}

// download returns the body of url, consulting the cache first.
func (f *Fetcher) download(ctx context.Context, url, key string) (string, error) {
	if f.opts.Cache != nil {
		if content, ok := f.opts.Cache.Get(key, url); ok {
			logger.Debug("Using cached version", logger.String("url", url))
			return content, nil
		}
	}

	logger.Debug("Downloading", logger.String("url", url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.opts.HTTP.Do(req)
	if err != nil {
		return "", &NetworkError{URL: url, Wrapped: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, url); err != nil {
		return "", err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return "", &NetworkError{URL: url, Wrapped: err}
	}
	if int64(len(body)) > maxDownload {
		return "", &NetworkError{URL: url, Wrapped: fmt.Errorf("%w: over %d bytes", ErrTooLarge, maxDownload)}
	}
	content := string(body)

	if f.opts.Cache != nil {
		if err := f.opts.Cache.Put(key, url, content); err != nil {
			logger.Warn("Failed to cache download", logger.String("url", url), logger.Err(err))
		}
	}
	return content, nil
}

func checkStatus(resp *http.Response, url string) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0",
		resp.StatusCode == http.StatusTooManyRequests:
		return parseRateLimitError(resp, url)
	case resp.StatusCode >= 500:
		return &NetworkError{URL: url, Wrapped: fmt.Errorf("server error: HTTP %d", resp.StatusCode)}
	default:
		return &NetworkError{URL: url, Wrapped: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
}

// parseRateLimitError reads GitHub's X-RateLimit-* headers.
func parseRateLimitError(resp *http.Response, url string) error {
	limit := 60
	if v, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit")); err == nil {
		limit = v
	}
	remaining := 0
	if v, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining")); err == nil {
		remaining = v
	}
	var retryAfter time.Time
	if v, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		retryAfter = time.Unix(v, 0)
	}
	msg := "GitHub API rate limit exceeded for " + url
	if strings.TrimSpace(os.Getenv("GITHUB_TOKEN")) == "" {
		msg += " (set GITHUB_TOKEN to raise the limit)"
	}
	return &RateLimitError{RetryAfter: retryAfter, Limit: limit, Remaining: remaining, Message: msg}
}
