package external

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// HTTPDoer abstracts HTTP calls for testability.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns the client used for downloads: TLS 1.2 minimum and
// an overall timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

type mockResponse struct {
	status int
	body   string
	header http.Header
}

// MockHTTP serves canned responses keyed by URL. Unknown URLs get a 404.
type MockHTTP struct {
	mu        sync.Mutex
	responses map[string]mockResponse
	errors    map[string]error
	requests  []*http.Request
}

// NewMockHTTP creates an empty MockHTTP.
func NewMockHTTP() *MockHTTP {
	return &MockHTTP{
		responses: make(map[string]mockResponse),
		errors:    make(map[string]error),
	}
}

// AddResponse registers a response for a URL.
func (m *MockHTTP) AddResponse(urlStr string, statusCode int, body string) {
	m.AddResponseWithHeader(urlStr, statusCode, body, nil)
}

// AddResponseWithHeader registers a response carrying headers.
func (m *MockHTTP) AddResponseWithHeader(urlStr string, statusCode int, body string, header http.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if header == nil {
		header = make(http.Header)
	}
	m.responses[urlStr] = mockResponse{status: statusCode, body: body, header: header}
}

// AddError registers a transport error for a URL.
func (m *MockHTTP) AddError(urlStr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[urlStr] = err
}

// Requests returns every request seen so far.
func (m *MockHTTP) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.requests...)
}

// Count returns how many requests were made for urlStr.
func (m *MockHTTP) Count(urlStr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r.URL.String() == urlStr {
			n++
		}
	}
	return n
}

func (m *MockHTTP) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	urlStr := req.URL.String()
	if err, ok := m.errors[urlStr]; ok {
		return nil, err
	}
	parsed, _ := url.Parse(urlStr)
	if r, ok := m.responses[urlStr]; ok {
		return &http.Response{
			StatusCode: r.status,
			Body:       io.NopCloser(strings.NewReader(r.body)),
			Header:     r.header.Clone(),
			Request:    &http.Request{URL: parsed},
		}, nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("Not Found")),
		Header:     make(http.Header),
		Request:    &http.Request{URL: parsed},
	}, nil
}
