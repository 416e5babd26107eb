package youtube

import (
	"math/rand"
	"net/http"
)

// Browser User-Agent strings for request spoofing.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-US,en;q=0.5",
}

// Note: Accept-Encoding is left to http.Transport so gzip bodies are
// decompressed transparently.
var baseHeaders = map[string]string{
	"Accept":  "*/*",
	"Origin":  "https://www.youtube.com",
	"Referer": "https://www.youtube.com/",
}

// headerTransport fills in browser-like headers that the caller did not set.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
	language  string
}

// newHeaderTransport picks one User-Agent and Accept-Language per client so
// that the metadata and stream requests of a session look consistent.
func newHeaderTransport(base http.RoundTripper) *headerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &headerTransport{
		base:      base,
		userAgent: userAgents[rand.Intn(len(userAgents))],
		language:  acceptLanguages[rand.Intn(len(acceptLanguages))],
	}
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range baseHeaders {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", t.language)
	}
	return t.base.RoundTrip(req)
}
