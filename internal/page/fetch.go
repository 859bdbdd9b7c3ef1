package page

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"slices"
	"time"

	"sjsage522/dealbridge/pkg/errors"

	"golang.org/x/net/html/charset"
)

// HTTP client and header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	}

	client = &http.Client{
		Timeout: 15 * time.Second,
	}
)

// FetchOption adjusts a page fetch
type FetchOption func(req *http.Request)

// WithCookie sends the given Cookie header, for pages behind a CRM login
func WithCookie(cookie string) FetchOption {
	return func(req *http.Request) {
		if cookie != "" {
			req.Header.Set("Cookie", cookie)
		}
	}
}

// Fetch downloads a deal page and returns it as a DocumentPage.
// The body is converted to UTF-8 according to its declared or sniffed charset.
func Fetch(ctx context.Context, url string, opts ...FetchOption) (*DocumentPage, error) {
	body, err := fetchUTF8(ctx, url, opts...)
	if err != nil {
		return nil, err
	}
	return NewDocumentPage(body, url)
}

func fetchUTF8(ctx context.Context, url string, opts ...FetchOption) (io.Reader, error) {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewNetwork("page", "failed to create request", err)
	}

	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.NewNetwork("page", "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		return nil, errors.NewNetwork("page", fmt.Sprintf("rate limited; retry after %s", resp.Header.Get("Retry-After")), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewNetwork("page", fmt.Sprintf("fetch %s unexpected status code: %d", url, resp.StatusCode), nil)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetwork("page", "failed to read response body", err)
	}

	encoding, name, _ := charset.DetermineEncoding(bodyBytes, resp.Header.Get("Content-Type"))
	if name == "utf-8" {
		return bytes.NewReader(bodyBytes), nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))); err != nil {
		return nil, errors.NewParsing("page", "failed to convert body to UTF-8", err)
	}
	return &buf, nil
}
