package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type FetcherOptions struct {
	BaseURL        string
	SearchPath     string
	QueryParam     string
	SearchTerm     string
	UserAgent      string
	AcceptLanguage string
}

// PageFetcher issues one GET per call against the site's search endpoint.
type PageFetcher struct {
	client *http.Client
	opts   FetcherOptions
	base   *url.URL
}

func NewPageFetcher(client *http.Client, opts FetcherOptions) (*PageFetcher, error) {
	if client == nil {
		client = http.DefaultClient
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", opts.BaseURL)
	}

	if opts.SearchPath == "" {
		opts.SearchPath = "/s"
	}
	if !strings.HasPrefix(opts.SearchPath, "/") {
		opts.SearchPath = "/" + opts.SearchPath
	}
	if opts.QueryParam == "" {
		opts.QueryParam = "k"
	}

	return &PageFetcher{
		client: client,
		opts:   opts,
		base:   base,
	}, nil
}

// PageURL builds the search URL for a page number.
func (f *PageFetcher) PageURL(page int) string {
	u := *f.base
	u.Path = f.base.Path + f.opts.SearchPath

	q := url.Values{}
	q.Set(f.opts.QueryParam, f.opts.SearchTerm)
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	return u.String()
}

func (f *PageFetcher) Fetch(ctx context.Context, page int) (string, error) {
	pageURL := f.PageURL(page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request for %s: %v", ErrTransport, pageURL, err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if f.opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", f.opts.AcceptLanguage)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to fetch page %d: %w", ErrTransport, page, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable, resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d on page %d", ErrRateLimited, resp.StatusCode, page)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: %w: status %d on page %d", ErrTransport, ErrUnexpectedStatus, resp.StatusCode, page)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read body of page %d: %w", ErrTransport, page, err)
	}

	return string(body), nil
}
