package scraper

import (
	"context"
	"errors"
)

var (
	ErrRateLimited      = errors.New("rate limited by target site")
	ErrTransport        = errors.New("transport error")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Fetcher retrieves the markup of one search results page.
// A rate-limited response is reported as ErrRateLimited; anything that
// should end the sweep wraps ErrTransport.
type Fetcher interface {
	Fetch(ctx context.Context, page int) (string, error)
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
