// Package likes fetches venue like counts from the Foursquare venues API.
package likes

import (
	"context"
	"fmt"
)

// Fetcher resolves a venue id to a human-readable like count.
// An empty count means the service reported none.
type Fetcher interface {
	Fetch(ctx context.Context, externalID string) (string, error)
}

// FetchError is returned for any transport, status or decoding failure.
// Callers treat it as "no count available".
type FetchError struct {
	Err        error
	ExternalID string
	StatusCode int
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch likes for %s: status %d: %v", e.ExternalID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch likes for %s: %v", e.ExternalID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, externalID string) (string, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, externalID string) (string, error) {
	return f(ctx, externalID)
}
