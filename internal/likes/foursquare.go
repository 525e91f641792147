package likes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the Foursquare v2 API root.
const DefaultBaseURL = "https://api.foursquare.com/v2"

// maxBody caps the venue payload we are willing to read.
const maxBody = 4 << 20

// Internal structures for JSON parsing
type fsqEnvelope struct {
	Meta struct {
		ErrorType   string `json:"errorType"`
		ErrorDetail string `json:"errorDetail"`
		Code        int    `json:"code"`
	} `json:"meta"`
	Response struct {
		Venue *struct {
			Likes *struct {
				Count   *int   `json:"count"`
				Summary string `json:"summary"`
			} `json:"likes"`
			ID string `json:"id"`
		} `json:"venue"`
	} `json:"response"`
}

// Foursquare queries venue details with userless client credentials.
type Foursquare struct {
	client       *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	version      string
}

// FoursquareOptions configures the client.
type FoursquareOptions struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// Version is the v= date pinning API behaviour.
	Version string
}

// NewFoursquare builds a client. A nil http client uses http.DefaultClient.
func NewFoursquare(client *http.Client, opts FoursquareOptions) *Foursquare {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	return &Foursquare{
		client:       client,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		version:      opts.Version,
	}
}

// Fetch performs a single venue details request. There is no retry.
func (f *Foursquare) Fetch(ctx context.Context, externalID string) (string, error) {
	fail := func(status int, err error) (string, error) {
		return "", &FetchError{ExternalID: externalID, StatusCode: status, Err: err}
	}

	if externalID == "" {
		return fail(0, errors.New("empty venue id"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.venueURL(externalID), nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fail(0, err)
	}
	// Explicitly ignore close error as it's a read-only operation
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fail(resp.StatusCode, errors.New(http.StatusText(resp.StatusCode)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fail(resp.StatusCode, err)
	}

	var env fsqEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode venue: %w", err))
	}

	if env.Meta.Code != 0 && env.Meta.Code != http.StatusOK {
		return fail(env.Meta.Code, fmt.Errorf("%s: %s", env.Meta.ErrorType, env.Meta.ErrorDetail))
	}
	if env.Response.Venue == nil {
		return fail(resp.StatusCode, errors.New("response has no venue"))
	}

	count := ""
	if l := env.Response.Venue.Likes; l != nil && l.Count != nil {
		count = strconv.Itoa(*l.Count)
	}

	log.Debug().
		Str("venue", externalID).
		Str("likes", count).
		Msg("Venue likes fetched")

	return count, nil
}

func (f *Foursquare) venueURL(externalID string) string {
	q := url.Values{}
	if f.clientID != "" {
		q.Set("client_id", f.clientID)
	}
	if f.clientSecret != "" {
		q.Set("client_secret", f.clientSecret)
	}
	if f.version != "" {
		q.Set("v", f.version)
	}

	u := f.baseURL + "/venues/" + url.PathEscape(externalID)
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}
