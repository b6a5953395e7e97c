package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/camden-git/titlesnap/logger"
)

const (
	defaultBaseURL           = "https://api.themoviedb.org/3"
	defaultRequestsPerSecond = 20
	defaultTimeout           = 15 * time.Second
	maxResponseBytes         = 8 << 20
)

type Options struct {
	BaseURL           string
	APIKey            string
	ReadAccessToken   string
	Language          string
	RequestsPerSecond int
	HTTPClient        *http.Client
	Logger            *logger.Logger
}

// Client talks to the media database. search and detail calls go through a
// shared client-side rate limiter.
type Client struct {
	baseURL     string
	apiKey      string
	bearerToken string
	language    string
	httpClient  *http.Client
	limiter     *rate.Limiter
	log         *logger.Logger
}

// NewClient returns ErrNotConfigured when neither an API key nor a read
// access token is provided.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	token := strings.TrimSpace(opts.ReadAccessToken)
	if apiKey == "" && token == "" {
		return nil, ErrNotConfigured
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		bearerToken: token,
		language:    strings.TrimSpace(opts.Language),
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Limit(rps), rps),
		log:         log,
	}, nil
}

// Search runs a combined movie/TV search and returns the first result whose
// media type is movie or tv, in the endpoint's own order. (nil, nil) means
// no qualifying result.
func (c *Client) Search(ctx context.Context, title string) (*MediaMatch, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}

	var resp searchResponse
	params := url.Values{}
	params.Set("query", title)
	params.Set("include_adult", "false")
	if err := c.get(ctx, "/search/multi", params, &resp); err != nil {
		return nil, err
	}

	for _, r := range resp.Results {
		switch MediaType(r.MediaType) {
		case MediaMovie, MediaTV:
			return &MediaMatch{MediaType: MediaType(r.MediaType), ID: r.ID}, nil
		}
	}
	c.log.Debug("media search returned no movie or tv results", "title", title, "results", len(resp.Results))
	return nil, nil
}

// FetchDetails loads the full record for match, bundling credits (movie) or
// aggregate credits (tv) and videos into the same request.
func (c *Client) FetchDetails(ctx context.Context, match MediaMatch) (*MediaDetails, error) {
	var path, appendTo string
	switch match.MediaType {
	case MediaMovie:
		path = "/movie/" + strconv.Itoa(match.ID)
		appendTo = "credits,videos"
	case MediaTV:
		path = "/tv/" + strconv.Itoa(match.ID)
		appendTo = "aggregate_credits,videos"
	default:
		return nil, fmt.Errorf("unsupported media type %q", match.MediaType)
	}

	params := url.Values{}
	params.Set("append_to_response", appendTo)

	var details MediaDetails
	if err := c.get(ctx, path, params, &details); err != nil {
		return nil, err
	}
	details.enforceShape(match.MediaType)
	if details.ID == 0 {
		details.ID = match.ID
	}
	return &details, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	if c.language != "" {
		params.Set("language", c.language)
	}
	if c.bearerToken == "" {
		params.Set("api_key", c.apiKey)
	}
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return &StatusError{Path: path, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
