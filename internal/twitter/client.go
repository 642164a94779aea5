package twitter

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

	"github.com/alucardeht/birdwatch-mcp/internal/logger"
	"github.com/alucardeht/birdwatch-mcp/pkg/version"
)

var log = logger.ForComponent("twitter")

const (
	DefaultBaseURL = "https://api.twitter.com"

	maxResponseBytes = 4 << 20
)

const (
	searchTweetFields   = "created_at,public_metrics,author_id"
	searchUserFields    = "username,name"
	profileUserFields   = "description,public_metrics,created_at,verified"
	timelineTweetFields = "created_at,public_metrics"
)

type Options struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration
	Circuit     CircuitConfig
	HTTPClient  *http.Client
}

// HTTPClient calls the X API v2 with an app-only bearer token.
type HTTPClient struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	breaker *CircuitBreaker
}

func NewHTTPClient(opts Options) (*HTTPClient, error) {
	if opts.BearerToken == "" {
		return nil, fmt.Errorf("bearer token is required")
	}

	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", base)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &HTTPClient{
		baseURL: baseURL,
		token:   opts.BearerToken,
		http:    httpClient,
		breaker: NewCircuitBreaker(opts.Circuit),
	}, nil
}

func (c *HTTPClient) SearchRecent(ctx context.Context, query string, maxResults int) (*TweetPage, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("tweet.fields", searchTweetFields)
	params.Set("user.fields", searchUserFields)
	params.Set("expansions", "author_id")

	var resp envelope[[]Tweet]
	if err := c.get(ctx, "/2/tweets/search/recent", params, &resp); err != nil {
		return nil, err
	}
	return pageFrom(resp), nil
}

func (c *HTTPClient) UserByUsername(ctx context.Context, username string) (*User, error) {
	params := url.Values{}
	params.Set("user.fields", profileUserFields)

	var resp envelope[*User]
	if err := c.get(ctx, "/2/users/by/username/"+url.PathEscape(username), params, &resp); err != nil {
		return nil, err
	}

	if resp.Data == nil {
		if len(resp.Errors) > 0 {
			return nil, problemError(http.StatusOK, resp.Errors[0])
		}
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return resp.Data, nil
}

func (c *HTTPClient) UserTimeline(ctx context.Context, userID string, maxResults int) (*TweetPage, error) {
	params := url.Values{}
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("tweet.fields", timelineTweetFields)

	var resp envelope[[]Tweet]
	if err := c.get(ctx, "/2/users/"+url.PathEscape(userID)+"/tweets", params, &resp); err != nil {
		return nil, err
	}
	return pageFrom(resp), nil
}

func (c *HTTPClient) CircuitStats() CircuitStats {
	return c.breaker.Stats()
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if !c.breaker.Allow() {
		return ErrCircuitOpen
	}

	u := c.baseURL.JoinPath(path)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		c.breaker.Release()
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.Name+"/"+version.Version)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			c.breaker.Release()
			return ctx.Err()
		}
		c.breaker.RecordFailure()
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("read %s: %w", path, err)
	}

	log.Debug("api request",
		"path", path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var p problem
	if err := json.Unmarshal(body, &p); err != nil || (p.Title == "" && p.Detail == "") {
		var wrapped struct {
			Errors []problem `json:"errors"`
		}
		if json.Unmarshal(body, &wrapped) == nil && len(wrapped.Errors) > 0 {
			p = wrapped.Errors[0]
		} else {
			p = problem{Detail: strings.TrimSpace(string(body))}
		}
	}
	return problemError(status, p)
}

func pageFrom(resp envelope[[]Tweet]) *TweetPage {
	page := &TweetPage{
		Tweets: resp.Data,
	}
	if page.Tweets == nil {
		page.Tweets = []Tweet{}
	}
	if resp.Includes != nil {
		page.Users = resp.Includes.Users
	}
	if resp.Meta != nil {
		page.NextToken = resp.Meta.NextToken
	}
	return page
}
