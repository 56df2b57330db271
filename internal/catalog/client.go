package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/castwatch/backend/internal/config"
)

// maxErrorBody bounds how much of a failed response is kept for error reporting.
const maxErrorBody = 4 * 1024

// DiscoverQuery selects one page of movies released in [From, To] featuring any of CastIDs.
type DiscoverQuery struct {
	From    string
	To      string
	Page    int
	CastIDs []int64
}

// Client talks to a TMDB-compatible catalog API. All requests made through one
// Client share a single token bucket, so concurrent callers together stay
// under the upstream request budget.
type Client struct {
	baseURL  string
	apiKey   string
	language string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient builds a catalog client from configuration. A non-positive
// RequestsPerSecond disables limiting.
func NewClient(cfg config.CatalogConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// FetchEntity loads a single person or movie. A 404 yields ErrNotFound.
func (c *Client) FetchEntity(ctx context.Context, kind Kind, id int64) (Entity, error) {
	endpoint := fmt.Sprintf("/%s/%d", kind, id)

	params := url.Values{}
	params.Set("language", c.language)
	params.Set("api_key", c.apiKey)

	var entity Entity
	status, err := c.get(ctx, endpoint, params, &entity)
	if err != nil {
		if status == http.StatusNotFound {
			return Entity{}, fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
		}
		return Entity{}, err
	}
	return entity, nil
}

// DiscoverMovies returns one page of the movie discovery search. An empty
// slice marks the end of pagination.
func (c *Client) DiscoverMovies(ctx context.Context, q DiscoverQuery) ([]Entity, error) {
	cast := make([]string, 0, len(q.CastIDs))
	for _, id := range q.CastIDs {
		cast = append(cast, strconv.FormatInt(id, 10))
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("language", c.language)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("primary_release_date.gte", q.From)
	params.Set("primary_release_date.lte", q.To)
	// An empty any-of list is sent as an empty parameter, which the upstream
	// reads as no cast constraint.
	params.Set("with_cast", strings.Join(cast, "|"))

	var page struct {
		Results []Entity `json:"results"`
	}
	if _, err := c.get(ctx, "/discover/movie", params, &page); err != nil {
		return nil, err
	}
	if page.Results == nil {
		page.Results = []Entity{}
	}
	return page.Results, nil
}

// get performs a rate limited GET and decodes a 2xx body into out. The HTTP
// status is returned alongside any error so callers can special-case it.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("catalog %s: wait for rate limiter: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("catalog %s: build request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("catalog %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("catalog %s: decode response: %w", endpoint, err)
	}
	return resp.StatusCode, nil
}
