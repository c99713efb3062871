// Package wordpress reads authoritative publish times from a WordPress.com
// site through its public REST API.
package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultBaseURL = "https://public-api.wordpress.com/rest/v1.1"

	defaultPerPage  = 100
	defaultMaxPages = 50
)

type (
	Config struct {
		BaseURL string
		Site    string
		Timeout time.Duration

		// PerPage and MaxPages default to 100 and 50.
		PerPage  int
		MaxPages int

		// Retries per page on network errors and 5xx responses.
		Retries   uint64
		RetryBase time.Duration
	}

	// Client pages through a site's published posts.
	Client struct {
		http      *resty.Client
		site      string
		perPage   int
		maxPages  int
		retries   uint64
		retryBase time.Duration
	}

	// StatusError is returned when the API answers with a non-2xx status.
	StatusError struct {
		Page int
		Code int
	}

	post struct {
		ID   int    `json:"ID"`
		Date string `json:"date"`
	}

	postsResp struct {
		Found int    `json:"found"`
		Posts []post `json:"posts"`
	}
)

func (e *StatusError) Error() string {
	return fmt.Sprintf("wordpress page %d: unexpected status code: %d", e.Page, e.Code)
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}

	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetHeader("Accept", "application/json").
			SetTimeout(cfg.Timeout),
		site:      cfg.Site,
		perPage:   cfg.PerPage,
		maxPages:  cfg.MaxPages,
		retries:   cfg.Retries,
		retryBase: cfg.RetryBase,
	}
}

// PublishTimes maps post ids to their publish instants.
//
// Pages are walked oldest first until a short or empty page. A failure on the
// first page is returned, as is running out of time on any page. Any other
// failure on a later page ends the walk and what was collected so far is
// returned without an error.
func (c *Client) PublishTimes(ctx context.Context) (map[int]time.Time, error) {
	times := make(map[int]time.Time)

	for page := 1; page <= c.maxPages; page++ {
		posts, err := c.page(ctx, page)
		if err != nil {
			fetchFailuresTotal.Inc()
			if page == 1 {
				return nil, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("wordpress walk interrupted at page %d: %w", page, ctxErr)
			}

			slog.WarnContext(ctx, "stopping wordpress pagination early", "page", page, "collected", len(times), "error", err)
			break
		}
		pagesFetchedTotal.Inc()

		for _, p := range posts {
			t, err := parseDate(p.Date)
			if p.ID == 0 || err != nil {
				slog.DebugContext(ctx, "skipping wordpress post", "id", p.ID, "date", p.Date)
				continue
			}
			times[p.ID] = t
		}

		if len(posts) < c.perPage {
			break
		}
	}

	return times, nil
}

func (c *Client) page(ctx context.Context, page int) ([]post, error) {
	var posts []post

	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.retryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("site", c.site).
			SetQueryParams(map[string]string{
				"number":   strconv.Itoa(c.perPage),
				"page":     strconv.Itoa(page),
				"order":    "ASC",
				"order_by": "date",
				"fields":   "ID,date",
			}).
			Get("/sites/{site}/posts")
		if err != nil {
			return retry.RetryableError(fmt.Errorf("error fetching wordpress page %d: %w", page, err))
		}

		code := resp.StatusCode()
		if code >= http.StatusInternalServerError || code == http.StatusTooManyRequests {
			return retry.RetryableError(&StatusError{Page: page, Code: code})
		}
		if !resp.IsSuccess() {
			return &StatusError{Page: page, Code: code}
		}

		var body postsResp
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return fmt.Errorf("error decoding wordpress page %d: %w", page, err)
		}
		posts = body.Posts

		return nil
	})
	if err != nil {
		return nil, err
	}

	return posts, nil
}

// WordPress.com answers with RFC 3339 offsets like "2024-01-02T08:03:04+08:00".
func parseDate(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
