package docketwise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MatterDesk/MatterDesk/internal/pkg/env"
)

const (
	defaultBaseURL = "https://app.docketwise.com/api/v1"

	// PageSize is the maximum record count per list page; a full page
	// with no pagination header implies more pages exist.
	PageSize = 200

	// MaxRetries is the ceiling for the exponential-backoff retry on
	// rate-limit responses.
	MaxRetries = 3

	// InterCallDelay keeps sequential calls under the external
	// 120-requests/minute limit.
	InterCallDelay = 600 * time.Millisecond

	// smartRetryDelay is the single long wait used by the detail
	// backfill before it gives up and checkpoints.
	smartRetryDelay = 2 * time.Minute
)

// ErrRateLimited is returned once the retry budget for 419/429
// responses is exhausted. Callers distinguish it from APIError so the
// backfill job can checkpoint and abort cleanly.
var ErrRateLimited = errors.New("docketwise: rate limited")

// Client talks to the Docketwise API. Sleep is injectable so tests can
// assert on backoff without waiting.
type Client struct {
	BaseURL    string
	APIToken   string
	HTTPClient *http.Client
	Sleep      func(time.Duration)
}

// NewClientFromEnv builds a client from DOCKETWISE_* environment
// variables.
func NewClientFromEnv() *Client {
	return &Client{
		BaseURL:  strings.TrimRight(env.GetEnv("DOCKETWISE_API_URL", defaultBaseURL), "/"),
		APIToken: strings.TrimSpace(env.GetEnv("DOCKETWISE_API_TOKEN", "")),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Sleep: time.Sleep,
	}
}

func (c *Client) sleep(d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

func isRateLimited(status int) bool {
	return status == http.StatusTooManyRequests || status == 419
}

func (c *Client) do(ctx context.Context, path string) (int, []byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("docketwise request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, resp.Header, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, resp.Header, nil
}

// FetchWithRetry performs a GET and retries rate-limited responses
// with exponential backoff (2^(attempt+1) seconds) up to MaxRetries.
// Other non-2xx statuses return an *APIError immediately.
func (c *Client) FetchWithRetry(ctx context.Context, path string) ([]byte, *Pagination, error) {
	for attempt := 0; ; attempt++ {
		status, body, header, err := c.do(ctx, path)
		if err != nil {
			return nil, nil, err
		}

		if isRateLimited(status) {
			if attempt >= MaxRetries {
				return nil, nil, ErrRateLimited
			}
			wait := time.Duration(1<<(attempt+1)) * time.Second
			log.Warnf("[Docketwise] Rate limited on %s, waiting %s (attempt %d/%d)", path, wait, attempt+1, MaxRetries)
			c.sleep(wait)
			continue
		}

		if status < 200 || status >= 300 {
			return nil, nil, &APIError{Status: status, Path: path}
		}

		return body, parsePagination(header.Get("X-Pagination")), nil
	}
}

// FetchWithSmartRetry performs a GET and, on a rate-limited response,
// waits one long fixed delay and retries exactly once. A second rate
// limit returns ErrRateLimited so the caller can persist a checkpoint
// and stop instead of busy-retrying.
func (c *Client) FetchWithSmartRetry(ctx context.Context, path string) ([]byte, *Pagination, error) {
	for attempt := 0; attempt < 2; attempt++ {
		status, body, header, err := c.do(ctx, path)
		if err != nil {
			return nil, nil, err
		}

		if isRateLimited(status) {
			if attempt == 0 {
				log.Warnf("[Docketwise] Rate limited on %s, waiting %s before the single retry", path, smartRetryDelay)
				c.sleep(smartRetryDelay)
				continue
			}
			return nil, nil, ErrRateLimited
		}

		if status < 200 || status >= 300 {
			return nil, nil, &APIError{Status: status, Path: path}
		}

		return body, parsePagination(header.Get("X-Pagination")), nil
	}
	return nil, nil, ErrRateLimited
}

// ListMatters fetches one page of the matter list endpoint.
func (c *Client) ListMatters(ctx context.Context, page int) ([]Matter, *Pagination, error) {
	path := fmt.Sprintf("/matters?page=%d&per_page=%d", page, PageSize)
	body, pagination, err := c.FetchWithRetry(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	var matters []Matter
	if err := json.Unmarshal(body, &matters); err != nil {
		return nil, nil, fmt.Errorf("decode matters page %d: %w", page, err)
	}
	return matters, pagination, nil
}

// GetMatter fetches one matter's detail payload.
func (c *Client) GetMatter(ctx context.Context, id int64) (*Matter, error) {
	body, _, err := c.FetchWithRetry(ctx, "/matters/"+strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}
	var matter Matter
	if err := json.Unmarshal(body, &matter); err != nil {
		return nil, fmt.Errorf("decode matter %d: %w", id, err)
	}
	return &matter, nil
}

// GetMatterSmart fetches one matter's detail with the smart-retry
// policy used by the backfill job.
func (c *Client) GetMatterSmart(ctx context.Context, id int64) (*Matter, error) {
	body, _, err := c.FetchWithSmartRetry(ctx, "/matters/"+strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}
	var matter Matter
	if err := json.Unmarshal(body, &matter); err != nil {
		return nil, fmt.Errorf("decode matter %d: %w", id, err)
	}
	return &matter, nil
}

// ListUsers fetches one page of firm users.
func (c *Client) ListUsers(ctx context.Context, page int) ([]User, *Pagination, error) {
	body, pagination, err := c.FetchWithRetry(ctx, fmt.Sprintf("/users?page=%d", page))
	if err != nil {
		return nil, nil, err
	}
	var users []User
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, nil, fmt.Errorf("decode users page %d: %w", page, err)
	}
	return users, pagination, nil
}

// ListContacts fetches one page of contacts.
func (c *Client) ListContacts(ctx context.Context, page int) ([]Contact, *Pagination, error) {
	body, pagination, err := c.FetchWithRetry(ctx, fmt.Sprintf("/contacts?page=%d", page))
	if err != nil {
		return nil, nil, err
	}
	var contacts []Contact
	if err := json.Unmarshal(body, &contacts); err != nil {
		return nil, nil, fmt.Errorf("decode contacts page %d: %w", page, err)
	}
	return contacts, pagination, nil
}

// ListMatterTypes fetches all matter types, each with its nested
// status list.
func (c *Client) ListMatterTypes(ctx context.Context) ([]MatterTypePayload, error) {
	body, _, err := c.FetchWithRetry(ctx, "/matter_types")
	if err != nil {
		return nil, err
	}
	var types []MatterTypePayload
	if err := json.Unmarshal(body, &types); err != nil {
		return nil, fmt.Errorf("decode matter types: %w", err)
	}
	return types, nil
}

// ListMatterStatuses fetches the flat status list.
func (c *Client) ListMatterStatuses(ctx context.Context) ([]StatusRef, error) {
	body, _, err := c.FetchWithRetry(ctx, "/matter_statuses")
	if err != nil {
		return nil, err
	}
	var statuses []StatusRef
	if err := json.Unmarshal(body, &statuses); err != nil {
		return nil, fmt.Errorf("decode matter statuses: %w", err)
	}
	return statuses, nil
}
