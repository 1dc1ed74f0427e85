package random

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kaimentalityy/InnoPaymentService/internal/domain"
)

type Config struct {
	BaseURL        string
	Path           string
	Min            int
	Max            int
	Count          int
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
}

// Client fetches classification numbers from a remote random number API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	endpoint   string
	logger     *zap.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse random API URL (%s): %w", cfg.BaseURL, err)
	}
	u = u.JoinPath(cfg.Path)
	q := u.Query()
	q.Set("min", strconv.Itoa(cfg.Min))
	q.Set("max", strconv.Itoa(cfg.Max))
	q.Set("count", strconv.Itoa(cfg.Count))
	u.RawQuery = q.Encode()

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		endpoint:   u.String(),
		logger:     logger,
	}, nil
}

// Next returns the first number of the API response. Transport errors and 5xx
// responses are retried with exponential backoff; anything else fails at once.
func (c *Client) Next(ctx context.Context) (int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.cfg.MaxRetries, 0))), ctx)

	var n int
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		n, err = c.fetch(ctx)
		if err != nil {
			c.logger.Warn("Random number request failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}, policy)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrResolverUnavailable, err)
	}
	c.logger.Debug("Random number resolved", zap.Int("value", n), zap.Int("attempts", attempt))
	return n, nil
}

func (c *Client) fetch(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, backoff.Permanent(err)
		}
		return 0, fmt.Errorf("random API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("random API server error %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, backoff.Permanent(fmt.Errorf("random API returned status %d", resp.StatusCode))
	}

	var numbers []int
	if err := json.NewDecoder(resp.Body).Decode(&numbers); err != nil {
		return 0, backoff.Permanent(fmt.Errorf("failed to decode random API response: %w", err))
	}
	if len(numbers) == 0 {
		return 0, backoff.Permanent(fmt.Errorf("random API returned no numbers"))
	}
	return numbers[0], nil
}
