// Package fetch retrieves raw source payloads over HTTP.
//
// The upstream real-time feed sits behind a WAF that rejects generic
// clients, so the primary strategy rotates through a fixed list of browser
// client profiles until one succeeds. A simple fixed-retry client is kept
// as an alternate implementation of the same contract.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bhmob/bhlake/internal/errors"
)

// Strategy fetches a URL and returns the response body as text.
type Strategy interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Profile is one browser client identity.
type Profile struct {
	Name      string
	UserAgent string
}

// DefaultProfiles returns the client profiles tried in order of
// compatibility with the upstream WAF.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name:      "chrome110",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36",
		},
		{
			Name:      "chrome107",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/107.0.0.0 Safari/537.36",
		},
		{
			Name:      "safari15_5",
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.5 Safari/605.1.15",
		},
		{
			Name:      "firefox109",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/109.0",
		},
	}
}

// ProfilesByName resolves profile names to profiles, keeping order.
// Unknown names are skipped. An empty selection falls back to the default
// list.
func ProfilesByName(names []string) []Profile {
	if len(names) == 0 {
		return DefaultProfiles()
	}
	all := DefaultProfiles()
	var out []Profile
	for _, name := range names {
		for _, p := range all {
			if p.Name == name {
				out = append(out, p)
			}
		}
	}
	if len(out) == 0 {
		return DefaultProfiles()
	}
	return out
}

// ProfileClient tries each configured profile in sequence with a fixed
// per-attempt timeout and no backoff. It is the default fetch strategy.
type ProfileClient struct {
	client   *http.Client
	profiles []Profile
	timeout  time.Duration
	log      *slog.Logger
}

// NewProfileClient creates a profile-rotating fetcher.
func NewProfileClient(profiles []Profile, timeout time.Duration, log *slog.Logger) *ProfileClient {
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ProfileClient{
		client:   &http.Client{},
		profiles: profiles,
		timeout:  timeout,
		log:      log,
	}
}

// Fetch retrieves the URL, rotating profiles until one returns HTTP 200.
// After exhausting all profiles it returns ErrFetchFailed wrapping the
// last error.
func (c *ProfileClient) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr error

	for _, profile := range c.profiles {
		c.log.Info("fetching", "url", url, "profile", profile.Name)

		body, status, err := c.attempt(ctx, url, profile)
		if err != nil {
			c.log.Warn("fetch attempt failed", "profile", profile.Name, "error", err)
			lastErr = err
			continue
		}
		if status != http.StatusOK {
			c.log.Warn("fetch attempt rejected", "profile", profile.Name, "status", status)
			lastErr = fmt.Errorf("HTTP %d", status)
			continue
		}

		c.log.Info("fetch succeeded", "profile", profile.Name, "bytes", len(body))
		return body, nil
	}

	return "", fmt.Errorf("all %d client profiles failed: %v: %w",
		len(c.profiles), lastErr, errors.ErrFetchFailed)
}

func (c *ProfileClient) attempt(ctx context.Context, url string, profile Profile) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", profile.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")
	req.Header.Set("Referer", "https://temporeal.pbh.gov.br/")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}

// RetryClient retries a plain GET a fixed number of times with a constant
// delay. Alternate implementation of Strategy for sources without WAF
// fingerprinting.
type RetryClient struct {
	client  *http.Client
	retries int
	delay   time.Duration
	log     *slog.Logger
}

// NewRetryClient creates a fixed-retry fetcher.
func NewRetryClient(retries int, delay time.Duration, timeout time.Duration, log *slog.Logger) *RetryClient {
	if retries <= 0 {
		retries = 3
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RetryClient{
		client:  &http.Client{Timeout: timeout},
		retries: retries,
		delay:   delay,
		log:     log,
	}
}

// Fetch retrieves the URL with bounded retries.
func (c *RetryClient) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}

		resp, err := c.client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr == nil {
				return string(body), nil
			}
			lastErr = readErr
		} else if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			resp.Body.Close()
		}

		c.log.Warn("fetch attempt failed", "attempt", attempt, "error", lastErr)
		if attempt < c.retries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.delay):
			}
		}
	}

	return "", fmt.Errorf("after %d attempts: %v: %w", c.retries, lastErr, errors.ErrFetchFailed)
}
