package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Fetcher executes one HTTP retrieval for one site descriptor, applying
// timeout, redirect, retry, and solver/browser-helper routing per §4.5.
type Fetcher struct {
	client  *http.Client
	browser *BrowserClient
	solver  *SolverClient
	limiter *RateLimiter
}

// NewFetcher builds a fetcher around the process-wide HTTP client. When
// Cfg.BrowserClient is configured, direct fetches of requires_solver
// descriptors go through it instead of the plain client (§4.5: such sites
// sit right at the edge of bot detection even before the solver is
// consulted).
func NewFetcher(limiter *RateLimiter, solver *SolverClient) *Fetcher {
	return &Fetcher{client: Cfg.HTTPClient, browser: Cfg.BrowserClient, solver: solver, limiter: limiter}
}

// Fetch retrieves body text for url under descriptor d's routing rules.
// cookies are forwarded verbatim; solverAttempted tracks whether this
// descriptor has already been escalated to the solver this search, so a
// second 403 fails with Blocked instead of looping.
func (f *Fetcher) Fetch(ctx context.Context, d SiteDescriptor, url string, cookies []Cookie, noSolver bool, solverAttempted *bool) (string, error) {
	if d.RequiresJS {
		return runBrowserHelper(ctx, url, cookies)
	}

	if d.RequiresSolver && !noSolver && f.solver != nil {
		*solverAttempted = true
		return f.solver.Solve(ctx, url, cookies)
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = Cfg.FetchTimeout
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxAttempts := d.RetryAttempts
	if maxAttempts <= 0 {
		maxAttempts = Cfg.RetryAttempts
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var body string
	var status int
	var err error
	if d.RequiresSolver && f.browser != nil {
		body, status, err = fetchWithRetryBrowser(fctx, f.browser, url, cookies, maxAttempts)
	} else {
		body, status, err = fetchWithRetry(fctx, f.client, url, cookies, maxAttempts)
	}
	if err != nil {
		return "", err
	}

	switch {
	case status == http.StatusOK:
		return body, nil
	case status >= 300 && status < 400:
		// The plain client follows up to 5 redirects itself (CheckRedirect
		// in fetchWithRetry). The browser client does not follow redirects,
		// so a 3xx from it lands here and its body is returned as-is.
		return body, nil
	case status == http.StatusNotFound:
		return "", fmt.Errorf("%s: %w", url, ErrNotFound)
	case status == http.StatusForbidden || looksBlocked(body):
		if !noSolver && f.solver != nil && !*solverAttempted {
			*solverAttempted = true
			return f.solver.Solve(ctx, url, cookies)
		}
		return "", fmt.Errorf("%s: %w", url, ErrBlocked)
	default:
		return "", fmt.Errorf("%s: status %d: %w", url, status, ErrTransient)
	}
}

// fetchWithRetry issues the GET with cenkalti/backoff/v5, marking request
// construction failures as Permanent, and retrying only on 408/429/5xx or
// a network-level error per §4.5. 404 and other terminal statuses are
// returned as a successful (result, nil) so the caller classifies them.
func fetchWithRetry(ctx context.Context, client *http.Client, url string, cookies []Cookie, maxAttempts int) (string, int, error) {
	// Follow at most 5 redirects; the shared client is copied so its own
	// redirect policy is left untouched.
	limited := *client
	limited.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return fmt.Errorf("stopped after 5 redirects")
		}
		return nil
	}

	op := func() (fetchResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fetchResult{}, backoff.Permanent(err)
		}
		for k, v := range ChromeHeaders() {
			req.Header.Set(k, v)
		}
		for _, c := range cookies {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
		}

		resp, err := limited.Do(req)
		if err != nil {
			return fetchResult{}, err // network error: retryable
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fetchResult{}, err
		}
		result := fetchResult{body: string(data), status: resp.StatusCode}

		if isRetryableStatus(resp.StatusCode) {
			slog.Debug("fetch retrying on status", slog.Int("status", resp.StatusCode), slog.String("url", url))
			return fetchResult{}, fmt.Errorf("retryable status %d", resp.StatusCode)
		}
		return result, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 1200 * time.Millisecond

	result, err := backoff.Retry(ctx, op,
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithBackOff(bo),
	)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", url, ErrTransient)
	}
	return result.body, result.status, nil
}

// fetchWithRetryBrowser is fetchWithRetry's Chrome-TLS-fingerprinted
// counterpart, used for requires_solver-adjacent sites (§4.5/§4.6) when a
// BrowserClient is configured. Same retry/backoff shape, routed through
// BrowserClient.Do instead of the plain *http.Client.
func fetchWithRetryBrowser(ctx context.Context, bc *BrowserClient, url string, cookies []Cookie, maxAttempts int) (string, int, error) {
	op := func() (fetchResult, error) {
		headers := ChromeHeaders()
		if len(cookies) > 0 {
			parts := make([]string, 0, len(cookies))
			for _, c := range cookies {
				parts = append(parts, c.Name+"="+c.Value)
			}
			headers["cookie"] = strings.Join(parts, "; ")
		}

		data, status, err := bc.Do(http.MethodGet, url, headers, nil)
		if err != nil {
			return fetchResult{}, err // network error: retryable
		}
		result := fetchResult{body: string(data), status: status}

		if isRetryableStatus(status) {
			slog.Debug("fetch retrying on status (browser client)", slog.Int("status", status), slog.String("url", url))
			return fetchResult{}, fmt.Errorf("retryable status %d", status)
		}
		return result, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 1200 * time.Millisecond

	result, err := backoff.Retry(ctx, op,
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithBackOff(bo),
	)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", url, ErrTransient)
	}
	return result.body, result.status, nil
}

type fetchResult struct {
	body   string
	status int
}

// cloudflareMarkers are response-body substrings indicating a browser
// challenge page rather than real content (§4.5 "403 / Cloudflare-sentinel
// body markers").
var cloudflareMarkers = []string{
	"Checking your browser before accessing",
	"cf-browser-verification",
	"Just a moment...",
	"__cf_chl_",
}

func looksBlocked(body string) bool {
	for _, m := range cloudflareMarkers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}
