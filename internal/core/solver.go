package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SolverClient speaks the JSON-over-HTTP contract to an external
// browser-challenge-solving daemon, per §4.6/§6.
type SolverClient struct {
	url     string
	client  *http.Client
	browser *BrowserClient
	timeout time.Duration
}

// NewSolverClient builds a solver adapter pointed at url (empty disables
// the solver entirely; callers should check for a nil *SolverClient).
// When Cfg.BrowserClient is configured, the daemon's own outbound call is
// routed through it (§4.6: the daemon sits behind the same bot-detection
// surface as the sites it solves for), falling back to a bare *http.Client
// otherwise.
func NewSolverClient(url string, timeout time.Duration) *SolverClient {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &SolverClient{url: url, client: &http.Client{Timeout: timeout}, browser: Cfg.BrowserClient, timeout: timeout}
}

type solverCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
}

type solverRequest struct {
	Cmd        string         `json:"cmd"`
	URL        string         `json:"url"`
	MaxTimeout int64          `json:"maxTimeout"`
	Cookies    []solverCookie `json:"cookies,omitempty"`
}

type solverResponse struct {
	Status   string `json:"status"`
	Solution struct {
		Response string         `json:"response"`
		Cookies  []solverCookie `json:"cookies,omitempty"`
	} `json:"solution"`
	Message string `json:"message"`
}

// Solve asks the daemon to fetch url, returning its rendered HTML.
// Cookies are deduplicated by name before sending, per the §9 resolution
// of the "cookie forwarding duplicates" ambiguity. The outbound POST is
// retried per §4.5 ("apply up to N attempts... on transient failures")
// via RetryDo, since the daemon round-trip has no retry of its own.
func (s *SolverClient) Solve(ctx context.Context, url string, cookies []Cookie) (string, error) {
	body := solverRequest{
		Cmd:        "request.get",
		URL:        url,
		MaxTimeout: s.timeout.Milliseconds(),
		Cookies:    dedupCookiesByName(cookies),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal solver request: %w", err)
	}

	data, status, err := s.post(ctx, payload)
	if err != nil {
		return "", &SolverFailedError{Detail: err.Error()}
	}
	if status != http.StatusOK {
		return "", &SolverFailedError{Detail: fmt.Sprintf("solver http status %d", status)}
	}

	var out solverResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &SolverFailedError{Detail: fmt.Sprintf("invalid solver response: %v", err)}
	}
	if out.Status != "ok" {
		msg := out.Message
		if msg == "" {
			msg = "unknown solver error"
		}
		return "", &SolverFailedError{Detail: msg}
	}
	return out.Solution.Response, nil
}

// solverPostResult is RetryDo's type parameter for post: a plain struct
// since RetryDo only carries one result value alongside the error.
type solverPostResult struct {
	body   []byte
	status int
}

// post issues the solver POST, retrying transient failures (network
// errors and retryable HTTP statuses) per DefaultRetryConfig. It prefers
// the Chrome-fingerprinted BrowserClient when one is configured, falling
// back to the plain *http.Client otherwise.
func (s *SolverClient) post(ctx context.Context, payload []byte) ([]byte, int, error) {
	result, err := RetryDo(ctx, DefaultRetryConfig, func() (solverPostResult, error) {
		var data []byte
		var status int
		var err error
		if s.browser != nil {
			data, status, err = s.browser.Do(http.MethodPost, s.url, map[string]string{"content-type": "application/json"}, bytes.NewReader(payload))
		} else {
			data, status, err = s.plainPost(ctx, payload)
		}
		if err != nil {
			return solverPostResult{}, err
		}
		if isRetryableStatus(status) {
			return solverPostResult{}, &httpStatusError{StatusCode: status}
		}
		return solverPostResult{body: data, status: status}, nil
	})
	return result.body, result.status, err
}

func (s *SolverClient) plainPost(ctx context.Context, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build solver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// dedupCookiesByName collapses same-name cookies, keeping the
// first-provided value, before the solver request is marshaled: the wire
// protocol has no slot for more than one value per cookie name.
func dedupCookiesByName(cookies []Cookie) []solverCookie {
	seen := make(map[string]bool, len(cookies))
	out := make([]solverCookie, 0, len(cookies))
	for _, c := range cookies {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, solverCookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}
	return out
}
