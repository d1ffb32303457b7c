package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"recsync/internal/config"
	"recsync/internal/protocol"
)

const userAgent = "recsync/0.1"

// Failure describes a classified transport problem.
type Failure struct {
	Code   protocol.Code
	Status int
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Code, f.Err)
	}
	if f.Status != 0 {
		return fmt.Sprintf("%s: http status %d", f.Code, f.Status)
	}
	return f.Code.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// Result converts the failure into a container-level protocol result.
func (f *Failure) Result() protocol.Result {
	return protocol.Result{Code: f.Code, Message: f.Error()}
}

// Classify extracts a Failure from any error returned by this package.
// Unclassified errors count as connection failures.
func Classify(err error) *Failure {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}
	return &Failure{Code: protocol.ResultConnectionFailed, Err: err}
}

// Client talks to the sync server. Redirects are surfaced as failures
// instead of being followed.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a client from application configuration.
func New(cfg *config.Config) *Client {
	return NewClient(cfg.Server.URL, &http.Client{
		Timeout: cfg.RequestTimeout(),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	})
}

// NewClient constructs a client with an explicit base URL and HTTP client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string { return c.baseURL }

// Probe performs the lightweight reachability check.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return &Failure{Code: protocol.ResultConnectionFailed, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyRequestError(err)
	}
	defer drain(resp)

	if failure := classifyStatus(resp.StatusCode); failure != nil {
		return failure
	}
	return nil
}

// Exchange posts one envelope-encoded container and returns the response
// payload.
func (c *Client) Exchange(ctx context.Context, envelope string) (string, error) {
	form := url.Values{"container": {envelope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sync", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Failure{Code: protocol.ResultConnectionFailed, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyRequestError(err)
	}
	defer resp.Body.Close()

	if failure := classifyStatus(resp.StatusCode); failure != nil {
		return "", failure
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", classifyRequestError(err)
	}
	return strings.TrimSpace(string(body)), nil
}

// Poll asks whether anything changed server-side since the session's last
// update. The body is a bare flag.
func (c *Client) Poll(ctx context.Context, sessionCredential string) (bool, error) {
	form := url.Values{"session": {sessionCredential}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/poll", strings.NewReader(form.Encode()))
	if err != nil {
		return false, &Failure{Code: protocol.ResultConnectionFailed, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, classifyRequestError(err)
	}
	defer resp.Body.Close()

	if failure := classifyStatus(resp.StatusCode); failure != nil {
		return false, failure
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return false, classifyRequestError(err)
	}
	switch strings.ToLower(strings.TrimSpace(string(body))) {
	case "1", "true", "changed":
		return true, nil
	default:
		return false, nil
	}
}

func classifyRequestError(err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Code: protocol.ResultTimeout, Err: err}
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Code: protocol.ResultTimeout, Err: err}
	}
	return &Failure{Code: protocol.ResultConnectionFailed, Err: err}
}

func classifyStatus(status int) *Failure {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 300 && status < 400:
		return &Failure{Code: protocol.ResultRedirected, Status: status}
	case status >= 500:
		return &Failure{Code: protocol.ResultServerError, Status: status}
	default:
		return &Failure{Code: protocol.ResultOtherHTTP, Status: status}
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
