package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

const (
	// DefaultCookieURL is visited once per session to obtain the Yahoo
	// consent cookie the crumb endpoint requires.
	DefaultCookieURL = "https://fc.yahoo.com"

	crumbPath = "/v1/test/getcrumb"

	operationCookie = "cookie"
	operationCrumb  = "crumb"

	maxCrumbBody = 1 << 10
)

// session holds the crumb paired with the cookie in the client's jar.
// Yahoo's v7 endpoints answer 401 without both.
type session struct {
	mu    sync.Mutex
	crumb string
}

// crumb returns the session crumb, bootstrapping a new session when none is
// held. Concurrent callers wait for a single bootstrap.
func (c *Client) crumb(ctx context.Context) (string, error) {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()

	if c.session.crumb != "" {
		return c.session.crumb, nil
	}

	if c.config.CookieURL != "" {
		if err := c.fetchCookie(ctx); err != nil {
			return "", err
		}
	}

	crumb, err := c.fetchCrumb(ctx)
	if err != nil {
		return "", err
	}

	c.session.crumb = crumb
	c.logger.Debug().Msg("Established Yahoo session")
	return crumb, nil
}

// resetSession drops the crumb so the next request starts a new session.
func (c *Client) resetSession() {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	c.session.crumb = ""
}

// fetchCookie visits the cookie URL. Yahoo answers with an error status
// while still setting the cookie, so only transport failures count.
func (c *Client) fetchCookie(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.CookieURL, nil)
	if err != nil {
		return fmt.Errorf("create cookie request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		upstreamRequestsTotal.WithLabelValues(operationCookie, "network_error").Inc()
		return &UpstreamError{Class: ErrorClassNetwork, Message: "cookie request failed", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	upstreamRequestsTotal.WithLabelValues(operationCookie, strconv.Itoa(resp.StatusCode)).Inc()
	return nil
}

func (c *Client) fetchCrumb(ctx context.Context) (string, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + crumbPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create crumb request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		upstreamRequestsTotal.WithLabelValues(operationCrumb, "network_error").Inc()
		return "", &UpstreamError{Class: ErrorClassNetwork, Message: "crumb request failed", Err: err}
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(operationCrumb, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCrumbBody))
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return "", &UpstreamError{StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Message: "read crumb", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		class := classifyStatus(resp.StatusCode)
		if class == ErrorClassClient {
			// A missing crumb endpoint is never the caller's fault.
			class = ErrorClassAuth
		}
		upstreamErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Yahoo session bootstrap failed")
		return "", &UpstreamError{StatusCode: resp.StatusCode, Class: class, Message: "crumb request rejected: " + resp.Status}
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" || strings.ContainsAny(crumb, "<{") {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return "", &UpstreamError{StatusCode: resp.StatusCode, Class: ErrorClassDecode, Message: "invalid crumb"}
	}
	return crumb, nil
}
