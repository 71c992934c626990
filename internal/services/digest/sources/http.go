package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes bounds how much of a provider response is read.
const maxBodyBytes = 8 << 20

// StatusError reports a non-2xx provider response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.RateLimited() {
		return fmt.Sprintf("rate limited by %s (status %d)", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// RateLimited reports whether the provider refused the call for quota reasons.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusForbidden
}

type requester struct {
	client    *http.Client
	userAgent string
}

func newRequester(opts Options) requester {
	opts = opts.normalized()
	return requester{client: opts.Client, userAgent: opts.UserAgent}
}

// get performs a GET and returns the body of a 2xx response. The caller
// closes it.
func (r requester) get(ctx context.Context, url string, header http.Header) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// getJSON performs a GET and decodes a 2xx JSON body into out.
func (r requester) getJSON(ctx context.Context, url string, header http.Header, out any) error {
	body, err := r.get(ctx, url, header)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
