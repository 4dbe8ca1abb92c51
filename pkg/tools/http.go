package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const maxResponseBytes = 1 << 20

// FetchJSON performs a GET against url and decodes the JSON response
// into out. Shared by the connector packages.
func FetchJSON(ctx context.Context, rawURL string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := Conf().HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "perform request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("unexpected status %d: %s", resp.StatusCode, truncateBody(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// PostForm posts a form with basic auth and returns the response body.
func PostForm(ctx context.Context, rawURL, user, pass string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(user, pass)

	resp, err := Conf().HTTPClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "perform request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Errorf("unexpected status %d: %s", resp.StatusCode, truncateBody(body))
	}
	return string(body), nil
}

func truncateBody(body []byte) string {
	const limit = 256
	s := string(body)
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
