package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/vietddude/domainwatch/internal/core/domain"
)

// HTTPClient talks to the signal fetcher service over HTTP. The service
// answers 200 with a SectionData body, or 422 with {"error": <code>} for
// permanent failures; anything else is treated as transient.
type HTTPClient struct {
	base   string
	client *http.Client
}

// NewHTTPClient creates a fetcher client against the service base URL.
func NewHTTPClient(base string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch performs one lookup of a domain section.
func (c *HTTPClient) Fetch(ctx context.Context, domainName string, section domain.Section) (*SectionData, error) {
	endpoint := fmt.Sprintf("%s/v1/fetch?domain=%s&section=%s",
		c.base, url.QueryEscape(domainName), url.QueryEscape(string(section)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read fetch response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var data SectionData
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, fmt.Errorf("malformed fetch response: %w", err)
		}
		return &data, nil

	case http.StatusUnprocessableEntity:
		var fail struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &fail); err != nil || fail.Error == "" {
			return nil, fmt.Errorf("fetcher returned 422 with malformed body")
		}
		return nil, &Error{Code: fail.Error, Section: section}

	default:
		return nil, fmt.Errorf("fetcher returned status %d", resp.StatusCode)
	}
}
