package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-update-relay/update-relay/pkg/updates"
)

// ErrorResponse is returned for every status other than 200 and 204.
type ErrorResponse struct {
	StatusCode int
	Message    string
	Location   string
}

func (e *ErrorResponse) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("unexpected status code: %d, redirected to: %s", e.StatusCode, e.Location)
	}
	return fmt.Sprintf("unexpected status code: %d, error: %s", e.StatusCode, e.Message)
}

type Client struct {
	relayURL   string
	httpClient *http.Client
}

func New(relayURL string) *Client {
	return &Client{
		relayURL: relayURL,
		httpClient: &http.Client{
			Timeout: time.Minute,
			// redirects only point to the documentation
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *Client) sendRequest(ctx context.Context, endpoint, accept string) (*http.Response, error) {
	apiEndpoint, err := url.JoinPath(c.relayURL, endpoint)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	return c.httpClient.Do(req)
}

func (c *Client) errorResponse(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return err
	}
	return &ErrorResponse{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
		Location:   resp.Header.Get("Location"),
	}
}

// CheckForUpdate asks the relay for a release newer than version. It returns
// nil and no error if the client is up to date.
func (c *Client) CheckForUpdate(ctx context.Context, account, repository, platform, version string) (*updates.Update, error) {
	resp, err := c.sendRequest(ctx, updates.CheckPath(account, repository, platform, version), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		var u updates.Update
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			return nil, err
		}
		return &u, nil
	default:
		return nil, c.errorResponse(resp)
	}
}

// GetReleasesManifest downloads the RELEASES manifest of a Windows release.
func (c *Client) GetReleasesManifest(ctx context.Context, account, repository, platform, version string) (string, error) {
	resp, err := c.sendRequest(ctx, updates.ManifestPath(account, repository, platform, version), "text/plain")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", c.errorResponse(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
