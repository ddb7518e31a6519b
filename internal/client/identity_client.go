package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// IdentityHTTPClient resolves project role assignments from the
// identity service. Used to pre-assign approvers when a chain is built.
type IdentityHTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewIdentityHTTPClient creates a client against the identity service.
func NewIdentityHTTPClient(baseURL string) *IdentityHTTPClient {
	return &IdentityHTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type roleUsersResponse struct {
	UserIDs []string `json:"user_ids"`
}

// GetUsersWithRole returns user IDs holding the given role on a project.
func (c *IdentityHTTPClient) GetUsersWithRole(ctx context.Context, projectID string, role string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/projects/%s/users?role=%s",
		c.baseURL, url.PathEscape(projectID), url.QueryEscape(role))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call identity service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var out roleUsersResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	return out.UserIDs, nil
}

// NoopIdentityClient is used when no identity service is configured.
// Steps are then created unassigned and claimed by role at action time.
type NoopIdentityClient struct{}

func (NoopIdentityClient) GetUsersWithRole(_ context.Context, _ string, _ string) ([]string, error) {
	return nil, nil
}
