package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"teamboard/microservices/collab-service/logging"
	"teamboard/microservices/collab-service/models"
)

// DirectoryClient looks up user display data and availability in the users
// service. Lookups are read only; the single mutation, DowngradeRole, exists
// for the membership cascade and is best effort.
type DirectoryClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewDirectoryClient(baseURL string, client *http.Client, breaker *gobreaker.CircuitBreaker) *DirectoryClient {
	return &DirectoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		breaker: breaker,
	}
}

func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

func (c *DirectoryClient) FindByIDs(ctx context.Context, ids []string) ([]models.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/api/users?ids=%s", c.baseURL, url.QueryEscape(strings.Join(ids, ",")))
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("users service returned status %d", resp.StatusCode)
		}

		var members []models.Member
		if err := json.NewDecoder(resp.Body).Decode(&members); err != nil {
			return nil, fmt.Errorf("failed to decode members: %w", err)
		}
		return members, nil
	})
	if err != nil {
		return nil, fmt.Errorf("directory lookup failed: %w", err)
	}

	return result.([]models.Member), nil
}

func (c *DirectoryClient) FindOne(ctx context.Context, id string) (*models.Member, error) {
	endpoint := fmt.Sprintf("%s/api/users/%s", c.baseURL, url.PathEscape(id))
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return (*models.Member)(nil), nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("users service returned status %d", resp.StatusCode)
		}

		var member models.Member
		if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
			return nil, fmt.Errorf("failed to decode member: %w", err)
		}
		return &member, nil
	})
	if err != nil {
		return nil, fmt.Errorf("directory lookup failed: %w", err)
	}

	return result.(*models.Member), nil
}

// DowngradeRole resets the user's stored role to the default member role.
func (c *DirectoryClient) DowngradeRole(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/api/users/%s/role", c.baseURL, url.PathEscape(id))
	body := strings.NewReader(fmt.Sprintf(`{"role":%q}`, models.RoleMember))

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("users service returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		logging.Logger.Warnf("Event ID: ROLE_DOWNGRADE_FAILED, Description: Failed to downgrade role for user %s: %v", id, err)
		return fmt.Errorf("role downgrade failed: %w", err)
	}
	return nil
}
