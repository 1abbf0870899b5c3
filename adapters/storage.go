package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"
)

// StorageClient deletes uploaded files from the object store by their public
// URL. Callers treat every failure as non-fatal: the file may leak, the task
// mutation goes through.
type StorageClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewStorageClient(baseURL string, client *http.Client, breaker *gobreaker.CircuitBreaker) *StorageClient {
	return &StorageClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		breaker: breaker,
	}
}

func (c *StorageClient) DeleteByURL(ctx context.Context, fileURL string) error {
	endpoint := fmt.Sprintf("%s/api/files?url=%s", c.baseURL, url.QueryEscape(fileURL))

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		// A file already gone counts as deleted.
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
			return nil, fmt.Errorf("storage service returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", fileURL, err)
	}
	return nil
}
