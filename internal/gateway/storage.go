package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// UploadFile stores an object in the given bucket and returns its path
// within the bucket.
func (c *Client) UploadFile(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	c.setAuthHeaders(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", decodeError(resp)
	}
	return path, nil
}

// PublicURL returns the public download URL for an object.
func (c *Client) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, bucket, path)
}

// RemoveFiles deletes objects from a bucket. Missing objects are not an
// error.
func (c *Client) RemoveFiles(ctx context.Context, bucket string, paths []string) error {
	body := map[string][]string{"prefixes": paths}
	endpoint := "/storage/v1/object/" + bucket
	if err := c.do(ctx, http.MethodDelete, endpoint, nil, body, nil); err != nil {
		return fmt.Errorf("removing objects: %w", err)
	}
	return nil
}
