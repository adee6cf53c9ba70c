package edge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxNodesResponse = 4 << 20

// Client talks to the local mDS discovery service.
type Client struct {
	baseURL  string
	clusters string
	client   *http.Client
}

func NewClient(baseURL, clusters string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		clusters: clusters,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListNodes fetches the node list and returns the still-encrypted "data"
// member of the response, re-serialized.
func (c *Client) ListNodes(ctx context.Context) (json.RawMessage, error) {
	u := c.baseURL + "/nodes?clusters=" + url.QueryEscape(c.clusters)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "msgboard/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxNodesResponse))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mds returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode mds response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil, errors.New("mds response has no data")
	}
	return envelope.Data, nil
}
