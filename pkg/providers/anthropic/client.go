package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/go-go-golems/loom/pkg/security"
)

const (
	DefaultBaseURL    = "https://api.anthropic.com"
	DefaultAPIVersion = "2023-06-01"

	messagesPath = "/v1/messages"
)

// Client is a minimal Messages API client. It only knows how to open a
// streaming completion; decoding the stream is the provider's job.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	apiVersion string
	allowLocal bool
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithAPIVersion(version string) ClientOption {
	return func(c *Client) {
		c.apiVersion = version
	}
}

// WithAllowLocalEndpoints permits http and local-network base URLs, for
// proxies and test servers.
func WithAllowLocalEndpoints() ClientOption {
	return func(c *Client) {
		c.allowLocal = true
	}
}

func NewClient(apiKey string, options ...ClientOption) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		apiVersion: DefaultAPIVersion,
	}
	for _, option := range options {
		option(c)
	}

	if err := security.ValidateEndpoint(c.baseURL, security.EndpointOptions{
		AllowHTTP:          c.allowLocal,
		AllowLocalNetworks: c.allowLocal,
	}); err != nil {
		return nil, errors.Wrap(err, "invalid anthropic base URL")
	}

	return c, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.apiVersion)
	req.Header.Set("Content-Type", "application/json")
}

// StreamMessage opens a streaming Messages call and returns the raw SSE
// body. The caller owns closing it. Non-200 responses are decoded into the
// API's error shape.
func (c *Client) StreamMessage(ctx context.Context, req *MessageRequest) (io.ReadCloser, error) {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal message request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	// #nosec G704 -- base URL is validated in NewClient.
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)
		respBody, _ := io.ReadAll(resp.Body)
		var errorResp ErrorResponse
		if unmarshalErr := json.Unmarshal(respBody, &errorResp); unmarshalErr != nil || errorResp.Error.Message == "" {
			return nil, errors.Errorf("anthropic request failed with status %d", resp.StatusCode)
		}
		return nil, errors.Errorf("anthropic: %s: %s", errorResp.Error.Type, errorResp.Error.Message)
	}

	return resp.Body, nil
}
