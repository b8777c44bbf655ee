package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"

	"github.com/go-go-golems/loom/pkg/security"
)

const (
	DefaultBaseURL = "http://127.0.0.1:11434"

	chatPath = "/api/chat"
)

// Client opens streaming chat calls against an ollama server. Unlike the
// hosted providers, ollama is local-first, so http and local-network base
// URLs are always permitted.
type Client struct {
	httpClient *http.Client
	baseURL    string
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

func NewClient(options ...ClientOption) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
	}
	for _, option := range options {
		option(c)
	}

	if err := security.ValidateEndpoint(c.baseURL, security.EndpointOptions{
		AllowHTTP:          true,
		AllowLocalNetworks: true,
	}); err != nil {
		return nil, errors.Wrap(err, "invalid ollama base URL")
	}

	return c, nil
}

// errorLine is the error shape ollama uses, both as a response body and as
// a stream line.
type errorLine struct {
	Error string `json:"error"`
}

// StreamChat opens a streaming chat call and returns the raw NDJSON body.
// The caller owns closing it.
func (c *Client) StreamChat(ctx context.Context, req *api.ChatRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		var line errorLine
		if unmarshalErr := json.Unmarshal(respBody, &line); unmarshalErr != nil || line.Error == "" {
			return nil, errors.Errorf("ollama request failed with status %d", resp.StatusCode)
		}
		return nil, errors.Errorf("ollama: %s", line.Error)
	}

	return resp.Body, nil
}
