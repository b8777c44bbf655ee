package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/loom/pkg/security"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"

	chatCompletionsPath = "/chat/completions"
)

// Client opens streaming chat completion calls against the OpenAI API or
// any compatible endpoint. Request payloads use the go-openai types;
// decoding the stream is the provider's job.
type Client struct {
	httpClient   *http.Client
	apiKey       string
	baseURL      string
	organization string
	allowLocal   bool
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

func WithOrganization(organization string) ClientOption {
	return func(c *Client) {
		c.organization = organization
	}
}

// WithAllowLocalEndpoints permits http and local-network base URLs, for
// OpenAI-compatible local servers.
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
	}
	for _, option := range options {
		option(c)
	}

	if err := security.ValidateEndpoint(c.baseURL, security.EndpointOptions{
		AllowHTTP:          c.allowLocal,
		AllowLocalNetworks: c.allowLocal,
	}); err != nil {
		return nil, errors.Wrap(err, "invalid openai base URL")
	}

	return c, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}
}

// errorEnvelope is the error body shape, shared by non-200 responses and
// in-stream error payloads.
type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// StreamChatCompletion opens a streaming chat completion and returns the
// raw SSE body. The caller owns closing it.
func (c *Client) StreamChatCompletion(ctx context.Context, req *go_openai.ChatCompletionRequest) (io.ReadCloser, error) {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal chat completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, bytes.NewReader(body))
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
		var envelope errorEnvelope
		if unmarshalErr := json.Unmarshal(respBody, &envelope); unmarshalErr != nil || envelope.Error == nil {
			return nil, errors.Errorf("openai request failed with status %d", resp.StatusCode)
		}
		return nil, errors.Errorf("openai: %s: %s", envelope.Error.Type, envelope.Error.Message)
	}

	return resp.Body, nil
}
