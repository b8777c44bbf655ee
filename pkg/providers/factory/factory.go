// Package factory turns provider table entries into provider adapters.
package factory

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/loom/pkg/config"
	"github.com/go-go-golems/loom/pkg/providers"
	"github.com/go-go-golems/loom/pkg/providers/anthropic"
	"github.com/go-go-golems/loom/pkg/providers/ollama"
	"github.com/go-go-golems/loom/pkg/providers/openai"
)

// Factory creates provider adapters based on settings. The interface lets
// callers control which adapter serves a request without knowing the
// concrete implementations, and lets tests substitute fakes.
type Factory interface {
	// CreateProvider builds the adapter for one provider table entry. An
	// empty name falls back to the chat settings, then to DefaultProvider.
	CreateProvider(cfg *config.Settings, name string) (providers.Provider, error)

	// SupportedAPITypes returns the adapter types this factory can build.
	SupportedAPITypes() []string

	// DefaultProvider returns the provider used when neither the caller
	// nor the settings name one.
	DefaultProvider() string
}

// StandardFactory is the default Factory over the built-in adapters.
type StandardFactory struct{}

func NewStandardFactory() *StandardFactory {
	return &StandardFactory{}
}

func (f *StandardFactory) CreateProvider(cfg *config.Settings, name string) (providers.Provider, error) {
	if cfg == nil {
		return nil, errors.New("settings cannot be nil")
	}

	if name == "" {
		name = f.DefaultProvider()
		if cfg.Chat != nil && cfg.Chat.Provider != nil && *cfg.Chat.Provider != "" {
			name = *cfg.Chat.Provider
		}
	}
	name = strings.ToLower(name)
	ps := cfg.ProviderFor(name)

	var httpClient *http.Client
	if cfg.Client != nil {
		httpClient = cfg.Client.NewHTTPClient()
	}

	switch strings.ToLower(ps.APIType) {
	case anthropic.Name, "claude":
		return buildAnthropic(name, ps, httpClient)

	case openai.Name:
		return buildOpenAI(name, ps, cfg, httpClient)

	case ollama.Name:
		return buildOllama(ps, httpClient)

	default:
		supported := strings.Join(f.SupportedAPITypes(), ", ")
		return nil, errors.Errorf("unsupported api type %q for provider %s, supported types: %s", ps.APIType, name, supported)
	}
}

func (f *StandardFactory) SupportedAPITypes() []string {
	return []string{
		anthropic.Name,
		"claude", // alias for anthropic
		openai.Name,
		ollama.Name,
	}
}

func (f *StandardFactory) DefaultProvider() string {
	return anthropic.Name
}

func buildAnthropic(name string, ps *config.ProviderSettings, httpClient *http.Client) (providers.Provider, error) {
	apiKey := ps.ResolveAPIKey(name)
	if apiKey == "" {
		return nil, errors.Errorf("missing API key for provider %s", name)
	}

	var clientOptions []anthropic.ClientOption
	if httpClient != nil {
		clientOptions = append(clientOptions, anthropic.WithHTTPClient(httpClient))
	}
	if ps.BaseURL != nil && *ps.BaseURL != "" {
		clientOptions = append(clientOptions, anthropic.WithBaseURL(*ps.BaseURL))
	}
	if ps.APIVersion != nil && *ps.APIVersion != "" {
		clientOptions = append(clientOptions, anthropic.WithAPIVersion(*ps.APIVersion))
	}
	if ps.AllowLocal {
		clientOptions = append(clientOptions, anthropic.WithAllowLocalEndpoints())
	}

	client, err := anthropic.NewClient(apiKey, clientOptions...)
	if err != nil {
		return nil, errors.Wrapf(err, "could not configure provider %s", name)
	}

	var options []anthropic.Option
	if ps.ThinkingBudget != nil && *ps.ThinkingBudget > 0 {
		options = append(options, anthropic.WithThinkingBudget(*ps.ThinkingBudget))
	}
	return anthropic.New(client, options...), nil
}

func buildOpenAI(name string, ps *config.ProviderSettings, cfg *config.Settings, httpClient *http.Client) (providers.Provider, error) {
	apiKey := ps.ResolveAPIKey(name)
	if apiKey == "" {
		return nil, errors.Errorf("missing API key for provider %s", name)
	}

	var clientOptions []openai.ClientOption
	if httpClient != nil {
		clientOptions = append(clientOptions, openai.WithHTTPClient(httpClient))
	}
	if ps.BaseURL != nil && *ps.BaseURL != "" {
		clientOptions = append(clientOptions, openai.WithBaseURL(*ps.BaseURL))
	}
	if cfg.Client != nil && cfg.Client.Organization != nil && *cfg.Client.Organization != "" {
		clientOptions = append(clientOptions, openai.WithOrganization(*cfg.Client.Organization))
	}
	if ps.AllowLocal {
		clientOptions = append(clientOptions, openai.WithAllowLocalEndpoints())
	}

	client, err := openai.NewClient(apiKey, clientOptions...)
	if err != nil {
		return nil, errors.Wrapf(err, "could not configure provider %s", name)
	}
	return openai.New(client), nil
}

func buildOllama(ps *config.ProviderSettings, httpClient *http.Client) (providers.Provider, error) {
	var clientOptions []ollama.ClientOption
	if httpClient != nil {
		clientOptions = append(clientOptions, ollama.WithHTTPClient(httpClient))
	}
	if ps.BaseURL != nil && *ps.BaseURL != "" {
		clientOptions = append(clientOptions, ollama.WithBaseURL(*ps.BaseURL))
	}

	client, err := ollama.NewClient(clientOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure ollama provider")
	}
	return ollama.New(client), nil
}

var _ Factory = (*StandardFactory)(nil)
