// Package config holds the YAML settings that drive the CLI: chat defaults,
// HTTP client behavior, the tool executor knobs, and the provider table.
// Provider entries are data, so pointing the stack at a new OpenAI-compatible
// endpoint is a settings edit, not code.
package config

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/loom/pkg/inference/tools"
)

// Settings is the root of the settings file. Every section is optional;
// nil sections fall back to built-in defaults.
type Settings struct {
	Chat      *ChatSettings                `yaml:"chat,omitempty"`
	Client    *ClientSettings              `yaml:"client,omitempty"`
	Providers map[string]*ProviderSettings `yaml:"providers,omitempty"`
	Tools     *ToolSettings                `yaml:"tools,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{
		Chat:      NewChatSettings(),
		Client:    NewClientSettings(),
		Providers: map[string]*ProviderSettings{},
		Tools:     &ToolSettings{},
	}
}

// NewSettingsFromYAML decodes a settings document over the defaults. An
// empty document is valid and yields the defaults unchanged.
func NewSettingsFromYAML(r io.Reader) (*Settings, error) {
	s := NewSettings()
	if err := yaml.NewDecoder(r).Decode(s); err != nil {
		if errors.Is(err, io.EOF) {
			return s, nil
		}
		return nil, errors.Wrap(err, "could not decode settings")
	}
	return s, nil
}

func LoadSettings(path string) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open settings file %s", path)
	}
	defer func() {
		_ = f.Close()
	}()
	return NewSettingsFromYAML(f)
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// ProviderFor resolves one provider table entry. Unknown names still
// resolve: the entry's API type defaults to the name itself, so the
// built-in providers work with an empty table.
func (s *Settings) ProviderFor(name string) *ProviderSettings {
	if s.Providers != nil {
		if ps, ok := s.Providers[name]; ok && ps != nil {
			out := ps.Clone()
			if out.APIType == "" {
				out.APIType = name
			}
			return out
		}
	}
	return &ProviderSettings{APIType: name}
}

// ToolConfig merges the tool settings over the executor defaults.
func (s *Settings) ToolConfig() tools.Config {
	cfg := tools.DefaultConfig()
	ts := s.Tools
	if ts == nil {
		return cfg
	}
	if ts.Enabled != nil {
		cfg.Enabled = *ts.Enabled
	}
	if ts.MaxIterations != nil {
		cfg.MaxIterations = *ts.MaxIterations
	}
	if ts.TimeoutSeconds != nil {
		cfg.ExecutionTimeout = time.Duration(*ts.TimeoutSeconds) * time.Second
	}
	if ts.MaxParallel != nil {
		cfg.MaxParallel = *ts.MaxParallel
	}
	cfg.Policy = tools.Policy{Allow: ts.Allow, Deny: ts.Deny}
	return cfg
}

// ChatSettings carries the per-conversation defaults the chat command
// starts from. Flags override any of them.
type ChatSettings struct {
	Provider          *string  `yaml:"provider,omitempty"`
	Model             *string  `yaml:"model,omitempty"`
	SystemPrompt      *string  `yaml:"system_prompt,omitempty"`
	MaxResponseTokens *int     `yaml:"max_response_tokens,omitempty"`
	Temperature       *float64 `yaml:"temperature,omitempty"`
	TopP              *float64 `yaml:"top_p,omitempty"`
	Stop              []string `yaml:"stop,omitempty"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		Stop: []string{},
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}

// ProviderSettings configures one entry in the provider table. APIType
// selects the adapter and may differ from the entry name, so several
// entries can share the openai adapter under different base URLs.
type ProviderSettings struct {
	APIType        string  `yaml:"api_type,omitempty"`
	BaseURL        *string `yaml:"base_url,omitempty"`
	APIKey         *string `yaml:"api_key,omitempty"`
	APIVersion     *string `yaml:"api_version,omitempty"`
	AllowLocal     bool    `yaml:"allow_local,omitempty"`
	ThinkingBudget *int    `yaml:"thinking_budget,omitempty"`
}

func (p *ProviderSettings) Clone() *ProviderSettings {
	return clone.Clone(p).(*ProviderSettings)
}

// ResolveAPIKey returns the entry's key, falling back to viper so keys can
// come from bound flags, the environment, or the viper config file
// (e.g. anthropic-api-key, ANTHROPIC_API_KEY).
func (p *ProviderSettings) ResolveAPIKey(name string) string {
	if p.APIKey != nil && *p.APIKey != "" {
		return *p.APIKey
	}
	return viper.GetString(name + "-api-key")
}

// ToolSettings is the YAML-facing shape of the executor configuration.
// Durations are spelled in seconds so settings files stay plain scalars.
type ToolSettings struct {
	Enabled        *bool    `yaml:"enabled,omitempty"`
	MaxIterations  *int     `yaml:"max_iterations,omitempty"`
	TimeoutSeconds *int     `yaml:"timeout_seconds,omitempty"`
	MaxParallel    *int     `yaml:"max_parallel,omitempty"`
	Allow          []string `yaml:"allow,omitempty"`
	Deny           []string `yaml:"deny,omitempty"`
}

// ClientSettings tunes the HTTP client every provider shares.
type ClientSettings struct {
	Timeout        *time.Duration `yaml:"timeout,omitempty"`
	TimeoutSeconds *int           `yaml:"timeout_seconds,omitempty"`
	Organization   *string        `yaml:"organization,omitempty"`
	HTTPClient     *http.Client   `yaml:"-" json:"-"`
}

func NewClientSettings() *ClientSettings {
	defaultTimeout := 60 * time.Second
	defaultSeconds := int(defaultTimeout.Seconds())
	return &ClientSettings{
		Timeout:        &defaultTimeout,
		TimeoutSeconds: &defaultSeconds,
	}
}

// UnmarshalYAML accepts the timeout as an integer number of seconds.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	type alias ClientSettings
	aux := &struct {
		Timeout *int `yaml:"timeout,omitempty"`
		*alias
	}{
		alias: (*alias)(cs),
	}
	if err := value.Decode(aux); err != nil {
		return err
	}
	if aux.Timeout != nil {
		t := time.Duration(*aux.Timeout) * time.Second
		cs.Timeout = &t
		cs.TimeoutSeconds = aux.Timeout
	}
	return nil
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}

// NewHTTPClient builds the client the providers share. The timeout bounds
// dialing and response headers, not the body read: streams stay open far
// longer than any sane request timeout.
func (cs *ClientSettings) NewHTTPClient() *http.Client {
	if cs.HTTPClient != nil {
		return cs.HTTPClient
	}
	client := &http.Client{}
	if cs.Timeout != nil && *cs.Timeout > 0 {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = *cs.Timeout
		client.Transport = transport
	}
	return client
}
