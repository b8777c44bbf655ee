package factory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/loom/pkg/config"
)

func settingsWithKey(name string, key string) *config.Settings {
	cfg := config.NewSettings()
	cfg.Providers[name] = &config.ProviderSettings{APIKey: &key}
	return cfg
}

func TestCreateProviderSelectsAdapterByName(t *testing.T) {
	f := NewStandardFactory()

	p, err := f.CreateProvider(settingsWithKey("anthropic", "sk-ant"), "anthropic")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	p, err = f.CreateProvider(settingsWithKey("openai", "sk-oai"), "openai")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = f.CreateProvider(config.NewSettings(), "ollama")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestCreateProviderFallsBackToChatSettings(t *testing.T) {
	f := NewStandardFactory()

	cfg := config.NewSettings()
	provider := "ollama"
	cfg.Chat.Provider = &provider

	p, err := f.CreateProvider(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestCreateProviderDefaultsToAnthropic(t *testing.T) {
	f := NewStandardFactory()
	assert.Equal(t, "anthropic", f.DefaultProvider())

	p, err := f.CreateProvider(settingsWithKey("anthropic", "sk-ant"), "")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
}

func TestCreateProviderRequiresAPIKey(t *testing.T) {
	f := NewStandardFactory()

	_, err := f.CreateProvider(config.NewSettings(), "anthropic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing API key")

	_, err = f.CreateProvider(config.NewSettings(), "openai")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing API key")
}

func TestCreateProviderResolvesCustomTableEntries(t *testing.T) {
	f := NewStandardFactory()

	cfg := config.NewSettings()
	baseURL := "http://127.0.0.1:8080/v1"
	key := "sk-local"
	cfg.Providers["llamacpp"] = &config.ProviderSettings{
		APIType:    "openai",
		BaseURL:    &baseURL,
		APIKey:     &key,
		AllowLocal: true,
	}

	p, err := f.CreateProvider(cfg, "llamacpp")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	// claude is accepted as an alias for the anthropic adapter
	cfg.Providers["claude"] = &config.ProviderSettings{APIKey: &key}
	p, err = f.CreateProvider(cfg, "claude")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
}

func TestCreateProviderRejectsUnknownAPIType(t *testing.T) {
	f := NewStandardFactory()

	cfg := config.NewSettings()
	cfg.Providers["gemini"] = &config.ProviderSettings{APIType: "gemini"}

	_, err := f.CreateProvider(cfg, "gemini")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported api type")
	for _, name := range f.SupportedAPITypes() {
		assert.True(t, strings.Contains(err.Error(), name))
	}

	_, err = f.CreateProvider(nil, "anthropic")
	require.Error(t, err)
}

func TestCreateProviderValidatesEndpoints(t *testing.T) {
	f := NewStandardFactory()

	cfg := settingsWithKey("anthropic", "sk-ant")
	baseURL := "http://169.254.169.254"
	cfg.Providers["anthropic"].BaseURL = &baseURL

	_, err := f.CreateProvider(cfg, "anthropic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not configure provider anthropic")
}
