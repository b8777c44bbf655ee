package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEndpointDefaults(t *testing.T) {
	require.NoError(t, ValidateEndpoint("https://api.anthropic.com", EndpointOptions{}))

	err := ValidateEndpoint("http://api.example.com", EndpointOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http endpoints")

	err = ValidateEndpoint("ftp://api.example.com", EndpointOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported endpoint scheme")

	err = ValidateEndpoint("https://", EndpointOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host is required")
}

func TestValidateEndpointRejectsLocalTargetsByDefault(t *testing.T) {
	for _, rawURL := range []string{
		"https://localhost/v1",
		"https://api.localhost/v1",
		"https://printer.local/v1",
		"https://127.0.0.1/v1",
		"https://10.0.0.8/v1",
		"https://169.254.1.1/v1",
		"https://[::1]/v1",
	} {
		assert.Error(t, ValidateEndpoint(rawURL, EndpointOptions{}), rawURL)
	}
}

func TestValidateEndpointAllowsLocalInferenceServers(t *testing.T) {
	opts := EndpointOptions{AllowHTTP: true, AllowLocalNetworks: true}

	require.NoError(t, ValidateEndpoint("http://localhost:11434", opts))
	require.NoError(t, ValidateEndpoint("http://127.0.0.1:11434", opts))
	require.NoError(t, ValidateEndpoint("http://192.168.1.20:8080/v1", opts))
}

func TestValidateEndpointAlwaysRejectsUnroutableIPs(t *testing.T) {
	opts := EndpointOptions{AllowHTTP: true, AllowLocalNetworks: true}

	assert.Error(t, ValidateEndpoint("http://0.0.0.0/v1", opts))
	assert.Error(t, ValidateEndpoint("http://224.0.0.1/v1", opts))
}

func TestValidateEndpointZonedIPv6(t *testing.T) {
	err := ValidateEndpoint("https://[fe80::1%25eth0]/", EndpointOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zoned IP")

	require.NoError(t, ValidateEndpoint("https://[fe80::1%25eth0]/", EndpointOptions{
		AllowLocalNetworks: true,
	}))
}
