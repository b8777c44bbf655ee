// Package security validates provider endpoint URLs before any request is
// sent. Base URLs come from configuration files and environment variables,
// so they are treated as untrusted input.
package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// EndpointOptions configures endpoint URL validation.
type EndpointOptions struct {
	// AllowHTTP permits plain HTTP endpoints. HTTPS is always allowed.
	AllowHTTP bool
	// AllowLocalNetworks permits loopback, private and link-local IP
	// targets as well as localhost hostnames. Local inference servers
	// need this.
	AllowLocalNetworks bool
}

// ValidateEndpoint checks that a base URL is safe to send requests to. It
// rejects unsafe schemes and local-network targets unless explicitly
// allowed. IP literals are checked without DNS lookups.
func ValidateEndpoint(rawURL string, opts EndpointOptions) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, "invalid endpoint URL")
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !opts.AllowHTTP {
			return errors.New("http endpoints are not allowed")
		}
	default:
		return errors.Errorf("unsupported endpoint scheme %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.New("endpoint host is required")
	}

	if !opts.AllowLocalNetworks {
		if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
			return errors.Errorf("local hostname %q is not allowed", host)
		}
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// Not an IP literal; hostname checks above are all we can do
		// without resolving.
		return nil
	}

	if addr.Zone() != "" && !opts.AllowLocalNetworks {
		return errors.Errorf("zoned IP address %q is not allowed", host)
	}
	addr = addr.Unmap()

	if addr.IsUnspecified() || addr.IsMulticast() {
		return errors.Errorf("disallowed IP address %q", host)
	}

	if !opts.AllowLocalNetworks {
		if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
			return errors.Errorf("local network IP %q is not allowed", host)
		}
	}

	return nil
}
