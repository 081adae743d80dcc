package connection

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrInvalidEndpoint is returned when an endpoint cannot be used as a
// registry key.
var ErrInvalidEndpoint = errors.New("invalid stream endpoint")

// Normalize rewrites endpoint into the canonical registry key: http becomes
// ws, https becomes wss, ws and wss pass through. Host, port, path and query
// are preserved. Two endpoints with the same normalized form share one
// connection.
func Normalize(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("%w: empty endpoint", ErrInvalidEndpoint)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidEndpoint, err)
	}
	switch u.Scheme {
	case WebsocketScheme, SecureWebsocketScheme:
	case HTTPScheme:
		u.Scheme = WebsocketScheme
	case HTTPSScheme:
		u.Scheme = SecureWebsocketScheme
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}
	return u.String(), nil
}
