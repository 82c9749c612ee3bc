package conn

import (
	"fmt"
	"net/url"
)

// DefaultPath is the well-known websocket endpoint on the game host.
const DefaultPath = "/ws"

// endpointURL derives the websocket URL from the page-style origin,
// upgrading the scheme for secure contexts (https -> wss, http -> ws).
func endpointURL(origin, path string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", origin, err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}

	if path == "" {
		path = DefaultPath
	}
	u.Path = path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
