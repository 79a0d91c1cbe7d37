package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the originating client address. The server is expected to
// run behind a reverse proxy, so the first X-Forwarded-For entry wins over the
// socket peer address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
