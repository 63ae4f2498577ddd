package downstream

import (
	"net/http"
	"strings"
)

// hopHeaders are never copied between the caller and the downstream node. Content-Length
// is recomputed for the outgoing body and Accept-Encoding is left to the transport so
// bodies arrive uncompressed and can be inspected.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Transfer-Encoding",
	"Te",
	"Trailer",
	"Upgrade",
	"Content-Length",
	"Accept-Encoding",
}

// FilterHeaders returns a copy of h without connection management headers, including
// every header named by the Connection header itself.
func FilterHeaders(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		return http.Header{}
	}

	for _, value := range h.Values("Connection") {
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Del(name)
			}
		}
	}

	for _, name := range hopHeaders {
		out.Del(name)
	}

	return out
}
