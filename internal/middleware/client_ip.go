package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type ctxKey int

const ctxClientIPKey ctxKey = iota + 1

// Forwarding headers consulted when the payload carries no IP, in
// preference order: proxy chain first entry, then the CDN client-IP
// header, then the generic real-IP header.
const (
	headerForwardedFor   = "X-Forwarded-For"
	headerCFConnectingIP = "CF-Connecting-IP"
	headerRealIP         = "X-Real-IP"
)

// ClientIPFromContext returns the IP derived by ClientIP middleware.
func ClientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxClientIPKey).(string)
	return v
}

// ClientIP resolves the requester's IP from forwarding headers and
// attaches it to the request context. Falls back to RemoteAddr, and to
// loopback only as a dev/test last resort.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := DeriveClientIP(r)
		ctx := context.WithValue(r.Context(), ctxClientIPKey, ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeriveClientIP implements the header preference order.
func DeriveClientIP(r *http.Request) string {
	if v := r.Header.Get(headerForwardedFor); v != "" {
		// Left-most entry is the original client.
		parts := strings.Split(v, ",")
		for _, p := range parts {
			if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
				return ip.String()
			}
		}
	}
	if v := strings.TrimSpace(r.Header.Get(headerCFConnectingIP)); v != "" {
		if ip := net.ParseIP(v); ip != nil {
			return ip.String()
		}
	}
	if v := strings.TrimSpace(r.Header.Get(headerRealIP)); v != "" {
		if ip := net.ParseIP(v); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(r.RemoteAddr); ip != nil {
		return ip.String()
	}
	return "127.0.0.1"
}
