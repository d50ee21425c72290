package middleware

import (
	"context"
	"net/http"
)

type peerAddrKey struct{}

// PeerAddr records the address of the TCP peer. It must run before
// chi's RealIP, which rewrites RemoteAddr from client supplied headers.
func PeerAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerAddrKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func peerAddr(r *http.Request) string {
	if addr, ok := r.Context().Value(peerAddrKey{}).(string); ok {
		return addr
	}
	return r.RemoteAddr
}
