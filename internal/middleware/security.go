package middleware

import (
	"net/http"
)

// TokenSource returns the current bearer credential, or "" for anonymous requests
type TokenSource func() string

// Headers adds the default client headers to every outgoing request
func Headers(userAgent string, token TokenSource) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			// RoundTrippers must not modify the caller's request
			r = r.Clone(r.Context())

			if r.Header.Get("Accept") == "" {
				r.Header.Set("Accept", "application/json")
			}
			if userAgent != "" {
				r.Header.Set("User-Agent", userAgent)
			}

			// Explicit Authorization on the request wins over the session credential
			if token != nil && r.Header.Get("Authorization") == "" {
				if t := token(); t != "" {
					r.Header.Set("Authorization", "Bearer "+t)
				}
			}

			return next.RoundTrip(r)
		})
	}
}

// SecurityHeaders adds security headers to preview server responses
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		w.Header().Set("Referrer-Policy", "no-referrer")

		// The preview is inline SVG and JSON only
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; img-src 'self' data:")

		next.ServeHTTP(w, r)
	})
}
