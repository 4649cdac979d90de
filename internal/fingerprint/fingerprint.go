// Package fingerprint derives a stable device identity for a request.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// Header is the client-supplied fingerprint header. Its absence must
// not break the flow: we fall back to a derived fingerprint.
const Header = "X-Device-Fingerprint"

// maxClientFingerprintLen caps the opaque client value so a hostile
// client cannot stuff megabytes into the devices table.
const maxClientFingerprintLen = 128

// FromRequest returns the device fingerprint for a request: the
// sanitized X-Device-Fingerprint header when present, otherwise a
// sha256 digest over client IP, User-Agent and Accept-Language.
func FromRequest(r *http.Request) string {
	if fp := sanitize(r.Header.Get(Header)); fp != "" {
		return fp
	}
	return Derive(ClientIP(r), r.UserAgent(), r.Header.Get("Accept-Language"))
}

// Derive computes the fallback fingerprint from request attributes.
func Derive(ip, userAgent, acceptLanguage string) string {
	h := sha256.New()
	h.Write([]byte(ip))
	h.Write([]byte{'|'})
	h.Write([]byte(userAgent))
	h.Write([]byte{'|'})
	h.Write([]byte(acceptLanguage))
	return hex.EncodeToString(h.Sum(nil))
}

// ClientIP extracts the originating client IP, honoring proxy headers
// in precedence order: X-Forwarded-For (first hop), X-Real-IP, then
// the connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func sanitize(fp string) string {
	fp = strings.TrimSpace(fp)
	if len(fp) > maxClientFingerprintLen {
		fp = fp[:maxClientFingerprintLen]
	}
	for _, c := range fp {
		if c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return fp
}
