// Package crypto implements the request-signing and at-rest key-protection
// primitives used by the venue adapters: HMAC-SHA256 for Polymarket CLOB,
// RSA-PSS is implemented alongside it in the Kalshi client itself since it
// needs no shared state beyond the loaded private key.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// HMACAuth holds the credentials required for HMAC-authenticated requests
// against the Polymarket CLOB API.
type HMACAuth struct {
	Key        string // API key
	Secret     string // base64-encoded API secret
	Passphrase string // API passphrase
}

// L2Headers returns the HTTP headers for a CLOB API request. The signature
// is HMAC-SHA256(base64-decoded secret, timestamp+method+path+body), base64
// encoded.
//
// Returned header keys: Poly-Api-Key, Poly-Api-Timestamp, Poly-Api-Passphrase,
// Poly-Api-Signature.
func (h *HMACAuth) L2Headers(method, path, body string) map[string]string {
	return h.L2HeadersAt(method, path, body, time.Now().Unix())
}

// L2HeadersAt is like L2Headers but lets the caller supply the Unix
// timestamp, used for deterministic testing.
func (h *HMACAuth) L2HeadersAt(method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)

	secretBytes, err := base64.StdEncoding.DecodeString(h.Secret)
	if err != nil {
		secretBytes = []byte(h.Secret)
	}

	message := ts + method + path + body
	sig := hmacSHA256Base64(secretBytes, message)

	return map[string]string{
		"Poly-Api-Key":        h.Key,
		"Poly-Api-Timestamp":  ts,
		"Poly-Api-Passphrase": h.Passphrase,
		"Poly-Api-Signature":  sig,
	}
}

func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
