package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestL2HeadersAt_ProducesExpectedSignature(t *testing.T) {
	auth := &HMACAuth{Key: "api-key", Secret: base64.StdEncoding.EncodeToString([]byte("shh")), Passphrase: "phrase"}

	headers := auth.L2HeadersAt("POST", "/orders", `{"side":"BUY"}`, 1700000000)

	assert.Equal(t, "api-key", headers["Poly-Api-Key"])
	assert.Equal(t, "1700000000", headers["Poly-Api-Timestamp"])
	assert.Equal(t, "phrase", headers["Poly-Api-Passphrase"])

	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write([]byte("1700000000" + "POST" + "/orders" + `{"side":"BUY"}`))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, headers["Poly-Api-Signature"])
}

func TestL2HeadersAt_FallsBackToRawSecretWhenNotBase64(t *testing.T) {
	auth := &HMACAuth{Key: "k", Secret: "not-base64!!", Passphrase: "p"}
	headers := auth.L2HeadersAt("GET", "/markets", "", 1)
	assert.NotEmpty(t, headers["Poly-Api-Signature"])
}

func TestL2Headers_UsesCurrentTimestamp(t *testing.T) {
	auth := &HMACAuth{Key: "k", Secret: "c2VjcmV0", Passphrase: "p"}
	headers := auth.L2Headers("GET", "/markets", "")
	ts, err := strconv.ParseInt(headers["Poly-Api-Timestamp"], 10, 64)
	assert.NoError(t, err)
	assert.Greater(t, ts, int64(0))
}

func TestString_RedactsKeyAndSecret(t *testing.T) {
	auth := &HMACAuth{Key: "abcdefgh", Secret: "zyxwvuts", Passphrase: "p"}
	s := auth.String()
	assert.Contains(t, s, "abcd****")
	assert.Contains(t, s, "zyxw****")
	assert.NotContains(t, s, "efgh")
	assert.NotContains(t, s, "vuts")
}

func TestString_RedactsShortValuesFully(t *testing.T) {
	auth := &HMACAuth{Key: "ab", Secret: "cd", Passphrase: "p"}
	s := auth.String()
	assert.Contains(t, s, "****")
}
