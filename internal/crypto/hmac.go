package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Credentials are the L2 API credentials issued by the CLOB after the L1
// handshake.
type Credentials struct {
	Key        string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Complete reports whether all three parts are present.
func (c Credentials) Complete() bool {
	return c.Key != "" && c.Secret != "" && c.Passphrase != ""
}

// L2Headers returns the HMAC headers for an authenticated CLOB request made
// now.
func (c Credentials) L2Headers(address, method, path, body string) (map[string]string, error) {
	return c.L2HeadersAt(address, method, path, body, time.Now().Unix())
}

// L2HeadersAt is L2Headers with a caller-supplied unix timestamp.
//
// The signature is HMAC-SHA256 over timestamp+method+path+body keyed by the
// base64-decoded secret, encoded as url-safe base64.
func (c Credentials) L2HeadersAt(address, method, path, body string, unixTS int64) (map[string]string, error) {
	secret, err := base64.StdEncoding.DecodeString(sanitizeSecret(c.Secret))
	if err != nil {
		return nil, fmt.Errorf("crypto/hmac: decode secret: %w", err)
	}

	ts := strconv.FormatInt(unixTS, 10)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts + method + path + body))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    c.Key,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": c.Passphrase,
		"POLY_SIGNATURE":  sig,
	}, nil
}

// sanitizeSecret accepts url-safe base64, drops stray characters and
// restores padding.
func sanitizeSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	secret = strings.NewReplacer("-", "+", "_", "/").Replace(secret)

	var b strings.Builder
	b.Grow(len(secret) + 3)
	for i := 0; i < len(secret); i++ {
		ch := secret[i]
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9',
			ch == '+', ch == '/':
			b.WriteByte(ch)
		}
	}
	out := b.String()
	if rem := len(out) % 4; rem != 0 {
		out += strings.Repeat("=", 4-rem)
	}
	return out
}

// String returns a redacted representation suitable for logging.
func (c Credentials) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("Credentials{key=%s, secret=%s}", redact(c.Key), redact(c.Secret))
}
