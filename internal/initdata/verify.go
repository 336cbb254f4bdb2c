// Package initdata validates and decodes Telegram WebApp initData blobs.
// Docs: https://core.telegram.org/bots/webapps#validating-data-received-via-the-web-app
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const (
	hashField = "hash"
	webAppKey = "WebAppData"
	lineSep   = "\n"
	pairSep   = "="
)

// Verifier checks initData signatures for a single bot. The derived secret is
// computed once from the bot token.
type Verifier struct {
	secret []byte
}

func NewVerifier(botToken string) *Verifier {
	m := hmac.New(sha256.New, []byte(webAppKey))
	m.Write([]byte(botToken))
	return &Verifier{secret: m.Sum(nil)}
}

// Verify reports whether blob carries a valid hash. Malformed input yields false.
func (v *Verifier) Verify(blob string) bool {
	if v == nil || blob == "" {
		return false
	}
	fields, err := Parse(blob)
	if err != nil {
		return false
	}
	got, ok := fields[hashField]
	if !ok {
		return false
	}
	want := v.Sign(fields)
	return hmac.Equal([]byte(want), []byte(got))
}

// Sign returns the lowercase hex signature over every field except hash.
func (v *Verifier) Sign(fields map[string]string) string {
	m := hmac.New(sha256.New, v.secret)
	m.Write([]byte(CheckString(fields)))
	return hex.EncodeToString(m.Sum(nil))
}

// Encode returns fields as a query string with a freshly computed hash
// appended. Any hash already present in fields is replaced.
func (v *Verifier) Encode(fields map[string]string) string {
	vals := url.Values{}
	for k, val := range fields {
		if k == hashField {
			continue
		}
		vals.Set(k, val)
	}
	vals.Set(hashField, v.Sign(fields))
	return vals.Encode()
}

// CheckString builds the data-check-string: key=value lines except hash,
// sorted by whole line and joined with "\n".
func CheckString(fields map[string]string) string {
	lines := make([]string, 0, len(fields))
	for k, val := range fields {
		if k == hashField {
			continue
		}
		lines = append(lines, k+pairSep+val)
	}
	sort.Strings(lines)
	return strings.Join(lines, lineSep)
}
