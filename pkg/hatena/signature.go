package hatena

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is mandated by OAuth 1.0a
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// SignatureMethod is the only OAuth 1.0a signature method Hatena accepts.
const SignatureMethod = "HMAC-SHA1"

const upperHex = "0123456789ABCDEF"

// PercentEncode encodes s as RFC 3986 requires for OAuth 1.0a: every byte
// outside ALPHA / DIGIT / "-" / "." / "_" / "~" becomes %XX (uppercase).
func PercentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// NormalizeParams encodes every key and value, sorts by encoded key (then
// value) and joins them as k=v pairs separated by '&'. A repeated key
// contributes one pair per value.
func NormalizeParams(params url.Values) string {
	pairs := make([][2]string, 0, len(params))
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, [2]string{PercentEncode(k), PercentEncode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p[0] + "=" + p[1]
	}
	return strings.Join(parts, "&")
}

// BaseURL strips query and fragment, leaving scheme://host/path.
func BaseURL(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.EscapedPath()
}

// SignatureBaseString builds METHOD&enc(baseURL)&enc(normalized params).
func SignatureBaseString(method, baseURL string, params url.Values) string {
	return strings.ToUpper(method) + "&" + PercentEncode(baseURL) + "&" + PercentEncode(NormalizeParams(params))
}

// SigningKey joins the encoded consumer secret and token secret with '&'.
// The token secret is empty while acquiring a request token.
func SigningKey(consumerSecret, tokenSecret string) string {
	return PercentEncode(consumerSecret) + "&" + PercentEncode(tokenSecret)
}

// Sign returns base64(HMAC-SHA1(key, base)).
func Sign(key, base string) string {
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// AuthorizationHeader renders the oauth_* entries of params as
// `OAuth k1="v1", k2="v2"`, sorted by key.
func AuthorizationHeader(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.HasPrefix(k, "oauth_") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = PercentEncode(k) + `="` + PercentEncode(params[k]) + `"`
	}
	return "OAuth " + strings.Join(parts, ", ")
}
