package hatena

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentEncode(t *testing.T) {
	tests := map[string]string{
		"abcXYZ019":    "abcXYZ019",
		"-._~":         "-._~",
		" ":            "%20",
		"!'()*":        "%21%27%28%29%2A",
		"https://cb":   "https%3A%2F%2Fcb",
		"a+b=c&d":      "a%2Bb%3Dc%26d",
		"日本":           "%E6%97%A5%E6%9C%AC",
		"read,write":   "read%2Cwrite",
		"100%":         "100%25",
		"":             "",
		"Ladies + Gen": "Ladies%20%2B%20Gen",
	}
	for in, want := range tests {
		assert.Equal(t, want, PercentEncode(in), "input %q", in)
	}
}

func TestSignatureBaseString(t *testing.T) {
	params := url.Values{
		"oauth_consumer_key":     {"ck"},
		"oauth_nonce":            {"n"},
		"oauth_signature_method": {"HMAC-SHA1"},
		"oauth_timestamp":        {"1"},
		"oauth_version":          {"1.0"},
		"oauth_callback":         {"https://cb"},
	}
	want := "POST&https%3A%2F%2Fexample.test%2Foauth%2Finitiate&" +
		"oauth_callback%3Dhttps%253A%252F%252Fcb%26oauth_consumer_key%3Dck%26oauth_nonce%3Dn" +
		"%26oauth_signature_method%3DHMAC-SHA1%26oauth_timestamp%3D1%26oauth_version%3D1.0"

	got := SignatureBaseString("post", "https://example.test/oauth/initiate", params)
	assert.Equal(t, want, got)

	assert.Equal(t, "EkHqDPJPW2OWD5ygCHdt7rTX7CI=", Sign(SigningKey("cs", ""), got))
	assert.Equal(t, "gWkUc8t/dn5WxVwCfj44SnjrABo=", Sign(SigningKey("cs", "ts"), got))
}

func TestNormalizeParamsSortsEncodedKeys(t *testing.T) {
	got := NormalizeParams(url.Values{
		"b":   {"2"},
		"a b": {"x y"},
		"a":   {"1"},
		"c!":  {"*"},
	})
	assert.Equal(t, "a=1&a%20b=x%20y&b=2&c%21=%2A", got)
}

func TestNormalizeParamsRepeatedKey(t *testing.T) {
	got := NormalizeParams(url.Values{
		"tag": {"z", "a b"},
		"a":   {"1"},
	})
	assert.Equal(t, "a=1&tag=a%20b&tag=z", got)
}

func TestSigningKey(t *testing.T) {
	assert.Equal(t, "cs&", SigningKey("cs", ""))
	assert.Equal(t, "c%26s&t%20s", SigningKey("c&s", "t s"))
}

func TestAuthorizationHeader(t *testing.T) {
	got := AuthorizationHeader(map[string]string{
		"oauth_token":     "t",
		"oauth_signature": "a+b/c=",
		"scope":           "read_public",
		"oauth_nonce":     "n",
	})
	assert.Equal(t, `OAuth oauth_nonce="n", oauth_signature="a%2Bb%2Fc%3D", oauth_token="t"`, got)
}

func TestBaseURL(t *testing.T) {
	u, _ := url.Parse("https://blog.hatena.ne.jp/id/blog/atom/entry?page=2#frag")
	assert.Equal(t, "https://blog.hatena.ne.jp/id/blog/atom/entry", BaseURL(u))
}
