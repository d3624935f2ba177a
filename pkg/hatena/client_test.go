package hatena

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	consumerKey    = "ck"
	consumerSecret = "cs"
)

// fakeProvider is a minimal OAuth 1.0a provider that checks every signature.
type fakeProvider struct {
	t      *testing.T
	mu     sync.Mutex
	nonces map[string]bool
	// secrets maps issued tokens to their secrets.
	secrets map[string]string
	scope   string
	failAt  string
}

func newFakeProvider(t *testing.T) (*fakeProvider, *httptest.Server) {
	p := &fakeProvider{t: t, nonces: map[string]bool{}, secrets: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/initiate", p.initiate)
	mux.HandleFunc("/oauth/token", p.token)
	mux.HandleFunc("/atom/entry", p.content)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return p, srv
}

func parseAuthHeader(h string) (map[string]string, bool) {
	rest, ok := strings.CutPrefix(h, "OAuth ")
	if !ok {
		return nil, false
	}
	out := map[string]string{}
	for _, part := range strings.Split(rest, ", ") {
		k, v, ok := strings.Cut(part, "=")
		if !ok || len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
			return nil, false
		}
		key, _ := url.PathUnescape(k)
		val, _ := url.PathUnescape(v[1 : len(v)-1])
		out[key] = val
	}
	return out, true
}

// verify recomputes the signature for r and returns the oauth parameters.
func (p *fakeProvider) verify(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	oauth, ok := parseAuthHeader(r.Header.Get("Authorization"))
	if !ok {
		http.Error(w, "bad header", http.StatusUnauthorized)
		return nil, false
	}

	signed := url.Values{}
	for k, v := range oauth {
		if k != "oauth_signature" {
			signed.Set(k, v)
		}
	}
	for k, vs := range r.URL.Query() {
		signed[k] = append(signed[k], vs...)
	}
	if r.Header.Get("Content-Type") == "application/x-www-form-urlencoded" {
		assert.NoError(p.t, r.ParseForm())
		for k, vs := range r.PostForm {
			signed[k] = append(signed[k], vs...)
		}
	}
	params := map[string]string{}
	for k := range signed {
		params[k] = signed.Get(k)
	}

	tokenSecret := ""
	if tok := oauth["oauth_token"]; tok != "" {
		p.mu.Lock()
		tokenSecret = p.secrets[tok]
		p.mu.Unlock()
	}

	base := SignatureBaseString(r.Method, "http://"+r.Host+r.URL.Path, signed)
	if Sign(SigningKey(consumerSecret, tokenSecret), base) != oauth["oauth_signature"] {
		http.Error(w, "signature_invalid", http.StatusUnauthorized)
		return nil, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nonces[oauth["oauth_nonce"]] {
		http.Error(w, "nonce_used", http.StatusUnauthorized)
		return nil, false
	}
	p.nonces[oauth["oauth_nonce"]] = true
	return params, true
}

func (p *fakeProvider) initiate(w http.ResponseWriter, r *http.Request) {
	params, ok := p.verify(w, r)
	if !ok {
		return
	}
	if p.failAt == "initiate" {
		http.Error(w, "oauth_problem=consumer_key_rejected", http.StatusUnauthorized)
		return
	}
	assert.Equal(p.t, consumerKey, params["oauth_consumer_key"])
	assert.NotEmpty(p.t, params["oauth_callback"])
	p.scope = params["scope"]

	p.mu.Lock()
	p.secrets["req-token"] = "req-secret"
	p.mu.Unlock()
	fmt.Fprint(w, "oauth_token=req-token&oauth_token_secret=req-secret&oauth_callback_confirmed=true")
}

func (p *fakeProvider) token(w http.ResponseWriter, r *http.Request) {
	params, ok := p.verify(w, r)
	if !ok {
		return
	}
	if params["oauth_token"] != "req-token" || params["oauth_verifier"] != "good-verifier" {
		http.Error(w, "oauth_problem=verifier_invalid", http.StatusUnauthorized)
		return
	}
	p.mu.Lock()
	p.secrets["access-token"] = "access-secret"
	p.mu.Unlock()
	fmt.Fprint(w, "oauth_token=access-token&oauth_token_secret=access-secret&url_name=jdoe&display_name=J")
}

func (p *fakeProvider) content(w http.ResponseWriter, r *http.Request) {
	params, ok := p.verify(w, r)
	if !ok {
		return
	}
	body, _ := io.ReadAll(r.Body)
	fmt.Fprintf(w, "%s %s %s", params["oauth_token"], r.URL.Query().Get("page"), body)
}

func newTestClient(srv *httptest.Server, scopes ...string) *Client {
	return NewClient(Config{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		Scopes:         scopes,
		InitiateURL:    srv.URL + "/oauth/initiate",
		TokenURL:       srv.URL + "/oauth/token",
		AuthorizeURL:   "https://www.hatena.ne.jp/oauth/authorize",
		HTTPClient:     srv.Client(),
	})
}

func TestThreeLeggedFlow(t *testing.T) {
	p, srv := newFakeProvider(t)
	c := newTestClient(srv, "read_public", "write_public")
	ctx := context.Background()

	rt, err := c.GetRequestToken(ctx, "https://bridge.test/hatena/oauth/callback")
	require.NoError(t, err)
	assert.Equal(t, "req-token", rt.Token)
	assert.Equal(t, "req-secret", rt.Secret)
	assert.Equal(t, "read_public,write_public", p.scope)

	at, err := c.ExchangeAccessToken(ctx, rt.Token, rt.Secret, "good-verifier")
	require.NoError(t, err)
	assert.Equal(t, &AccessToken{Token: "access-token", Secret: "access-secret", HatenaID: "jdoe"}, at)

	resp, err := c.Do(ctx, Credentials{Token: at.Token, Secret: at.Secret},
		http.MethodPost, srv.URL+"/atom/entry?page=2", strings.NewReader("<entry/>"), "application/xml")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "access-token 2 <entry/>", string(body))
}

func TestDoSignsRepeatedQueryKeys(t *testing.T) {
	_, srv := newFakeProvider(t)
	c := newTestClient(srv)

	resp, err := c.Do(context.Background(), Credentials{Token: "access-token", Secret: ""},
		http.MethodGet, srv.URL+"/atom/entry?page=3&category=go&category=oauth", nil, "")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "access-token 3 ", string(body))
}

func TestExchangeRejectedVerifier(t *testing.T) {
	_, srv := newFakeProvider(t)
	c := newTestClient(srv)
	ctx := context.Background()

	rt, err := c.GetRequestToken(ctx, "https://cb")
	require.NoError(t, err)

	_, err = c.ExchangeAccessToken(ctx, rt.Token, rt.Secret, "bad-verifier")
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusUnauthorized, upstream.StatusCode)
	assert.Contains(t, upstream.Body, "verifier_invalid")
}

func TestWrongTokenSecretFailsSignature(t *testing.T) {
	_, srv := newFakeProvider(t)
	c := newTestClient(srv)
	ctx := context.Background()

	rt, err := c.GetRequestToken(ctx, "https://cb")
	require.NoError(t, err)

	_, err = c.ExchangeAccessToken(ctx, rt.Token, "not-the-secret", "good-verifier")
	assert.ErrorContains(t, err, "signature_invalid")
}

func TestRequestTokenFailures(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		p, srv := newFakeProvider(t)
		p.failAt = "initiate"
		_, err := newTestClient(srv).GetRequestToken(context.Background(), "https://cb")
		assert.ErrorContains(t, err, "status 401")
	})

	t.Run("missing secret", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "oauth_token=only")
		}))
		defer srv.Close()
		_, err := newTestClient(srv).GetRequestToken(context.Background(), "https://cb")
		var upstream *UpstreamError
		assert.True(t, errors.As(err, &upstream))
	})

	t.Run("unreachable", func(t *testing.T) {
		c := NewClient(Config{
			ConsumerKey:    consumerKey,
			ConsumerSecret: consumerSecret,
			InitiateURL:    "http://127.0.0.1:1/oauth/initiate",
			HTTPClient:     &http.Client{Timeout: time.Second},
		})
		_, err := c.GetRequestToken(context.Background(), "https://cb")
		assert.Error(t, err)
	})
}

func TestFreshNoncePerCall(t *testing.T) {
	_, srv := newFakeProvider(t)
	c := newTestClient(srv)
	ctx := context.Background()

	// the provider rejects a replayed nonce, so two successes prove fresh nonces
	_, err := c.GetRequestToken(ctx, "https://cb")
	require.NoError(t, err)
	_, err = c.GetRequestToken(ctx, "https://cb")
	require.NoError(t, err)
}

func TestProtocolParams(t *testing.T) {
	c := NewClient(Config{ConsumerKey: consumerKey})
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	c.nonce = func() string { return "fixed" }

	params := c.protocolParams(&oauthRequest{token: "t", verifier: "v"})
	assert.Equal(t, map[string]string{
		"oauth_consumer_key":     consumerKey,
		"oauth_nonce":            "fixed",
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        "1700000000",
		"oauth_version":          "1.0",
		"oauth_token":            "t",
		"oauth_verifier":         "v",
	}, params)
}

func TestAuthorizeURL(t *testing.T) {
	c := NewClient(Config{})
	got, err := url.Parse(c.AuthorizeURL("req token", "st"))
	require.NoError(t, err)
	assert.Equal(t, "www.hatena.ne.jp", got.Host)
	assert.Equal(t, "/oauth/authorize", got.Path)
	assert.Equal(t, "req token", got.Query().Get("oauth_token"))
	assert.Equal(t, "st", got.Query().Get("state"))
}

func TestEntryFeedURL(t *testing.T) {
	assert.Equal(t, "https://blog.hatena.ne.jp/jdoe/jdoe.hatenablog.com/atom/entry",
		EntryFeedURL("jdoe", "jdoe.hatenablog.com"))
}
