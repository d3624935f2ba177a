// Package hatena talks to Hatena over OAuth 1.0a: the three-legged token
// dance and signed calls to the AtomPub content API.
package hatena

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultInitiateURL  = "https://www.hatena.com/oauth/initiate"
	DefaultTokenURL     = "https://www.hatena.com/oauth/token"
	DefaultAuthorizeURL = "https://www.hatena.ne.jp/oauth/authorize"

	requestTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
)

// Config holds the consumer credentials and provider endpoints.
// Empty endpoints fall back to Hatena's.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	// Scopes are sent with the request-token call, e.g. read_public,write_public.
	Scopes       []string
	InitiateURL  string
	TokenURL     string
	AuthorizeURL string
	HTTPClient   *http.Client
}

// RequestToken is the temporary credential from the initiate step.
type RequestToken struct {
	Token  string
	Secret string
}

// AccessToken is the long-lived credential returned for a verifier.
type AccessToken struct {
	Token    string
	Secret   string
	HatenaID string
}

// Credentials sign content API calls on behalf of a user.
type Credentials struct {
	Token  string
	Secret string
}

// UpstreamError reports a non-2xx or malformed provider response.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("hatena %s failed: %s", e.Op, e.Body)
	}
	return fmt.Sprintf("hatena %s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client signs requests with HMAC-SHA1.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
	nonce      func() string
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config) *Client {
	if cfg.InitiateURL == "" {
		cfg.InitiateURL = DefaultInitiateURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = DefaultAuthorizeURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		now:        time.Now,
		nonce:      func() string { return uuid.New().String() },
	}
}

// oauthRequest describes one signed call.
type oauthRequest struct {
	method      string
	rawURL      string
	token       string
	tokenSecret string
	callback    string
	verifier    string
	// form is sent as an x-www-form-urlencoded body and is part of the signature.
	form url.Values
	// body and contentType are used for non-form payloads, which are not signed.
	body        io.Reader
	contentType string
}

// protocolParams returns the oauth_* parameters for one call.
func (c *Client) protocolParams(r *oauthRequest) map[string]string {
	params := map[string]string{
		"oauth_consumer_key":     c.cfg.ConsumerKey,
		"oauth_nonce":            c.nonce(),
		"oauth_signature_method": SignatureMethod,
		"oauth_timestamp":        strconv.FormatInt(c.now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if r.token != "" {
		params["oauth_token"] = r.token
	}
	if r.callback != "" {
		params["oauth_callback"] = r.callback
	}
	if r.verifier != "" {
		params["oauth_verifier"] = r.verifier
	}
	return params
}

func (c *Client) newSignedRequest(ctx context.Context, r *oauthRequest) (*http.Request, error) {
	u, err := url.Parse(r.rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", r.rawURL, err)
	}

	params := c.protocolParams(r)
	signed := make(url.Values, len(params))
	for k, v := range params {
		signed.Set(k, v)
	}
	for _, extra := range []url.Values{u.Query(), r.form} {
		for k, vs := range extra {
			signed[k] = append(signed[k], vs...)
		}
	}

	base := SignatureBaseString(r.method, BaseURL(u), signed)
	params["oauth_signature"] = Sign(SigningKey(c.cfg.ConsumerSecret, r.tokenSecret), base)

	body, contentType := r.body, r.contentType
	if len(r.form) > 0 {
		body = strings.NewReader(r.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", AuthorizationHeader(params))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// postForm performs a signed call whose response is form encoded.
func (c *Client) postForm(ctx context.Context, op string, r *oauthRequest) (url.Values, error) {
	req, err := c.newSignedRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hatena %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(body))}
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(body))}
	}
	return values, nil
}

// GetRequestToken starts the flow with oauth_callback set to callbackURL.
func (c *Client) GetRequestToken(ctx context.Context, callbackURL string) (*RequestToken, error) {
	r := &oauthRequest{
		method:   http.MethodPost,
		rawURL:   c.cfg.InitiateURL,
		callback: callbackURL,
	}
	if len(c.cfg.Scopes) > 0 {
		r.form = url.Values{"scope": {strings.Join(c.cfg.Scopes, ",")}}
	}

	values, err := c.postForm(ctx, "request token", r)
	if err != nil {
		return nil, err
	}
	tok := &RequestToken{
		Token:  values.Get("oauth_token"),
		Secret: values.Get("oauth_token_secret"),
	}
	if tok.Token == "" || tok.Secret == "" {
		return nil, &UpstreamError{Op: "request token", Body: "invalid request token response"}
	}
	return tok, nil
}

// ExchangeAccessToken trades the authorized request token and verifier for
// an access token. HatenaID comes from the url_name field when present.
func (c *Client) ExchangeAccessToken(ctx context.Context, requestToken, requestTokenSecret, verifier string) (*AccessToken, error) {
	values, err := c.postForm(ctx, "access token", &oauthRequest{
		method:      http.MethodPost,
		rawURL:      c.cfg.TokenURL,
		token:       requestToken,
		tokenSecret: requestTokenSecret,
		verifier:    verifier,
	})
	if err != nil {
		return nil, err
	}
	tok := &AccessToken{
		Token:    values.Get("oauth_token"),
		Secret:   values.Get("oauth_token_secret"),
		HatenaID: values.Get("url_name"),
	}
	if tok.Token == "" || tok.Secret == "" {
		return nil, &UpstreamError{Op: "access token", Body: "invalid access token response"}
	}
	return tok, nil
}

// AuthorizeURL is where the user approves the request token.
func (c *Client) AuthorizeURL(requestToken, state string) string {
	u, err := url.Parse(c.cfg.AuthorizeURL)
	if err != nil {
		u = &url.URL{Scheme: "https", Host: "www.hatena.ne.jp", Path: "/oauth/authorize"}
	}
	q := u.Query()
	q.Set("oauth_token", requestToken)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Do sends a content API request signed with the user's access token.
// Query parameters of rawURL are signed; the body is not.
// The caller closes the response body.
func (c *Client) Do(ctx context.Context, creds Credentials, method, rawURL string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := c.newSignedRequest(ctx, &oauthRequest{
		method:      method,
		rawURL:      rawURL,
		token:       creds.Token,
		tokenSecret: creds.Secret,
		body:        body,
		contentType: contentType,
	})
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

// EntryFeedURL is the AtomPub collection URL of a blog.
func EntryFeedURL(hatenaID, blogID string) string {
	return "https://blog.hatena.ne.jp/" + url.PathEscape(hatenaID) + "/" + url.PathEscape(blogID) + "/atom/entry"
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
