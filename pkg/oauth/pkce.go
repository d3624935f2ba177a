package oauth

import (
	"crypto/subtle"

	"github.com/go-training/hatena-mcp/pkg/core"
	"golang.org/x/oauth2"
)

// ValidChallengeMethod reports whether method may be recorded at /authorize.
// An empty method is allowed and means plain.
func ValidChallengeMethod(method string) bool {
	switch method {
	case "", core.CodeChallengePlain, core.CodeChallengeS256:
		return true
	default:
		return false
	}
}

// VerifyPKCE checks verifier against the challenge recorded with the code.
// S256 compares base64url(SHA-256(verifier)) without padding; plain and an
// empty method compare the verifier itself.
func VerifyPKCE(challenge, method, verifier string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	derived := verifier
	if method == core.CodeChallengeS256 {
		derived = oauth2.S256ChallengeFromVerifier(verifier)
	}
	return subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) == 1
}
