package assertion

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signFixture(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	now := time.Now().Unix()
	token, err := Sign(priv, SignParams{
		Kid: "did:jwk:fixture", Aud: "urn:example:verifier", Nonce: "N1",
		HolderID: "did:example:holder-123", Method: "POST", Path: "/verify",
		Iat: now, Nbf: now, Exp: now + 120,
	})
	require.NoError(t, err)
	return priv, token
}

func TestParseRoundTripsClaims(t *testing.T) {
	_, token := signFixture(t)
	a, err := Parse(token)
	require.NoError(t, err)

	assert.Equal(t, "ES256", a.Header.Alg)
	assert.Equal(t, "did:jwk:fixture", a.Header.Kid)
	assert.Equal(t, "N1", a.Claims.Nonce)
	assert.Equal(t, "did:example:holder-123", a.Claims.HolderIdentifier())
}

func TestParseRejectsWrongSegmentCount(t *testing.T) {
	_, err := Parse("only.two")
	assert.Error(t, err)
	_, err = Parse("way.too.many.segments")
	assert.Error(t, err)
}

func TestParseRejectsBadBase64InEachSegment(t *testing.T) {
	_, token := signFixture(t)
	parts := strings.SplitN(token, ".", 3)

	_, err := Parse("!!!." + parts[1] + "." + parts[2])
	assert.Error(t, err)
	_, err = Parse(parts[0] + ".!!!." + parts[2])
	assert.Error(t, err)
	_, err = Parse(parts[0] + "." + parts[1] + ".!!!")
	assert.Error(t, err)
}

// TestSigningInputUsesRawSegmentsNotParsedClaims covers L3: two tokens
// whose payload segments decode to identical Claims values but differ at
// the byte level (different field order) must produce different signing
// input, because SigningInput is defined over the original base64url
// bytes, not a re-marshaling of the parsed struct.
func TestSigningInputUsesRawSegmentsNotParsedClaims(t *testing.T) {
	headerSeg := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"ES256","typ":"JWT","kid":"did:jwk:fixture"}`))
	claimsA := base64.RawURLEncoding.EncodeToString([]byte(`{"aud":"urn:example:verifier","nonce":"N1"}`))
	claimsB := base64.RawURLEncoding.EncodeToString([]byte(`{"nonce":"N1","aud":"urn:example:verifier"}`))
	sigSeg := base64.RawURLEncoding.EncodeToString([]byte("sig"))

	a, err := Parse(headerSeg + "." + claimsA + "." + sigSeg)
	require.NoError(t, err)
	b, err := Parse(headerSeg + "." + claimsB + "." + sigSeg)
	require.NoError(t, err)

	assert.Equal(t, a.Claims.Aud, b.Claims.Aud)
	assert.Equal(t, a.Claims.Nonce, b.Claims.Nonce)
	assert.NotEqual(t, a.SigningInput(), b.SigningInput(), "signing input must track raw bytes, not parsed claim equality")
}
