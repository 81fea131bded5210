package wfe

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/didpop/verifier/assertion"
	"github.com/didpop/verifier/challenge"
	"github.com/didpop/verifier/didkey"
	"github.com/didpop/verifier/log"
	"github.com/didpop/verifier/metrics"
	"github.com/didpop/verifier/nonce"
	"github.com/didpop/verifier/verifypipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

func setupWFE(t *testing.T) (*WebFrontEndImpl, *challenge.Issuer, clock.FakeClock) {
	t.Helper()
	clk := clock.NewFake()
	store := nonce.NewMemStore(clk)
	issuer := challenge.NewIssuer(store, clk, 120*time.Second, "urn:example:verifier")
	pipeline := verifypipeline.NewPipeline(store, clk, verifypipeline.Config{
		Audience: "urn:example:verifier", VerifyMethod: "POST", VerifyPath: "/verify", ClockSkewSecs: 120,
	})
	wfe := NewWebFrontEndImpl(issuer, pipeline, log.NewMock(), metrics.NewNoopScope(), clk)
	return wfe, issuer, clk
}

func TestChallengeReturns200WithNonce(t *testing.T) {
	wfe, _, _ := setupWFE(t)

	req := httptest.NewRequest(http.MethodPost, ChallengePath, nil)
	rw := httptest.NewRecorder()
	wfe.Challenge(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
	var body challengeResponse
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Nonce)
	assert.Equal(t, "urn:example:verifier", body.Audience)
}

func TestChallengeRejectsWrongMethod(t *testing.T) {
	wfe, _, _ := setupWFE(t)

	req := httptest.NewRequest(http.MethodGet, ChallengePath, nil)
	rw := httptest.NewRecorder()
	wfe.Challenge(rw, req)

	assert.NotEqual(t, http.StatusOK, rw.Code)
}

func TestVerifyHappyPath(t *testing.T) {
	wfe, issuer, clk := setupWFE(t)

	c, err := issuer.Issue()
	require.NoError(t, err)

	priv, err := generateKey()
	require.NoError(t, err)
	kid, err := didkey.Encode(&priv.PublicKey)
	require.NoError(t, err)

	now := clk.Now().Unix()
	token, err := assertion.Sign(priv, assertion.SignParams{
		Kid: kid, Aud: "urn:example:verifier", Nonce: c.Nonce,
		HolderID: "did:example:holder-123", Method: "POST", Path: "/verify",
		Iat: now, Nbf: now, Exp: now + 60,
	})
	require.NoError(t, err)

	body, err := json.Marshal(verifyRequest{Token: token})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader(body))
	rw := httptest.NewRecorder()
	wfe.Verify(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
}

func TestVerifyRejectsUnknownNonce(t *testing.T) {
	wfe, _, clk := setupWFE(t)

	priv, err := generateKey()
	require.NoError(t, err)
	kid, err := didkey.Encode(&priv.PublicKey)
	require.NoError(t, err)

	now := clk.Now().Unix()
	token, err := assertion.Sign(priv, assertion.SignParams{
		Kid: kid, Aud: "urn:example:verifier", Nonce: "never-issued",
		HolderID: "did:example:holder-123", Method: "POST", Path: "/verify",
		Iat: now, Nbf: now, Exp: now + 60,
	})
	require.NoError(t, err)

	body, err := json.Marshal(verifyRequest{Token: token})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader(body))
	rw := httptest.NewRecorder()
	wfe.Verify(rw, req)

	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestHealthz(t *testing.T) {
	wfe, _, _ := setupWFE(t)

	req := httptest.NewRequest(http.MethodGet, HealthzPath, nil)
	rw := httptest.NewRecorder()
	wfe.Healthz(rw, req)

	assert.Equal(t, http.StatusOK, rw.Code)
}
