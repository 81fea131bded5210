package verifypipeline

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/didpop/verifier/assertion"
	"github.com/didpop/verifier/didkey"
	"github.com/didpop/verifier/nonce"
	"github.com/didpop/verifier/probs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAudience = "urn:example:verifier"
	testMethod   = "POST"
	testPath     = "/verify"
)

type harness struct {
	clk      clock.FakeClock
	store    *nonce.MemStore
	pipeline *Pipeline
	priv     *ecdsa.PrivateKey
	kid      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewFake()
	store := nonce.NewMemStore(clk)
	pipeline := NewPipeline(store, clk, Config{
		Audience: testAudience, VerifyMethod: testMethod, VerifyPath: testPath, ClockSkewSecs: 120,
	})
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	kid, err := didkey.Encode(&priv.PublicKey)
	require.NoError(t, err)
	return &harness{clk: clk, store: store, pipeline: pipeline, priv: priv, kid: kid}
}

func (h *harness) issueNonce(t *testing.T, ttl time.Duration) string {
	t.Helper()
	n := "fixed-test-nonce"
	require.True(t, h.store.TryAdd(n, nonce.Record{ExpiresAt: h.clk.Now().Add(ttl)}))
	return n
}

func (h *harness) sign(t *testing.T, overrides func(*assertion.SignParams)) string {
	t.Helper()
	now := h.clk.Now().Unix()
	params := assertion.SignParams{
		Kid: h.kid, Aud: testAudience, Nonce: "fixed-test-nonce",
		HolderID: "did:example:holder-123", Method: testMethod, Path: testPath,
		Iat: now, Nbf: now, Exp: now + 120,
	}
	if overrides != nil {
		overrides(&params)
	}
	token, err := assertion.Sign(h.priv, params)
	require.NoError(t, err)
	return token
}

func TestHappyPath(t *testing.T) {
	h := newHarness(t)
	h.issueNonce(t, 120*time.Second)
	token := h.sign(t, nil)

	out := h.pipeline.Verify(token, testMethod, testPath)
	require.NotNil(t, out.Ok)
	assert.Equal(t, "valid", out.Ok.Status)
	assert.Equal(t, "did:example:holder-123", out.Ok.HolderID)
	assert.Equal(t, h.kid, out.Ok.Kid)
}

func TestReplayIsRejected(t *testing.T) {
	h := newHarness(t)
	h.issueNonce(t, 120*time.Second)
	token := h.sign(t, nil)

	first := h.pipeline.Verify(token, testMethod, testPath)
	require.NotNil(t, first.Ok)

	second := h.pipeline.Verify(token, testMethod, testPath)
	require.NotNil(t, second.Prob)
	assert.Equal(t, probs.NonceUsed, second.Prob.Code)
}

func TestTamperedPayloadIsRejected(t *testing.T) {
	h := newHarness(t)
	h.issueNonce(t, 120*time.Second)
	token := h.sign(t, nil)

	parts := strings.SplitN(token, ".", 3)
	// Flip one byte of the base64url payload segment.
	mutated := []byte(parts[1])
	mutated[0] ^= 0x01
	tampered := parts[0] + "." + string(mutated) + "." + parts[2]

	out := h.pipeline.Verify(tampered, testMethod, testPath)
	require.NotNil(t, out.Prob)
	if out.Prob.Code != probs.SigInvalidOrExpired && out.Prob.Code != probs.InvalidTokenFormat {
		t.Fatalf("expected sig_invalid_or_expired or invalid_token_format, got %s", out.Prob.Code)
	}
}

func TestWrongAudienceFailsBeforeSignature(t *testing.T) {
	h := newHarness(t)
	h.issueNonce(t, 120*time.Second)
	token := h.sign(t, func(p *assertion.SignParams) { p.Aud = "urn:example:other" })

	out := h.pipeline.Verify(token, testMethod, testPath)
	require.NotNil(t, out.Prob)
	assert.Equal(t, probs.AudMismatch, out.Prob.Code)
}

func TestExpiredNonceIsRejected(t *testing.T) {
	h := newHarness(t)
	h.issueNonce(t, 120*time.Second)
	token := h.sign(t, nil)

	h.clk.Add(121 * time.Second)
	out := h.pipeline.Verify(token, testMethod, testPath)
	require.NotNil(t, out.Prob)
	assert.Equal(t, probs.NonceExpired, out.Prob.Code)
}

func TestNonceExactlyAtExpiryIsAccepted(t *testing.T) {
	h := newHarness(t)
	h.issueNonce(t, 120*time.Second)
	token := h.sign(t, nil)

	h.clk.Add(120 * time.Second)
	out := h.pipeline.Verify(token, testMethod, testPath)
	assert.NotNil(t, out.Ok)
}

func TestUnknownNonceIsRejected(t *testing.T) {
	h := newHarness(t)
	token := h.sign(t, nil) // nonce was never issued

	out := h.pipeline.Verify(token, testMethod, testPath)
	require.NotNil(t, out.Prob)
	assert.Equal(t, probs.InvalidNonce, out.Prob.Code)
}

func TestUnsupportedCurveFailsKeyResolution(t *testing.T) {
	h := newHarness(t)
	h.issueNonce(t, 120*time.Second)

	// A syntactically valid did:jwk whose crv is a supported JOSE curve
	// name but not the one this verifier accepts.
	badKid := "did:jwk:eyJrdHkiOiJFQyIsImNydiI6IlAtMzg0IiwieCI6IkFBIiwieSI6IkFBIn0"
	token := h.sign(t, func(p *assertion.SignParams) { p.Kid = badKid })

	out := h.pipeline.Verify(token, testMethod, testPath)
	require.NotNil(t, out.Prob)
	assert.Equal(t, probs.KeyResolutionFailed, out.Prob.Code)
}

func TestMethodCaseInsensitiveButPathExact(t *testing.T) {
	h := newHarness(t)
	h.issueNonce(t, 120*time.Second)
	token := h.sign(t, func(p *assertion.SignParams) { p.Method = "post" })

	out := h.pipeline.Verify(token, testMethod, testPath)
	assert.NotNil(t, out.Ok, "lowercase method claim must still be accepted")

	h2 := newHarness(t)
	h2.issueNonce(t, 120*time.Second)
	token2 := h2.sign(t, func(p *assertion.SignParams) { p.Path = "/verify/" })
	out2 := h2.pipeline.Verify(token2, testMethod, testPath)
	require.NotNil(t, out2.Prob)
	assert.Equal(t, probs.PathMismatch, out2.Prob.Code)
}

// TestConcurrentVerifyExactlyOneSucceeds covers IV1 and spec.md §5's
// concurrency hardening: of two concurrent verifications of the same fresh
// nonce, exactly one must return Ok.
func TestConcurrentVerifyExactlyOneSucceeds(t *testing.T) {
	h := newHarness(t)
	h.issueNonce(t, 120*time.Second)
	token := h.sign(t, nil)

	const attempts = 32
	var wg sync.WaitGroup
	outcomes := make([]Outcome, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = h.pipeline.Verify(token, testMethod, testPath)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, o := range outcomes {
		if o.Ok != nil {
			successes++
		} else {
			assert.Equal(t, probs.NonceUsed, o.Prob.Code)
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent verify of the same nonce may succeed")
}
