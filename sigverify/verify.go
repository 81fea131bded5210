// Package sigverify implements the signature engine (C5): algorithm
// matching, temporal validation, and constant-time ECDSA verification, all
// merged into a single failure code by design — spec.md §4.5 and §9
// deliberately forbid distinguishing "bad signature" from "expired" at the
// wire boundary, to avoid giving an attacker a timing or content oracle.
// Grounded on wfe/jose_test.go's TestCheckAlgorithm (alg-vs-key-type
// matching) and other_examples' agntcy-dir did.go verifySignatureFromVM
// dispatch-by-key-type pattern; verification itself is crypto/ecdsa, which
// is what every JOSE library in the pack bottoms out in for this curve.
package sigverify

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"math/big"
	"time"

	"github.com/didpop/verifier/assertion"
	"github.com/didpop/verifier/errors"
)

// Params bundles the inputs the pipeline has already gathered by the time
// it reaches the signature stage.
type Params struct {
	Now      time.Time
	SkewSecs int64
}

// Verify checks a.Header.Alg against the key's algorithm family, verifies
// the ECDSA signature over a.SigningInput(), and checks the temporal claims
// with the configured symmetric skew. Every failure path returns an error of
// type errors.SignatureInvalid; callers must not inspect it beyond presence.
func Verify(a *assertion.Assertion, pub *ecdsa.PublicKey, params Params) error {
	if a.Header.Alg != "ES256" {
		return errors.SignatureInvalidError("alg/key mismatch or unsupported algorithm")
	}
	if pub.Curve == nil || pub.Curve.Params().Name != "P-256" {
		return errors.SignatureInvalidError("key curve does not match alg")
	}

	sigBytes, err := a.SignatureBytes()
	if err != nil {
		return errors.SignatureInvalidError("malformed signature encoding")
	}
	size := (pub.Curve.Params().BitSize + 7) / 8
	if len(sigBytes) != 2*size {
		return errors.SignatureInvalidError("signature has unexpected length")
	}
	r := new(big.Int).SetBytes(sigBytes[:size])
	s := new(big.Int).SetBytes(sigBytes[size:])

	digest := sha256.Sum256(a.SigningInput())
	if !ecdsa.Verify(pub, digest[:], r, s) {
		return errors.SignatureInvalidError("signature does not verify")
	}

	skew := time.Duration(params.SkewSecs) * time.Second
	nbf := time.Unix(int64(a.Claims.Nbf), 0)
	exp := time.Unix(int64(a.Claims.Exp), 0)
	if params.Now.Before(nbf.Add(-skew)) || params.Now.After(exp.Add(skew)) {
		return errors.SignatureInvalidError("token not within its validity window")
	}

	return nil
}
