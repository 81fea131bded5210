// Package didkey implements the DID key resolver (C3): parsing a
// self-certifying did:jwk identifier and reconstructing the public key it
// embeds, with no network resolution of any kind. The JWK-to-ecdsa.PublicKey
// reconstruction is delegated to gopkg.in/go-jose/go-jose.v2's
// JSONWebKey — the teacher's own currently-vendored JOSE library, already
// exercised elsewhere in the teacher snapshot for the same {kty,crv,x,y}
// shape (wfe/jose_test.go builds a jose.JsonWebKey wrapping an
// *ecdsa.PublicKey directly).
package didkey

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/didpop/verifier/errors"
	jose "gopkg.in/go-jose/go-jose.v2"
)

const prefix = "did:jwk:"

// rawJWK peeks at the kty and crv fields of the DID-embedded key before the
// full decode; x and y are read later by jose.JSONWebKey. Unknown top-level
// keys are tolerated (jose.JSONWebKey ignores them) rather than rejected,
// per spec.md §6's forward-compatibility note.
type rawJWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
}

// Resolve parses did and returns the ECDSA public key it embeds. It never
// performs network I/O; the DID is self-contained by construction.
func Resolve(did string) (*ecdsa.PublicKey, error) {
	if !strings.HasPrefix(did, prefix) {
		return nil, errors.MalformedError("did is missing the %q prefix", prefix)
	}
	encoded := strings.TrimPrefix(did, prefix)

	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.MalformedError("did payload is not valid base64url: %s", err)
	}

	var peek rawJWK
	if err := json.Unmarshal(decoded, &peek); err != nil {
		return nil, errors.MalformedError("did payload is not valid JSON: %s", err)
	}
	if peek.Kty != "EC" {
		return nil, errors.UnsupportedCurveError("unsupported key type %q, want EC", peek.Kty)
	}

	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(decoded); err != nil {
		return nil, errors.KeyResolutionError("could not reconstruct key from did: %s", err)
	}

	pub, ok := jwk.Key.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.UnsupportedCurveError("did key is not an ECDSA public key")
	}
	if pub.Curve == nil || pub.X == nil || pub.Y == nil {
		return nil, errors.KeyResolutionError("did key is missing curve point coordinates")
	}
	if pub.Curve.Params().Name != SupportedCurveName {
		return nil, errors.UnsupportedCurveError("unsupported curve %q, want %q", peek.Crv, SupportedCurveName)
	}

	return pub, nil
}

// SupportedCurveName is the only named curve this verifier accepts, per
// spec.md's Non-goals ("signature algorithms other than ECDSA over a single
// named prime curve"). crypto/elliptic names the matching curve "P-256";
// the DID's JSON uses the JOSE name "P-256" as well, so no translation is
// needed between the two.
const SupportedCurveName = "P-256"
