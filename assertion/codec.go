// Package assertion implements the signed-token codec (C4): splitting the
// three base64url segments, decoding header and claims, and exposing the
// exact original wire bytes for signature verification. The retained raw
// segments (rather than a re-marshaled form) are the load-bearing part of
// this package — spec.md §4.4 forbids re-serializing the signing input from
// parsed JSON, and §8's L3 makes that an explicit testable property.
// Grounded on other_examples' deep-rent-nexus jwt.go, whose Token type keeps
// the undecoded message bytes alongside the parsed claims for the same
// reason; a hand-rolled split/decode is used instead of go-jose's
// ParseSigned because this wire format puts a self-describing DID directly
// in kid rather than an embedded jwk header parameter, which go-jose's JWS
// object model does not expect.
package assertion

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/didpop/verifier/errors"
)

// Header is the decoded first segment.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid"`
}

// Claims is the decoded second segment. Numeric fields use float64 via
// json.Number-free decoding deliberately; the values are always small
// epoch-seconds integers, so precision is not a concern.
type Claims struct {
	Aud      string  `json:"aud"`
	Nonce    string  `json:"nonce"`
	Sub      string  `json:"sub"`
	HolderID string  `json:"holder_id"`
	Method   string  `json:"method"`
	Path     string  `json:"path"`
	Iat      float64 `json:"iat"`
	Nbf      float64 `json:"nbf"`
	Exp      float64 `json:"exp"`
}

// HolderIdentifier returns claims.sub if present, else claims.holder_id, the
// precedence order spec.md §4.7 stage 4 specifies, and empty string if
// neither is set.
func (c Claims) HolderIdentifier() string {
	if c.Sub != "" {
		return c.Sub
	}
	return c.HolderID
}

// Assertion is a parsed three-segment token. headerSeg and claimsSeg retain
// the original, undecoded base64url bytes — SigningInput is built from
// these, never from re-marshaling Header/Claims.
type Assertion struct {
	Header    Header
	Claims    Claims
	headerSeg string
	claimsSeg string
	sigSeg    string
}

// Parse splits and decodes token. Any structural failure — wrong segment
// count, invalid base64url, invalid JSON — collapses to a single error,
// matching spec.md §4.4's single invalid_token_format code; callers
// distinguish no further.
func Parse(token string) (*Assertion, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.MalformedError("token must have exactly three dot-separated segments, got %d", len(parts))
	}
	headerSeg, claimsSeg, sigSeg := parts[0], parts[1], parts[2]

	headerJSON, err := base64.RawURLEncoding.DecodeString(headerSeg)
	if err != nil {
		return nil, errors.MalformedError("header segment is not valid base64url: %s", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, errors.MalformedError("header segment is not valid JSON: %s", err)
	}

	claimsJSON, err := base64.RawURLEncoding.DecodeString(claimsSeg)
	if err != nil {
		return nil, errors.MalformedError("payload segment is not valid base64url: %s", err)
	}
	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return nil, errors.MalformedError("payload segment is not valid JSON: %s", err)
	}

	if _, err := base64.RawURLEncoding.DecodeString(sigSeg); err != nil {
		return nil, errors.MalformedError("signature segment is not valid base64url: %s", err)
	}

	return &Assertion{
		Header:    header,
		Claims:    claims,
		headerSeg: headerSeg,
		claimsSeg: claimsSeg,
		sigSeg:    sigSeg,
	}, nil
}

// SigningInput returns the exact bytes the signature was computed over:
// the original header and payload base64url segments joined by a single
// period, never re-encoded from the parsed structs.
func (a *Assertion) SigningInput() []byte {
	return []byte(a.headerSeg + "." + a.claimsSeg)
}

// SignatureBytes decodes and returns the raw signature segment.
func (a *Assertion) SignatureBytes() ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(a.sigSeg)
}
