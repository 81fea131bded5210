package didkey

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
)

// jwkFields is the wire shape of the DID-embedded public key: exactly
// kty, crv, x, y, field order irrelevant to a conforming resolver.
type jwkFields struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// Encode produces the did:jwk: identifier embedding pub, the inverse of
// Resolve. Used by the holder to derive its own identity from a freshly
// generated or loaded keypair.
func Encode(pub *ecdsa.PublicKey) (string, error) {
	return encodeWithCurve(pub, SupportedCurveName)
}

// encodeWithCurve builds a DID with an explicit crv value, independent of
// pub's actual curve. Encode calls it with SupportedCurveName; tests call it
// directly to synthesize a DID claiming an unsupported curve.
func encodeWithCurve(pub *ecdsa.PublicKey, crv string) (string, error) {
	size := (pub.Curve.Params().BitSize + 7) / 8
	fields := jwkFields{
		Kty: "EC",
		Crv: crv,
		X:   base64.RawURLEncoding.EncodeToString(pub.X.FillBytes(make([]byte, size))),
		Y:   base64.RawURLEncoding.EncodeToString(pub.Y.FillBytes(make([]byte, size))),
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return prefix + base64.RawURLEncoding.EncodeToString(raw), nil
}
