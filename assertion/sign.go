package assertion

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// SignParams carries everything the holder needs to produce a wire token
// for one /verify call, per spec.md §6's payload claim set.
type SignParams struct {
	Kid      string
	Aud      string
	Nonce    string
	HolderID string
	Method   string
	Path     string
	Iat      int64
	Nbf      int64
	Exp      int64
}

// Sign builds and signs a three-segment assertion over params, using raw
// r||s concatenation (not DER) as spec.md §6 requires of the wire format.
// size is the curve's coordinate byte width (32 for P-256).
func Sign(priv *ecdsa.PrivateKey, params SignParams) (string, error) {
	header := Header{Alg: "ES256", Typ: "JWT", Kid: params.Kid}
	claims := Claims{
		Aud:      params.Aud,
		Nonce:    params.Nonce,
		HolderID: params.HolderID,
		Method:   params.Method,
		Path:     params.Path,
		Iat:      float64(params.Iat),
		Nbf:      float64(params.Nbf),
		Exp:      float64(params.Exp),
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	headerSeg := base64.RawURLEncoding.EncodeToString(headerJSON)
	claimsSeg := base64.RawURLEncoding.EncodeToString(claimsJSON)
	signingInput := []byte(headerSeg + "." + claimsSeg)

	digest := sha256.Sum256(signingInput)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return "", err
	}

	size := (priv.Curve.Params().BitSize + 7) / 8
	sigBytes := make([]byte, 2*size)
	rBytes := r.FillBytes(make([]byte, size))
	sBytes := s.FillBytes(make([]byte, size))
	copy(sigBytes[:size], rBytes)
	copy(sigBytes[size:], sBytes)

	sigSeg := base64.RawURLEncoding.EncodeToString(sigBytes)

	return headerSeg + "." + claimsSeg + "." + sigSeg, nil
}
