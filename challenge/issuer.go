// Package challenge implements the challenge issuer (C6): minting a fresh,
// cryptographically random nonce and recording it in the nonce store.
// Grounded on the real boulder/nonce package's Nonce() method (crypto/rand
// read, base64url encode with no padding) and on wfe2.HandleFunc's
// per-request wfe.nonceService.Nonce() call pattern.
package challenge

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/jmhodges/clock"
	"github.com/didpop/verifier/errors"
	"github.com/didpop/verifier/nonce"
)

// Challenge is the value returned to the holder from a successful issue
// call, per spec.md §3.
type Challenge struct {
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
	Audience  string    `json:"audience"`
}

// Issuer mints challenges and inserts their nonces into a Store.
type Issuer struct {
	store    nonce.Store
	clk      clock.Clock
	ttl      time.Duration
	audience string
}

// NewIssuer constructs an Issuer backed by store, using clk for timestamps
// and issuing nonces valid for ttl.
func NewIssuer(store nonce.Store, clk clock.Clock, ttl time.Duration, audience string) *Issuer {
	return &Issuer{store: store, clk: clk, ttl: ttl, audience: audience}
}

// Issue draws 16 bytes from the OS CSPRNG, encodes them URL-safe without
// padding, and inserts a fresh record into the nonce store. A collision on
// insert (spec.md §4.6 step 4) is treated as a fatal entropy failure and is
// never retried with a freshly drawn value under the same call — retrying
// would mask a broken randomness source.
func (i *Issuer) Issue() (Challenge, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return Challenge{}, errors.InternalServerError("failed to read random bytes: %s", err)
	}
	n := base64.RawURLEncoding.EncodeToString(raw)

	expiresAt := i.clk.Now().Add(i.ttl)
	if !i.store.TryAdd(n, nonce.Record{ExpiresAt: expiresAt, Used: false}) {
		return Challenge{}, errors.InternalServerError("nonce collision on insert, entropy failure suspected")
	}

	return Challenge{Nonce: n, ExpiresAt: expiresAt, Audience: i.audience}, nil
}
