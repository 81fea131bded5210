// cmd/holder is the companion client spec.md §1 describes as defining the
// wire contract the verifier accepts: it generates an ECDSA P-256 keypair,
// derives a did:jwk: identity, fetches a challenge, signs an assertion
// binding method/path for POST /verify, and posts it.
package main

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"time"

	"github.com/didpop/verifier/assertion"
	"github.com/didpop/verifier/didkey"
)

const (
	verifyMethod = "POST"
	verifyPath   = "/verify"
	skewSeconds  = 120
)

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

type challengeResponse struct {
	Nonce     string `json:"nonce"`
	ExpiresAt string `json:"expires_at"`
	Audience  string `json:"audience"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

func fetchChallenge(url string) (*challengeResponse, error) {
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("challenge request failed: %d %s", resp.StatusCode, string(body))
	}
	var c challengeResponse
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func postAssertion(url, token string) (int, []byte, error) {
	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return 0, nil, err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func main() {
	holderID := getenv("HOLDER_ID", "did:example:holder-123")
	verifierBase := getenv("VERIFIER_BASE", "http://localhost:4001")
	challengeURL := getenv("CHALLENGE_URL", verifierBase+"/challenge")
	verifyURL := getenv("VERIFY_URL", verifierBase+verifyPath)

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generating keypair: %s\n", err)
		os.Exit(1)
	}
	kid, err := didkey.Encode(&priv.PublicKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding did:jwk identity: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("holder identity: %s\n", kid)

	c, err := fetchChallenge(challengeURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetching challenge: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("received nonce %s (expires %s)\n", c.Nonce, c.ExpiresAt)

	now := time.Now().Unix()
	token, err := assertion.Sign(priv, assertion.SignParams{
		Kid:      kid,
		Aud:      c.Audience,
		Nonce:    c.Nonce,
		HolderID: holderID,
		Method:   verifyMethod,
		Path:     verifyPath,
		Iat:      now,
		Nbf:      now - skewSeconds,
		Exp:      now + skewSeconds,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "signing assertion: %s\n", err)
		os.Exit(1)
	}

	status, body, err := postAssertion(verifyURL, token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "posting assertion: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("verify response (%d): %s\n", status, string(body))
	if status != http.StatusOK {
		os.Exit(1)
	}
}
