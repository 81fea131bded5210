// Copyright 2014 ISRG.  All rights reserved
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wfe

import (
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/jmhodges/clock"
	"github.com/didpop/verifier/challenge"
	"github.com/didpop/verifier/log"
	"github.com/didpop/verifier/metrics"
	"github.com/didpop/verifier/metrics/measured_http"
	"github.com/didpop/verifier/probs"
	"github.com/didpop/verifier/verifypipeline"
	"github.com/didpop/verifier/web"
)

const (
	ChallengePath = "/challenge"
	VerifyPath    = "/verify"
	HealthzPath   = "/healthz"
)

// WebFrontEndImpl is the HTTP boundary (C8): two endpoints dispatching to
// the challenge issuer (C6) and the verification pipeline (C7). Structure
// (HandleFunc wrapping, stats, logger) is carried over from wfe2.wfe.go's
// WebFrontEndImpl/HandleFunc/Handler(), trimmed to a two-endpoint service
// with no ACME resource graph.
type WebFrontEndImpl struct {
	issuer   *challenge.Issuer
	pipeline *verifypipeline.Pipeline
	log      log.Logger
	stats    metrics.Scope
	clk      clock.Clock
}

// NewWebFrontEndImpl constructs the boundary, wiring the already-constructed
// issuer and pipeline (both of which share one nonce store).
func NewWebFrontEndImpl(issuer *challenge.Issuer, pipeline *verifypipeline.Pipeline, logger log.Logger, stats metrics.Scope, clk clock.Clock) *WebFrontEndImpl {
	return &WebFrontEndImpl{
		issuer:   issuer,
		pipeline: pipeline,
		log:      logger,
		stats:    stats,
		clk:      clk,
	}
}

// Handler builds the top-level mux, measured for Prometheus latency
// exactly as wfe2.Handler() wraps its mux with measured_http.
func (wfe *WebFrontEndImpl) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ChallengePath, wfe.Challenge)
	mux.HandleFunc(VerifyPath, wfe.Verify)
	mux.HandleFunc(HealthzPath, wfe.Healthz)
	return measured_http.New(mux, wfe.clk)
}

// challengeResponse is the wire shape of a successful /challenge call.
type challengeResponse struct {
	Nonce     string `json:"nonce"`
	ExpiresAt string `json:"expires_at"`
	Audience  string `json:"audience"`
}

// Challenge handles POST /challenge: no request body, returns a fresh
// nonce. A failed issue (entropy exhaustion) is a 500, and so is a request
// with any method other than POST; a successful issue is a 200.
func (wfe *WebFrontEndImpl) Challenge(response http.ResponseWriter, request *http.Request) {
	logEvent := web.NewRequestEvent(request, ChallengePath)
	if request.Method != http.MethodPost {
		web.SendError(wfe.log, "wfe:challenge:", response, logEvent, probs.ServerInternalProblem("method not allowed"), nil)
		return
	}

	c, err := wfe.issuer.Issue()
	if err != nil {
		web.SendError(wfe.log, "wfe:challenge:", response, logEvent, probs.ServerInternalProblem("could not issue challenge"), err)
		return
	}
	_ = wfe.stats.Inc("Challenges.Issued", 1)

	web.WriteJSON(response, logEvent, challengeResponse{
		Nonce:     c.Nonce,
		ExpiresAt: c.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Audience:  c.Audience,
	})
}

// verifyRequest is the wire shape of a /verify request body.
type verifyRequest struct {
	Token string `json:"token"`
}

// Verify handles POST /verify: runs the nine-stage pipeline against the
// posted token and renders the resulting Outcome.
func (wfe *WebFrontEndImpl) Verify(response http.ResponseWriter, request *http.Request) {
	logEvent := web.NewRequestEvent(request, VerifyPath)
	if request.Method != http.MethodPost {
		web.SendError(wfe.log, "wfe:verify:", response, logEvent, probs.ServerInternalProblem("method not allowed"), nil)
		return
	}
	if request.Body == nil {
		web.SendError(wfe.log, "wfe:verify:", response, logEvent, probs.MissingTokenProblem("request has no body"), nil)
		return
	}

	body, err := ioutil.ReadAll(request.Body)
	if err != nil {
		web.SendError(wfe.log, "wfe:verify:", response, logEvent, probs.ServerInternalProblem("could not read request body"), err)
		return
	}

	var vr verifyRequest
	if err := json.Unmarshal(body, &vr); err != nil {
		web.SendError(wfe.log, "wfe:verify:", response, logEvent, probs.InvalidTokenFormatProblem("request body is not valid JSON"), err)
		return
	}

	outcome := wfe.pipeline.Verify(vr.Token, request.Method, request.URL.Path)
	if outcome.Prob != nil {
		_ = wfe.stats.Inc("Verifications.Rejected."+string(outcome.Prob.Code), 1)
		web.SendError(wfe.log, "wfe:verify:", response, logEvent, outcome.Prob, nil)
		wfe.log.Info("verify outcome: " + string(outcome.Prob.Code))
		return
	}

	_ = wfe.stats.Inc("Verifications.Accepted", 1)
	wfe.log.Info("verify outcome: valid holder=" + outcome.Ok.HolderID)
	web.WriteJSON(response, logEvent, outcome.Ok)
}

// Healthz answers the liveness probe spec.md doesn't name but every
// teacher-pack service in this idiom carries on its debug surface.
func (wfe *WebFrontEndImpl) Healthz(response http.ResponseWriter, request *http.Request) {
	response.WriteHeader(http.StatusOK)
	_, _ = response.Write([]byte("ok"))
}
