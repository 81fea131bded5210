// Package verifypipeline implements the verification pipeline (C7): the
// fixed nine-stage sequence that turns a raw assertion token into a typed
// Outcome. Ordering here is the single most load-bearing invariant in the
// whole repository (spec.md §4.7, IV5) — every stage either advances to the
// next with a value or returns a terminal Outcome, and the pipeline never
// back-tracks. Structurally grounded on wfe.verifyPOST's staged early-return
// checks and wfe2/wfe.go's JOSE-ordering comments, generalized to the nine
// explicit stages and the concurrency-hardening note in spec.md §5.
package verifypipeline

import (
	"strings"
	"time"

	"github.com/jmhodges/clock"
	"github.com/didpop/verifier/assertion"
	"github.com/didpop/verifier/didkey"
	"github.com/didpop/verifier/nonce"
	"github.com/didpop/verifier/probs"
	"github.com/didpop/verifier/sigverify"
	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the per-deployment binding values spec.md §6 names.
type Config struct {
	Audience      string
	VerifyMethod  string
	VerifyPath    string
	ClockSkewSecs int64
}

// Pipeline runs the nine-stage check in order against one nonce store.
type Pipeline struct {
	store  nonce.Store
	clk    clock.Clock
	config Config
}

// NewPipeline constructs a Pipeline over store, using clk for the current
// instant and config for the binding values every request is checked
// against.
func NewPipeline(store nonce.Store, clk clock.Clock, config Config) *Pipeline {
	return &Pipeline{store: store, clk: clk, config: config}
}

// Outcome is either a successful verification or a terminal problem,
// exactly one of which is non-nil.
type Outcome struct {
	Ok   *OkResult
	Prob *probs.ProblemDetails
}

// OkResult is the success payload, per spec.md §3's Outcome data model.
type OkResult struct {
	Status     string    `json:"status"`
	HolderID   string    `json:"holder_id"`
	Kid        string    `json:"kid"`
	VerifiedAt time.Time `json:"verified_at"`
}

var stageOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "verify_stage_outcomes",
	Help: "Count of verification pipeline terminations, labeled by outcome code",
}, []string{"code"})

func init() {
	prometheus.MustRegister(stageOutcomes)
}

func reject(code probs.Code, detail string) Outcome {
	stageOutcomes.WithLabelValues(string(code)).Inc()
	var prob *probs.ProblemDetails
	switch code {
	case probs.MissingToken:
		prob = probs.MissingTokenProblem(detail)
	case probs.InvalidTokenFormat:
		prob = probs.InvalidTokenFormatProblem(detail)
	case probs.MissingKid:
		prob = probs.MissingKidProblem(detail)
	case probs.KeyResolutionFailed:
		prob = probs.KeyResolutionFailedProblem(detail)
	case probs.AudMismatch:
		prob = probs.AudMismatchProblem(detail)
	case probs.MissingNonce:
		prob = probs.MissingNonceProblem(detail)
	case probs.MissingHolderID:
		prob = probs.MissingHolderIDProblem(detail)
	case probs.InvalidNonce:
		prob = probs.InvalidNonceProblem(detail)
	case probs.NonceUsed:
		prob = probs.NonceUsedProblem(detail)
	case probs.NonceExpired:
		prob = probs.NonceExpiredProblem(detail)
	case probs.MethodMismatch:
		prob = probs.MethodMismatchProblem(detail)
	case probs.PathMismatch:
		prob = probs.PathMismatchProblem(detail)
	case probs.SigInvalidOrExpired:
		prob = probs.SigInvalidOrExpiredProblem(detail)
	default:
		prob = probs.ServerInternalProblem(detail)
	}
	return Outcome{Prob: prob}
}

// Verify runs the nine stages against rawToken. The request-binding stage
// compares the token's method and path claims with the configured
// VerifyMethod and VerifyPath; requestMethod and requestPath are not read.
func (p *Pipeline) Verify(rawToken, requestMethod, requestPath string) Outcome {
	// Stage 1: token presence.
	if strings.TrimSpace(rawToken) == "" {
		return reject(probs.MissingToken, "request body is empty")
	}

	// Stage 2: structural parse.
	a, err := assertion.Parse(rawToken)
	if err != nil {
		return reject(probs.InvalidTokenFormat, err.Error())
	}

	// Stage 3: key resolution.
	if a.Header.Kid == "" {
		return reject(probs.MissingKid, "header is missing kid")
	}
	pub, err := didkey.Resolve(a.Header.Kid)
	if err != nil {
		return reject(probs.KeyResolutionFailed, err.Error())
	}

	// Stage 4: claim extraction.
	if a.Claims.Aud != p.config.Audience {
		return reject(probs.AudMismatch, "audience claim does not match configured audience")
	}
	if a.Claims.Nonce == "" {
		return reject(probs.MissingNonce, "nonce claim is missing")
	}
	holderID := a.Claims.HolderIdentifier()
	if holderID == "" {
		return reject(probs.MissingHolderID, "neither sub nor holder_id claim is present")
	}

	// Stage 5: nonce validation.
	rec, found := p.store.TryGet(a.Claims.Nonce)
	if !found {
		return reject(probs.InvalidNonce, "nonce was not issued by this verifier")
	}
	if rec.Used {
		return reject(probs.NonceUsed, "nonce has already been redeemed")
	}
	now := p.clk.Now()
	if now.After(rec.ExpiresAt) {
		return reject(probs.NonceExpired, "nonce is past its expiry")
	}

	// Stage 6: request binding against the configured method and path.
	// Method compares case-insensitively; path compares case-sensitively.
	// This asymmetry is deliberate — see spec.md §9's Open Questions — and
	// must not be "fixed" into symmetry.
	if !strings.EqualFold(a.Claims.Method, p.config.VerifyMethod) {
		return reject(probs.MethodMismatch, "method claim does not match the configured method")
	}
	if a.Claims.Path != p.config.VerifyPath {
		return reject(probs.PathMismatch, "path claim does not match the configured path")
	}

	// Stage 7: signature + temporal validation.
	if err := sigverify.Verify(a, pub, sigverify.Params{Now: now, SkewSecs: p.config.ClockSkewSecs}); err != nil {
		return reject(probs.SigInvalidOrExpired, "signature or validity window check failed")
	}

	// Stage 8: mark nonce used. A losing CAS here must be treated as a
	// replay, not a success, even though the signature already proved
	// possession — this is the strengthening over the historical nonce
	// package's weaker "exists implies true" behavior that spec.md §5 and
	// §9 mandate. Without it, two requests racing through stage 5 together
	// could both reach here and both be accepted.
	if !p.store.MarkUsed(a.Claims.Nonce) {
		return reject(probs.NonceUsed, "lost the race to redeem this nonce")
	}

	// Stage 9: emit.
	stageOutcomes.WithLabelValues("valid").Inc()
	return Outcome{Ok: &OkResult{
		Status:     "valid",
		HolderID:   holderID,
		Kid:        a.Header.Kid,
		VerifiedAt: now,
	}}
}
