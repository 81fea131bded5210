// Package web carries the HTTP boundary plumbing shared by the challenge
// and verify handlers: a per-request log accumulator and a problem-document
// error writer, modeled on the teacher's web.RequestEvent / web.SendError
// (exercised by the now-removed web/send_error_test.go, whose call shape —
// SendError(logger, namespace, rw, event, prob, err) — this keeps).
package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/didpop/verifier/log"
	"github.com/didpop/verifier/probs"
)

// RequestEvent accumulates facts about a single request for a single
// structured audit line written when the handler returns.
type RequestEvent struct {
	RealIP    string
	Method    string
	Endpoint  string
	Started   time.Time
	Status    int
	Error     string
}

// NewRequestEvent starts a RequestEvent for the given request.
func NewRequestEvent(r *http.Request, endpoint string) *RequestEvent {
	return &RequestEvent{
		RealIP:   r.RemoteAddr,
		Method:   r.Method,
		Endpoint: endpoint,
		Started:  time.Now(),
	}
}

// SendError writes a problem+json response for prob, logs the underlying
// error (if any) at Warning or, for server-internal failures, at AuditErr,
// and records the outcome on the RequestEvent.
func SendError(logger log.Logger, namespace string, w http.ResponseWriter, logEvent *RequestEvent, prob *probs.ProblemDetails, err error) {
	logEvent.Status = probs.ProblemDetailsToStatusCode(prob)
	logEvent.Error = string(prob.Code)

	if prob.HTTPStatus == http.StatusInternalServerError {
		logger.AuditErr(fmt.Sprintf("%sinternal error: %s: %v", namespace, prob.Detail, err))
	} else if err != nil {
		logger.Warning(fmt.Sprintf("%s%s: %v", namespace, prob.Detail, err))
	}

	body, marshalErr := json.Marshal(prob)
	if marshalErr != nil {
		logger.AuditErr(fmt.Sprintf("%scould not marshal problem document: %s", namespace, marshalErr))
		body = []byte(`{"error":"server_internal"}`)
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(prob.HTTPStatus)
	_, _ = w.Write(body)
}

// WriteJSON writes v as a 200 JSON response body.
func WriteJSON(w http.ResponseWriter, logEvent *RequestEvent, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("web: failed to marshal response: %s", err))
	}
	logEvent.Status = http.StatusOK
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
