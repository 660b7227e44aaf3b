package handlers

import (
	"context"
	"net/http"

	"github.com/Hung6066/IVF-sub008/audit"
	"github.com/Hung6066/IVF-sub008/biometric"
	"github.com/Hung6066/IVF-sub008/models"
	"github.com/Hung6066/IVF-sub008/monitoring"
	"github.com/Hung6066/IVF-sub008/pipeline"
	"github.com/Hung6066/IVF-sub008/policy"
	"github.com/Hung6066/IVF-sub008/risk"
	"github.com/Hung6066/IVF-sub008/sessions"
	"github.com/Hung6066/IVF-sub008/trust"
)

// Server exposes the policy administration surface and the biometric
// identification entry point. Every operation runs through the
// authorization pipeline.
type Server struct {
	policies   policy.Store
	pipe       *pipeline.Pipeline
	recorder   audit.Recorder
	evaluator  *risk.Evaluator
	sessions   sessions.Store
	aggregator *biometric.Aggregator
}

// NewServer wires the server's collaborators
func NewServer(policies policy.Store, pipe *pipeline.Pipeline, recorder audit.Recorder, evaluator *risk.Evaluator, sessionStore sessions.Store, aggregator *biometric.Aggregator) *Server {
	return &Server{
		policies:   policies,
		pipe:       pipe,
		recorder:   recorder,
		evaluator:  evaluator,
		sessions:   sessionStore,
		aggregator: aggregator,
	}
}

// Routes builds the HTTP mux
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if handler := monitoring.MetricsHandler(); handler != nil {
		mux.Handle("GET /metrics", handler)
	}

	mux.HandleFunc("GET /api/v1/policies/actions", s.listActionPolicies)
	mux.HandleFunc("PUT /api/v1/policies/actions/{action}", s.upsertActionPolicy)
	mux.HandleFunc("DELETE /api/v1/policies/actions/{action}", s.deactivateActionPolicy)
	mux.HandleFunc("GET /api/v1/policies/capabilities", s.listCapabilityPolicies)
	mux.HandleFunc("PUT /api/v1/policies/capabilities/{id}", s.upsertCapabilityPolicy)
	mux.HandleFunc("PUT /api/v1/policies/fields", s.upsertFieldPolicy)

	mux.HandleFunc("GET /api/v1/security-events", s.listSecurityEvents)
	mux.HandleFunc("POST /api/v1/threat-assessments", s.assessThreat)
	mux.HandleFunc("GET /api/v1/ip-intelligence/{ip}", s.ipIntelligence)

	mux.HandleFunc("GET /api/v1/sessions", s.listSessions)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.revokeSession)

	mux.HandleFunc("POST /api/v1/biometric/identify", s.identify)

	return mux
}

// execute runs one admin operation through the authorization pipeline and
// writes the result
func (s *Server) execute(w http.ResponseWriter, r *http.Request, action models.Action, capability string, validator pipeline.Validator, handler func(ctx context.Context, req *pipeline.Request) (any, error)) {
	req := &pipeline.Request{
		Envelope: models.RequestEnvelope{
			Action:       action,
			ResourcePath: r.URL.Path,
			Capability:   capability,
		},
		Trust:                trust.FromRequest(r.Context()),
		BreakGlassCredential: r.Header.Get("X-Break-Glass"),
	}
	req.Envelope.ActorID = req.Trust.AuthenticatedUserID
	req.Envelope.CorrelationID = req.Trust.CorrelationID
	req.Envelope.SourceIP = req.Trust.SourceIP
	req.Envelope.SessionID = req.Trust.SessionID
	req.Envelope.DeviceFingerprint = req.Trust.DeviceFingerprint

	result, err := s.pipe.Execute(r.Context(), req, validator, pipeline.HandlerFunc(handler))
	if err != nil {
		RespondWithError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}
