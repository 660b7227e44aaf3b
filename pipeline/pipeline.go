package pipeline

import (
	"context"
	"log/slog"

	"github.com/Hung6066/IVF-sub008/audit"
	"github.com/Hung6066/IVF-sub008/masking"
	"github.com/Hung6066/IVF-sub008/models"
	"github.com/Hung6066/IVF-sub008/monitoring"
	"github.com/Hung6066/IVF-sub008/pkg/errors"
	"github.com/Hung6066/IVF-sub008/policy"
	"github.com/Hung6066/IVF-sub008/risk"
	"github.com/Hung6066/IVF-sub008/trust"
)

// Stage names recorded for every pass/fail
const (
	StageValidation = "validation"
	StageCapability = "capability"
	StageZeroTrust  = "zero_trust"
	StageMasking    = "masking"
)

// Request is one command or query passing through the pipeline
type Request struct {
	Envelope models.RequestEnvelope
	Trust    *trust.Context
	// BreakGlassCredential, when present and valid, bypasses a zero-trust
	// denial on actions that allow it
	BreakGlassCredential string
	// Payload is the business command body, validated by the stage-1
	// validator
	Payload any
}

// Validator checks the structural and business rules of an inbound request.
// A non-empty result denies the request with field-level messages.
type Validator interface {
	Validate(req *Request) map[string]string
}

// ValidatorFunc adapts a function to the Validator interface
type ValidatorFunc func(req *Request) map[string]string

// Validate implements Validator
func (f ValidatorFunc) Validate(req *Request) map[string]string { return f(req) }

// Handler is the business handler invoked after all pre-stages pass
type Handler interface {
	Handle(ctx context.Context, req *Request) (any, error)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

// Handle implements Handler
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (any, error) { return f(ctx, req) }

// Pipeline wraps every command and query in the fixed stage order:
// validation, capability authorization, zero-trust evaluation, business
// handler, field masking. The first failing stage short-circuits; later
// stages never run on a denied request. A stage that cannot evaluate fails
// closed.
type Pipeline struct {
	policies   policy.Reader
	evaluator  *risk.Evaluator
	recorder   audit.Recorder
	breakGlass BreakGlassVerifier
}

// New creates a pipeline over the given collaborators
func New(policies policy.Reader, evaluator *risk.Evaluator, recorder audit.Recorder, breakGlass BreakGlassVerifier) *Pipeline {
	if breakGlass == nil {
		breakGlass = NewSecretVerifier("")
	}
	return &Pipeline{
		policies:   policies,
		evaluator:  evaluator,
		recorder:   recorder,
		breakGlass: breakGlass,
	}
}

// Execute runs the request through all stages. On success the handler's
// result is returned with field masking already applied; on denial the
// returned error carries only a generic reason code while the precise
// clause is logged server-side.
func (p *Pipeline) Execute(ctx context.Context, req *Request, validator Validator, handler Handler) (any, error) {
	// The policy cache lives exactly as long as this pipeline run, so all
	// stages see one consistent policy view while updates land on the next
	// request.
	cache := policy.NewRequestCache(p.policies)

	if err := p.runValidation(ctx, req, validator); err != nil {
		return nil, err
	}
	if err := p.runCapabilityCheck(ctx, req, cache); err != nil {
		return nil, err
	}
	if err := p.runZeroTrustCheck(ctx, req, cache); err != nil {
		return nil, err
	}

	result, err := handler.Handle(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := p.runMasking(ctx, req, cache, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) runValidation(ctx context.Context, req *Request, validator Validator) error {
	fieldErrors := make(map[string]string)
	if req.Envelope.Action == "" {
		fieldErrors["action"] = "action is required"
	}
	if req.Envelope.ResourcePath == "" {
		fieldErrors["resourcePath"] = "resource path is required"
	}
	if req.Envelope.Capability == "" {
		fieldErrors["capability"] = "capability is required"
	}
	if validator != nil {
		for field, msg := range validator.Validate(req) {
			fieldErrors[field] = msg
		}
	}
	if len(fieldErrors) > 0 {
		monitoring.RecordPipelineDecision(ctx, string(req.Envelope.Action), StageValidation, "deny")
		slog.Info("Request failed validation",
			"action", req.Envelope.Action,
			"correlationId", req.Envelope.CorrelationID,
			"fields", len(fieldErrors))
		return errors.ValidationFailedWithFields(fieldErrors)
	}
	monitoring.RecordPipelineDecision(ctx, string(req.Envelope.Action), StageValidation, "pass")
	return nil
}

func (p *Pipeline) runCapabilityCheck(ctx context.Context, req *Request, cache *policy.RequestCache) error {
	matched, err := cache.MatchCapability(ctx, req.Envelope.ResourcePath, req.Envelope.Capability)
	if err != nil {
		// Policy store unreachable: fail closed.
		slog.Error("Capability policy lookup failed, denying",
			"resourcePath", req.Envelope.ResourcePath,
			"capability", req.Envelope.Capability,
			"error", err)
		monitoring.RecordPipelineDecision(ctx, string(req.Envelope.Action), StageCapability, "error")
		return errors.AccessDenied()
	}
	if matched == nil || !matched.AllowsRole(req.Trust.Role) {
		monitoring.RecordPipelineDecision(ctx, string(req.Envelope.Action), StageCapability, "deny")
		p.logDenial(ctx, req, models.EventCapabilityDenied, models.SeverityMedium, map[string]any{
			"resourcePath": req.Envelope.ResourcePath,
			"capability":   req.Envelope.Capability,
			"role":         req.Trust.Role,
			"matched":      matched != nil,
		})
		return errors.Forbidden()
	}
	monitoring.RecordPipelineDecision(ctx, string(req.Envelope.Action), StageCapability, "pass")
	return nil
}

func (p *Pipeline) runZeroTrustCheck(ctx context.Context, req *Request, cache *policy.RequestCache) error {
	actionPolicy, err := cache.GetActionPolicy(ctx, req.Envelope.Action)
	if err != nil {
		slog.Error("Action policy lookup failed, denying",
			"action", req.Envelope.Action, "error", err)
		monitoring.RecordPipelineDecision(ctx, string(req.Envelope.Action), StageZeroTrust, "error")
		return errors.AccessDenied()
	}

	assessment, err := p.evaluator.Assess(ctx, risk.Input{
		IPAddress:           req.Trust.SourceIP,
		Username:            req.Trust.AuthenticatedUserID,
		Country:             req.Trust.Country,
		RequestPath:         req.Envelope.ResourcePath,
		DeviceFingerprint:   req.Trust.DeviceFingerprint,
		FingerprintMismatch: req.Trust.FingerprintMismatch,
	})
	if err != nil {
		slog.Error("Risk assessment failed, denying",
			"action", req.Envelope.Action, "error", err)
		monitoring.RecordPipelineDecision(ctx, string(req.Envelope.Action), StageZeroTrust, "error")
		return errors.AccessDenied()
	}
	monitoring.RecordRiskAssessment(ctx, assessment.RiskLevel)

	clause := p.violatedClause(req, actionPolicy, assessment)
	if clause == "" {
		monitoring.RecordPipelineDecision(ctx, string(req.Envelope.Action), StageZeroTrust, "pass")
		return nil
	}

	if actionPolicy.AllowBreakGlassOverride && p.breakGlass.Verify(req.BreakGlassCredential) {
		// The bypass is allowed but never silent.
		event := models.NewSecurityEvent(models.EventZTBreakGlassUsed, models.SeverityHigh, req.Trust.SourceIP, map[string]any{
			"action":         req.Envelope.Action,
			"bypassedClause": clause,
			"riskLevel":      assessment.RiskLevel,
		}).WithUsername(req.Trust.AuthenticatedUserID)
		if recErr := p.recorder.Record(ctx, event); recErr != nil {
			slog.Error("Failed to record break-glass event, denying",
				"action", req.Envelope.Action, "error", recErr)
			return errors.AccessDenied()
		}
		slog.Warn("Break-glass override used",
			"actor", req.Trust.AuthenticatedUserID,
			"action", req.Envelope.Action,
			"bypassedClause", clause)
		monitoring.RecordPipelineDecision(ctx, string(req.Envelope.Action), StageZeroTrust, "break_glass")
		return nil
	}

	monitoring.RecordPipelineDecision(ctx, string(req.Envelope.Action), StageZeroTrust, "deny")
	p.evaluator.RecordFailure(ctx, req.Trust.AuthenticatedUserID, req.Trust.SourceIP)
	p.logDenial(ctx, req, models.EventZTPolicyDenied, models.SeverityHigh, map[string]any{
		"action":    req.Envelope.Action,
		"clause":    clause,
		"riskScore": assessment.RiskScore,
		"riskLevel": assessment.RiskLevel,
		"reasons":   assessment.Reasons,
	})
	// The precise clause stays server-side; callers get the generic code.
	return errors.AccessDenied()
}

// violatedClause returns the first policy clause the request violates, or
// empty when the request clears the policy. Denial is monotonic in risk:
// raising the computed risk can only add the max_allowed_risk clause, never
// remove one.
func (p *Pipeline) violatedClause(req *Request, actionPolicy *models.ZeroTrustActionPolicy, assessment *models.ThreatAssessment) string {
	if req.Trust.AuthLevel < actionPolicy.RequiredLevel() {
		return "required_auth_level"
	}
	if models.ParseRiskLevel(assessment.RiskLevel) > actionPolicy.MaxRisk() {
		return "max_allowed_risk"
	}
	if actionPolicy.RequireTrustedDevice && !req.Trust.TrustedDevice {
		return "require_trusted_device"
	}
	if actionPolicy.RequireFreshSession && !req.Trust.SessionFresh {
		return "require_fresh_session"
	}
	if !actionPolicy.CountryAllowed(req.Trust.Country) {
		return "geo_fence"
	}
	if actionPolicy.BlockVpnTor && p.evaluator.IsVpnOrTor(req.Trust.SourceIP) {
		return "block_vpn_tor"
	}
	if actionPolicy.BlockAnomaly && hasAnomaly(assessment.Reasons) {
		return "block_anomaly"
	}
	return ""
}

func hasAnomaly(reasons []string) bool {
	for _, r := range reasons {
		switch r {
		case "impossible_travel", "fingerprint_mismatch", "new_device_fingerprint":
			return true
		}
	}
	return false
}

// runMasking applies field-access policies to the handler result on the way
// out. Policies are resolved once through the request cache and reused
// across all elements of a collection.
func (p *Pipeline) runMasking(ctx context.Context, req *Request, cache *policy.RequestCache, result any) error {
	engine := masking.NewEngine(cache)

	var err error
	switch v := result.(type) {
	case masking.Maskable:
		err = engine.Redact(ctx, v, req.Trust.Role)
	case []masking.Maskable:
		err = engine.RedactAll(ctx, v, req.Trust.Role)
	default:
		monitoring.RecordPipelineDecision(ctx, string(req.Envelope.Action), StageMasking, "skip")
		return nil
	}
	if err != nil {
		// Masking that cannot evaluate must not leak unmasked data.
		slog.Error("Field masking failed, denying response",
			"action", req.Envelope.Action, "error", err)
		monitoring.RecordPipelineDecision(ctx, string(req.Envelope.Action), StageMasking, "error")
		return errors.AccessDenied()
	}
	monitoring.RecordPipelineDecision(ctx, string(req.Envelope.Action), StageMasking, "pass")
	return nil
}

func (p *Pipeline) logDenial(ctx context.Context, req *Request, eventType string, severity models.Severity, details map[string]any) {
	details["correlationId"] = req.Envelope.CorrelationID
	event := models.NewSecurityEvent(eventType, severity, req.Trust.SourceIP, details).
		WithUsername(req.Trust.AuthenticatedUserID).
		WithBlocked(true)
	if err := p.recorder.Record(ctx, event); err != nil {
		slog.Error("Failed to record denial event", "eventType", eventType, "error", err)
	}
	slog.Warn("Request denied",
		"eventType", eventType,
		"action", req.Envelope.Action,
		"actor", req.Trust.AuthenticatedUserID,
		"correlationId", req.Envelope.CorrelationID)
}
