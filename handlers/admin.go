package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Hung6066/IVF-sub008/models"
	"github.com/Hung6066/IVF-sub008/pipeline"
	"github.com/Hung6066/IVF-sub008/pkg/errors"
	"github.com/Hung6066/IVF-sub008/risk"
)

func (s *Server) listActionPolicies(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, models.ActionManagePolicies, "read", nil,
		func(ctx context.Context, req *pipeline.Request) (any, error) {
			return s.policies.ListActionPolicies(ctx)
		})
}

func (s *Server) upsertActionPolicy(w http.ResponseWriter, r *http.Request) {
	var body models.ZeroTrustActionPolicy
	if err := DecodeJSONBody(r, &body); err != nil {
		RespondWithError(w, err)
		return
	}
	body.Action = models.Action(r.PathValue("action"))

	validator := pipeline.ValidatorFunc(func(req *pipeline.Request) map[string]string {
		fieldErrors := make(map[string]string)
		if body.RequiredAuthLevel == "" {
			fieldErrors["requiredAuthLevel"] = "required auth level is required"
		}
		if body.MaxAllowedRisk == "" {
			fieldErrors["maxAllowedRisk"] = "max allowed risk is required"
		}
		if body.RequireGeoFence && body.AllowedCountries == "" {
			fieldErrors["allowedCountries"] = "geo-fenced actions need an allowed country list"
		}
		return fieldErrors
	})

	s.execute(w, r, models.ActionManagePolicies, "write", validator,
		func(ctx context.Context, req *pipeline.Request) (any, error) {
			body.UpdatedBy = req.Trust.AuthenticatedUserID
			body.UpdatedAt = time.Now()
			if err := s.policies.UpsertActionPolicy(ctx, &body); err != nil {
				return nil, errors.Database("upsert action policy", err)
			}
			return &body, nil
		})
}

func (s *Server) deactivateActionPolicy(w http.ResponseWriter, r *http.Request) {
	action := models.Action(r.PathValue("action"))
	s.execute(w, r, models.ActionManagePolicies, "write", nil,
		func(ctx context.Context, req *pipeline.Request) (any, error) {
			if err := s.policies.DeactivateActionPolicy(ctx, action, req.Trust.AuthenticatedUserID); err != nil {
				return nil, errors.NotFound("action policy")
			}
			return map[string]string{"action": string(action), "status": "deactivated"}, nil
		})
}

func (s *Server) listCapabilityPolicies(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, models.ActionManagePolicies, "read", nil,
		func(ctx context.Context, req *pipeline.Request) (any, error) {
			return s.policies.ListCapabilityPolicies(ctx)
		})
}

func (s *Server) upsertCapabilityPolicy(w http.ResponseWriter, r *http.Request) {
	var body models.CapabilityPolicy
	if err := DecodeJSONBody(r, &body); err != nil {
		RespondWithError(w, err)
		return
	}
	body.ID = r.PathValue("id")

	validator := pipeline.ValidatorFunc(func(req *pipeline.Request) map[string]string {
		fieldErrors := make(map[string]string)
		if body.ResourcePathPattern == "" {
			fieldErrors["resourcePathPattern"] = "resource path pattern is required"
		}
		if body.Capability == "" {
			fieldErrors["capability"] = "capability is required"
		}
		if body.SubjectRoles == "" {
			fieldErrors["subjectRoles"] = "subject roles are required"
		}
		return fieldErrors
	})

	s.execute(w, r, models.ActionManagePolicies, "write", validator,
		func(ctx context.Context, req *pipeline.Request) (any, error) {
			if err := s.policies.UpsertCapabilityPolicy(ctx, &body); err != nil {
				return nil, errors.Database("upsert capability policy", err)
			}
			return &body, nil
		})
}

func (s *Server) upsertFieldPolicy(w http.ResponseWriter, r *http.Request) {
	var body models.FieldAccessPolicy
	if err := DecodeJSONBody(r, &body); err != nil {
		RespondWithError(w, err)
		return
	}

	validator := pipeline.ValidatorFunc(func(req *pipeline.Request) map[string]string {
		fieldErrors := make(map[string]string)
		if body.TableName_ == "" {
			fieldErrors["tableName"] = "table name is required"
		}
		if body.FieldName == "" {
			fieldErrors["fieldName"] = "field name is required"
		}
		if body.Role == "" {
			fieldErrors["role"] = "role is required"
		}
		switch body.AccessLevel {
		case models.AccessLevelFull, models.AccessLevelMasked, models.AccessLevelNone:
		case models.AccessLevelPartial:
			if body.PartialLength <= 0 {
				fieldErrors["partialLength"] = "partial access needs a positive partial length"
			}
		default:
			fieldErrors["accessLevel"] = "access level must be full, partial, masked or none"
		}
		return fieldErrors
	})

	s.execute(w, r, models.ActionManagePolicies, "write", validator,
		func(ctx context.Context, req *pipeline.Request) (any, error) {
			if err := s.policies.UpsertFieldPolicy(ctx, &body); err != nil {
				return nil, errors.Database("upsert field policy", err)
			}
			return &body, nil
		})
}

func (s *Server) listSecurityEvents(w http.ResponseWriter, r *http.Request) {
	filter := models.EventFilter{
		EventType: r.URL.Query().Get("eventType"),
		IPAddress: r.URL.Query().Get("ip"),
		Username:  r.URL.Query().Get("username"),
	}
	s.execute(w, r, models.ActionViewSecurityEvents, "read", nil,
		func(ctx context.Context, req *pipeline.Request) (any, error) {
			return s.recorder.Recent(ctx, filter)
		})
}

type threatAssessmentRequest struct {
	IPAddress string `json:"ipAddress"`
	Username  string `json:"username,omitempty"`
}

func (s *Server) assessThreat(w http.ResponseWriter, r *http.Request) {
	var body threatAssessmentRequest
	if err := DecodeJSONBody(r, &body); err != nil {
		RespondWithError(w, err)
		return
	}

	validator := pipeline.ValidatorFunc(func(req *pipeline.Request) map[string]string {
		if body.IPAddress == "" {
			return map[string]string{"ipAddress": "ip address is required"}
		}
		return nil
	})

	s.execute(w, r, models.ActionViewSecurityEvents, "read", validator,
		func(ctx context.Context, req *pipeline.Request) (any, error) {
			return s.evaluator.Assess(ctx, risk.Input{
				IPAddress: body.IPAddress,
				Username:  body.Username,
			})
		})
}

func (s *Server) ipIntelligence(w http.ResponseWriter, r *http.Request) {
	ip := r.PathValue("ip")
	s.execute(w, r, models.ActionViewSecurityEvents, "read", nil,
		func(ctx context.Context, req *pipeline.Request) (any, error) {
			return s.evaluator.IPIntelligence(ctx, ip)
		})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, models.ActionRevokeSession, "read", nil,
		func(ctx context.Context, req *pipeline.Request) (any, error) {
			return s.sessions.List(ctx)
		})
}

func (s *Server) revokeSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.execute(w, r, models.ActionRevokeSession, "write", nil,
		func(ctx context.Context, req *pipeline.Request) (any, error) {
			if err := s.sessions.Revoke(ctx, id); err != nil {
				return nil, errors.NotFound("session")
			}
			if err := s.recorder.Record(ctx, models.NewSecurityEvent(
				models.EventSessionRevoked, models.SeverityMedium, req.Trust.SourceIP, map[string]any{
					"sessionId": id,
				}).WithUsername(req.Trust.AuthenticatedUserID)); err != nil {
				slog.Error("Failed to record session revocation", "sessionId", id, "error", err)
			}
			return map[string]string{"sessionId": id, "status": "revoked"}, nil
		})
}

type identifyRequest struct {
	Template []byte `json:"template"`
}

func (s *Server) identify(w http.ResponseWriter, r *http.Request) {
	var body identifyRequest
	if err := DecodeJSONBody(r, &body); err != nil {
		RespondWithError(w, err)
		return
	}

	validator := pipeline.ValidatorFunc(func(req *pipeline.Request) map[string]string {
		if len(body.Template) == 0 {
			return map[string]string{"template": "probe template is required"}
		}
		return nil
	})

	s.execute(w, r, models.ActionBiometricIdentify, "execute", validator,
		func(ctx context.Context, req *pipeline.Request) (any, error) {
			return s.aggregator.Identify(ctx, body.Template, req.Trust.SourceIP)
		})
}
