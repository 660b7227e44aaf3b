package masking

import (
	"context"

	"github.com/Hung6066/IVF-sub008/models"
)

// Maskable is implemented by DTOs whose string fields are subject to
// field-access policies. Each DTO declares its redactable fields as explicit
// accessors, so redaction never introspects types at runtime.
type Maskable interface {
	MaskingTable() string
	MaskableFields() []models.MaskableField
}

// PolicySource resolves the field policies for one table and role. The
// pipeline's request-scoped cache satisfies this, so policies are resolved
// once per run and reused across all elements of a collection.
type PolicySource interface {
	FieldPolicies(ctx context.Context, tableName, role string) (map[string]models.FieldAccessPolicy, error)
}

// Engine applies per-role field redaction to outbound DTOs
type Engine struct {
	policies PolicySource
}

// NewEngine creates a masking engine over the given policy source
func NewEngine(policies PolicySource) *Engine {
	return &Engine{policies: policies}
}

// Redact applies the role's field policies to a single DTO in place.
// The admin role bypasses redaction entirely. Fields without a policy keep
// full access.
func (e *Engine) Redact(ctx context.Context, dto Maskable, role string) error {
	if role == models.RoleAdmin {
		return nil
	}
	policies, err := e.policies.FieldPolicies(ctx, dto.MaskingTable(), role)
	if err != nil {
		return err
	}
	applyPolicies(dto, policies)
	return nil
}

// RedactAll applies the role's field policies to a homogeneous collection,
// resolving policies once and applying one masking pass per element.
func (e *Engine) RedactAll(ctx context.Context, dtos []Maskable, role string) error {
	if role == models.RoleAdmin || len(dtos) == 0 {
		return nil
	}
	policies, err := e.policies.FieldPolicies(ctx, dtos[0].MaskingTable(), role)
	if err != nil {
		return err
	}
	for _, dto := range dtos {
		applyPolicies(dto, policies)
	}
	return nil
}

func applyPolicies(dto Maskable, policies map[string]models.FieldAccessPolicy) {
	for _, field := range dto.MaskableFields() {
		policy, ok := policies[field.Name]
		if !ok {
			continue // no policy: full access
		}
		switch policy.AccessLevel {
		case models.AccessLevelFull:
			// unchanged
		case models.AccessLevelPartial:
			field.Set(maskPartial(field.Get(), policy.PartialLength, policy.MaskPattern))
		case models.AccessLevelMasked:
			field.Set(policy.MaskPattern)
		case models.AccessLevelNone:
			field.Set("")
		}
	}
}

// maskPartial keeps the first partialLength characters and substitutes the
// mask pattern for the remainder. Values no longer than partialLength are
// left unchanged.
func maskPartial(value string, partialLength int, maskPattern string) string {
	if len(value) <= partialLength {
		return value
	}
	return value[:partialLength] + maskPattern
}
