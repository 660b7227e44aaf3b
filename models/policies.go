package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// BaseModel contains common fields for all models
type BaseModel struct {
	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// BeforeCreate GORM hook for BaseModel
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM hook for BaseModel
func (b *BaseModel) BeforeUpdate(tx *gorm.DB) error {
	b.UpdatedAt = time.Now()
	return nil
}

// CapabilityPolicy grants subjects a capability on a path-pattern-identified
// resource. Patterns may contain "*" (one segment) and "**" (any number of
// segments). Matching is most-specific-wins; an empty match set denies.
type CapabilityPolicy struct {
	ID                  string `gorm:"primaryKey;column:policy_id" json:"policyId"`
	ResourcePathPattern string `gorm:"column:resource_path_pattern;not null;index" json:"resourcePathPattern"`
	Capability          string `gorm:"column:capability;not null" json:"capability"`
	SubjectRoles        string `gorm:"column:subject_roles;not null" json:"subjectRoles"` // comma-separated role list
	BaseModel
}

// TableName sets the table name for GORM
func (CapabilityPolicy) TableName() string {
	return "capability_policies"
}

// AllowsRole reports whether the policy grants its capability to the role
func (p *CapabilityPolicy) AllowsRole(role string) bool {
	for _, part := range strings.Split(p.SubjectRoles, ",") {
		part = strings.TrimSpace(part)
		if part != "" && (part == role || part == "*") {
			return true
		}
	}
	return false
}

// ZeroTrustActionPolicy configures contextual guards for one Action. Rows are
// never deleted, only deactivated; updates go through an explicit command.
type ZeroTrustActionPolicy struct {
	Action                 Action    `gorm:"primaryKey;column:action" json:"action"`
	RequiredAuthLevel      string    `gorm:"column:required_auth_level;not null" json:"requiredAuthLevel"`
	MaxAllowedRisk         string    `gorm:"column:max_allowed_risk;not null" json:"maxAllowedRisk"`
	RequireTrustedDevice   bool      `gorm:"column:require_trusted_device" json:"requireTrustedDevice"`
	RequireFreshSession    bool      `gorm:"column:require_fresh_session" json:"requireFreshSession"`
	BlockAnomaly           bool      `gorm:"column:block_anomaly" json:"blockAnomaly"`
	RequireGeoFence        bool      `gorm:"column:require_geo_fence" json:"requireGeoFence"`
	AllowedCountries       string    `gorm:"column:allowed_countries" json:"allowedCountries"` // comma-separated ISO codes
	BlockVpnTor            bool      `gorm:"column:block_vpn_tor" json:"blockVpnTor"`
	AllowBreakGlassOverride bool     `gorm:"column:allow_break_glass_override" json:"allowBreakGlassOverride"`
	IsActive               bool      `gorm:"column:is_active;default:true" json:"isActive"`
	UpdatedBy              string    `gorm:"column:updated_by" json:"updatedBy"`
	UpdatedAt              time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName sets the table name for GORM
func (ZeroTrustActionPolicy) TableName() string {
	return "zero_trust_action_policies"
}

// RequiredLevel returns the parsed auth level requirement
func (p *ZeroTrustActionPolicy) RequiredLevel() AuthLevel {
	return ParseAuthLevel(p.RequiredAuthLevel)
}

// MaxRisk returns the parsed maximum tolerated risk level
func (p *ZeroTrustActionPolicy) MaxRisk() RiskLevel {
	return ParseRiskLevel(p.MaxAllowedRisk)
}

// CountryAllowed reports whether the country clears the geo-fence.
// An empty allow list with RequireGeoFence set denies everything.
func (p *ZeroTrustActionPolicy) CountryAllowed(country string) bool {
	if !p.RequireGeoFence {
		return true
	}
	if country == "" || p.AllowedCountries == "" {
		return false
	}
	for _, part := range strings.Split(p.AllowedCountries, ",") {
		if strings.TrimSpace(part) == country {
			return true
		}
	}
	return false
}

// DefaultDenyActionPolicy is returned when no policy row exists for an
// action. It requires the highest auth level and tolerates no risk, so an
// unconfigured action can never be allowed.
func DefaultDenyActionPolicy(action Action) *ZeroTrustActionPolicy {
	return &ZeroTrustActionPolicy{
		Action:            action,
		RequiredAuthLevel: AuthLevelBiometric.String(),
		MaxAllowedRisk:    RiskLevelLow.String(),
		RequireGeoFence:   true,
		BlockVpnTor:       true,
		IsActive:          false,
	}
}

// FieldAccessPolicy redacts one field of one table for one role. At most one
// policy exists per (table, field, role); absence implies full access.
type FieldAccessPolicy struct {
	ID            uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	TableName_    string      `gorm:"column:table_name;not null;uniqueIndex:idx_field_access,priority:1" json:"tableName"`
	FieldName     string      `gorm:"column:field_name;not null;uniqueIndex:idx_field_access,priority:2" json:"fieldName"`
	Role          string      `gorm:"column:role;not null;uniqueIndex:idx_field_access,priority:3" json:"role"`
	AccessLevel   AccessLevel `gorm:"column:access_level;not null" json:"accessLevel"`
	PartialLength int         `gorm:"column:partial_length" json:"partialLength"`
	MaskPattern   string      `gorm:"column:mask_pattern" json:"maskPattern"`
	BaseModel
}

// TableName sets the table name for GORM
func (FieldAccessPolicy) TableName() string {
	return "field_access_policies"
}
