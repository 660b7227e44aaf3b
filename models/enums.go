package models

// AuthLevel represents the strength of the authentication backing a request.
// Levels are ordered; a higher value satisfies any lower requirement.
type AuthLevel int

const (
	AuthLevelNone AuthLevel = iota
	AuthLevelSession
	AuthLevelPassword
	AuthLevelMFA
	AuthLevelFreshSession
	AuthLevelBiometric
)

// String returns the canonical name for the auth level
func (l AuthLevel) String() string {
	switch l {
	case AuthLevelSession:
		return "SESSION"
	case AuthLevelPassword:
		return "PASSWORD"
	case AuthLevelMFA:
		return "MFA"
	case AuthLevelFreshSession:
		return "FRESH_SESSION"
	case AuthLevelBiometric:
		return "BIOMETRIC"
	default:
		return "NONE"
	}
}

// ParseAuthLevel maps a stored name back to an AuthLevel, defaulting to None
func ParseAuthLevel(s string) AuthLevel {
	switch s {
	case "SESSION":
		return AuthLevelSession
	case "PASSWORD":
		return AuthLevelPassword
	case "MFA":
		return AuthLevelMFA
	case "FRESH_SESSION":
		return AuthLevelFreshSession
	case "BIOMETRIC":
		return AuthLevelBiometric
	default:
		return AuthLevelNone
	}
}

// RiskLevel buckets a 0-100 risk score
type RiskLevel int

const (
	RiskLevelLow RiskLevel = iota
	RiskLevelMedium
	RiskLevelHigh
	RiskLevelCritical
)

// RiskLevelFromScore buckets a clamped risk score:
// Low <25, Medium <50, High <75, Critical >=75.
func RiskLevelFromScore(score int) RiskLevel {
	switch {
	case score < 25:
		return RiskLevelLow
	case score < 50:
		return RiskLevelMedium
	case score < 75:
		return RiskLevelHigh
	default:
		return RiskLevelCritical
	}
}

// String returns the canonical name for the risk level
func (r RiskLevel) String() string {
	switch r {
	case RiskLevelMedium:
		return "MEDIUM"
	case RiskLevelHigh:
		return "HIGH"
	case RiskLevelCritical:
		return "CRITICAL"
	default:
		return "LOW"
	}
}

// ParseRiskLevel maps a stored name back to a RiskLevel, defaulting to Low
func ParseRiskLevel(s string) RiskLevel {
	switch s {
	case "MEDIUM":
		return RiskLevelMedium
	case "HIGH":
		return RiskLevelHigh
	case "CRITICAL":
		return RiskLevelCritical
	default:
		return RiskLevelLow
	}
}

// Action identifies a guarded operation in the clinic backend. Each action
// has exactly one zero-trust policy row; unknown actions are default-denied.
type Action string

const (
	ActionViewPatientRecord   Action = "VIEW_PATIENT_RECORD"
	ActionUpdatePatientRecord Action = "UPDATE_PATIENT_RECORD"
	ActionViewTreatmentCycle  Action = "VIEW_TREATMENT_CYCLE"
	ActionViewBillingLedger   Action = "VIEW_BILLING_LEDGER"
	ActionExportPatientData   Action = "EXPORT_PATIENT_DATA"
	ActionBiometricIdentify   Action = "BIOMETRIC_IDENTIFY"
	ActionManagePolicies      Action = "MANAGE_POLICIES"
	ActionRevokeSession       Action = "REVOKE_SESSION"
	ActionViewSecurityEvents  Action = "VIEW_SECURITY_EVENTS"
)

// Severity classifies security events
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the canonical name for the severity
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "INFO"
	}
}

// AccessLevel controls per-field redaction for a role
type AccessLevel string

const (
	AccessLevelFull    AccessLevel = "full"
	AccessLevelPartial AccessLevel = "partial"
	AccessLevelMasked  AccessLevel = "masked"
	AccessLevelNone    AccessLevel = "none"
)

// Role names used by the clinic backend. RoleAdmin is exempt from all
// field-access policies.
const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RoleNurse        = "nurse"
	RoleLabTech      = "lab_technician"
	RoleReceptionist = "receptionist"
	RoleBilling      = "billing"
)

// Security event types, namespaced by subsystem
const (
	EventAuthLoginFailed        = "AUTH_LOGIN_FAILED"
	EventAuthFingerprintChanged = "AUTH_FINGERPRINT_CHANGED"
	EventZTPolicyDenied         = "ZT_POLICY_DENIED"
	EventZTBreakGlassUsed       = "ZT_BREAK_GLASS_USED"
	EventCapabilityDenied       = "CAPABILITY_DENIED"
	EventThreatDetected         = "THREAT_DETECTED"
	EventThreatBruteForce       = "THREAT_BRUTE_FORCE"
	EventRiskReclassified       = "RISK_RECLASSIFIED"
	EventBiometricMatch         = "BIOMETRIC_MATCH_ACCEPTED"
	EventSessionRevoked         = "SESSION_REVOKED"
)
