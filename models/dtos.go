package models

import "time"

// RequestEnvelope is the inbound contract consumed from the web layer
type RequestEnvelope struct {
	ActorID           string `json:"actorId,omitempty"`
	Action            Action `json:"action"`
	ResourcePath      string `json:"resourcePath"`
	Capability        string `json:"capability"`
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
	SessionID         string `json:"sessionId,omitempty"`
	CorrelationID     string `json:"correlationId"`
	SourceIP          string `json:"sourceIp"`
}

// ThreatAssessment is a computed view over the event history plus external
// reputation lookups. It is never persisted on its own.
type ThreatAssessment struct {
	IPAddress string    `json:"ipAddress"`
	Username  string    `json:"username,omitempty"`
	RiskScore int       `json:"riskScore"`
	RiskLevel string    `json:"riskLevel"`
	Reasons   []string  `json:"reasons"`
	CreatedAt time.Time `json:"createdAt"`
}

// IpIntelligence is an on-demand view of what is known about an address
type IpIntelligence struct {
	IPAddress    string `json:"ipAddress"`
	Country      string `json:"country,omitempty"`
	KnownBad     bool   `json:"knownBad"`
	VpnOrTor     bool   `json:"vpnOrTor"`
	RecentDenials int   `json:"recentDenials"`
}

// DeviceTrust is an on-demand view of a device fingerprint's standing for a
// principal
type DeviceTrust struct {
	Fingerprint string    `json:"fingerprint"`
	UserID      string    `json:"userId"`
	FirstSeen   time.Time `json:"firstSeen"`
	Trusted     bool      `json:"trusted"`
}

// IdentificationResult is the transient outcome of a 1:N biometric search.
// Score is a false-accept-rate proxy: lower means a stronger match.
type IdentificationResult struct {
	Match     bool    `json:"match"`
	PatientID string  `json:"patientId,omitempty"`
	Score     float64 `json:"score"`
}

// PatientRecord is the patient DTO released to business handlers. String
// fields are subject to per-role field-access policies on table "patients".
type PatientRecord struct {
	PatientID   string `json:"patientId"`
	FullName    string `json:"fullName"`
	NationalID  string `json:"nationalId"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Diagnosis   string `json:"diagnosis"`
	CycleNumber int    `json:"cycleNumber"`
}

// MaskableFields implements masking.Maskable. The accessor list is declared
// explicitly so redaction never relies on runtime reflection.
func (p *PatientRecord) MaskableFields() []MaskableField {
	return []MaskableField{
		{Name: "full_name", Get: func() string { return p.FullName }, Set: func(v string) { p.FullName = v }},
		{Name: "national_id", Get: func() string { return p.NationalID }, Set: func(v string) { p.NationalID = v }},
		{Name: "phone", Get: func() string { return p.Phone }, Set: func(v string) { p.Phone = v }},
		{Name: "email", Get: func() string { return p.Email }, Set: func(v string) { p.Email = v }},
		{Name: "diagnosis", Get: func() string { return p.Diagnosis }, Set: func(v string) { p.Diagnosis = v }},
	}
}

// MaskingTable returns the policy table name for patient DTOs
func (p *PatientRecord) MaskingTable() string { return "patients" }

// BillingEntry is the billing-ledger DTO, masked against table "billing"
type BillingEntry struct {
	EntryID       string `json:"entryId"`
	PatientID     string `json:"patientId"`
	CardNumber    string `json:"cardNumber"`
	InvoiceAmount string `json:"invoiceAmount"`
	Notes         string `json:"notes"`
}

// MaskableFields implements masking.Maskable
func (b *BillingEntry) MaskableFields() []MaskableField {
	return []MaskableField{
		{Name: "card_number", Get: func() string { return b.CardNumber }, Set: func(v string) { b.CardNumber = v }},
		{Name: "invoice_amount", Get: func() string { return b.InvoiceAmount }, Set: func(v string) { b.InvoiceAmount = v }},
		{Name: "notes", Get: func() string { return b.Notes }, Set: func(v string) { b.Notes = v }},
	}
}

// MaskingTable returns the policy table name for billing DTOs
func (b *BillingEntry) MaskingTable() string { return "billing" }

// MaskableField is one redactable string property of a DTO: a name matching
// FieldAccessPolicy.FieldName plus explicit get/set accessors.
type MaskableField struct {
	Name string
	Get  func() string
	Set  func(string)
}
