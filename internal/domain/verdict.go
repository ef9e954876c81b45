package domain

// Tier is the closed set of coverage-likelihood classifications.
type Tier string

const (
	// TierApproveLikely indicates coverage is expected with standard criteria.
	TierApproveLikely Tier = "approve-likely"

	// TierRestricted indicates coverage behind prior authorization or other
	// utilization management.
	TierRestricted Tier = "restricted"

	// TierDenied indicates the payer excludes the medication for this profile.
	TierDenied Tier = "denied"

	// TierBorderline indicates the clinical picture sits in a grey zone that
	// needs manual review.
	TierBorderline Tier = "borderline"
)

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierApproveLikely, TierRestricted, TierDenied, TierBorderline:
		return true
	}
	return false
}

// Verdict is the engine's classification of a profile. Reason is always
// populated; downstream consumers (result rendering, lead export) rely on
// Status and Reason being non-empty.
type Verdict struct {
	Status  Tier          `json:"status"`
	Reason  string        `json:"reason"`
	Pricing *PricingModel `json:"pricing,omitempty"`
}

// PricingModel is the carrier's pricing hint surfaced alongside a verdict.
type PricingModel struct {
	Model         string `json:"model"`
	EstCopayRange string `json:"estCopayRange,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// StatusReason pairs a tier with its human-readable justification. Policy
// tables store these as rule outcomes.
type StatusReason struct {
	Status Tier   `json:"status"`
	Reason string `json:"reason"`
}

// SafetyResult is the outcome of the pre-flight safety stop check.
type SafetyResult struct {
	Safe    bool   `json:"safe"`
	ModalID string `json:"modalId,omitempty"`
}

// IDValidation is the outcome of a member identifier check. Message is set
// only when Valid is false.
type IDValidation struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}
