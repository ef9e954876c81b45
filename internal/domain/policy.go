package domain

import (
	"encoding/json"
	"time"
)

// PolicyConfiguration is the immutable policy document the engine evaluates
// against. It is loaded once by the policy store and replaced wholesale on
// reload; nothing mutates it in place after publication, so it is safe to
// share across concurrent classify calls.
type PolicyConfiguration struct {
	// CarrierRules holds per-carrier state tables used by the exclusion and
	// note guards of the standard lookup tier.
	CarrierRules map[string]CarrierRules `json:"carrierRules"`

	// CoverageEngine holds each carrier's ordered rule list, default status,
	// pricing model, and member ID validation override.
	CoverageEngine map[string]CarrierCoverage `json:"coverageEngine"`

	// MedicationOverrides force a verdict for specific medications before any
	// other tier is consulted.
	MedicationOverrides []MedicationOverride `json:"medicationOverrides"`

	ClinicalOverrides ClinicalOverrides `json:"clinicalOverrides"`

	EmployerDatabase EmployerDatabase `json:"employerDatabase"`

	// SEHPAudit maps states to the audited status of their state-employee
	// health plans.
	SEHPAudit map[string]StatusReason `json:"sehpAudit"`

	PlanSourceMatrix PlanSourceMatrix `json:"planSourceMatrix"`

	MedicaidProgram MedicaidProgram `json:"medicaidProgram"`

	SafetyStop SafetyStop `json:"safetyStop"`

	PricingIntelligence PricingIntelligence `json:"pricingIntelligence"`
}

// CarrierRules holds a carrier's per-state posture.
type CarrierRules struct {
	Default         Tier              `json:"default"`
	States          map[string]Tier   `json:"states,omitempty"`
	StateNotes      map[string]string `json:"stateNotes,omitempty"`
	StateExclusions []string          `json:"stateExclusions,omitempty"`
}

// CarrierCoverage is one carrier's entry in the coverage engine table.
type CarrierCoverage struct {
	Rules         []CoverageRule      `json:"rules"`
	DefaultStatus Tier                `json:"defaultStatus"`
	Pricing       *PricingModel       `json:"pricing,omitempty"`
	MemberID      *MemberIDValidation `json:"memberIdValidation,omitempty"`
}

// CoverageRule pairs a condition with the verdict it produces. Rules are
// evaluated in array order; the first condition that matches wins.
type CoverageRule struct {
	If   Condition    `json:"if"`
	Then StatusReason `json:"then"`
}

// MemberIDValidation is a carrier-declared identifier format. When present it
// takes precedence over the built-in carrier heuristics.
type MemberIDValidation struct {
	Regex    string `json:"regex"`
	HelpText string `json:"helpText,omitempty"`
}

// MedicationOverride forces a fixed verdict when the profile's medication
// contains any of the matched names.
type MedicationOverride struct {
	Match  StringList `json:"match"`
	Status Tier       `json:"status"`
	Reason string     `json:"reason"`
}

// ClinicalOverrides are the named override blocks applied within the cascade.
// A nil block (or Enabled=false) is skipped.
type ClinicalOverrides struct {
	DiabetesGuarantee   *DiabetesGuarantee   `json:"diabetesGuarantee,omitempty"`
	MedicareCVDFirewall *MedicareCVDFirewall `json:"medicareCvdFirewall,omitempty"`
	OSABypass           *OSABypass           `json:"osaBypass,omitempty"`
	T2DStepTherapy      *T2DStepTherapy      `json:"t2dStepTherapy,omitempty"`
	GreyZoneCheck       *GreyZoneCheck       `json:"greyZoneCheck,omitempty"`
}

// DiabetesGuarantee approves a diabetic patient on a type-2-indicated
// medication.
type DiabetesGuarantee struct {
	Enabled           bool         `json:"enabled"`
	RequiredCondition string       `json:"requiredCondition"`
	Medications       StringList   `json:"medications"`
	Result            StatusReason `json:"result"`
}

// MedicareCVDFirewall is Medicare's statutory weight-loss exclusion with its
// narrow established-CVD exception.
type MedicareCVDFirewall struct {
	Enabled          bool         `json:"enabled"`
	TriggerCondition string       `json:"triggerCondition"`
	ResultPass       StatusReason `json:"resultPass"`
	ResultFail       StatusReason `json:"resultFail"`
}

// OSABypass approves sleep-apnea patients on a medication carrying an OSA
// indication.
type OSABypass struct {
	Enabled           bool         `json:"enabled"`
	RequiredCondition string       `json:"requiredCondition"`
	Medications       StringList   `json:"medications"`
	Result            StatusReason `json:"result"`
}

// T2DStepTherapy restricts diabetic patients who have not tried the required
// first-line treatments.
type T2DStepTherapy struct {
	Enabled           bool         `json:"enabled"`
	RequiredCondition string       `json:"requiredCondition"`
	RequiredHistory   StringList   `json:"requiredHistory"`
	Result            StatusReason `json:"result"`
}

// GreyZoneCheck softens an otherwise-denied commercial case into a restricted
// one when the named comorbidity and BMI floor are both present.
type GreyZoneCheck struct {
	Enabled           bool         `json:"enabled"`
	RequiredCondition string       `json:"requiredCondition"`
	BMIMin            float64      `json:"bmiMin"`
	Result            StatusReason `json:"result"`
}

// EmployerDatabase holds the employer carve-out and managed lists. Entries
// are lower-cased name fragments matched by substring.
type EmployerDatabase struct {
	RedListCarveOuts     []string          `json:"redListCarveOuts,omitempty"`
	GreenListManaged     map[string]string `json:"greenListManaged,omitempty"`
	YellowListRestricted map[string]string `json:"yellowListRestricted,omitempty"`
}

// PlanSourceMatrix holds plan-source driven branches.
type PlanSourceMatrix struct {
	Government     GovernmentMatrix `json:"government"`
	MarketplaceACA MarketplaceACA   `json:"marketplaceAca"`
}

// GovernmentMatrix holds the government payer sub-branches.
type GovernmentMatrix struct {
	Tricare TricareMatrix `json:"tricare"`
}

// TricareMatrix splits military coverage on the For-Life age cutoff.
type TricareMatrix struct {
	AgeCutoffForLife   int          `json:"ageCutoffForLife"`
	TricareForLife     StatusReason `json:"tricareForLife"`
	TricarePrimeSelect StatusReason `json:"tricarePrimeSelect"`
}

// MarketplaceACA holds the marketplace branch tables.
type MarketplaceACA struct {
	// StateMandates are date-aware coverage mandates: once today reaches
	// EffectiveDate the mandate's status applies.
	StateMandates map[string]StateMandate `json:"stateMandates,omitempty"`
	Exceptions    map[string]StatusReason `json:"exceptions,omitempty"`
	DefaultStatus Tier                    `json:"defaultStatus"`
	DefaultReason string                  `json:"defaultReason"`
}

// StateMandate is a state coverage mandate with an effective date.
type StateMandate struct {
	EffectiveDate string `json:"effectiveDate"` // YYYY-MM-DD
	Status        Tier   `json:"status"`
	Reason        string `json:"reason"`
}

// MedicaidProgram holds the state-program branch tables.
type MedicaidProgram struct {
	RedStates    []string                  `json:"redStates,omitempty"`
	YellowStates []string                  `json:"yellowStates,omitempty"`
	SunsetStates map[string]SunsetSchedule `json:"sunsetStates,omitempty"`
}

// SunsetSchedule encodes a state benefit's three time-ordered phases: before
// the cutoff, after the cutoff but before reinstatement, and reinstated.
type SunsetSchedule struct {
	CutoffDate        string       `json:"cutoffDate"`        // YYYY-MM-DD
	ReinstatementDate string       `json:"reinstatementDate"` // YYYY-MM-DD, optional
	PreCutoff         StatusReason `json:"preCutoff"`
	PostCutoff        StatusReason `json:"postCutoff"`
	Reinstated        StatusReason `json:"reinstated"`
}

// SafetyStop configures the pre-flight clinical gate.
type SafetyStop struct {
	Enabled bool    `json:"enabled"`
	MinBMI  float64 `json:"minBmi"`
	ModalID string  `json:"modalId"`
}

// PricingIntelligence holds the accumulator/regulatory warnings surfaced with
// certain verdict tiers.
type PricingIntelligence struct {
	SavingsCardWarning string `json:"savingsCardWarning,omitempty"`
	CompoundingWarning string `json:"compoundingWarning,omitempty"`
}

// Condition is one declarative clause set attached to a rule. Every field is
// optional; an absent field is vacuously satisfied. Clauses combine with
// logical AND, except ProgramEnrollmentRequired which is terminal (see the
// condition evaluator).
type Condition struct {
	PlanSource PlanSource `json:"planSource,omitempty"`

	State      string   `json:"state,omitempty"`
	StateIn    []string `json:"state_in,omitempty"`
	StateNotIn []string `json:"state_not_in,omitempty"`

	// Medication matches by substring against any listed value. Accepts a
	// bare string or an array in JSON.
	Medication StringList `json:"medication,omitempty"`

	BMILt *float64 `json:"bmi_lt,omitempty"`
	BMIGe *float64 `json:"bmi_ge,omitempty"`
	// BMIMin is a historical duplicate of BMILt kept for document
	// compatibility; identical semantics.
	BMIMin   *float64  `json:"bmi_min,omitempty"`
	BMIRange []float64 `json:"bmi_range,omitempty"` // [lo, hi)

	AgeGe *int `json:"age_ge,omitempty"`
	AgeLt *int `json:"age_lt,omitempty"`

	HasComorbidity       string   `json:"has_comorbidity,omitempty"`
	HasAnyComorbidity    []string `json:"has_any_comorbidity,omitempty"`
	MissingComorbidities []string `json:"missing_comorbidities,omitempty"`

	HasMedHistory  *bool    `json:"has_med_history,omitempty"`
	MissingHistory []string `json:"missing_history,omitempty"`

	ProgramEnrollmentRequired *bool `json:"program_enrollment_required,omitempty"`

	DateLt string `json:"date_lt,omitempty"` // YYYY-MM-DD
	DateGe string `json:"date_ge,omitempty"` // YYYY-MM-DD

	// Expr is an optional CEL expression compiled at policy-load time and
	// AND-combined with the typed clauses.
	Expr string `json:"expr,omitempty"`
}

// StringList accepts either a JSON string or an array of strings.
type StringList []string

// UnmarshalJSON implements the string-or-array decoding.
func (s *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = StringList(many)
	return nil
}

// PolicyDocument is a stored copy of the raw policy JSON, enabling reload
// from the repository.
type PolicyDocument struct {
	ID       string    `json:"id"`
	Raw      []byte    `json:"raw"`
	LoadedAt time.Time `json:"loadedAt"`
}
