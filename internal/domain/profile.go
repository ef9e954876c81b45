// Package domain defines the core interfaces and types for Clarity.
package domain

import (
	"sort"
	"time"
)

// PlanSource identifies how the patient obtains coverage.
type PlanSource string

const (
	PlanSourceEmployer    PlanSource = "employer"
	PlanSourceMarketplace PlanSource = "marketplace"
	PlanSourceGovernment  PlanSource = "government"
	PlanSourceDirect      PlanSource = "direct"
)

// CarrierOther is the sentinel for a carrier outside the known catalog.
// Free-text resolution (engine.ResolveCarrier) may map it to a canonical key.
const CarrierOther = "Other"

// ComorbidityNone is the UI's explicit "no conditions" checkbox value.
// It is stripped during normalization; an empty set means the same thing.
const ComorbidityNone = "none"

// Profile is a single coverage-check submission. It is created per call,
// never mutated after normalization, and has no identity beyond the call.
type Profile struct {
	Carrier         string     `json:"carrier"`
	CarrierFreeText string     `json:"carrierFreeText,omitempty"`
	State           string     `json:"state"`
	PlanSource      PlanSource `json:"planSource"`
	EmployerName    string     `json:"employerName,omitempty"`

	BMI float64 `json:"bmi"`
	Age int     `json:"age"`

	// Comorbidities and MedicationHistory are sets: duplicates collapse and
	// order does not matter for matching.
	Comorbidities     []string `json:"comorbidities"`
	MedicationHistory []string `json:"medicationHistory"`

	Medication                 string `json:"medication"`
	LifestyleProgramEnrollment bool   `json:"lifestyleProgramEnrollment"`

	// MemberID is optional; absent is always valid.
	MemberID string `json:"memberId,omitempty"`
}

// Normalize collapses duplicate set entries and strips the "none" sentinel.
// Returns the profile itself for chaining.
func (p *Profile) Normalize() *Profile {
	p.Comorbidities = normalizeSet(p.Comorbidities)
	p.MedicationHistory = normalizeSet(p.MedicationHistory)
	return p
}

// HasComorbidity reports whether the profile carries the exact condition code.
func (p *Profile) HasComorbidity(code string) bool {
	for _, c := range p.Comorbidities {
		if c == code {
			return true
		}
	}
	return false
}

// EffectiveHistory is the medication history plus the virtual
// "lifestyle_program" entry when the patient is enrolled. Step-therapy and
// history clauses match against this combined set.
func (p *Profile) EffectiveHistory() []string {
	if !p.LifestyleProgramEnrollment {
		return p.MedicationHistory
	}
	hist := make([]string, 0, len(p.MedicationHistory)+1)
	hist = append(hist, p.MedicationHistory...)
	hist = append(hist, HistoryLifestyleProgram)
	return hist
}

// HistoryLifestyleProgram is the virtual history code for lifestyle program
// enrollment, unified with prior-treatment codes for clause matching.
const HistoryLifestyleProgram = "lifestyle_program"

func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || v == ComorbidityNone {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Contact is the lead's contact record, collected at the email gate.
type Contact struct {
	Email string `json:"email"`
}

// Submission is the persisted record of one classified profile: the profile,
// the contact record, and the verdict the engine produced for it.
type Submission struct {
	ID        string    `json:"id"`
	Contact   Contact   `json:"contact"`
	Profile   Profile   `json:"profile"`
	Verdict   Verdict   `json:"verdict"`
	TraceID   string    `json:"traceId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
