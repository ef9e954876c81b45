// Package wizard models the intake flow as an explicit state machine.
package wizard

import (
	"fmt"
	"strings"

	"github.com/veriscript-health/clarity/internal/domain"
	"github.com/veriscript-health/clarity/internal/engine"
)

// State identifies a step in the intake flow.
type State string

const (
	// StateCollectingClinical gathers age, BMI, comorbidities, history,
	// and the target medication.
	StateCollectingClinical State = "collecting_clinical"

	// StateCollectingInsurance gathers state, plan source, carrier, and
	// member ID. Reachable only after the clinical step clears the
	// safety stop.
	StateCollectingInsurance State = "collecting_insurance"

	// StateSubmitting means the profile is complete and awaiting a verdict.
	StateSubmitting State = "submitting"

	// StateAwaitingContact holds a verdict behind the contact gate.
	StateAwaitingContact State = "awaiting_contact"

	// StateResolved is terminal: the verdict has been released.
	StateResolved State = "resolved"
)

// ErrInvalidTransition indicates an event that is not legal in the
// current state.
var ErrInvalidTransition = fmt.Errorf("invalid wizard transition")

// ErrSafetyStop indicates the clinical step was blocked by the safety
// stop guard. The session stays in StateCollectingClinical.
var ErrSafetyStop = fmt.Errorf("safety stop triggered")

// Session is one patient's walk through the intake flow. It is not
// safe for concurrent use; each session belongs to a single caller.
type Session struct {
	state   State
	profile domain.Profile
	contact domain.Contact
	verdict domain.Verdict
	safety  domain.SafetyResult
}

// NewSession starts a session at the clinical step.
func NewSession() *Session {
	return &Session{state: StateCollectingClinical}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Profile returns a copy of the profile collected so far.
func (s *Session) Profile() domain.Profile {
	return s.profile
}

// Safety returns the most recent safety stop evaluation.
func (s *Session) Safety() domain.SafetyResult {
	return s.safety
}

// ClinicalInput is the data collected at the clinical step.
type ClinicalInput struct {
	Age                        int
	BMI                        float64
	Comorbidities              []string
	MedicationHistory          []string
	Medication                 string
	LifestyleProgramEnrollment bool
}

// SubmitClinical records the clinical data and advances to the insurance
// step. The safety stop guard gates the transition: an unsafe BMI keeps
// the session in the clinical step and returns ErrSafetyStop, with the
// guard result available via Safety.
func (s *Session) SubmitClinical(in ClinicalInput, cfg *domain.PolicyConfiguration) error {
	if s.state != StateCollectingClinical {
		return fmt.Errorf("%w: clinical input in state %s", ErrInvalidTransition, s.state)
	}

	s.safety = engine.CheckSafety(in.BMI, cfg)
	if !s.safety.Safe {
		return ErrSafetyStop
	}

	s.profile.Age = in.Age
	s.profile.BMI = in.BMI
	s.profile.Comorbidities = in.Comorbidities
	s.profile.MedicationHistory = in.MedicationHistory
	s.profile.Medication = in.Medication
	s.profile.LifestyleProgramEnrollment = in.LifestyleProgramEnrollment

	s.state = StateCollectingInsurance
	return nil
}

// InsuranceInput is the data collected at the insurance step.
type InsuranceInput struct {
	State           string
	PlanSource      domain.PlanSource
	Carrier         string
	CarrierFreeText string
	EmployerName    string
	MemberID        string
}

// SubmitInsurance records the insurance data and advances to submitting.
// The member ID, when present, must pass carrier validation.
func (s *Session) SubmitInsurance(in InsuranceInput, cfg *domain.PolicyConfiguration) error {
	if s.state != StateCollectingInsurance {
		return fmt.Errorf("%w: insurance input in state %s", ErrInvalidTransition, s.state)
	}

	if strings.TrimSpace(in.State) == "" {
		return fmt.Errorf("state is required")
	}
	if in.Carrier == "" {
		return fmt.Errorf("carrier is required")
	}

	if check := engine.ValidateMemberID(in.Carrier, in.MemberID, in.State, cfg); !check.Valid {
		return fmt.Errorf("member id rejected: %s", check.Message)
	}

	s.profile.State = in.State
	s.profile.PlanSource = in.PlanSource
	s.profile.Carrier = in.Carrier
	s.profile.CarrierFreeText = in.CarrierFreeText
	s.profile.EmployerName = in.EmployerName
	s.profile.MemberID = in.MemberID

	s.state = StateSubmitting
	return nil
}

// Back returns to the previous collection step. Only the insurance step
// can go back; later states have committed data.
func (s *Session) Back() error {
	if s.state != StateCollectingInsurance {
		return fmt.Errorf("%w: back in state %s", ErrInvalidTransition, s.state)
	}
	s.state = StateCollectingClinical
	return nil
}

// RecordVerdict stores the engine's verdict and moves to the contact gate.
func (s *Session) RecordVerdict(v domain.Verdict) error {
	if s.state != StateSubmitting {
		return fmt.Errorf("%w: verdict in state %s", ErrInvalidTransition, s.state)
	}
	if v.Status == "" || v.Reason == "" {
		return fmt.Errorf("verdict must carry a status and reason")
	}

	s.verdict = v
	s.state = StateAwaitingContact
	return nil
}

// ProvideContact records the contact record and resolves the session,
// releasing the verdict.
func (s *Session) ProvideContact(c domain.Contact) (domain.Verdict, error) {
	if s.state != StateAwaitingContact {
		return domain.Verdict{}, fmt.Errorf("%w: contact in state %s", ErrInvalidTransition, s.state)
	}
	if !strings.Contains(c.Email, "@") {
		return domain.Verdict{}, fmt.Errorf("valid email is required")
	}

	s.contact = c
	s.state = StateResolved
	return s.verdict, nil
}

// Result returns the submission record for a resolved session.
func (s *Session) Result() (domain.Contact, domain.Profile, domain.Verdict, error) {
	if s.state != StateResolved {
		return domain.Contact{}, domain.Profile{}, domain.Verdict{}, fmt.Errorf("%w: result in state %s", ErrInvalidTransition, s.state)
	}
	return s.contact, s.profile, s.verdict, nil
}
