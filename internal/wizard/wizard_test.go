package wizard

import (
	"errors"
	"testing"

	"github.com/veriscript-health/clarity/internal/domain"
)

func testConfig() *domain.PolicyConfiguration {
	return &domain.PolicyConfiguration{
		SafetyStop: domain.SafetyStop{
			Enabled: true,
			MinBMI:  27,
			ModalID: "safety-stop-modal",
		},
	}
}

func clinical() ClinicalInput {
	return ClinicalInput{
		Age:           44,
		BMI:           31.5,
		Comorbidities: []string{"hypertension"},
		Medication:    "Wegovy (semaglutide)",
	}
}

func insurance() InsuranceInput {
	return InsuranceInput{
		State:      "TX",
		PlanSource: domain.PlanSourceEmployer,
		Carrier:    "BCBS",
		MemberID:   "XYZ123456789",
	}
}

func TestHappyPath(t *testing.T) {
	cfg := testConfig()
	s := NewSession()

	if s.State() != StateCollectingClinical {
		t.Fatalf("expected initial state collecting_clinical, got %s", s.State())
	}

	if err := s.SubmitClinical(clinical(), cfg); err != nil {
		t.Fatalf("SubmitClinical failed: %v", err)
	}
	if s.State() != StateCollectingInsurance {
		t.Fatalf("expected collecting_insurance, got %s", s.State())
	}

	if err := s.SubmitInsurance(insurance(), cfg); err != nil {
		t.Fatalf("SubmitInsurance failed: %v", err)
	}
	if s.State() != StateSubmitting {
		t.Fatalf("expected submitting, got %s", s.State())
	}

	verdict := domain.Verdict{
		Status: domain.TierApproveLikely,
		Reason: "Meets standard BMI criteria.",
	}
	if err := s.RecordVerdict(verdict); err != nil {
		t.Fatalf("RecordVerdict failed: %v", err)
	}
	if s.State() != StateAwaitingContact {
		t.Fatalf("expected awaiting_contact, got %s", s.State())
	}

	released, err := s.ProvideContact(domain.Contact{Email: "pat@example.com"})
	if err != nil {
		t.Fatalf("ProvideContact failed: %v", err)
	}
	if released.Status != domain.TierApproveLikely {
		t.Errorf("expected released verdict, got %+v", released)
	}
	if s.State() != StateResolved {
		t.Fatalf("expected resolved, got %s", s.State())
	}

	contact, profile, v, err := s.Result()
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if contact.Email != "pat@example.com" {
		t.Errorf("contact did not round-trip: %+v", contact)
	}
	if profile.Carrier != "BCBS" || profile.BMI != 31.5 {
		t.Errorf("profile did not round-trip: %+v", profile)
	}
	if v.Reason != "Meets standard BMI criteria." {
		t.Errorf("verdict did not round-trip: %+v", v)
	}
}

func TestSafetyStopBlocksClinical(t *testing.T) {
	cfg := testConfig()
	s := NewSession()

	in := clinical()
	in.BMI = 26.5

	err := s.SubmitClinical(in, cfg)
	if !errors.Is(err, ErrSafetyStop) {
		t.Fatalf("expected ErrSafetyStop, got %v", err)
	}
	if s.State() != StateCollectingClinical {
		t.Errorf("expected session to stay in clinical step, got %s", s.State())
	}
	if s.Safety().Safe {
		t.Error("expected unsafe safety result")
	}
	if s.Safety().ModalID != "safety-stop-modal" {
		t.Errorf("expected modal id, got %q", s.Safety().ModalID)
	}

	// Correcting the BMI clears the gate.
	in.BMI = 27.0
	if err := s.SubmitClinical(in, cfg); err != nil {
		t.Fatalf("expected corrected input to pass, got %v", err)
	}
	if s.State() != StateCollectingInsurance {
		t.Errorf("expected collecting_insurance, got %s", s.State())
	}
}

func TestSafetyStopDisabled(t *testing.T) {
	cfg := &domain.PolicyConfiguration{}
	s := NewSession()

	in := clinical()
	in.BMI = 20.0

	if err := s.SubmitClinical(in, cfg); err != nil {
		t.Fatalf("expected disabled safety stop to pass, got %v", err)
	}
}

func TestBack(t *testing.T) {
	cfg := testConfig()
	s := NewSession()

	if err := s.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for back at clinical step, got %v", err)
	}

	_ = s.SubmitClinical(clinical(), cfg)

	if err := s.Back(); err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	if s.State() != StateCollectingClinical {
		t.Errorf("expected collecting_clinical after back, got %s", s.State())
	}
}

func TestOutOfOrderTransitions(t *testing.T) {
	cfg := testConfig()
	s := NewSession()

	if err := s.SubmitInsurance(insurance(), cfg); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for insurance first, got %v", err)
	}
	if err := s.RecordVerdict(domain.Verdict{Status: domain.TierDenied, Reason: "x"}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for verdict first, got %v", err)
	}
	if _, err := s.ProvideContact(domain.Contact{Email: "a@b.com"}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for contact first, got %v", err)
	}
	if _, _, _, err := s.Result(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for result first, got %v", err)
	}
}

func TestInsuranceValidation(t *testing.T) {
	cfg := testConfig()

	t.Run("MissingState", func(t *testing.T) {
		s := NewSession()
		_ = s.SubmitClinical(clinical(), cfg)

		in := insurance()
		in.State = "  "
		if err := s.SubmitInsurance(in, cfg); err == nil {
			t.Error("expected error for missing state")
		}
	})

	t.Run("BadMemberID", func(t *testing.T) {
		s := NewSession()
		_ = s.SubmitClinical(clinical(), cfg)

		in := insurance()
		in.Carrier = "Medicare"
		in.MemberID = "1EG4TE5MK731" // 12 chars, Medicare requires exactly 11
		if err := s.SubmitInsurance(in, cfg); err == nil {
			t.Error("expected error for invalid member ID")
		}
		if s.State() != StateCollectingInsurance {
			t.Errorf("expected session to stay in insurance step, got %s", s.State())
		}
	})

	t.Run("EmptyMemberIDAllowed", func(t *testing.T) {
		s := NewSession()
		_ = s.SubmitClinical(clinical(), cfg)

		in := insurance()
		in.MemberID = ""
		if err := s.SubmitInsurance(in, cfg); err != nil {
			t.Errorf("expected optional member ID to pass, got %v", err)
		}
	})
}

func TestRecordVerdictRequiresPopulatedVerdict(t *testing.T) {
	cfg := testConfig()
	s := NewSession()
	_ = s.SubmitClinical(clinical(), cfg)
	_ = s.SubmitInsurance(insurance(), cfg)

	if err := s.RecordVerdict(domain.Verdict{Status: domain.TierDenied}); err == nil {
		t.Error("expected error for verdict without reason")
	}
}

func TestContactGate(t *testing.T) {
	cfg := testConfig()
	s := NewSession()
	_ = s.SubmitClinical(clinical(), cfg)
	_ = s.SubmitInsurance(insurance(), cfg)
	_ = s.RecordVerdict(domain.Verdict{Status: domain.TierRestricted, Reason: "PA required."})

	if _, err := s.ProvideContact(domain.Contact{Email: "not-an-email"}); err == nil {
		t.Error("expected error for invalid email")
	}
	if s.State() != StateAwaitingContact {
		t.Errorf("expected session to stay at contact gate, got %s", s.State())
	}

	if _, err := s.ProvideContact(domain.Contact{Email: "pat@example.com"}); err != nil {
		t.Errorf("ProvideContact failed: %v", err)
	}
}
