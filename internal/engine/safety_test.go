package engine

import (
	"testing"

	"github.com/veriscript-health/clarity/internal/domain"
)

func TestCheckSafety(t *testing.T) {
	cfg := &domain.PolicyConfiguration{
		SafetyStop: domain.SafetyStop{Enabled: true, MinBMI: 27, ModalID: "safety-stop-modal"},
	}

	if r := CheckSafety(26.9, cfg); r.Safe || r.ModalID != "safety-stop-modal" {
		t.Errorf("bmi 26.9 should be unsafe with the modal id, got %+v", r)
	}
	if r := CheckSafety(27.0, cfg); !r.Safe {
		t.Errorf("bmi 27.0 should be safe, got %+v", r)
	}
	if r := CheckSafety(50, cfg); !r.Safe {
		t.Errorf("high bmi should be safe, got %+v", r)
	}
}

func TestCheckSafetyDisabledOrMissing(t *testing.T) {
	if r := CheckSafety(10, nil); !r.Safe {
		t.Errorf("nil config should always be safe, got %+v", r)
	}

	disabled := &domain.PolicyConfiguration{
		SafetyStop: domain.SafetyStop{Enabled: false, MinBMI: 27},
	}
	if r := CheckSafety(10, disabled); !r.Safe {
		t.Errorf("disabled safety stop should always be safe, got %+v", r)
	}
}
