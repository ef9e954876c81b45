package engine

import (
	"github.com/veriscript-health/clarity/internal/domain"
)

// CheckSafety is the pre-flight clinical gate. A disabled or absent
// safety-stop block always reports safe; otherwise a BMI below the
// configured minimum reports unsafe with the configured modal ID.
func CheckSafety(bmi float64, cfg *domain.PolicyConfiguration) domain.SafetyResult {
	if cfg == nil || !cfg.SafetyStop.Enabled {
		return domain.SafetyResult{Safe: true}
	}
	if bmi < cfg.SafetyStop.MinBMI {
		return domain.SafetyResult{Safe: false, ModalID: cfg.SafetyStop.ModalID}
	}
	return domain.SafetyResult{Safe: true}
}
