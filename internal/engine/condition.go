package engine

import (
	"strings"
	"time"

	"github.com/veriscript-health/clarity/internal/domain"
)

// evaluateCondition reports whether every clause of the condition is
// satisfied by the profile on the given day. Absent clauses are
// vacuously satisfied; clauses combine with logical AND except
// program_enrollment_required, which is terminal: when present it alone
// decides the outcome after all other clauses have been consulted.
func (e *Engine) evaluateCondition(cond *domain.Condition, p *domain.Profile, today time.Time) bool {
	day := today.Format("2006-01-02")

	// Plan and geography
	if cond.PlanSource != "" && cond.PlanSource != p.PlanSource {
		return false
	}
	if cond.State != "" && cond.State != p.State {
		return false
	}
	if len(cond.StateIn) > 0 && !containsString(cond.StateIn, p.State) {
		return false
	}
	if len(cond.StateNotIn) > 0 && containsString(cond.StateNotIn, p.State) {
		return false
	}

	// Medication: substring match against any listed value
	if len(cond.Medication) > 0 {
		matched := false
		for _, m := range cond.Medication {
			if strings.Contains(p.Medication, m) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	// BMI thresholds. bmi_min is a historical alias of bmi_lt.
	if cond.BMILt != nil && p.BMI >= *cond.BMILt {
		return false
	}
	if cond.BMIGe != nil && p.BMI < *cond.BMIGe {
		return false
	}
	if cond.BMIMin != nil && p.BMI >= *cond.BMIMin {
		return false
	}
	if len(cond.BMIRange) == 2 {
		// Half-open interval [lo, hi)
		if p.BMI < cond.BMIRange[0] || p.BMI >= cond.BMIRange[1] {
			return false
		}
	}

	// Age thresholds
	if cond.AgeGe != nil && p.Age < *cond.AgeGe {
		return false
	}
	if cond.AgeLt != nil && p.Age >= *cond.AgeLt {
		return false
	}

	// Comorbidities
	if cond.HasComorbidity != "" && !p.HasComorbidity(cond.HasComorbidity) {
		return false
	}
	if len(cond.HasAnyComorbidity) > 0 && !intersects(cond.HasAnyComorbidity, p.Comorbidities) {
		return false
	}
	if len(cond.MissingComorbidities) > 0 && intersects(cond.MissingComorbidities, p.Comorbidities) {
		return false
	}

	// History, with lifestyle enrollment folded in as a virtual entry
	history := p.EffectiveHistory()
	if cond.HasMedHistory != nil {
		if *cond.HasMedHistory && len(history) == 0 {
			return false
		}
		if !*cond.HasMedHistory && len(history) > 0 {
			return false
		}
	}
	if len(cond.MissingHistory) > 0 && intersects(cond.MissingHistory, history) {
		return false
	}

	// Date clauses against the injected day, compared as ISO strings
	if cond.DateLt != "" && day >= cond.DateLt {
		return false
	}
	if cond.DateGe != "" && day < cond.DateGe {
		return false
	}

	if cond.Expr != "" && !e.evalExpr(cond.Expr, p) {
		return false
	}

	// Terminal clause: the rule fires exactly when the patient is NOT
	// enrolled. Evaluated last so it dominates nothing it shouldn't.
	if cond.ProgramEnrollmentRequired != nil && *cond.ProgramEnrollmentRequired {
		return !p.LifestyleProgramEnrollment
	}

	return true
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// intersects reports whether the two sets share at least one element.
func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
