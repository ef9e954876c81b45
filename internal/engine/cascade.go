package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/veriscript-health/clarity/internal/domain"
)

// Degraded verdict reasons. The UI surfaces these verbatim; they must
// read like policy outcomes, not faults.
const (
	reasonConfigError   = "Configuration Error: coverage rules not loaded."
	reasonUnknownPayer  = "Standard Payer Policy: Manual verification required."
	reasonFallback      = "Standard clinical criteria applied. Prior Authorization likely."
	reasonStateExcluded = "Plan documents exclude weight management medications in your state."
)

// Classify runs the profile through the rule cascade and returns a
// verdict. Tiers are evaluated in fixed precedence; the first tier
// whose guard matches returns immediately. Failures degrade to a
// restricted verdict, never to an error.
func (e *Engine) Classify(p *domain.Profile, cfg *domain.PolicyConfiguration, today time.Time) domain.Verdict {
	if cfg == nil || len(cfg.CoverageEngine) == 0 {
		return domain.Verdict{Status: domain.TierRestricted, Reason: reasonConfigError}
	}

	p.Normalize()
	carrier := ResolveCarrier(p.Carrier, p.CarrierFreeText, p.PlanSource)

	// Tier 1: medication overrides beat everything.
	if v, ok := e.medicationOverride(p, cfg); ok {
		return v
	}

	// Tier 2: employer carve-out and managed lists.
	if v, ok := e.employerLists(p, cfg); ok {
		return v
	}

	// Tier 3: state-employee health plan audit.
	if v, ok := e.sehpAudit(p, cfg); ok {
		return v
	}

	// Tier 4: closed-network carrier (Kaiser runs its own program).
	if carrier == "Kaiser" {
		return e.kaiserBranch(p)
	}

	// Tier 5: market-exit carrier (Humana left the commercial market).
	if carrier == "Humana" && p.PlanSource != domain.PlanSourceGovernment {
		return e.humanaExitBranch(p)
	}

	// Tier 6: government payer, age-split military coverage.
	if p.PlanSource == domain.PlanSourceGovernment && carrier == "Tricare" {
		return e.tricareBranch(p, cfg)
	}

	// Tier 7: state Medicaid program tables.
	if carrier == "Medicaid" {
		if v, ok := e.medicaidBranch(p, cfg, today); ok {
			return v
		}
	}

	// Tier 8: marketplace mandates and exceptions.
	if p.PlanSource == domain.PlanSourceMarketplace {
		if v, ok := e.marketplaceBranch(p, cfg, today); ok {
			return v
		}
	}

	// Tiers 9-11: the carrier's ordered rule list with its guards and
	// the grey-zone softening modifier, then the configured default.
	return e.standardLookup(carrier, p, cfg, today)
}

// medicationOverride forces a fixed verdict for specific medications
// (lower-efficacy options, compounded products) before any carrier
// logic is consulted.
func (e *Engine) medicationOverride(p *domain.Profile, cfg *domain.PolicyConfiguration) (domain.Verdict, bool) {
	for _, ov := range cfg.MedicationOverrides {
		for _, m := range ov.Match {
			if strings.Contains(p.Medication, m) {
				return domain.Verdict{Status: ov.Status, Reason: ov.Reason}, true
			}
		}
	}
	return domain.Verdict{}, false
}

// employerLists checks the employer name against the red carve-out
// list, then the green managed list, then the yellow restricted list.
// Fragments are lower-cased substrings.
func (e *Engine) employerLists(p *domain.Profile, cfg *domain.PolicyConfiguration) (domain.Verdict, bool) {
	if p.PlanSource != domain.PlanSourceEmployer || p.EmployerName == "" {
		return domain.Verdict{}, false
	}
	name := strings.ToLower(p.EmployerName)
	db := cfg.EmployerDatabase

	for _, frag := range db.RedListCarveOuts {
		if strings.Contains(name, frag) {
			return domain.Verdict{
				Status: domain.TierDenied,
				Reason: "Your employer's plan documents carve out weight management medications entirely.",
			}, true
		}
	}
	for frag, reason := range db.GreenListManaged {
		if strings.Contains(name, frag) {
			return domain.Verdict{Status: domain.TierApproveLikely, Reason: reason}, true
		}
	}
	for frag, reason := range db.YellowListRestricted {
		if strings.Contains(name, frag) {
			return domain.Verdict{Status: domain.TierRestricted, Reason: reason}, true
		}
	}
	return domain.Verdict{}, false
}

// sehpAudit applies the state-employee health plan audit table for
// employer plans in audited states.
func (e *Engine) sehpAudit(p *domain.Profile, cfg *domain.PolicyConfiguration) (domain.Verdict, bool) {
	if p.PlanSource != domain.PlanSourceEmployer {
		return domain.Verdict{}, false
	}
	sr, ok := cfg.SEHPAudit[p.State]
	if !ok {
		return domain.Verdict{}, false
	}
	return domain.Verdict{
		Status: sr.Status,
		Reason: fmt.Sprintf("State Employee Health Plan: %s", sr.Reason),
	}, true
}

// kaiserBranch handles the closed-network HMO. Kaiser routes weight
// management through its own internal program, so the verdict depends
// on plan source and program enrollment rather than the rule list.
func (e *Engine) kaiserBranch(p *domain.Profile) domain.Verdict {
	if p.PlanSource == domain.PlanSourceGovernment {
		if p.Age >= 65 {
			// Senior Advantage mirrors the Medicare statutory posture,
			// including its cardiovascular exception.
			if p.HasComorbidity("established_cvd") {
				return domain.Verdict{
					Status: domain.TierRestricted,
					Reason: "Kaiser Senior Advantage covers cardiovascular-indicated use with documentation of established CVD.",
				}
			}
			return domain.Verdict{
				Status: domain.TierDenied,
				Reason: "Kaiser Senior Advantage follows the Medicare exclusion for weight loss medications.",
			}
		}
		return domain.Verdict{
			Status: domain.TierRestricted,
			Reason: "Kaiser managed Medicaid requires referral through Kaiser's internal weight management program.",
		}
	}

	if p.LifestyleProgramEnrollment {
		return domain.Verdict{
			Status: domain.TierRestricted,
			Reason: "Kaiser covers GLP-1s through its internal medical weight management track; your enrollment starts the clock.",
		}
	}
	return domain.Verdict{
		Status: domain.TierDenied,
		Reason: "Kaiser requires completing its internal medical weight management program before covering GLP-1s.",
	}
}

// humanaExitBranch handles Humana's exit from the commercial market.
// Commercial coverage is denied outright; the narrow exception is an
// established-CVD patient on a cardiovascular-indicated medication.
func (e *Engine) humanaExitBranch(p *domain.Profile) domain.Verdict {
	if p.HasComorbidity("established_cvd") && strings.Contains(p.Medication, "Wegovy") {
		return domain.Verdict{
			Status: domain.TierRestricted,
			Reason: "Humana's legacy commercial plans cover Wegovy under its cardiovascular indication with documented CVD.",
		}
	}
	return domain.Verdict{
		Status: domain.TierDenied,
		Reason: "Humana has exited the commercial market; active employer and marketplace plans are in runoff without new weight management coverage.",
	}
}

// tricareBranch splits military coverage on the For-Life age cutoff.
func (e *Engine) tricareBranch(p *domain.Profile, cfg *domain.PolicyConfiguration) domain.Verdict {
	tm := cfg.PlanSourceMatrix.Government.Tricare
	cutoff := tm.AgeCutoffForLife
	if cutoff == 0 {
		cutoff = 65
	}
	if p.Age >= cutoff {
		return domain.Verdict{Status: tm.TricareForLife.Status, Reason: tm.TricareForLife.Reason}
	}
	return domain.Verdict{Status: tm.TricarePrimeSelect.Status, Reason: tm.TricarePrimeSelect.Reason}
}

// medicaidBranch applies the state program tables: red states deny,
// sunset states select a phase by date, yellow states restrict with
// the state note when one exists.
func (e *Engine) medicaidBranch(p *domain.Profile, cfg *domain.PolicyConfiguration, today time.Time) (domain.Verdict, bool) {
	mp := cfg.MedicaidProgram
	day := today.Format("2006-01-02")

	if containsString(mp.RedStates, p.State) {
		return domain.Verdict{
			Status: domain.TierDenied,
			Reason: fmt.Sprintf("%s Medicaid excludes GLP-1 medications for weight management.", p.State),
		}, true
	}

	if sched, ok := mp.SunsetStates[p.State]; ok {
		sr := sched.PreCutoff
		if sched.CutoffDate != "" && day >= sched.CutoffDate {
			sr = sched.PostCutoff
			if sched.ReinstatementDate != "" && day >= sched.ReinstatementDate {
				sr = sched.Reinstated
			}
		}
		return domain.Verdict{Status: sr.Status, Reason: sr.Reason}, true
	}

	if containsString(mp.YellowStates, p.State) {
		reason := fmt.Sprintf("%s Medicaid covers GLP-1s behind strict prior authorization.", p.State)
		if cr, ok := cfg.CarrierRules["Medicaid"]; ok {
			if note, ok := cr.StateNotes[p.State]; ok {
				reason = note
			}
		}
		return domain.Verdict{Status: domain.TierRestricted, Reason: reason}, true
	}

	return domain.Verdict{}, false
}

// marketplaceBranch checks date-aware state mandates, then per-state
// exceptions, then the marketplace-wide default.
func (e *Engine) marketplaceBranch(p *domain.Profile, cfg *domain.PolicyConfiguration, today time.Time) (domain.Verdict, bool) {
	aca := cfg.PlanSourceMatrix.MarketplaceACA
	day := today.Format("2006-01-02")

	if m, ok := aca.StateMandates[p.State]; ok {
		if m.EffectiveDate == "" || day >= m.EffectiveDate {
			return domain.Verdict{Status: m.Status, Reason: m.Reason}, true
		}
	}
	if sr, ok := aca.Exceptions[p.State]; ok {
		return domain.Verdict{Status: sr.Status, Reason: sr.Reason}, true
	}
	if aca.DefaultStatus != "" {
		return domain.Verdict{Status: aca.DefaultStatus, Reason: aca.DefaultReason}, true
	}
	return domain.Verdict{}, false
}

// standardLookup consults the carrier's ordered rule list, first match
// wins, after the state-exclusion and statutory guards and the named
// clinical override guards.
func (e *Engine) standardLookup(carrier string, p *domain.Profile, cfg *domain.PolicyConfiguration, today time.Time) domain.Verdict {
	cc, ok := cfg.CoverageEngine[carrier]
	if !ok {
		cc, ok = cfg.CoverageEngine[domain.CarrierOther]
		if !ok {
			return domain.Verdict{Status: domain.TierRestricted, Reason: reasonUnknownPayer}
		}
	}

	// State exclusion guard: the carrier's plan documents exclude the
	// drug class in these states regardless of clinical picture.
	if cr, ok := cfg.CarrierRules[carrier]; ok && containsString(cr.StateExclusions, p.State) {
		reason := reasonStateExcluded
		if note, ok := cr.StateNotes[p.State]; ok {
			reason = note
		}
		return domain.Verdict{Status: domain.TierDenied, Reason: reason, Pricing: cc.Pricing}
	}

	// Statutory guard: the Medicare weight-loss exclusion with its
	// narrow established-CVD exception.
	if carrier == "Medicare" {
		if fw := cfg.ClinicalOverrides.MedicareCVDFirewall; fw != nil && fw.Enabled {
			if p.HasComorbidity(fw.TriggerCondition) {
				return domain.Verdict{Status: fw.ResultPass.Status, Reason: fw.ResultPass.Reason, Pricing: cc.Pricing}
			}
			return domain.Verdict{Status: fw.ResultFail.Status, Reason: fw.ResultFail.Reason, Pricing: cc.Pricing}
		}
	}

	if v, ok := e.clinicalOverrides(p, cfg, cc.Pricing); ok {
		return v
	}

	v := domain.Verdict{Status: cc.DefaultStatus, Reason: reasonFallback, Pricing: cc.Pricing}
	if v.Status == "" {
		v.Status = domain.TierRestricted
	}
	for _, rule := range cc.Rules {
		if e.evaluateCondition(&rule.If, p, today) {
			v = domain.Verdict{Status: rule.Then.Status, Reason: rule.Then.Reason, Pricing: cc.Pricing}
			break
		}
	}

	// Clinical softening: an otherwise-denied commercial case with the
	// grey-zone comorbidity and a qualifying BMI is downgraded to the
	// grey-zone result. Guard denials above (state exclusions, the
	// Medicare firewall) are deliberate policy and are never softened.
	if v.Status == domain.TierDenied && p.PlanSource != domain.PlanSourceGovernment {
		if gz := cfg.ClinicalOverrides.GreyZoneCheck; gz != nil && gz.Enabled {
			if p.HasComorbidity(gz.RequiredCondition) && p.BMI >= gz.BMIMin {
				return domain.Verdict{Status: gz.Result.Status, Reason: gz.Result.Reason, Pricing: cc.Pricing}
			}
		}
	}

	return v
}

// clinicalOverrides applies the named override guards in fixed order:
// the OSA bypass, then type-2 step therapy, then the diabetes
// guarantee. Step therapy is checked before the guarantee so diabetics
// who skipped first-line treatment land on restricted, not approved.
func (e *Engine) clinicalOverrides(p *domain.Profile, cfg *domain.PolicyConfiguration, pricing *domain.PricingModel) (domain.Verdict, bool) {
	co := cfg.ClinicalOverrides

	if ob := co.OSABypass; ob != nil && ob.Enabled && p.HasComorbidity(ob.RequiredCondition) {
		for _, m := range ob.Medications {
			if strings.Contains(p.Medication, m) {
				return domain.Verdict{Status: ob.Result.Status, Reason: ob.Result.Reason, Pricing: pricing}, true
			}
		}
	}

	if st := co.T2DStepTherapy; st != nil && st.Enabled && p.HasComorbidity(st.RequiredCondition) {
		if !intersects(st.RequiredHistory, p.EffectiveHistory()) {
			return domain.Verdict{Status: st.Result.Status, Reason: st.Result.Reason, Pricing: pricing}, true
		}
	}

	if dg := co.DiabetesGuarantee; dg != nil && dg.Enabled && p.HasComorbidity(dg.RequiredCondition) {
		for _, m := range dg.Medications {
			if strings.Contains(p.Medication, m) {
				return domain.Verdict{Status: dg.Result.Status, Reason: dg.Result.Reason, Pricing: pricing}, true
			}
		}
	}

	return domain.Verdict{}, false
}
