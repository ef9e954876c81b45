// Package policy loads, validates, and publishes coverage policy
// documents. Documents are parsed once, scrubbed of malformed rules,
// and swapped atomically; the engine only ever sees a validated,
// immutable snapshot.
package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/veriscript-health/clarity/internal/domain"
)

// ExprCompiler validates expression clauses at load time. Satisfied by
// the engine.
type ExprCompiler interface {
	CompileExpr(expr string) error
}

// Parse decodes a policy document, substituting the {{YEAR}} template
// marker with the given year first. Policy authors keep date-sensitive
// rules year-relative; substitution happens before JSON decoding so the
// marker can appear anywhere in the document.
func Parse(raw []byte, year int) (*domain.PolicyConfiguration, error) {
	raw = bytes.ReplaceAll(raw, []byte("{{YEAR}}"), []byte(strconv.Itoa(year)))
	raw = bytes.ReplaceAll(raw, []byte("{{NEXT_YEAR}}"), []byte(strconv.Itoa(year+1)))

	var cfg domain.PolicyConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}
	return &cfg, nil
}

// Validate scrubs a freshly parsed document before publication:
// malformed rules are quarantined (dropped) rather than failing the
// whole load, and never reach evaluation. Returns one warning per
// quarantined element. The document must not yet be published when
// Validate mutates it.
func Validate(cfg *domain.PolicyConfiguration, compiler ExprCompiler) []string {
	var warnings []string
	warnf := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	for name, cc := range cfg.CoverageEngine {
		if cc.MemberID != nil && cc.MemberID.Regex != "" {
			if _, err := regexp.Compile(cc.MemberID.Regex); err != nil {
				warnf("carrier %s: member ID pattern %q is invalid, falling back to built-in heuristics: %v", name, cc.MemberID.Regex, err)
				cc.MemberID = nil
			}
		}

		if cc.DefaultStatus != "" && !cc.DefaultStatus.Valid() {
			warnf("carrier %s: unknown default status %q, using restricted", name, cc.DefaultStatus)
			cc.DefaultStatus = domain.TierRestricted
		}

		kept := cc.Rules[:0]
		for i, rule := range cc.Rules {
			if reason := checkRule(&rule, compiler); reason != "" {
				warnf("carrier %s: rule %d quarantined: %s", name, i, reason)
				continue
			}
			kept = append(kept, rule)
		}
		cc.Rules = kept

		cfg.CoverageEngine[name] = cc
	}

	kept := cfg.MedicationOverrides[:0]
	for i, ov := range cfg.MedicationOverrides {
		if len(ov.Match) == 0 || !ov.Status.Valid() || ov.Reason == "" {
			warnf("medication override %d quarantined: needs match, a known status, and a reason", i)
			continue
		}
		kept = append(kept, ov)
	}
	cfg.MedicationOverrides = kept

	return warnings
}

// checkRule returns a non-empty reason when the rule must be
// quarantined.
func checkRule(rule *domain.CoverageRule, compiler ExprCompiler) string {
	if !rule.Then.Status.Valid() {
		return fmt.Sprintf("unknown status %q", rule.Then.Status)
	}
	if rule.Then.Reason == "" {
		return "empty reason"
	}
	if n := len(rule.If.BMIRange); n != 0 && n != 2 {
		return fmt.Sprintf("bmi_range needs exactly [lo, hi), got %d bounds", n)
	}
	if len(rule.If.BMIRange) == 2 && rule.If.BMIRange[0] >= rule.If.BMIRange[1] {
		return "bmi_range bounds are not ascending"
	}
	if rule.If.Expr != "" && compiler != nil {
		if err := compiler.CompileExpr(rule.If.Expr); err != nil {
			return fmt.Sprintf("expression does not compile: %v", err)
		}
	}
	return ""
}
