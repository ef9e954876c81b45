package engine

import (
	"strings"

	"github.com/veriscript-health/clarity/internal/domain"
)

// carrierFragment maps a lower-cased name fragment to its canonical
// carrier key. Resolution priority is the slice order.
type carrierFragment struct {
	fragment  string
	canonical string
}

// carrierFragments is the fixed resolution order for free-text carrier
// names. "blue" must precede generic fragments so "Blue Cross of Texas"
// lands on BCBS, and aetna/cigna come first because their names never
// collide with anything else.
var carrierFragments = []carrierFragment{
	{"aetna", "Aetna"},
	{"cigna", "Cigna"},
	{"blue", "BCBS"},
	{"bcbs", "BCBS"},
	{"uhc", "UHC"},
	{"united", "UHC"},
	{"medicare", "Medicare"},
	{"medicaid", "Medicaid"},
	{"tricare", "Tricare"},
	{"humana", "Humana"},
	{"kaiser", "Kaiser"},
	{"molina", "Molina"},
	{"ambetter", "Ambetter"},
}

// ResolveCarrier normalizes the selected carrier, optional free text,
// and plan source into one canonical carrier key. Unmatched free text
// leaves the carrier as "Other"; there are no error paths.
func ResolveCarrier(carrier, freeText string, planSource domain.PlanSource) string {
	resolved := carrier

	if carrier == domain.CarrierOther && freeText != "" {
		name := strings.ToLower(freeText)
		for _, f := range carrierFragments {
			if strings.Contains(name, f.fragment) {
				resolved = f.canonical
				break
			}
		}
	}

	// Government plan source overrides free-text resolution: honor an
	// explicit Medicare or Tricare selection, default everything else
	// to Medicaid.
	if planSource == domain.PlanSourceGovernment {
		switch resolved {
		case "Medicare", "Tricare":
		default:
			resolved = "Medicaid"
		}
	}

	return resolved
}
