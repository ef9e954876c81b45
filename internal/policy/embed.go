package policy

import _ "embed"

// defaultPolicy is the policy document the service ships with. It is a
// working snapshot of public payer postures and can be replaced at
// runtime via a file path or a stored document reload.
//
//go:embed default_policy.json
var defaultPolicy []byte

// DefaultDocument returns the raw embedded policy document, for seeding
// the repository's policy_documents table.
func DefaultDocument() []byte {
	out := make([]byte, len(defaultPolicy))
	copy(out, defaultPolicy)
	return out
}
