package policy

// Severity decides what a rule hit does to the validation outcome.
type Severity string

const (
	// SeverityWarning reports the hit without failing validation.
	SeverityWarning Severity = "warning"

	// SeverityError fails validation.
	SeverityError Severity = "error"
)

// Policy is one named Rego rule set.
type Policy struct {
	// Name identifies the policy; duplicate names replace earlier policies.
	Name string `json:"name"`

	// Description is optional human-readable context.
	Description string `json:"description,omitempty"`

	// Severity classifies every hit this policy produces. Individual deny
	// entries may override it via a "severity" field.
	Severity Severity `json:"severity"`

	// Enabled controls whether the gate evaluates this policy.
	Enabled bool `json:"enabled"`

	// Rego is the policy source. It must declare a package and a deny rule.
	Rego string `json:"-"`
}
