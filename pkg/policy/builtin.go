package policy

// BuiltinPolicies returns the rules compiled into every gate.
func BuiltinPolicies() []Policy {
	return []Policy{
		{
			Name:        "all-items-disabled",
			Description: "A configuration where every item is disabled applies nothing and is almost certainly a mistake.",
			Severity:    SeverityError,
			Enabled:     true,
			Rego: `package setforge.policies.all_disabled

import rego.v1

deny contains msg if {
	count(input.items) > 0
	enabled := [item | some item in input.items; item.enabled]
	count(enabled) == 0
	msg := "every item in the configuration is disabled"
}
`,
		},
		{
			Name:        "missing-descriptions",
			Description: "Enabled items without a description are hard to audit later.",
			Severity:    SeverityWarning,
			Enabled:     true,
			Rego: `package setforge.policies.described

import rego.v1

deny contains msg if {
	some item in input.items
	item.enabled
	trim_space(item.description) == ""
	msg := sprintf("item %q has no description", [item.name])
}
`,
		},
		{
			Name:        "package-source-known",
			Description: "Package items pulling from an unrecognized source usually indicate a typo.",
			Severity:    SeverityWarning,
			Enabled:     true,
			Rego: `package setforge.policies.sources

import rego.v1

known_sources := {"system", "apt", "dnf", "brew"}

deny contains msg if {
	some item in input.items
	item.enabled
	item.type == "package"
	source := object.get(item.properties, "source", "system")
	not known_sources[source]
	msg := sprintf("item %q uses unknown package source %q", [item.name, source])
}
`,
		},
	}
}
