// Package policy gates validation with Rego rules evaluated by OPA. Built-in
// rules ship compiled-in; operators drop additional .rego files into a policy
// directory. Error-severity rule hits deny the configuration, warning-severity
// hits are reported and validation continues.
package policy
