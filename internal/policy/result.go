package policy

import "strings"

// Violation is a single failed rule.
type Violation struct {
	Rule    RuleKey `json:"rule"`
	Message string  `json:"message"`
}

// Result is the outcome of validating one password. It is valid when it
// carries no violations.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Valid reports whether the password satisfied every rule.
func (r Result) Valid() bool {
	return len(r.Violations) == 0
}

// Messages returns the violation messages in check order.
func (r Result) Messages() []string {
	msgs := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		msgs = append(msgs, v.Message)
	}
	return msgs
}

// Rules returns the violated rule keys in check order.
func (r Result) Rules() []RuleKey {
	keys := make([]RuleKey, 0, len(r.Violations))
	for _, v := range r.Violations {
		keys = append(keys, v.Rule)
	}
	return keys
}

// Err returns nil for a valid result and a *ViolationError otherwise.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &ViolationError{Violations: r.Violations}
}

// ViolationError reports a password that failed one or more rules.
type ViolationError struct {
	Violations []Violation
}

func (e *ViolationError) Error() string {
	return "password policy violation: " + strings.Join(Result{Violations: e.Violations}.Messages(), " ")
}

// Has reports whether rule is among the violations.
func (e *ViolationError) Has(rule RuleKey) bool {
	for _, v := range e.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}
