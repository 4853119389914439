// Package policy evaluates passwords against a configurable set of rules.
package policy

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Engine validates passwords against a policy. The policy is held as an
// immutable snapshot; setters install a modified copy, so Validate never
// locks and always observes a consistent configuration.
type Engine struct {
	mu  sync.Mutex
	cfg atomic.Pointer[Config]
}

// New creates an engine with the default policy.
func New() *Engine {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an engine with a copy of cfg. cfg is not validated.
func NewWithConfig(cfg Config) *Engine {
	e := &Engine{}
	c := cfg.Clone()
	e.cfg.Store(&c)
	return e
}

// Config returns a copy of the current policy.
func (e *Engine) Config() Config {
	return e.cfg.Load().Clone()
}

// Replace installs cfg as the policy.
func (e *Engine) Replace(cfg Config) {
	c := cfg.Clone()
	e.mu.Lock()
	e.cfg.Store(&c)
	e.mu.Unlock()
}

// Update applies fn to a copy of the current policy and installs the result.
func (e *Engine) Update(fn func(c *Config)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.cfg.Load().Clone()
	fn(&c)
	e.cfg.Store(&c)
}

// SetMinimumLength sets the minimum length. Bounds are not cross-checked.
func (e *Engine) SetMinimumLength(n int) {
	e.Update(func(c *Config) { c.MinimumLength = n })
}

// SetMaximumLength sets the maximum length. Bounds are not cross-checked.
func (e *Engine) SetMaximumLength(n int) {
	e.Update(func(c *Config) { c.MaximumLength = n })
}

// SetUppercaseRequirement turns the uppercase (A-Z) check on or off.
func (e *Engine) SetUppercaseRequirement(required bool) {
	e.Update(func(c *Config) { c.RequireUppercase = required })
}

// SetLowercaseRequirement turns the lowercase (a-z) check on or off.
func (e *Engine) SetLowercaseRequirement(required bool) {
	e.Update(func(c *Config) { c.RequireLowercase = required })
}

// SetDigitRequirement turns the digit (0-9) check on or off.
func (e *Engine) SetDigitRequirement(required bool) {
	e.Update(func(c *Config) { c.RequireDigits = required })
}

// SetSpecialCharsRequirement turns the special character check on or off.
func (e *Engine) SetSpecialCharsRequirement(required bool) {
	e.Update(func(c *Config) { c.RequireSpecialChars = required })
}

// EnableUppercaseRequirement requires at least one uppercase letter.
func (e *Engine) EnableUppercaseRequirement() { e.SetUppercaseRequirement(true) }

// EnableLowercaseRequirement requires at least one lowercase letter.
func (e *Engine) EnableLowercaseRequirement() { e.SetLowercaseRequirement(true) }

// EnableDigitRequirement requires at least one digit.
func (e *Engine) EnableDigitRequirement() { e.SetDigitRequirement(true) }

// EnableSpecialCharsRequirement requires at least one special character.
func (e *Engine) EnableSpecialCharsRequirement() { e.SetSpecialCharsRequirement(true) }

// DisableUppercaseRequirement drops the uppercase check.
func (e *Engine) DisableUppercaseRequirement() { e.SetUppercaseRequirement(false) }

// DisableLowercaseRequirement drops the lowercase check.
func (e *Engine) DisableLowercaseRequirement() { e.SetLowercaseRequirement(false) }

// DisableDigitRequirement drops the digit check.
func (e *Engine) DisableDigitRequirement() { e.SetDigitRequirement(false) }

// DisableSpecialCharsRequirement drops the special character check.
func (e *Engine) DisableSpecialCharsRequirement() { e.SetSpecialCharsRequirement(false) }

// SetSpecialCharacterSet replaces the characters that count as special.
func (e *Engine) SetSpecialCharacterSet(chars string) {
	e.Update(func(c *Config) { c.SpecialCharacters = chars })
}

// SetPasswordExpirationDays stores the expiration period. It is not enforced.
func (e *Engine) SetPasswordExpirationDays(days int) {
	e.Update(func(c *Config) { c.PasswordExpirationDays = days })
}

// SetPasswordHistorySize stores the history size used by the password_history message.
func (e *Engine) SetPasswordHistorySize(size int) {
	e.Update(func(c *Config) { c.PasswordHistorySize = size })
}

// SetCustomErrorMessages replaces the whole custom message mapping.
func (e *Engine) SetCustomErrorMessages(messages map[RuleKey]string) {
	e.Update(func(c *Config) {
		c.CustomErrorMessages = make(map[RuleKey]string, len(messages))
		for k, v := range messages {
			c.CustomErrorMessages[k] = v
		}
	})
}

// ErrorText resolves the message for key against the current policy.
func (e *Engine) ErrorText(key RuleKey) (string, error) {
	return e.cfg.Load().ErrorText(key)
}

// Validate checks password against the current policy and reports every
// failed rule in check order.
func (e *Engine) Validate(password string) Result {
	return e.cfg.Load().Check(password)
}

// Check evaluates password against c.
func (c Config) Check(password string) Result {
	var violations []Violation
	fail := func(key RuleKey) {
		violations = append(violations, Violation{Rule: key, Message: c.message(key)})
	}

	if len(password) < c.MinimumLength {
		fail(RuleMinLength)
	}
	if len(password) > c.MaximumLength {
		fail(RuleMaxLength)
	}
	if c.RequireUppercase && !containsRange(password, 'A', 'Z') {
		fail(RuleUppercase)
	}
	if c.RequireLowercase && !containsRange(password, 'a', 'z') {
		fail(RuleLowercase)
	}
	if c.RequireDigits && !containsRange(password, '0', '9') {
		fail(RuleDigits)
	}
	if c.RequireSpecialChars && !strings.ContainsAny(password, c.SpecialCharacters) {
		fail(RuleSpecialChars)
	}

	return Result{Violations: violations}
}

// containsRange reports whether s has a byte in [lo, hi]. Only ASCII ranges are
// used, so multi-byte UTF-8 sequences never match.
func containsRange(s string, lo, hi byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= lo && s[i] <= hi {
			return true
		}
	}
	return false
}
