package policy

// RuleKey identifies a policy check or a message category.
type RuleKey string

const (
	RuleMinLength    RuleKey = "min_length"
	RuleMaxLength    RuleKey = "max_length"
	RuleUppercase    RuleKey = "uppercase"
	RuleLowercase    RuleKey = "lowercase"
	RuleDigits       RuleKey = "digits"
	RuleSpecialChars RuleKey = "special_chars"

	// Message-only categories. Validate never emits these.
	RulePasswordExpired RuleKey = "password_expired"
	RulePasswordHistory RuleKey = "password_history"
	RuleAccountLocked   RuleKey = "account_locked"
	Rule2FARequired     RuleKey = "2fa_required"
)

var allRuleKeys = []RuleKey{
	RuleMinLength,
	RuleMaxLength,
	RuleUppercase,
	RuleLowercase,
	RuleDigits,
	RuleSpecialChars,
	RulePasswordExpired,
	RulePasswordHistory,
	RuleAccountLocked,
	Rule2FARequired,
}

// AllRuleKeys returns every recognized rule key in declaration order.
func AllRuleKeys() []RuleKey {
	keys := make([]RuleKey, len(allRuleKeys))
	copy(keys, allRuleKeys)
	return keys
}

// Valid reports whether k is a recognized rule key.
func (k RuleKey) Valid() bool {
	for _, known := range allRuleKeys {
		if k == known {
			return true
		}
	}
	return false
}

func (k RuleKey) String() string {
	return string(k)
}
