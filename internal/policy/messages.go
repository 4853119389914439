package policy

import (
	"errors"
	"fmt"
)

// ErrUnknownRule is returned when message text is requested for a key the policy
// does not recognize.
var ErrUnknownRule = errors.New("unknown policy rule")

// ErrorText resolves the message for key against c. A custom message is returned
// verbatim; otherwise the default template is rendered with the current bounds.
func (c Config) ErrorText(key RuleKey) (string, error) {
	if msg, ok := c.CustomErrorMessages[key]; ok {
		return msg, nil
	}

	switch key {
	case RuleMinLength:
		return fmt.Sprintf("Password must be at least %d characters long.", c.MinimumLength), nil
	case RuleMaxLength:
		return fmt.Sprintf("Password cannot exceed %d characters.", c.MaximumLength), nil
	case RuleUppercase:
		return "Password must contain at least one uppercase letter.", nil
	case RuleLowercase:
		return "Password must contain at least one lowercase letter.", nil
	case RuleDigits:
		return "Password must contain at least one digit.", nil
	case RuleSpecialChars:
		return "Password must contain at least one special character.", nil
	case RulePasswordExpired:
		return "Your password has expired. Please reset it.", nil
	case RulePasswordHistory:
		return fmt.Sprintf("Cannot reuse one of your last %d passwords.", c.PasswordHistorySize), nil
	case RuleAccountLocked:
		return "Your account is temporarily locked due to too many failed login attempts. Please try again later.", nil
	case Rule2FARequired:
		return "Two-factor authentication is required for added security.", nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownRule, string(key))
}

// message is ErrorText for the keys Validate emits, all of which have a template.
func (c Config) message(key RuleKey) string {
	msg, err := c.ErrorText(key)
	if err != nil {
		panic(err)
	}
	return msg
}
