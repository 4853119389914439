package policy

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8, cfg.MinimumLength)
	assert.Equal(t, 64, cfg.MaximumLength)
	assert.True(t, cfg.RequireUppercase)
	assert.True(t, cfg.RequireLowercase)
	assert.True(t, cfg.RequireDigits)
	assert.False(t, cfg.RequireSpecialChars)
	assert.Equal(t, `!@#$%^&*()_+-=[]{}|;:'",./<>?`, cfg.SpecialCharacters)
	assert.Equal(t, 0, cfg.PasswordExpirationDays)
	assert.Equal(t, 5, cfg.PasswordHistorySize)
	assert.Empty(t, cfg.CustomErrorMessages)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{
			name:   "inverted bounds",
			mutate: func(c *Config) { c.MinimumLength = 65 },
			field:  "minimum_length",
		},
		{
			name:   "negative minimum",
			mutate: func(c *Config) { c.MinimumLength = -1 },
			field:  "minimum_length",
		},
		{
			name: "negative maximum",
			mutate: func(c *Config) {
				c.MinimumLength = 0
				c.MaximumLength = -1
			},
			field: "maximum_length",
		},
		{
			name:   "negative history",
			mutate: func(c *Config) { c.PasswordHistorySize = -3 },
			field:  "password_history_size",
		},
		{
			name:   "unknown message key",
			mutate: func(c *Config) { c.CustomErrorMessages["shoe_size"] = "nope" },
			field:  "custom_error_messages",
		},
		{
			name:   "empty custom message",
			mutate: func(c *Config) { c.CustomErrorMessages[RuleDigits] = "" },
			field:  "custom_error_messages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			found := false
			for _, fe := range verrs {
				if strings.HasPrefix(fe.Field(), tt.field) {
					found = true
				}
			}
			assert.True(t, found, "expected error on %s, got %v", tt.field, verrs)
		})
	}
}

func TestConfigValidateAcceptsKnownMessages(t *testing.T) {
	cfg := DefaultConfig()
	for _, key := range AllRuleKeys() {
		cfg.CustomErrorMessages[key] = "custom " + key.String()
	}
	assert.NoError(t, cfg.Validate())
}

func TestRuleKeyValid(t *testing.T) {
	assert.True(t, RuleMinLength.Valid())
	assert.True(t, Rule2FARequired.Valid())
	assert.False(t, RuleKey("").Valid())
	assert.False(t, RuleKey("MIN_LENGTH").Valid())

	keys := AllRuleKeys()
	require.Len(t, keys, 10)
	keys[0] = "mutated"
	assert.Equal(t, RuleMinLength, AllRuleKeys()[0])
}
