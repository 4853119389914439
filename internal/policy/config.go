package policy

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// DefaultSpecialCharacters is the special character set used when none is configured.
const DefaultSpecialCharacters = `!@#$%^&*()_+-=[]{}|;:'",./<>?`

// Config holds the password policy rules.
type Config struct {
	MinimumLength          int                `mapstructure:"minimum_length" json:"minimum_length" validate:"gte=0,ltefield=MaximumLength"`
	MaximumLength          int                `mapstructure:"maximum_length" json:"maximum_length" validate:"gte=0"`
	RequireUppercase       bool               `mapstructure:"require_uppercase" json:"require_uppercase"`
	RequireLowercase       bool               `mapstructure:"require_lowercase" json:"require_lowercase"`
	RequireDigits          bool               `mapstructure:"require_digits" json:"require_digits"`
	RequireSpecialChars    bool               `mapstructure:"require_special_chars" json:"require_special_chars"`
	SpecialCharacters      string             `mapstructure:"special_characters" json:"special_characters"`
	PasswordExpirationDays int                `mapstructure:"password_expiration_days" json:"password_expiration_days" validate:"gte=0"`
	PasswordHistorySize    int                `mapstructure:"password_history_size" json:"password_history_size" validate:"gte=0"`
	CustomErrorMessages    map[RuleKey]string `mapstructure:"custom_error_messages" json:"custom_error_messages" validate:"dive,keys,rulekey,endkeys,required"`
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{
		MinimumLength:       8,
		MaximumLength:       64,
		RequireUppercase:    true,
		RequireLowercase:    true,
		RequireDigits:       true,
		RequireSpecialChars: false,
		SpecialCharacters:   DefaultSpecialCharacters,
		PasswordHistorySize: 5,
		CustomErrorMessages: map[RuleKey]string{},
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.CustomErrorMessages = make(map[RuleKey]string, len(c.CustomErrorMessages))
	for k, v := range c.CustomErrorMessages {
		out.CustomErrorMessages[k] = v
	}
	return out
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("rulekey", func(fl validator.FieldLevel) bool {
			return RuleKey(fl.Field().String()).Valid()
		})
	})
	return validate
}

// Validate checks that the configuration is internally consistent: non-negative
// values, minimum length not above maximum length, and only known message keys.
// The engine setters do not call it.
func (c Config) Validate() error {
	return configValidator().Struct(c)
}
