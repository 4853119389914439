package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/password-policy/internal/policy"
	apperrors "github.com/jwalitptl/password-policy/pkg/errors"
	"github.com/jwalitptl/password-policy/pkg/logger"
	"github.com/jwalitptl/password-policy/pkg/messaging"
	"github.com/jwalitptl/password-policy/pkg/metrics"
)

// MessageTypePolicyUpdated marks a policy snapshot published to other instances.
const MessageTypePolicyUpdated = "policy.updated"

// Update sources, used for metrics and logs.
const (
	SourceAPI    = "api"
	SourceFile   = "file"
	SourceRemote = "remote"
)

// Publisher is the part of messaging.Broker the service needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

type Config struct {
	// InstanceID tags published updates so an instance can skip its own.
	InstanceID string
	// Channel is the broker channel for policy updates.
	Channel string
}

type Service struct {
	engine    *policy.Engine
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
	cfg       Config
}

// NewService creates the policy service. publisher may be nil when updates are
// not propagated.
func NewService(engine *policy.Engine, publisher Publisher, m *metrics.Metrics, log *logger.Logger, cfg Config) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		engine:    engine,
		publisher: publisher,
		metrics:   m,
		logger:    log.WithFields(map[string]interface{}{"component": "policy-service"}),
		cfg:       cfg,
	}
}

// Validate checks password against the current policy.
func (s *Service) Validate(ctx context.Context, password string) policy.Result {
	start := time.Now()
	result := s.engine.Validate(password)

	if s.metrics != nil {
		s.metrics.ValidationDuration.Observe(time.Since(start).Seconds())
		outcome := "valid"
		if !result.Valid() {
			outcome = "invalid"
		}
		s.metrics.Validations.WithLabelValues(outcome).Inc()
		for _, rule := range result.Rules() {
			s.metrics.Violations.WithLabelValues(rule.String()).Inc()
		}
	}

	if !result.Valid() {
		s.logger.Debug("password rejected", "rules", result.Rules())
	}
	return result
}

// Policy returns the current policy.
func (s *Service) Policy() policy.Config {
	return s.engine.Config()
}

// ErrorText resolves the message for rule.
func (s *Service) ErrorText(rule policy.RuleKey) (string, error) {
	text, err := s.engine.ErrorText(rule)
	if errors.Is(err, policy.ErrUnknownRule) {
		return "", apperrors.NewUnknownRule(rule.String(), err)
	}
	return text, err
}

// UpdatePolicy replaces the policy and propagates it.
func (s *Service) UpdatePolicy(ctx context.Context, cfg policy.Config) (policy.Config, error) {
	if cfg.CustomErrorMessages == nil {
		cfg.CustomErrorMessages = map[policy.RuleKey]string{}
	}
	if err := cfg.Validate(); err != nil {
		return policy.Config{}, apperrors.NewInvalidPolicy(err)
	}

	s.engine.Replace(cfg)
	return s.committed(ctx, SourceAPI)
}

// Patch is a partial policy update; nil fields are left unchanged.
type Patch struct {
	MinimumLength          *int    `json:"minimum_length"`
	MaximumLength          *int    `json:"maximum_length"`
	RequireUppercase       *bool   `json:"require_uppercase"`
	RequireLowercase       *bool   `json:"require_lowercase"`
	RequireDigits          *bool   `json:"require_digits"`
	RequireSpecialChars    *bool   `json:"require_special_chars"`
	SpecialCharacters      *string `json:"special_characters"`
	PasswordExpirationDays *int    `json:"password_expiration_days"`
	PasswordHistorySize    *int    `json:"password_history_size"`
}

// Apply writes the set fields of p into c.
func (p Patch) Apply(c *policy.Config) {
	if p.MinimumLength != nil {
		c.MinimumLength = *p.MinimumLength
	}
	if p.MaximumLength != nil {
		c.MaximumLength = *p.MaximumLength
	}
	if p.RequireUppercase != nil {
		c.RequireUppercase = *p.RequireUppercase
	}
	if p.RequireLowercase != nil {
		c.RequireLowercase = *p.RequireLowercase
	}
	if p.RequireDigits != nil {
		c.RequireDigits = *p.RequireDigits
	}
	if p.RequireSpecialChars != nil {
		c.RequireSpecialChars = *p.RequireSpecialChars
	}
	if p.SpecialCharacters != nil {
		c.SpecialCharacters = *p.SpecialCharacters
	}
	if p.PasswordExpirationDays != nil {
		c.PasswordExpirationDays = *p.PasswordExpirationDays
	}
	if p.PasswordHistorySize != nil {
		c.PasswordHistorySize = *p.PasswordHistorySize
	}
}

// PatchPolicy applies p atomically. The patched policy must be valid as a whole.
func (s *Service) PatchPolicy(ctx context.Context, p Patch) (policy.Config, error) {
	var invalid error
	s.engine.Update(func(c *policy.Config) {
		next := c.Clone()
		p.Apply(&next)
		if err := next.Validate(); err != nil {
			invalid = err
			return
		}
		*c = next
	})
	if invalid != nil {
		return policy.Config{}, apperrors.NewInvalidPolicy(invalid)
	}
	return s.committed(ctx, SourceAPI)
}

// SetCustomErrorMessages replaces the custom message mapping.
func (s *Service) SetCustomErrorMessages(ctx context.Context, messages map[policy.RuleKey]string) (policy.Config, error) {
	next := s.engine.Config()
	next.CustomErrorMessages = messages
	if next.CustomErrorMessages == nil {
		next.CustomErrorMessages = map[policy.RuleKey]string{}
	}
	if err := next.Validate(); err != nil {
		return policy.Config{}, apperrors.NewInvalidPolicy(err)
	}

	s.engine.SetCustomErrorMessages(next.CustomErrorMessages)
	return s.committed(ctx, SourceAPI)
}

// ApplyPolicy installs a policy received from a file reload or another
// instance. It is not republished.
func (s *Service) ApplyPolicy(cfg policy.Config, source string) error {
	if cfg.CustomErrorMessages == nil {
		cfg.CustomErrorMessages = map[policy.RuleKey]string{}
	}
	if err := cfg.Validate(); err != nil {
		return apperrors.NewInvalidPolicy(err)
	}

	s.engine.Replace(cfg)
	s.recordUpdate(source)
	return nil
}

// IsOwnUpdate reports whether msg was published by this instance.
func (s *Service) IsOwnUpdate(msg messaging.Message) bool {
	return msg.Origin != "" && msg.Origin == s.cfg.InstanceID
}

// HandleMessage applies a policy update received from the broker.
func (s *Service) HandleMessage(msg messaging.Message) error {
	if msg.Type != MessageTypePolicyUpdated || s.IsOwnUpdate(msg) {
		return nil
	}

	var cfg policy.Config
	if err := json.Unmarshal(msg.Payload, &cfg); err != nil {
		return apperrors.BadRequest("malformed policy update", err)
	}
	return s.ApplyPolicy(cfg, SourceRemote)
}

func (s *Service) committed(ctx context.Context, source string) (policy.Config, error) {
	cfg := s.engine.Config()
	s.recordUpdate(source)

	if s.publisher == nil {
		return cfg, nil
	}

	msg, err := messaging.NewMessage(MessageTypePolicyUpdated, s.cfg.InstanceID, cfg)
	if err != nil {
		return cfg, apperrors.Internal(err)
	}
	if err := s.publisher.Publish(ctx, s.cfg.Channel, msg); err != nil {
		// The local policy is already in effect; other instances catch up on the next update.
		s.logger.Error(err, "failed to publish policy update", "channel", s.cfg.Channel)
		return cfg, apperrors.NewUnavailable("policy applied locally but not propagated", fmt.Errorf("publish: %w", err))
	}
	return cfg, nil
}

func (s *Service) recordUpdate(source string) {
	if s.metrics != nil {
		s.metrics.PolicyUpdates.WithLabelValues(source).Inc()
	}
	s.logger.Info("password policy updated", "source", source)
}
