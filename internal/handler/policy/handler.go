package policy

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/password-policy/internal/handler"
	"github.com/jwalitptl/password-policy/internal/policy"
	policyService "github.com/jwalitptl/password-policy/internal/service/policy"
	apperrors "github.com/jwalitptl/password-policy/pkg/errors"
)

// PolicyServicer is the part of the policy service exposed over HTTP.
type PolicyServicer interface {
	Validate(ctx context.Context, password string) policy.Result
	Policy() policy.Config
	ErrorText(rule policy.RuleKey) (string, error)
	UpdatePolicy(ctx context.Context, cfg policy.Config) (policy.Config, error)
	PatchPolicy(ctx context.Context, p policyService.Patch) (policy.Config, error)
	SetCustomErrorMessages(ctx context.Context, messages map[policy.RuleKey]string) (policy.Config, error)
}

type Handler struct {
	service PolicyServicer
}

func NewHandler(service PolicyServicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the read-only routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/passwords/validate", h.ValidatePassword)

	p := r.Group("/policy")
	{
		p.GET("", h.GetPolicy)
		p.GET("/messages/:rule", h.GetMessage)
	}
}

// RegisterAdminRoutes mounts the routes that change the policy. r is expected
// to carry authentication.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	p := r.Group("/policy")
	{
		p.PUT("", h.UpdatePolicy)
		p.PATCH("", h.PatchPolicy)
		p.PUT("/messages", h.SetMessages)
	}
}

type validateRequest struct {
	// Pointer so an empty password is validated rather than rejected as missing.
	Password *string `json:"password" binding:"required"`
}

type ValidateResponse struct {
	Valid      bool               `json:"valid"`
	Violations []policy.Violation `json:"violations"`
	Messages   []string           `json:"messages"`
}

type messagesRequest struct {
	Messages map[policy.RuleKey]string `json:"messages" binding:"required"`
}

type MessageResponse struct {
	Rule    policy.RuleKey `json:"rule"`
	Message string         `json:"message"`
}

func (h *Handler) ValidatePassword(c *gin.Context) {
	var req validateRequest
	if !bindJSON(c, &req) {
		return
	}

	result := h.service.Validate(c.Request.Context(), *req.Password)

	violations := result.Violations
	if violations == nil {
		violations = []policy.Violation{}
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(ValidateResponse{
		Valid:      result.Valid(),
		Violations: violations,
		Messages:   result.Messages(),
	}))
}

func (h *Handler) GetPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.service.Policy()))
}

func (h *Handler) GetMessage(c *gin.Context) {
	rule := policy.RuleKey(c.Param("rule"))

	text, err := h.service.ErrorText(rule)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(MessageResponse{Rule: rule, Message: text}))
}

// UpdatePolicy replaces the whole policy. Fields missing from the body take
// their default values.
func (h *Handler) UpdatePolicy(c *gin.Context) {
	cfg := policy.DefaultConfig()
	if !bindJSON(c, &cfg) {
		return
	}

	h.respondUpdated(c, func(ctx context.Context) (policy.Config, error) {
		return h.service.UpdatePolicy(ctx, cfg)
	})
}

func (h *Handler) PatchPolicy(c *gin.Context) {
	var patch policyService.Patch
	if !bindJSON(c, &patch) {
		return
	}

	h.respondUpdated(c, func(ctx context.Context) (policy.Config, error) {
		return h.service.PatchPolicy(ctx, patch)
	})
}

func (h *Handler) SetMessages(c *gin.Context) {
	var req messagesRequest
	if !bindJSON(c, &req) {
		return
	}

	h.respondUpdated(c, func(ctx context.Context) (policy.Config, error) {
		return h.service.SetCustomErrorMessages(ctx, req.Messages)
	})
}

// bindJSON decodes the body into v and attaches an error when it cannot. A body
// cut off by the size limit is reported as 413.
func bindJSON(c *gin.Context, v interface{}) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		_ = c.Error(apperrors.PayloadTooLarge(tooLarge.Limit, err))
		return false
	}
	_ = c.Error(apperrors.BadRequest("invalid request body", err))
	return false
}

func (h *Handler) respondUpdated(c *gin.Context, update func(context.Context) (policy.Config, error)) {
	cfg, err := update(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(cfg))
}
